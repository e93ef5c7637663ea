// Package orders keeps an order and its public tracking projection in step
// and layers the vendor and customer operations on top.
package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"gemmy/internal/metrics"
	"gemmy/internal/models"
	"gemmy/internal/notify"
	"gemmy/internal/photos"
	"gemmy/internal/store"
	"gemmy/internal/workflow"
)

var (
	ErrAdminOnly     = errors.New("admin only")
	ErrNoOrderBound  = errors.New("no order bound")
	ErrNotFound      = errors.New("order not found")
	ErrPhotoNotFound = errors.New("photo not found")
	ErrInvalid       = errors.New("invalid request")
)

// Actor is the caller of an operation. Admin is true only for vendor
// accounts on the allow-list.
type Actor struct {
	UID   string
	Admin bool
}

// Role is the value stamped into lastUpdateBy, message senders and photo
// uploaders.
func (a Actor) Role() string {
	if a.Admin {
		return models.ActorVendor
	}
	return models.ActorCustomer
}

type Config struct {
	Store    store.OrderStore
	Blobs    photos.BlobStore
	Catalog  *workflow.Catalog
	Notifier notify.Publisher
	Logger   *zap.Logger

	PublicBaseURL string
	// MirrorCustomerWrites also copies customer address, message and photo
	// writes onto the bound order.
	MirrorCustomerWrites bool

	Now func() time.Time
}

type Service struct {
	store    store.OrderStore
	blobs    photos.BlobStore
	catalog  *workflow.Catalog
	notifier notify.Publisher
	log      *zap.Logger

	baseURL string
	mirror  bool
	now     func() time.Time
}

func NewService(cfg Config) *Service {
	s := &Service{
		store:    cfg.Store,
		blobs:    cfg.Blobs,
		catalog:  cfg.Catalog,
		notifier: cfg.Notifier,
		log:      cfg.Logger,
		baseURL:  cfg.PublicBaseURL,
		mirror:   cfg.MirrorCustomerWrites,
		now:      cfg.Now,
	}
	if s.catalog == nil {
		s.catalog = workflow.Default()
	}
	if s.notifier == nil {
		s.notifier = notify.Nop{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	s.log = s.log.Named("orders")
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

func (s *Service) Catalog() *workflow.Catalog { return s.catalog }

func (s *Service) ShareURL(token string) string { return ShareURL(s.baseURL, token) }

// Created is returned by CreateOrder.
type Created struct {
	Token    string `json:"token"`
	OrderID  string `json:"orderId"`
	ShareURL string `json:"shareUrl"`
}

// CreateOrder inserts a new order together with its projection under a fresh
// track token.
func (s *Service) CreateOrder(ctx context.Context, actor Actor, name, email string) (Created, error) {
	if !actor.Admin {
		return Created{}, ErrAdminOnly
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Created{}, fmt.Errorf("%w: customer name is required", ErrInvalid)
	}

	token, err := NewToken()
	if err != nil {
		return Created{}, err
	}
	now := s.now()
	o := models.Order{
		TrackToken:    token,
		CustomerName:  name,
		CustomerEmail: strings.TrimSpace(email),
		Status:        workflow.StatusCreated,
		Photos:        []models.Photo{},
		Messages:      []models.Message{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.store.InsertOrder(ctx, &o); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		p := models.ProjectionFor(o)
		p.LastUpdateBy = models.ActorVendor
		p.VendorLastSeenAt = &now
		if err := s.store.InsertProjection(ctx, p); err != nil {
			return fmt.Errorf("insert projection: %w", err)
		}
		return nil
	})
	if err != nil {
		s.log.Error("create order failed", zap.String("actor", actor.UID), zap.Error(err))
		return Created{}, err
	}

	metrics.OrdersCreatedTotal.Inc()
	s.log.Info("order created", zap.String("orderId", o.ID.Hex()), zap.String("actor", actor.UID))
	s.publish(ctx, notify.Event{Token: token, Kind: "created", Status: o.Status, By: models.ActorVendor, At: now})

	return Created{Token: token, OrderID: o.ID.Hex(), ShareURL: s.ShareURL(token)}, nil
}

// View is what FetchByToken found. Order is set only for admins and only when
// the secondary read succeeded.
type View struct {
	Found      bool
	Projection models.Projection
	Order      *models.Order
}

func (s *Service) FetchByToken(ctx context.Context, actor Actor, token string) (View, error) {
	p, err := s.store.GetProjection(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return View{}, nil
	}
	if err != nil {
		return View{}, fmt.Errorf("get projection: %w", err)
	}

	v := View{Found: true, Projection: p}
	if actor.Admin && p.OrderID != "" {
		o, err := s.store.GetOrder(ctx, p.OrderID)
		if err != nil {
			s.log.Warn("order read failed, serving projection only",
				zap.String("orderId", p.OrderID), zap.Error(err))
			return v, nil
		}
		v.Order = &o
	}
	return v, nil
}

// Mutate applies m to the projection and, for admins on a bound projection,
// to the order as well. By and At are filled in from actor and the clock.
func (s *Service) Mutate(ctx context.Context, actor Actor, token string, m store.Mutation) error {
	p, err := s.load(ctx, token)
	if err != nil {
		return err
	}
	return s.apply(ctx, actor, p, m)
}

func (s *Service) apply(ctx context.Context, actor Actor, p models.Projection, m store.Mutation) error {
	s.stamp(actor, &m)
	var om *store.Mutation
	if s.writesOrder(actor, p, m) {
		c := m
		om = &c
	}
	return s.commit(ctx, actor, p, m, om)
}

func (s *Service) stamp(actor Actor, m *store.Mutation) {
	m.By = actor.Role()
	if m.At.IsZero() {
		m.At = s.now()
	}
}

func (s *Service) writesOrder(actor Actor, p models.Projection, m store.Mutation) bool {
	if p.OrderID == "" || m.SeenOnly {
		return false
	}
	return actor.Admin || s.mirror
}

// commit writes pm to the projection and om, when non-nil, to the bound
// order as one unit.
func (s *Service) commit(ctx context.Context, actor Actor, p models.Projection, pm store.Mutation, om *store.Mutation) error {
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.store.UpdateProjection(ctx, p.Token, pm); err != nil {
			return fmt.Errorf("update projection: %w", err)
		}
		if om == nil || p.OrderID == "" {
			return nil
		}
		if err := s.store.UpdateOrder(ctx, p.OrderID, *om); err != nil {
			return fmt.Errorf("update order %s: %w", p.OrderID, err)
		}
		return nil
	})

	kind := pm.Kind()
	if err != nil {
		s.log.Error("order mutation failed",
			zap.String("token", p.Token), zap.String("kind", kind), zap.Error(err))
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		}
		return err
	}

	metrics.OrderMutationsTotal.WithLabelValues(kind, pm.By).Inc()
	s.log.Debug("order mutated",
		zap.String("token", p.Token), zap.String("kind", kind), zap.String("by", pm.By))

	if !pm.SeenOnly {
		status := p.Status
		if pm.Status != nil {
			status = *pm.Status
		}
		s.publish(ctx, notify.Event{Token: p.Token, Kind: kind, Status: status, By: pm.By, At: pm.At})
	}
	return nil
}

func (s *Service) publish(ctx context.Context, e notify.Event) {
	if err := s.notifier.Publish(ctx, e); err != nil {
		s.log.Warn("publish event failed", zap.String("token", e.Token), zap.Error(err))
	}
}

func (s *Service) load(ctx context.Context, token string) (models.Projection, error) {
	p, err := s.store.GetProjection(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return models.Projection{}, ErrNotFound
	}
	if err != nil {
		return models.Projection{}, fmt.Errorf("get projection: %w", err)
	}
	return p, nil
}

func requireAdmin(actor Actor, p models.Projection) error {
	if !actor.Admin {
		return ErrAdminOnly
	}
	if p.OrderID == "" {
		return ErrNoOrderBound
	}
	return nil
}

// isoMillis formats t the way stored message and photo stamps are written.
func isoMillis(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
