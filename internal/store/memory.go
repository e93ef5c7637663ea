package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"gemmy/internal/models"
)

// Memory is an in-process OrderStore and AccountStore. WithinTx restores the
// previous state when fn fails.
type Memory struct {
	mu       sync.RWMutex
	orders   map[string]models.Order
	tracks   map[string]models.Projection
	accounts map[primitive.ObjectID]models.Account
	admins   map[string]models.Admin
	refresh  map[primitive.ObjectID]models.RefreshToken

	failures map[string]error
}

func NewMemory() *Memory {
	return &Memory{
		orders:   map[string]models.Order{},
		tracks:   map[string]models.Projection{},
		accounts: map[primitive.ObjectID]models.Account{},
		admins:   map[string]models.Admin{},
		refresh:  map[primitive.ObjectID]models.RefreshToken{},
		failures: map[string]error{},
	}
}

// FailOn makes the next call of the named method return err.
func (s *Memory) FailOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = err
}

func (s *Memory) failure(method string) error {
	if err, ok := s.failures[method]; ok {
		delete(s.failures, method)
		return err
	}
	return nil
}

func (s *Memory) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure("Ping")
}

func (s *Memory) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.RLock()
	orders := make(map[string]models.Order, len(s.orders))
	for k, v := range s.orders {
		orders[k] = cloneOrder(v)
	}
	tracks := make(map[string]models.Projection, len(s.tracks))
	for k, v := range s.tracks {
		tracks[k] = cloneProjection(v)
	}
	s.mu.RUnlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.orders = orders
		s.tracks = tracks
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Memory) InsertOrder(ctx context.Context, o *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("InsertOrder"); err != nil {
		return err
	}

	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	id := o.ID.Hex()
	if _, ok := s.orders[id]; ok {
		return ErrDuplicate
	}
	for _, existing := range s.orders {
		if existing.TrackToken == o.TrackToken {
			return ErrDuplicate
		}
	}
	s.orders[id] = cloneOrder(*o)
	return nil
}

func (s *Memory) GetOrder(ctx context.Context, id string) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("GetOrder"); err != nil {
		return models.Order{}, err
	}

	o, ok := s.orders[id]
	if !ok {
		return models.Order{}, ErrNotFound
	}
	out := cloneOrder(o)
	normalizeOrder(&out)
	return out, nil
}

func (s *Memory) UpdateOrder(ctx context.Context, id string, m Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("UpdateOrder"); err != nil {
		return err
	}

	o, ok := s.orders[id]
	if !ok {
		return ErrNotFound
	}
	if m.Review != nil && m.SetPhotos == nil && (m.Review.Index < 0 || m.Review.Index >= len(o.Photos)) {
		return ErrNotFound
	}
	if !m.SeenOnly {
		o.UpdatedAt = m.At
		applyFields(m, &o.Status, &o.PrePaidStatus, &o.Address, &o.Tracking, &o.Paid, &o.Archived, &o.Photos, &o.Messages)
	}
	s.orders[id] = o
	return nil
}

func (s *Memory) InsertProjection(ctx context.Context, p models.Projection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("InsertProjection"); err != nil {
		return err
	}

	if _, ok := s.tracks[p.Token]; ok {
		return ErrDuplicate
	}
	s.tracks[p.Token] = cloneProjection(p)
	return nil
}

func (s *Memory) GetProjection(ctx context.Context, token string) (models.Projection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("GetProjection"); err != nil {
		return models.Projection{}, err
	}

	p, ok := s.tracks[token]
	if !ok {
		return models.Projection{}, ErrNotFound
	}
	out := cloneProjection(p)
	normalizeProjection(&out)
	return out, nil
}

func (s *Memory) UpdateProjection(ctx context.Context, token string, m Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("UpdateProjection"); err != nil {
		return err
	}

	p, ok := s.tracks[token]
	if !ok {
		return ErrNotFound
	}
	if m.Review != nil && (m.Review.Index < 0 || m.Review.Index >= len(p.Photos)) {
		return ErrNotFound
	}

	at := m.At
	if m.SeenOnly {
		p.VendorLastSeenAt = &at
		s.tracks[token] = p
		return nil
	}

	p.UpdatedAt = at
	p.LastUpdateBy = m.By
	if m.By == models.ActorVendor {
		p.VendorLastSeenAt = &at
	} else {
		p.LastCustomerActivityAt = &at
	}
	applyFields(m, &p.Status, &p.PrePaidStatus, &p.Address, &p.Tracking, &p.Paid, &p.Archived, &p.Photos, &p.Messages)
	s.tracks[token] = p
	return nil
}

func (s *Memory) ListProjections(ctx context.Context, limit int64) ([]models.Projection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("ListProjections"); err != nil {
		return nil, err
	}

	items := make([]models.Projection, 0, len(s.tracks))
	for _, p := range s.tracks {
		c := cloneProjection(p)
		normalizeProjection(&c)
		items = append(items, c)
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].UpdatedAt.Equal(items[j].UpdatedAt) {
			return items[i].Token < items[j].Token
		}
		return items[i].UpdatedAt.After(items[j].UpdatedAt)
	})
	if limit > 0 && int64(len(items)) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Memory) InsertAccount(ctx context.Context, a *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	for _, existing := range s.accounts {
		if existing.Email == a.Email {
			return ErrDuplicate
		}
	}
	s.accounts[a.ID] = *a
	return nil
}

func (s *Memory) FindAccountByEmail(ctx context.Context, email string) (models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, a := range s.accounts {
		if a.Email == email {
			return a, nil
		}
	}
	return models.Account{}, ErrNotFound
}

func (s *Memory) GetAccount(ctx context.Context, id primitive.ObjectID) (models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return models.Account{}, ErrNotFound
	}
	return a, nil
}

func (s *Memory) IsAdmin(ctx context.Context, accountID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("IsAdmin"); err != nil {
		return false, err
	}

	_, ok := s.admins[accountID]
	return ok, nil
}

func (s *Memory) AddAdmin(ctx context.Context, a models.Admin) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.admins[a.AccountID]; ok {
		return ErrDuplicate
	}
	s.admins[a.AccountID] = a
	return nil
}

// RemoveAdmin drops an allow-list entry.
func (s *Memory) RemoveAdmin(accountID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.admins, accountID)
}

func (s *Memory) InsertRefreshToken(ctx context.Context, t *models.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID.IsZero() {
		t.ID = primitive.NewObjectID()
	}
	s.refresh[t.ID] = *t
	return nil
}

func (s *Memory) FindRefreshToken(ctx context.Context, hash string) (models.RefreshToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.refresh {
		if t.TokenHash == hash {
			return t, nil
		}
	}
	return models.RefreshToken{}, ErrNotFound
}

func (s *Memory) RevokeRefreshToken(ctx context.Context, id primitive.ObjectID, replacedBy *primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.refresh[id]
	if !ok || t.Revoked {
		return ErrNotFound
	}
	t.Revoked = true
	t.ReplacedByToken = replacedBy
	s.refresh[id] = t
	return nil
}

func applyFields(
	m Mutation,
	status, prePaid *string,
	address **models.Address,
	tracking *models.TrackingNumbers,
	paid, archived *bool,
	photos *[]models.Photo,
	messages *[]models.Message,
) {
	if m.Status != nil {
		*status = *m.Status
	}
	if m.PrePaidStatus != nil {
		*prePaid = *m.PrePaidStatus
	}
	if m.Address != nil {
		a := *m.Address
		*address = &a
	}
	if m.Tracking != nil {
		*tracking = *m.Tracking
	}
	if m.Paid != nil {
		*paid = *m.Paid
	}
	if m.Archived != nil {
		*archived = *m.Archived
	}
	if m.SetPhotos != nil {
		*photos = append([]models.Photo(nil), m.SetPhotos...)
	} else if m.Review != nil {
		(*photos)[m.Review.Index].Review = m.Review.Review
	}
	if m.PushPhoto != nil {
		*photos = append(*photos, *m.PushPhoto)
	}
	if m.PushMessage != nil {
		*messages = append(*messages, *m.PushMessage)
	}
}

func cloneOrder(o models.Order) models.Order {
	o.Photos = append([]models.Photo(nil), o.Photos...)
	o.Messages = append([]models.Message(nil), o.Messages...)
	if o.Address != nil {
		a := *o.Address
		o.Address = &a
	}
	return o
}

func cloneProjection(p models.Projection) models.Projection {
	p.Photos = append([]models.Photo(nil), p.Photos...)
	p.Messages = append([]models.Message(nil), p.Messages...)
	if p.Address != nil {
		a := *p.Address
		p.Address = &a
	}
	if p.LastCustomerActivityAt != nil {
		t := *p.LastCustomerActivityAt
		p.LastCustomerActivityAt = &t
	}
	if p.VendorLastSeenAt != nil {
		t := *p.VendorLastSeenAt
		p.VendorLastSeenAt = &t
	}
	return p
}
