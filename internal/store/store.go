// Package store persists orders, their public tracking projections and vendor
// accounts. Mongo is the production backend; Memory backs tests and local
// runs without a database.
package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"gemmy/internal/models"
)

// Collection names.
const (
	OrdersCollection        = "orders"
	ProjectionsCollection   = "publicTracking"
	AccountsCollection      = "accounts"
	AdminsCollection        = "admins"
	RefreshTokensCollection = "refreshTokens"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate key")
)

// PhotoReview targets the review of one photo by position.
type PhotoReview struct {
	Index  int
	Review models.PhotoReview
}

// Mutation is one logical change to an order. Nil fields are left alone.
// By and At drive the bookkeeping stamps on the projection; SeenOnly limits a
// projection update to vendorLastSeenAt.
type Mutation struct {
	Status        *string
	PrePaidStatus *string
	Address       *models.Address
	Tracking      *models.TrackingNumbers
	Paid          *bool
	Archived      *bool
	PushPhoto     *models.Photo
	PushMessage   *models.Message
	Review        *PhotoReview
	// SetPhotos replaces the whole photo list. Used to resync an order from
	// its projection.
	SetPhotos []models.Photo

	By       string
	At       time.Time
	SeenOnly bool
}

// Kind names the mutation for logs, metrics and notifications.
func (m Mutation) Kind() string {
	switch {
	case m.SeenOnly:
		return "seen"
	case m.PushPhoto != nil:
		return "photo"
	case m.Review != nil, m.SetPhotos != nil:
		return "review"
	case m.PushMessage != nil:
		return "message"
	case m.Paid != nil:
		return "paid"
	case m.Address != nil:
		return "address"
	case m.Tracking != nil:
		return "tracking"
	case m.Archived != nil:
		return "archived"
	case m.Status != nil:
		return "status"
	default:
		return "touch"
	}
}

type OrderStore interface {
	Ping(ctx context.Context) error
	// WithinTx runs fn so that every write made through ctx commits or fails
	// together when the backend supports it.
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error

	InsertOrder(ctx context.Context, o *models.Order) error
	GetOrder(ctx context.Context, id string) (models.Order, error)
	UpdateOrder(ctx context.Context, id string, m Mutation) error

	InsertProjection(ctx context.Context, p models.Projection) error
	GetProjection(ctx context.Context, token string) (models.Projection, error)
	UpdateProjection(ctx context.Context, token string, m Mutation) error
	ListProjections(ctx context.Context, limit int64) ([]models.Projection, error)
}

type AccountStore interface {
	InsertAccount(ctx context.Context, a *models.Account) error
	FindAccountByEmail(ctx context.Context, email string) (models.Account, error)
	GetAccount(ctx context.Context, id primitive.ObjectID) (models.Account, error)

	IsAdmin(ctx context.Context, accountID string) (bool, error)
	AddAdmin(ctx context.Context, a models.Admin) error

	InsertRefreshToken(ctx context.Context, t *models.RefreshToken) error
	FindRefreshToken(ctx context.Context, hash string) (models.RefreshToken, error)
	// RevokeRefreshToken returns ErrNotFound when the token is missing or
	// already revoked.
	RevokeRefreshToken(ctx context.Context, id primitive.ObjectID, replacedBy *primitive.ObjectID) error
}
