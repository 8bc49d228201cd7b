package orders

import (
	"context"
	"time"

	"github.com/avanags/libris/internal/client/models"
	"github.com/avanags/libris/internal/dbx"
)

// Repository describes CRUD and sync queries for orders in the local store.
// It mirrors the bookings repository; the two families stay separate so their
// schemas can drift independently.
type Repository interface {
	Insert(ctx context.Context, o *models.Order) error
	Update(ctx context.Context, o *models.Order) error
	DeleteByID(ctx context.Context, localID string) error
	GetByID(ctx context.Context, localID string) (*models.Order, error)
	GetByRemoteID(ctx context.Context, remoteID string) (*models.Order, error)
	GetAllByUser(ctx context.Context, userID string) ([]*models.Order, error)
	GetLinked(ctx context.Context, userID string) ([]*models.Order, error)
	GetMarkedForDeletion(ctx context.Context, userID string) ([]*models.Order, error)
	GetUnsent(ctx context.Context, userID string) ([]*models.Order, error)
	GetUnsentOlderThan(ctx context.Context, userID string, cutoff time.Time) ([]*models.Order, error)
	MarkForDeletion(ctx context.Context, localID string) error
	DeleteByUser(ctx context.Context, userID string) error
	PurgeUser(ctx context.Context, tx dbx.DBTX, userID string) error
}
