package bookings

import (
	"context"
	"time"

	"github.com/avanags/libris/internal/client/models"
	"github.com/avanags/libris/internal/dbx"
)

// Repository describes CRUD and sync queries for bookings in the local store.
// Implementations are backed by the local SQLite database.
type Repository interface {
	// Insert adds a newly created booking.
	Insert(ctx context.Context, b *models.Booking) error

	// Update rewrites a booking identified by its LocalID.
	Update(ctx context.Context, b *models.Booking) error

	// DeleteByID removes the row. Final step of the two-step delete path,
	// or a direct removal for records that were never sent.
	DeleteByID(ctx context.Context, localID string) error

	// GetByID returns a booking by local id, or common.ErrorNotFound.
	GetByID(ctx context.Context, localID string) (*models.Booking, error)

	// GetByRemoteID returns the booking carrying the given remote id,
	// or common.ErrorNotFound.
	GetByRemoteID(ctx context.Context, remoteID string) (*models.Booking, error)

	// GetAllByUser lists the user's bookings, newest first.
	GetAllByUser(ctx context.Context, userID string) ([]*models.Booking, error)

	// GetLinked lists the user's bookings that carry a remote id and are
	// not marked for deletion; a marked record leaving the server snapshot
	// is the user's own deletion, not an external one.
	GetLinked(ctx context.Context, userID string) ([]*models.Booking, error)

	// GetMarkedForDeletion lists bookings awaiting the remote delete step.
	GetMarkedForDeletion(ctx context.Context, userID string) ([]*models.Booking, error)

	// GetUnsent lists never-sent bookings not marked for deletion,
	// oldest first, so older pending items are not starved.
	GetUnsent(ctx context.Context, userID string) ([]*models.Booking, error)

	// GetUnsentOlderThan lists never-sent bookings created before cutoff.
	GetUnsentOlderThan(ctx context.Context, userID string, cutoff time.Time) ([]*models.Booking, error)

	// MarkForDeletion flags a booking for the two-step delete path.
	MarkForDeletion(ctx context.Context, localID string) error

	// DeleteByUser removes every booking owned by userID (logout cascade).
	DeleteByUser(ctx context.Context, userID string) error

	// PurgeUser removes every booking owned by userID inside the caller's
	// transaction, so the logout cascade commits or rolls back as one unit.
	PurgeUser(ctx context.Context, tx dbx.DBTX, userID string) error
}
