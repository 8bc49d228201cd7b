package sessions

import (
	"context"

	"github.com/avanags/libris/internal/client/models"
)

// Repository stores at most one session: the device's current credential pair.
type Repository interface {
	// Get returns the current session or common.ErrorNotFound.
	Get(ctx context.Context) (*models.Session, error)

	// Replace swaps the stored session wholesale for s, in one transaction.
	// A session is never partially mutated.
	Replace(ctx context.Context, s *models.Session) error

	// Delete removes the session belonging to userID, if present.
	Delete(ctx context.Context, userID string) error
}
