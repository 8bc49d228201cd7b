package metadata

import "context"

// Repository is a small key/value store for client-side auth metadata
// (cached username, salt, offline-login verifier).
type Repository interface {
	// Get returns the value for key; sql.ErrNoRows surfaces as
	// common.ErrorNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set inserts or replaces the value for key.
	Set(ctx context.Context, key string, value []byte) error

	// Clear wipes all metadata (logout with data clearing).
	Clear(ctx context.Context) error
}
