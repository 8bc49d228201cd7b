// Package repositories wires the local sqlite database: it opens the
// connection, applies embedded migrations, and bundles the per-family
// repositories used by the rest of the client.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/avanags/libris/internal/client/migrations"
	"github.com/avanags/libris/internal/client/repositories/bookings"
	"github.com/avanags/libris/internal/client/repositories/metadata"
	"github.com/avanags/libris/internal/client/repositories/orders"
	"github.com/avanags/libris/internal/client/repositories/sessions"
)

// Repositories bundles the local-store access objects.
type Repositories struct {
	Sessions sessions.Repository
	Bookings bookings.Repository
	Orders   orders.Repository
	Metadata metadata.Repository
	DB       *sql.DB
}

// RunMigrations applies all embedded migrations to db.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// InitDatabase opens the sqlite database at dsn, migrates the schema, and
// returns the repository bundle. The caller owns closing Repositories.DB.
func InitDatabase(ctx context.Context, dsn string) (*Repositories, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repositories{
		Sessions: sessions.NewSQLiteRepository(db),
		Bookings: bookings.NewSQLiteRepository(db),
		Orders:   orders.NewSQLiteRepository(db),
		Metadata: metadata.NewSQLiteRepository(db),
		DB:       db,
	}, nil
}
