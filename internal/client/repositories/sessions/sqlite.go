package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/avanags/libris/internal/client/models"
	"github.com/avanags/libris/internal/common"
	"github.com/avanags/libris/internal/dbx"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or
// *sql.Tx). Replace issues two statements; run it inside dbx.WithTx when the
// handle is a bare *sql.DB.
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Get(ctx context.Context) (*models.Session, error) {
	query := `select user_id, access_token, refresh_token, access_expires_at, refresh_expires_at, created_at
		from sessions limit 1`
	row := r.db.QueryRowContext(ctx, query)

	s := &models.Session{}
	err := row.Scan(&s.UserID, &s.AccessToken, &s.RefreshToken, &s.AccessExpiresAt, &s.RefreshExpiresAt, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to select session: %w", err)
	}
	return s, nil
}

func (r *SQLiteRepository) Replace(ctx context.Context, s *models.Session) error {
	if _, err := r.db.ExecContext(ctx, `delete from sessions`); err != nil {
		return fmt.Errorf("failed to clear sessions: %w", err)
	}
	query := `insert into sessions (user_id, access_token, refresh_token, access_expires_at, refresh_expires_at, created_at)
		values (?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		s.UserID, s.AccessToken, s.RefreshToken, s.AccessExpiresAt, s.RefreshExpiresAt, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `delete from sessions where user_id=?`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
