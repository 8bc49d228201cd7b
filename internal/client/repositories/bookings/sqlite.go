package bookings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/avanags/libris/internal/client/models"
	"github.com/avanags/libris/internal/common"
	"github.com/avanags/libris/internal/dbx"
)

const bookingColumns = `local_id, remote_id, user_id, book_id, book_title, status, marked_for_deletion, created_at, updated_at`

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// nullableRemote maps the empty remote id to NULL so the partial unique index
// only applies to records the server has accepted.
func nullableRemote(remoteID string) any {
	if remoteID == "" {
		return nil
	}
	return remoteID
}

func scanBooking(row interface{ Scan(dest ...any) error }) (*models.Booking, error) {
	b := &models.Booking{}
	var remoteID sql.NullString
	err := row.Scan(&b.LocalID, &remoteID, &b.UserID, &b.BookID, &b.BookTitle,
		&b.Status, &b.MarkedForDeletion, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	b.RemoteID = remoteID.String
	return b, nil
}

func (r *SQLiteRepository) queryMany(ctx context.Context, query string, args ...any) ([]*models.Booking, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select bookings: %w", err)
	}
	defer rows.Close()

	var result []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) Insert(ctx context.Context, b *models.Booking) error {
	query := `insert into bookings (` + bookingColumns + `) values (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		b.LocalID, nullableRemote(b.RemoteID), b.UserID, b.BookID, b.BookTitle,
		b.Status, b.MarkedForDeletion, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert booking: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, b *models.Booking) error {
	query := `update bookings set remote_id=?, user_id=?, book_id=?, book_title=?, status=?,
		marked_for_deletion=?, updated_at=? where local_id=?`
	res, err := r.db.ExecContext(ctx, query,
		nullableRemote(b.RemoteID), b.UserID, b.BookID, b.BookTitle, b.Status,
		b.MarkedForDeletion, b.UpdatedAt, b.LocalID)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *SQLiteRepository) DeleteByID(ctx context.Context, localID string) error {
	res, err := r.db.ExecContext(ctx, `delete from bookings where local_id=?`, localID)
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, localID string) (*models.Booking, error) {
	query := `select ` + bookingColumns + ` from bookings where local_id=?`
	b, err := scanBooking(r.db.QueryRowContext(ctx, query, localID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to select booking: %w", err)
	}
	return b, nil
}

func (r *SQLiteRepository) GetByRemoteID(ctx context.Context, remoteID string) (*models.Booking, error) {
	query := `select ` + bookingColumns + ` from bookings where remote_id=?`
	b, err := scanBooking(r.db.QueryRowContext(ctx, query, remoteID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to select booking: %w", err)
	}
	return b, nil
}

func (r *SQLiteRepository) GetAllByUser(ctx context.Context, userID string) ([]*models.Booking, error) {
	query := `select ` + bookingColumns + ` from bookings where user_id=? order by created_at desc`
	return r.queryMany(ctx, query, userID)
}

func (r *SQLiteRepository) GetLinked(ctx context.Context, userID string) ([]*models.Booking, error) {
	query := `select ` + bookingColumns + ` from bookings where user_id=? and remote_id is not null and marked_for_deletion=0`
	return r.queryMany(ctx, query, userID)
}

func (r *SQLiteRepository) GetMarkedForDeletion(ctx context.Context, userID string) ([]*models.Booking, error) {
	query := `select ` + bookingColumns + ` from bookings where user_id=? and marked_for_deletion=1 order by created_at`
	return r.queryMany(ctx, query, userID)
}

func (r *SQLiteRepository) GetUnsent(ctx context.Context, userID string) ([]*models.Booking, error) {
	query := `select ` + bookingColumns + ` from bookings
		where user_id=? and remote_id is null and marked_for_deletion=0 and status=?
		order by created_at`
	return r.queryMany(ctx, query, userID, models.BookingStatusPending)
}

func (r *SQLiteRepository) GetUnsentOlderThan(ctx context.Context, userID string, cutoff time.Time) ([]*models.Booking, error) {
	query := `select ` + bookingColumns + ` from bookings
		where user_id=? and remote_id is null and marked_for_deletion=0 and status=? and created_at < ?
		order by created_at`
	return r.queryMany(ctx, query, userID, models.BookingStatusPending, cutoff)
}

func (r *SQLiteRepository) MarkForDeletion(ctx context.Context, localID string) error {
	res, err := r.db.ExecContext(ctx, `update bookings set marked_for_deletion=1 where local_id=?`, localID)
	if err != nil {
		return fmt.Errorf("failed to mark booking for deletion: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *SQLiteRepository) DeleteByUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `delete from bookings where user_id=?`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete bookings for user: %w", err)
	}
	return nil
}

// PurgeUser runs DeleteByUser on tx instead of the repository's own handle.
// Must be used inside a transaction: sqlite holds the write lock there, and a
// delete through a second connection would block against it.
func (r *SQLiteRepository) PurgeUser(ctx context.Context, tx dbx.DBTX, userID string) error {
	return NewSQLiteRepository(tx).DeleteByUser(ctx, userID)
}
