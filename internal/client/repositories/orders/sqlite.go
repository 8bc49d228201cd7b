package orders

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

const orderColumns = `local_id, remote_id, user_id, book_id, quantity, status, marked_for_deletion, created_at, updated_at`

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func nullableRemote(remoteID string) any {
	if remoteID == "" {
		return nil
	}
	return remoteID
}

func scanOrder(row interface{ Scan(dest ...any) error }) (*models.Order, error) {
	o := &models.Order{}
	var remoteID sql.NullString
	err := row.Scan(&o.LocalID, &remoteID, &o.UserID, &o.BookID, &o.Quantity,
		&o.Status, &o.MarkedForDeletion, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.RemoteID = remoteID.String
	return o, nil
}

func (r *SQLiteRepository) queryMany(ctx context.Context, query string, args ...any) ([]*models.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select orders: %w", err)
	}
	defer rows.Close()

	var result []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) Insert(ctx context.Context, o *models.Order) error {
	query := `insert into orders (` + orderColumns + `) values (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		o.LocalID, nullableRemote(o.RemoteID), o.UserID, o.BookID, o.Quantity,
		o.Status, o.MarkedForDeletion, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, o *models.Order) error {
	query := `update orders set remote_id=?, user_id=?, book_id=?, quantity=?, status=?,
		marked_for_deletion=?, updated_at=? where local_id=?`
	res, err := r.db.ExecContext(ctx, query,
		nullableRemote(o.RemoteID), o.UserID, o.BookID, o.Quantity, o.Status,
		o.MarkedForDeletion, o.UpdatedAt, o.LocalID)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
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
	res, err := r.db.ExecContext(ctx, `delete from orders where local_id=?`, localID)
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
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

func (r *SQLiteRepository) GetByID(ctx context.Context, localID string) (*models.Order, error) {
	query := `select ` + orderColumns + ` from orders where local_id=?`
	o, err := scanOrder(r.db.QueryRowContext(ctx, query, localID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to select order: %w", err)
	}
	return o, nil
}

func (r *SQLiteRepository) GetByRemoteID(ctx context.Context, remoteID string) (*models.Order, error) {
	query := `select ` + orderColumns + ` from orders where remote_id=?`
	o, err := scanOrder(r.db.QueryRowContext(ctx, query, remoteID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to select order: %w", err)
	}
	return o, nil
}

func (r *SQLiteRepository) GetAllByUser(ctx context.Context, userID string) ([]*models.Order, error) {
	query := `select ` + orderColumns + ` from orders where user_id=? order by created_at desc`
	return r.queryMany(ctx, query, userID)
}

func (r *SQLiteRepository) GetLinked(ctx context.Context, userID string) ([]*models.Order, error) {
	query := `select ` + orderColumns + ` from orders where user_id=? and remote_id is not null and marked_for_deletion=0`
	return r.queryMany(ctx, query, userID)
}

func (r *SQLiteRepository) GetMarkedForDeletion(ctx context.Context, userID string) ([]*models.Order, error) {
	query := `select ` + orderColumns + ` from orders where user_id=? and marked_for_deletion=1 order by created_at`
	return r.queryMany(ctx, query, userID)
}

func (r *SQLiteRepository) GetUnsent(ctx context.Context, userID string) ([]*models.Order, error) {
	query := `select ` + orderColumns + ` from orders
		where user_id=? and remote_id is null and marked_for_deletion=0 and status=?
		order by created_at`
	return r.queryMany(ctx, query, userID, models.OrderStatusLocalPending)
}

func (r *SQLiteRepository) GetUnsentOlderThan(ctx context.Context, userID string, cutoff time.Time) ([]*models.Order, error) {
	query := `select ` + orderColumns + ` from orders
		where user_id=? and remote_id is null and marked_for_deletion=0 and status=? and created_at < ?
		order by created_at`
	return r.queryMany(ctx, query, userID, models.OrderStatusLocalPending, cutoff)
}

func (r *SQLiteRepository) MarkForDeletion(ctx context.Context, localID string) error {
	res, err := r.db.ExecContext(ctx, `update orders set marked_for_deletion=1 where local_id=?`, localID)
	if err != nil {
		return fmt.Errorf("failed to mark order for deletion: %w", err)
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
	_, err := r.db.ExecContext(ctx, `delete from orders where user_id=?`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete orders for user: %w", err)
	}
	return nil
}

// PurgeUser runs DeleteByUser on tx instead of the repository's own handle.
// Must be used inside a transaction: sqlite holds the write lock there, and a
// delete through a second connection would block against it.
func (r *SQLiteRepository) PurgeUser(ctx context.Context, tx dbx.DBTX, userID string) error {
	return NewSQLiteRepository(tx).DeleteByUser(ctx, userID)
}
