package sync

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/avanags/libris/internal/client/api"
	"github.com/avanags/libris/internal/client/models"
	"github.com/avanags/libris/internal/client/repositories/orders"
)

// OrderFamily adapts the acquisition-order entity family to the engine.
type OrderFamily struct {
	repo  orders.Repository
	api   api.Client
	users UserSource
	now   func() time.Time
}

func NewOrderFamily(repo orders.Repository, client api.Client, users UserSource) *OrderFamily {
	return &OrderFamily{repo: repo, api: client, users: users, now: time.Now}
}

func (f *OrderFamily) Label() string { return "orders" }

func (f *OrderFamily) userID(ctx context.Context) (string, error) {
	s, err := f.users.Current(ctx)
	if err != nil {
		return "", err
	}
	return s.UserID, nil
}

func (f *OrderFamily) FetchRemote(ctx context.Context, token string) ([]api.Order, error) {
	return f.api.Orders(ctx, token)
}

func (f *OrderFamily) CreateRemote(ctx context.Context, token string, rec *models.Order) (api.Order, error) {
	r, err := f.api.CreateOrder(ctx, token, api.OrderRequest{BookID: rec.BookID, Quantity: rec.Quantity})
	if err != nil {
		return api.Order{}, err
	}
	return *r, nil
}

func (f *OrderFamily) DeleteRemote(ctx context.Context, token, remoteID string) error {
	return f.api.DeleteOrder(ctx, token, remoteID)
}

func (f *OrderFamily) LocalLinked(ctx context.Context) ([]*models.Order, error) {
	uid, err := f.userID(ctx)
	if err != nil {
		return nil, err
	}
	return f.repo.GetLinked(ctx, uid)
}

func (f *OrderFamily) LocalMarkedForDeletion(ctx context.Context) ([]*models.Order, error) {
	uid, err := f.userID(ctx)
	if err != nil {
		return nil, err
	}
	return f.repo.GetMarkedForDeletion(ctx, uid)
}

func (f *OrderFamily) LocalUnsent(ctx context.Context) ([]*models.Order, error) {
	uid, err := f.userID(ctx)
	if err != nil {
		return nil, err
	}
	return f.repo.GetUnsent(ctx, uid)
}

func (f *OrderFamily) LocalUnsentOlderThan(ctx context.Context, cutoff time.Time) ([]*models.Order, error) {
	uid, err := f.userID(ctx)
	if err != nil {
		return nil, err
	}
	return f.repo.GetUnsentOlderThan(ctx, uid, cutoff)
}

func (f *OrderFamily) InsertFromRemote(ctx context.Context, r api.Order) (*models.Order, error) {
	uid, err := f.userID(ctx)
	if err != nil {
		return nil, err
	}
	now := f.now().UTC()
	created := r.CreatedAt
	if created.IsZero() {
		created = now
	}
	o := &models.Order{
		LocalID:   uuid.NewString(),
		RemoteID:  r.ID,
		UserID:    uid,
		BookID:    r.BookID,
		Quantity:  r.Quantity,
		Status:    orderStatusFromRemote(r),
		CreatedAt: created,
		UpdatedAt: now,
	}
	if err := f.repo.Insert(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (f *OrderFamily) ApplyRemoteStatus(ctx context.Context, rec *models.Order, r api.Order) (string, string, bool, error) {
	target := orderStatusFromRemote(r)
	if rec.Status == target {
		return "", "", false, nil
	}

	next, err := models.NextOrderStatus(rec.Status, models.OrderEventConfirm)
	if err != nil || next != target {
		// Anything other than the confirm step is a regression; keep local.
		return "", "", false, nil
	}

	old := rec.Status
	rec.Status = next
	rec.UpdatedAt = f.now().UTC()
	if err := f.repo.Update(ctx, rec); err != nil {
		return "", "", false, err
	}
	return string(old), string(next), true, nil
}

func (f *OrderFamily) LinkCreated(ctx context.Context, rec *models.Order, r api.Order) error {
	next, err := models.NextOrderStatus(rec.Status, models.OrderEventSubmit)
	if err != nil {
		return err
	}
	rec.RemoteID = r.ID
	rec.Status = next
	if r.Confirmed {
		if confirmed, err := models.NextOrderStatus(rec.Status, models.OrderEventConfirm); err == nil {
			rec.Status = confirmed
		}
	}
	rec.UpdatedAt = f.now().UTC()
	return f.repo.Update(ctx, rec)
}

func (f *OrderFamily) DeleteLocal(ctx context.Context, localID string) error {
	return f.repo.DeleteByID(ctx, localID)
}

// orderStatusFromRemote derives the local status a remote order implies.
func orderStatusFromRemote(r api.Order) models.OrderStatus {
	if r.Confirmed {
		return models.OrderStatusConfirmed
	}
	return models.OrderStatusServerPending
}
