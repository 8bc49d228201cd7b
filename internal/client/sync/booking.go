package sync

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/avanags/libris/internal/client/api"
	"github.com/avanags/libris/internal/client/models"
	"github.com/avanags/libris/internal/client/repositories/bookings"
)

// UserSource yields the owner of the records being synchronized. The session
// manager implements it.
type UserSource interface {
	Current(ctx context.Context) (*models.Session, error)
}

// BookingFamily adapts the booking entity family to the engine.
type BookingFamily struct {
	repo  bookings.Repository
	api   api.Client
	users UserSource
	now   func() time.Time
}

func NewBookingFamily(repo bookings.Repository, client api.Client, users UserSource) *BookingFamily {
	return &BookingFamily{repo: repo, api: client, users: users, now: time.Now}
}

func (f *BookingFamily) Label() string { return "bookings" }

func (f *BookingFamily) userID(ctx context.Context) (string, error) {
	s, err := f.users.Current(ctx)
	if err != nil {
		return "", err
	}
	return s.UserID, nil
}

func (f *BookingFamily) FetchRemote(ctx context.Context, token string) ([]api.Booking, error) {
	return f.api.Bookings(ctx, token)
}

func (f *BookingFamily) CreateRemote(ctx context.Context, token string, rec *models.Booking) (api.Booking, error) {
	r, err := f.api.CreateBooking(ctx, token, api.BookingRequest{BookID: rec.BookID})
	if err != nil {
		return api.Booking{}, err
	}
	return *r, nil
}

func (f *BookingFamily) DeleteRemote(ctx context.Context, token, remoteID string) error {
	return f.api.DeleteBooking(ctx, token, remoteID)
}

func (f *BookingFamily) LocalLinked(ctx context.Context) ([]*models.Booking, error) {
	uid, err := f.userID(ctx)
	if err != nil {
		return nil, err
	}
	return f.repo.GetLinked(ctx, uid)
}

func (f *BookingFamily) LocalMarkedForDeletion(ctx context.Context) ([]*models.Booking, error) {
	uid, err := f.userID(ctx)
	if err != nil {
		return nil, err
	}
	return f.repo.GetMarkedForDeletion(ctx, uid)
}

func (f *BookingFamily) LocalUnsent(ctx context.Context) ([]*models.Booking, error) {
	uid, err := f.userID(ctx)
	if err != nil {
		return nil, err
	}
	return f.repo.GetUnsent(ctx, uid)
}

func (f *BookingFamily) LocalUnsentOlderThan(ctx context.Context, cutoff time.Time) ([]*models.Booking, error) {
	uid, err := f.userID(ctx)
	if err != nil {
		return nil, err
	}
	return f.repo.GetUnsentOlderThan(ctx, uid, cutoff)
}

func (f *BookingFamily) InsertFromRemote(ctx context.Context, r api.Booking) (*models.Booking, error) {
	uid, err := f.userID(ctx)
	if err != nil {
		return nil, err
	}
	now := f.now().UTC()
	created := r.CreatedAt
	if created.IsZero() {
		created = now
	}
	b := &models.Booking{
		LocalID:   uuid.NewString(),
		RemoteID:  r.ID,
		UserID:    uid,
		BookID:    r.BookID,
		BookTitle: r.BookTitle,
		Status:    bookingStatusFromRemote(r),
		CreatedAt: created,
		UpdatedAt: now,
	}
	if err := f.repo.Insert(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (f *BookingFamily) ApplyRemoteStatus(ctx context.Context, rec *models.Booking, r api.Booking) (string, string, bool, error) {
	target := bookingStatusFromRemote(r)
	if rec.Status == target {
		return "", "", false, nil
	}

	old := rec.Status
	next, ok := advanceBookingTo(rec.Status, target)
	if !ok {
		// The snapshot implies a regression (e.g. a returned book shown as
		// merely confirmed). Local state wins.
		return "", "", false, nil
	}

	rec.Status = next
	rec.UpdatedAt = f.now().UTC()
	if err := f.repo.Update(ctx, rec); err != nil {
		return "", "", false, err
	}
	return string(old), string(next), true, nil
}

func (f *BookingFamily) LinkCreated(ctx context.Context, rec *models.Booking, r api.Booking) error {
	next, err := models.NextBookingStatus(rec.Status, models.BookingEventConfirm)
	if err != nil {
		return err
	}
	rec.RemoteID = r.ID
	rec.Status = next
	rec.UpdatedAt = f.now().UTC()
	return f.repo.Update(ctx, rec)
}

func (f *BookingFamily) DeleteLocal(ctx context.Context, localID string) error {
	return f.repo.DeleteByID(ctx, localID)
}

// bookingStatusFromRemote derives the local status a remote booking implies.
func bookingStatusFromRemote(r api.Booking) models.BookingStatus {
	switch {
	case r.Returned:
		return models.BookingStatusReturned
	case r.Issued:
		return models.BookingStatusIssued
	default:
		return models.BookingStatusConfirmed
	}
}

// advanceBookingTo walks the transition function from cur towards target,
// one legal event at a time. Reports false when target is not reachable.
func advanceBookingTo(cur, target models.BookingStatus) (models.BookingStatus, bool) {
	events := []models.BookingEvent{
		models.BookingEventConfirm,
		models.BookingEventIssue,
		models.BookingEventReturn,
	}
	for _, ev := range events {
		if cur == target {
			return cur, true
		}
		next, err := models.NextBookingStatus(cur, ev)
		if err != nil {
			continue
		}
		cur = next
	}
	if cur == target {
		return cur, true
	}
	return cur, false
}
