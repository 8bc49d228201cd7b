// Package services exposes the use-case layer of the client: local-first
// creation, listing and deletion of bookings and orders, with
// synchronization delegated to the sync engine.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/avanags/libris/internal/client/api"
	"github.com/avanags/libris/internal/client/models"
	"github.com/avanags/libris/internal/client/repositories/bookings"
	"github.com/avanags/libris/internal/client/sync"
	"github.com/avanags/libris/internal/logging"
)

// SessionSource supplies the current session plus tokens for remote calls.
// The session manager implements it.
type SessionSource interface {
	sync.TokenSource
	Current(ctx context.Context) (*models.Session, error)
}

// BookingService is the use-case surface for loan bookings.
type BookingService interface {
	// Add creates a booking locally; the next sync run pushes it.
	Add(ctx context.Context, bookID, title string) (*models.Booking, error)

	// List returns the user's bookings, newest first, hiding records
	// already marked for deletion.
	List(ctx context.Context) ([]*models.Booking, error)

	// Delete marks a booking for the two-step delete path.
	Delete(ctx context.Context, localID string) error

	// Sync runs one synchronization pass for the booking family.
	Sync(ctx context.Context) ([]sync.Outcome, error)

	// SyncErrors lists per-record failures remembered from past runs.
	SyncErrors() []sync.Outcome

	// AcknowledgeError dismisses a remembered failure.
	AcknowledgeError(localID string)
}

type addBookingInput struct {
	BookID string `validate:"required"`
	Title  string `validate:"required"`
}

type bookingService struct {
	repo     bookings.Repository
	sessions SessionSource
	engine   *sync.Engine[*models.Booking, api.Booking]
	validate *validator.Validate
	log      logging.Logger
	now      func() time.Time
}

// NewBookingService wires the booking family: repository, remote gateway and
// sync engine. notify may be nil.
func NewBookingService(repo bookings.Repository, client api.Client, sessions SessionSource, notify sync.Notifier, log logging.Logger) BookingService {
	family := sync.NewBookingFamily(repo, client, sessions)
	return &bookingService{
		repo:     repo,
		sessions: sessions,
		engine:   sync.NewEngine[*models.Booking, api.Booking](family, sessions, notify, log),
		validate: validator.New(),
		log:      log.With("component", "bookings"),
		now:      time.Now,
	}
}

func (s *bookingService) Add(ctx context.Context, bookID, title string) (*models.Booking, error) {
	if err := s.validate.Struct(addBookingInput{BookID: bookID, Title: title}); err != nil {
		return nil, fmt.Errorf("invalid booking: %w", err)
	}
	sess, err := s.sessions.Current(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	b := &models.Booking{
		LocalID:   uuid.NewString(),
		UserID:    sess.UserID,
		BookID:    bookID,
		BookTitle: title,
		Status:    models.BookingStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, b); err != nil {
		return nil, fmt.Errorf("saving error: %w", err)
	}
	s.log.Debug(ctx, "booking created locally", "local_id", b.LocalID, "book_id", bookID)
	return b, nil
}

func (s *bookingService) List(ctx context.Context) ([]*models.Booking, error) {
	sess, err := s.sessions.Current(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.GetAllByUser(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	out := rows[:0]
	for _, b := range rows {
		if !b.MarkedForDeletion {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *bookingService) Delete(ctx context.Context, localID string) error {
	return s.repo.MarkForDeletion(ctx, localID)
}

func (s *bookingService) Sync(ctx context.Context) ([]sync.Outcome, error) {
	return s.engine.Sync(ctx)
}

func (s *bookingService) SyncErrors() []sync.Outcome {
	return s.engine.Errors().All()
}

func (s *bookingService) AcknowledgeError(localID string) {
	s.engine.Errors().Acknowledge(localID)
}
