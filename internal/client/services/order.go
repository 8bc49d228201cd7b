package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/avanags/libris/internal/client/api"
	"github.com/avanags/libris/internal/client/models"
	"github.com/avanags/libris/internal/client/repositories/orders"
	"github.com/avanags/libris/internal/client/sync"
	"github.com/avanags/libris/internal/logging"
)

// OrderService is the use-case surface for acquisition orders.
type OrderService interface {
	Add(ctx context.Context, bookID string, quantity int) (*models.Order, error)
	List(ctx context.Context) ([]*models.Order, error)
	Delete(ctx context.Context, localID string) error
	Sync(ctx context.Context) ([]sync.Outcome, error)
	SyncErrors() []sync.Outcome
	AcknowledgeError(localID string)
}

type addOrderInput struct {
	BookID   string `validate:"required"`
	Quantity int    `validate:"required,min=1,max=100"`
}

type orderService struct {
	repo     orders.Repository
	sessions SessionSource
	engine   *sync.Engine[*models.Order, api.Order]
	validate *validator.Validate
	log      logging.Logger
	now      func() time.Time
}

func NewOrderService(repo orders.Repository, client api.Client, sessions SessionSource, notify sync.Notifier, log logging.Logger) OrderService {
	family := sync.NewOrderFamily(repo, client, sessions)
	return &orderService{
		repo:     repo,
		sessions: sessions,
		engine:   sync.NewEngine[*models.Order, api.Order](family, sessions, notify, log),
		validate: validator.New(),
		log:      log.With("component", "orders"),
		now:      time.Now,
	}
}

func (s *orderService) Add(ctx context.Context, bookID string, quantity int) (*models.Order, error) {
	if err := s.validate.Struct(addOrderInput{BookID: bookID, Quantity: quantity}); err != nil {
		return nil, fmt.Errorf("invalid order: %w", err)
	}
	sess, err := s.sessions.Current(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	o := &models.Order{
		LocalID:   uuid.NewString(),
		UserID:    sess.UserID,
		BookID:    bookID,
		Quantity:  quantity,
		Status:    models.OrderStatusLocalPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, o); err != nil {
		return nil, fmt.Errorf("saving error: %w", err)
	}
	s.log.Debug(ctx, "order created locally", "local_id", o.LocalID, "book_id", bookID, "quantity", quantity)
	return o, nil
}

func (s *orderService) List(ctx context.Context) ([]*models.Order, error) {
	sess, err := s.sessions.Current(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.GetAllByUser(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	out := rows[:0]
	for _, o := range rows {
		if !o.MarkedForDeletion {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *orderService) Delete(ctx context.Context, localID string) error {
	return s.repo.MarkForDeletion(ctx, localID)
}

func (s *orderService) Sync(ctx context.Context) ([]sync.Outcome, error) {
	return s.engine.Sync(ctx)
}

func (s *orderService) SyncErrors() []sync.Outcome {
	return s.engine.Errors().All()
}

func (s *orderService) AcknowledgeError(localID string) {
	s.engine.Errors().Acknowledge(localID)
}
