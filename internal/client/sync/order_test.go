package sync

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/avanags/libris/internal/client/api"
	"github.com/avanags/libris/internal/client/models"
	"github.com/avanags/libris/internal/client/repositories"
)

type orderGateway struct {
	syncGateway
	orders    []api.Order
	createFn  func(req api.OrderRequest) (*api.Order, error)
	createdQt []int
}

func (g *orderGateway) Orders(ctx context.Context, token string) ([]api.Order, error) {
	return g.orders, nil
}

func (g *orderGateway) CreateOrder(ctx context.Context, token string, req api.OrderRequest) (*api.Order, error) {
	g.createdQt = append(g.createdQt, req.Quantity)
	if g.createFn != nil {
		return g.createFn(req)
	}
	return &api.Order{ID: "srv-" + req.BookID, BookID: req.BookID, Quantity: req.Quantity}, nil
}

func setupOrderEngine(t *testing.T, gw *orderGateway) (*Engine[*models.Order, api.Order], *repositories.Repositories) {
	t.Helper()
	ctx := context.Background()

	repos, err := repositories.InitDatabase(ctx, "file:syncorders_"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	repos.DB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = repos.DB.Close() })

	tokens := &fakeTokens{token: "tok", hasValid: true}
	family := NewOrderFamily(repos.Orders, gw, fakeUsers{})
	eng := NewEngine[*models.Order, api.Order](family, tokens, nil, testLogger())
	return eng, repos
}

func insertOrder(t *testing.T, repos *repositories.Repositories, mutate func(*models.Order)) *models.Order {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	o := &models.Order{
		LocalID:   uuid.NewString(),
		UserID:    "u1",
		BookID:    "book-1",
		Quantity:  3,
		Status:    models.OrderStatusLocalPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if mutate != nil {
		mutate(o)
	}
	require.NoError(t, repos.Orders.Insert(context.Background(), o))
	return o
}

func TestOrderPushCreationAdvancesToServerPending(t *testing.T) {
	ctx := context.Background()
	gw := &orderGateway{}
	eng, repos := setupOrderEngine(t, gw)

	o := insertOrder(t, repos, nil)

	_, err := eng.Sync(ctx)
	require.NoError(t, err)
	require.Equal(t, []int{3}, gw.createdQt)

	got, err := repos.Orders.GetByID(ctx, o.LocalID)
	require.NoError(t, err)
	require.Equal(t, "srv-book-1", got.RemoteID)
	require.Equal(t, models.OrderStatusServerPending, got.Status)
}

func TestOrderCreationConfirmedImmediately(t *testing.T) {
	ctx := context.Background()
	gw := &orderGateway{
		createFn: func(req api.OrderRequest) (*api.Order, error) {
			return &api.Order{ID: "srv-1", BookID: req.BookID, Quantity: req.Quantity, Confirmed: true}, nil
		},
	}
	eng, repos := setupOrderEngine(t, gw)

	o := insertOrder(t, repos, nil)

	_, err := eng.Sync(ctx)
	require.NoError(t, err)

	got, err := repos.Orders.GetByID(ctx, o.LocalID)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusConfirmed, got.Status)
}

func TestOrderReconcileConfirms(t *testing.T) {
	ctx := context.Background()
	gw := &orderGateway{orders: []api.Order{{ID: "srv-1", BookID: "book-1", Quantity: 3, Confirmed: true}}}
	eng, repos := setupOrderEngine(t, gw)

	o := insertOrder(t, repos, func(o *models.Order) {
		o.RemoteID = "srv-1"
		o.Status = models.OrderStatusServerPending
	})

	_, err := eng.Sync(ctx)
	require.NoError(t, err)

	got, err := repos.Orders.GetByID(ctx, o.LocalID)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusConfirmed, got.Status)
}

func TestOrderReconcileInsertsUnknownRemote(t *testing.T) {
	ctx := context.Background()
	gw := &orderGateway{orders: []api.Order{{ID: "srv-7", BookID: "book-7", Quantity: 2}}}
	eng, repos := setupOrderEngine(t, gw)

	_, err := eng.Sync(ctx)
	require.NoError(t, err)

	got, err := repos.Orders.GetByRemoteID(ctx, "srv-7")
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusServerPending, got.Status)
	require.Equal(t, 2, got.Quantity)
}
