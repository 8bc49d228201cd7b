package sync

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/avanags/libris/internal/client/api"
	"github.com/avanags/libris/internal/client/models"
	"github.com/avanags/libris/internal/client/repositories"
	"github.com/avanags/libris/internal/logging"
)

type fakeTokens struct {
	mu           sync.Mutex
	token        string
	afterRefresh string
	hasValid     bool
	refreshes    int
}

func (f *fakeTokens) ValidAccessToken(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token, nil
}

func (f *fakeTokens) RefreshIfNeeded(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	if f.afterRefresh != "" {
		f.token = f.afterRefresh
	}
	return true, nil
}

func (f *fakeTokens) HasValidTokenForAPI(ctx context.Context) bool { return f.hasValid }

type fakeUsers struct{}

func (fakeUsers) Current(ctx context.Context) (*models.Session, error) {
	return &models.Session{UserID: "u1"}, nil
}

// syncGateway fakes the remote service for engine tests. Call arguments are
// recorded; responses are configured per method.
type syncGateway struct {
	mu sync.Mutex

	bookings    []api.Booking
	bookingsErr map[string]error // keyed by token, one-shot

	createResp  func(req api.BookingRequest) (*api.Booking, error)
	createdIDs  []string
	deleteErr   error
	deletedIDs  []string
	fetchTokens []string
}

func (g *syncGateway) Close() error                                           { return nil }
func (g *syncGateway) Register(ctx context.Context, login, password string) error { return nil }
func (g *syncGateway) Login(ctx context.Context, login, password string) (*api.TokenPair, error) {
	return nil, nil
}
func (g *syncGateway) Refresh(ctx context.Context, refreshToken string) (*api.TokenPair, error) {
	return nil, nil
}
func (g *syncGateway) Logout(ctx context.Context, token string) error { return nil }
func (g *syncGateway) Ping(ctx context.Context) error                 { return nil }

func (g *syncGateway) Bookings(ctx context.Context, token string) ([]api.Booking, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fetchTokens = append(g.fetchTokens, token)
	if err, ok := g.bookingsErr[token]; ok {
		delete(g.bookingsErr, token)
		return nil, err
	}
	return g.bookings, nil
}

func (g *syncGateway) CreateBooking(ctx context.Context, token string, req api.BookingRequest) (*api.Booking, error) {
	g.mu.Lock()
	g.createdIDs = append(g.createdIDs, req.BookID)
	g.mu.Unlock()
	if g.createResp != nil {
		return g.createResp(req)
	}
	return &api.Booking{ID: "srv-" + req.BookID, BookID: req.BookID}, nil
}

func (g *syncGateway) DeleteBooking(ctx context.Context, token, id string) error {
	g.mu.Lock()
	g.deletedIDs = append(g.deletedIDs, id)
	g.mu.Unlock()
	return g.deleteErr
}

func (g *syncGateway) Orders(ctx context.Context, token string) ([]api.Order, error) {
	return nil, nil
}
func (g *syncGateway) CreateOrder(ctx context.Context, token string, req api.OrderRequest) (*api.Order, error) {
	return nil, nil
}
func (g *syncGateway) DeleteOrder(ctx context.Context, token, id string) error { return nil }

type recordingNotifier struct {
	mu            sync.Mutex
	statusChanges []string
	created       []string
	deletedExt    []string
	expired       []string
}

func (n *recordingNotifier) OnStatusChanged(family, localID, oldStatus, newStatus string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statusChanges = append(n.statusChanges, localID+":"+oldStatus+">"+newStatus)
}

func (n *recordingNotifier) OnCreatedRemotely(family, localID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.created = append(n.created, localID)
}

func (n *recordingNotifier) OnDeletedExternally(family, localID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deletedExt = append(n.deletedExt, localID)
}

func (n *recordingNotifier) OnExpiredLocally(family, localID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.expired = append(n.expired, localID)
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func setupEngine(t *testing.T, gw *syncGateway) (*Engine[*models.Booking, api.Booking], *repositories.Repositories, *recordingNotifier, *fakeTokens) {
	t.Helper()
	ctx := context.Background()

	repos, err := repositories.InitDatabase(ctx, "file:syncengine_"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	repos.DB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = repos.DB.Close() })

	tokens := &fakeTokens{token: "tok", hasValid: true}
	notifier := &recordingNotifier{}
	family := NewBookingFamily(repos.Bookings, gw, fakeUsers{})
	eng := NewEngine[*models.Booking, api.Booking](family, tokens, notifier, testLogger())
	return eng, repos, notifier, tokens
}

func insertBooking(t *testing.T, repos *repositories.Repositories, mutate func(*models.Booking)) *models.Booking {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	b := &models.Booking{
		LocalID:   uuid.NewString(),
		UserID:    "u1",
		BookID:    "book-1",
		BookTitle: "The Master and Margarita",
		Status:    models.BookingStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if mutate != nil {
		mutate(b)
	}
	require.NoError(t, repos.Bookings.Insert(context.Background(), b))
	return b
}

func TestSyncHaltsWithoutUsableCredential(t *testing.T) {
	gw := &syncGateway{}
	eng, _, _, tokens := setupEngine(t, gw)
	tokens.hasValid = false

	out, err := eng.Sync(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, KindAuthRequired, out[0].Kind)
	require.Empty(t, gw.fetchTokens)
}

func TestSyncSecondCallerSkips(t *testing.T) {
	gw := &syncGateway{}
	eng, _, _, _ := setupEngine(t, gw)

	eng.mu.Lock()
	defer eng.mu.Unlock()

	out, err := eng.Sync(context.Background())
	require.NoError(t, err)
	require.Nil(t, out)
}

func TestReconcileDeletesVanishedRecord(t *testing.T) {
	ctx := context.Background()
	gw := &syncGateway{}
	eng, repos, notifier, _ := setupEngine(t, gw)

	b := insertBooking(t, repos, func(b *models.Booking) {
		b.RemoteID = "srv-1"
		b.Status = models.BookingStatusConfirmed
	})

	_, err := eng.Sync(ctx)
	require.NoError(t, err)

	_, err = repos.Bookings.GetByID(ctx, b.LocalID)
	require.Error(t, err)
	require.Equal(t, []string{b.LocalID}, notifier.deletedExt)
}

func TestReconcileAdvancesStatus(t *testing.T) {
	ctx := context.Background()
	gw := &syncGateway{bookings: []api.Booking{{ID: "srv-1", BookID: "book-1", Issued: true}}}
	eng, repos, notifier, _ := setupEngine(t, gw)

	b := insertBooking(t, repos, func(b *models.Booking) {
		b.RemoteID = "srv-1"
		b.Status = models.BookingStatusConfirmed
	})

	_, err := eng.Sync(ctx)
	require.NoError(t, err)

	got, err := repos.Bookings.GetByID(ctx, b.LocalID)
	require.NoError(t, err)
	require.Equal(t, models.BookingStatusIssued, got.Status)
	require.Equal(t, []string{b.LocalID + ":CONFIRMED>ISSUED"}, notifier.statusChanges)
}

func TestReconcileIgnoresStatusRegression(t *testing.T) {
	ctx := context.Background()
	gw := &syncGateway{bookings: []api.Booking{{ID: "srv-1", BookID: "book-1"}}}
	eng, repos, notifier, _ := setupEngine(t, gw)

	b := insertBooking(t, repos, func(b *models.Booking) {
		b.RemoteID = "srv-1"
		b.Status = models.BookingStatusReturned
	})

	_, err := eng.Sync(ctx)
	require.NoError(t, err)

	got, err := repos.Bookings.GetByID(ctx, b.LocalID)
	require.NoError(t, err)
	require.Equal(t, models.BookingStatusReturned, got.Status)
	require.Empty(t, notifier.statusChanges)
}

func TestReconcileInsertsUnknownRemoteIdempotently(t *testing.T) {
	ctx := context.Background()
	gw := &syncGateway{bookings: []api.Booking{
		{ID: "srv-9", BookID: "book-9", BookTitle: "Dead Souls", Returned: true},
	}}
	eng, repos, notifier, _ := setupEngine(t, gw)

	_, err := eng.Sync(ctx)
	require.NoError(t, err)

	got, err := repos.Bookings.GetByRemoteID(ctx, "srv-9")
	require.NoError(t, err)
	require.Equal(t, models.BookingStatusReturned, got.Status)
	require.Equal(t, "Dead Souls", got.BookTitle)
	require.Equal(t, []string{got.LocalID}, notifier.created)

	// A second run over the same snapshot changes nothing.
	out, err := eng.Sync(ctx)
	require.NoError(t, err)
	require.Empty(t, out)
	all, err := repos.Bookings.GetAllByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestPushDeletionsTwoStep(t *testing.T) {
	ctx := context.Background()
	gw := &syncGateway{bookings: []api.Booking{{ID: "srv-1", BookID: "book-1"}}}
	eng, repos, _, _ := setupEngine(t, gw)

	linked := insertBooking(t, repos, func(b *models.Booking) {
		b.RemoteID = "srv-1"
		b.Status = models.BookingStatusConfirmed
		b.MarkedForDeletion = true
	})
	local := insertBooking(t, repos, func(b *models.Booking) {
		b.BookID = "book-2"
		b.MarkedForDeletion = true
	})

	_, err := eng.Sync(ctx)
	require.NoError(t, err)

	// Linked record went through the remote call; the purely local one did not.
	require.Equal(t, []string{"srv-1"}, gw.deletedIDs)
	_, err = repos.Bookings.GetByID(ctx, linked.LocalID)
	require.Error(t, err)
	_, err = repos.Bookings.GetByID(ctx, local.LocalID)
	require.Error(t, err)
}

func TestPushDeletionRemoteFailureKeepsRecord(t *testing.T) {
	ctx := context.Background()
	gw := &syncGateway{
		bookings:  []api.Booking{{ID: "srv-1", BookID: "book-1"}},
		deleteErr: &api.StatusError{Code: 500, Body: "internal"},
	}
	eng, repos, _, _ := setupEngine(t, gw)

	b := insertBooking(t, repos, func(b *models.Booking) {
		b.RemoteID = "srv-1"
		b.Status = models.BookingStatusConfirmed
		b.MarkedForDeletion = true
	})

	_, err := eng.Sync(ctx)
	require.NoError(t, err)

	got, err := repos.Bookings.GetByID(ctx, b.LocalID)
	require.NoError(t, err)
	require.True(t, got.MarkedForDeletion)

	remembered, ok := eng.Errors().Get(b.LocalID)
	require.True(t, ok)
	require.Equal(t, KindServerFailure, remembered.Kind)
}

func TestPushDeletionTreatsNotFoundAsDone(t *testing.T) {
	ctx := context.Background()
	gw := &syncGateway{
		bookings:  []api.Booking{{ID: "srv-1", BookID: "book-1"}},
		deleteErr: &api.StatusError{Code: 404, Body: "no such booking"},
	}
	eng, repos, _, _ := setupEngine(t, gw)

	b := insertBooking(t, repos, func(b *models.Booking) {
		b.RemoteID = "srv-1"
		b.Status = models.BookingStatusConfirmed
		b.MarkedForDeletion = true
	})

	_, err := eng.Sync(ctx)
	require.NoError(t, err)

	_, err = repos.Bookings.GetByID(ctx, b.LocalID)
	require.Error(t, err)
}

func TestPushCreationsOldestFirst(t *testing.T) {
	ctx := context.Background()
	gw := &syncGateway{}
	eng, repos, _, _ := setupEngine(t, gw)

	now := time.Now().UTC().Truncate(time.Second)
	newer := insertBooking(t, repos, func(b *models.Booking) {
		b.BookID = "book-new"
		b.CreatedAt = now
	})
	older := insertBooking(t, repos, func(b *models.Booking) {
		b.BookID = "book-old"
		b.CreatedAt = now.Add(-time.Hour)
	})

	_, err := eng.Sync(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"book-old", "book-new"}, gw.createdIDs)

	for _, b := range []*models.Booking{older, newer} {
		got, err := repos.Bookings.GetByID(ctx, b.LocalID)
		require.NoError(t, err)
		require.Equal(t, "srv-"+b.BookID, got.RemoteID)
		require.Equal(t, models.BookingStatusConfirmed, got.Status)
	}
}

func TestPushCreationDuplicateDiscardsRecord(t *testing.T) {
	ctx := context.Background()
	gw := &syncGateway{
		createResp: func(api.BookingRequest) (*api.Booking, error) {
			return nil, &api.StatusError{Code: 400, Body: "reader already has an active booking"}
		},
	}
	eng, repos, _, _ := setupEngine(t, gw)

	b := insertBooking(t, repos, nil)

	out, err := eng.Sync(ctx)
	require.NoError(t, err)

	_, err = repos.Bookings.GetByID(ctx, b.LocalID)
	require.Error(t, err)

	var kinds []ErrorKind
	for _, o := range out {
		kinds = append(kinds, o.Kind)
	}
	require.Contains(t, kinds, KindDuplicateActiveRecord)
}

func TestPushCreationInsufficientRetainsRecord(t *testing.T) {
	ctx := context.Background()
	gw := &syncGateway{
		createResp: func(api.BookingRequest) (*api.Booking, error) {
			return nil, &api.StatusError{Code: 409, Body: "no copies available"}
		},
	}
	eng, repos, _, _ := setupEngine(t, gw)

	b := insertBooking(t, repos, nil)

	_, err := eng.Sync(ctx)
	require.NoError(t, err)

	got, err := repos.Bookings.GetByID(ctx, b.LocalID)
	require.NoError(t, err)
	require.Equal(t, models.BookingStatusPending, got.Status)
	require.Empty(t, got.RemoteID)

	remembered, ok := eng.Errors().Get(b.LocalID)
	require.True(t, ok)
	require.Equal(t, KindInsufficientResource, remembered.Kind)
}

func TestPushCreationSuccessClearsRememberedError(t *testing.T) {
	ctx := context.Background()
	gw := &syncGateway{
		createResp: func(api.BookingRequest) (*api.Booking, error) {
			return nil, &api.StatusError{Code: 409, Body: "no copies available"}
		},
	}
	eng, repos, _, _ := setupEngine(t, gw)

	b := insertBooking(t, repos, nil)

	_, err := eng.Sync(ctx)
	require.NoError(t, err)
	_, ok := eng.Errors().Get(b.LocalID)
	require.True(t, ok)

	gw.createResp = nil
	// Reconcile now sees the record the first run failed to create; the
	// snapshot is still empty, so only the push phase acts.
	_, err = eng.Sync(ctx)
	require.NoError(t, err)

	_, ok = eng.Errors().Get(b.LocalID)
	require.False(t, ok)

	got, err := repos.Bookings.GetByID(ctx, b.LocalID)
	require.NoError(t, err)
	require.NotEmpty(t, got.RemoteID)
}

func TestExpireStaleUnsentRecords(t *testing.T) {
	ctx := context.Background()
	gw := &syncGateway{
		createResp: func(api.BookingRequest) (*api.Booking, error) {
			return nil, &api.StatusError{Code: 503, Body: "maintenance"}
		},
	}
	eng, repos, notifier, _ := setupEngine(t, gw)

	now := time.Now().UTC().Truncate(time.Second)
	stale := insertBooking(t, repos, func(b *models.Booking) {
		b.BookID = "book-stale"
		b.CreatedAt = now.Add(-3 * 24 * time.Hour)
	})
	fresh := insertBooking(t, repos, func(b *models.Booking) {
		b.BookID = "book-fresh"
		b.CreatedAt = now.Add(-time.Hour)
	})

	_, err := eng.Sync(ctx)
	require.NoError(t, err)

	_, err = repos.Bookings.GetByID(ctx, stale.LocalID)
	require.Error(t, err)
	_, err = repos.Bookings.GetByID(ctx, fresh.LocalID)
	require.NoError(t, err)
	require.Equal(t, []string{stale.LocalID}, notifier.expired)
}

func TestAuthRetryRefreshesOnceAndRetries(t *testing.T) {
	ctx := context.Background()
	gw := &syncGateway{
		bookingsErr: map[string]error{"tok": &api.StatusError{Code: 401, Body: "expired"}},
	}
	eng, _, _, tokens := setupEngine(t, gw)
	tokens.afterRefresh = "tok2"

	_, err := eng.Sync(ctx)
	require.NoError(t, err)

	require.Equal(t, 1, tokens.refreshes)
	require.Equal(t, []string{"tok", "tok2"}, gw.fetchTokens)
}

func TestFetchFailureAbortsRun(t *testing.T) {
	ctx := context.Background()
	gw := &syncGateway{
		bookingsErr: map[string]error{"tok": &api.StatusError{Code: 503, Body: "maintenance"}},
	}
	eng, repos, _, _ := setupEngine(t, gw)

	// An unsent record must not be pushed against an unknown remote state.
	b := insertBooking(t, repos, nil)

	out, err := eng.Sync(ctx)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, KindServerFailure, out[0].Kind)
	require.Empty(t, gw.createdIDs)

	got, err := repos.Bookings.GetByID(ctx, b.LocalID)
	require.NoError(t, err)
	require.Empty(t, got.RemoteID)
}
