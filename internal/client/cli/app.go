package cli

import (
	"bufio"
	"context"
	"os"
	"time"

	"github.com/avanags/libris/internal/client/api"
	"github.com/avanags/libris/internal/client/config"
	"github.com/avanags/libris/internal/client/repositories"
	"github.com/avanags/libris/internal/client/services"
	"github.com/avanags/libris/internal/client/session"
	"github.com/avanags/libris/internal/logging"

	_ "modernc.org/sqlite"
)

// Mode reflects the client's connectivity and login state.
type Mode string

const (
	// ModeOnline means the server is reachable and the session is live.
	ModeOnline Mode = "online"
	// ModeOffline means cached records are browsable but nothing syncs.
	ModeOffline Mode = "offline"
	// ModeDisabled means no usable credential exists, online or offline.
	ModeDisabled Mode = "disabled"
)

// App bundles the interactive client: configuration, local store, session
// manager and the per-family services.
type App struct {
	config   *config.Config
	repos    *repositories.Repositories
	client   api.Client
	sessions *session.Manager
	bookings services.BookingService
	orders   services.OrderService
	log      logging.Logger

	userName string
	Mode     Mode
	reader   *bufio.Reader
}

// NewApp opens the local database, connects the gateway and wires services.
func NewApp(ctx context.Context, c *config.Config, log logging.Logger) (*App, error) {
	repos, err := repositories.InitDatabase(ctx, c.DatabaseFile)
	if err != nil {
		log.Error(ctx, "error initializing database", "error", err)
		return nil, err
	}

	apiClient := api.NewRESTClient(c.BaseURL, c.RequestTimeout)
	sessions := session.NewManager(repos.DB, apiClient, log, repos.Bookings, repos.Orders)
	notifier := &consoleNotifier{}

	return &App{
		config:   c,
		repos:    repos,
		client:   apiClient,
		sessions: sessions,
		bookings: services.NewBookingService(repos.Bookings, apiClient, sessions, notifier, log),
		orders:   services.NewOrderService(repos.Orders, apiClient, sessions, notifier, log),
		log:      log,
		reader:   bufio.NewReader(os.Stdin),
	}, nil
}

// Run starts the REPL and blocks until the user exits.
func (a *App) Run(ctx context.Context) {
	defer func() {
		_ = a.client.Close()
		_ = a.repos.DB.Close()
	}()
	a.Root(ctx)
}

func (a *App) isLoggedIn() bool {
	return a.userName != "" && a.Mode != ModeDisabled
}

func (a *App) setMode(mode Mode) {
	if a.Mode != mode {
		a.Mode = mode
		printlnFn("Switched to " + string(mode) + " mode")
	}
}

// StartOnlineStatusWatcher probes the server every interval and flips the
// mode between online and offline accordingly. Regaining connectivity while
// logged in triggers a background sync so records catch up without user
// action.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := a.client.Ping(pingCtx)
			cancel()

			if err != nil {
				if a.Mode == ModeOnline {
					a.setMode(ModeOffline)
				}
				continue
			}
			if a.Mode == ModeOffline && a.isLoggedIn() && a.sessions.CanContinueWithoutRelogin(ctx) {
				a.setMode(ModeOnline)
				a.syncAll(ctx)
			} else if a.Mode != ModeOnline && a.Mode != ModeDisabled {
				a.setMode(ModeOnline)
			}

		case <-ctx.Done():
			return
		}
	}
}
