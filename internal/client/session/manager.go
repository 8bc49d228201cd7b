// Package session owns the credential lifecycle of the Libris client:
// logging in, judging token validity, refreshing proactively, and tearing the
// session down on logout. The stored Session is the only truly shared mutable
// state in the client; the Manager is its sole writer and serializes refresh
// attempts with a real mutex.
package session

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"

	"github.com/avanags/libris/internal/client/api"
	"github.com/avanags/libris/internal/client/models"
	"github.com/avanags/libris/internal/client/repositories/metadata"
	"github.com/avanags/libris/internal/client/repositories/sessions"
	"github.com/avanags/libris/internal/common"
	"github.com/avanags/libris/internal/cryptox"
	"github.com/avanags/libris/internal/dbx"
	"github.com/avanags/libris/internal/logging"
)

const (
	// AccessTokenTTL and RefreshTokenTTL are fallbacks used when the server
	// reply carries no explicit expiry and the access token has no exp claim.
	AccessTokenTTL  = time.Hour
	RefreshTokenTTL = 720 * time.Hour

	// RefreshThreshold is how much access-token life may remain before a
	// proactive refresh is attempted.
	RefreshThreshold = 5 * time.Minute

	// MinRefreshLifetime is the least refresh-token life required to even
	// attempt a refresh.
	MinRefreshLifetime = 5 * time.Minute

	// RefreshCooldown throttles refresh attempts, successful or not.
	RefreshCooldown = 30 * time.Second

	// MinResumeRefreshLifetime is the stricter app-resume check.
	MinResumeRefreshLifetime = 10 * time.Minute

	// MinAPIAccessLifetime is the least access-token life considered usable
	// for an API call without refreshing first.
	MinAPIAccessLifetime = 60 * time.Second
)

// metadata keys for cached offline-login data.
const (
	metaUsername = "username"
	metaUserID   = "user_id"
	metaSalt     = "salt"
	metaVerifier = "verifier"
)

// Purger removes all of one user's records from a local table, on the
// transaction the logout cascade runs in. The booking and order repositories
// satisfy it; purging through a second connection would block against the
// transaction's write lock.
type Purger interface {
	PurgeUser(ctx context.Context, tx dbx.DBTX, userID string) error
}

type credentials struct {
	Login    string `validate:"required,min=3"`
	Password []byte `validate:"required,min=6"`
}

// Manager implements the session lifecycle over the local database and the
// remote gateway.
type Manager struct {
	db      *sql.DB
	client  api.Client
	log     logging.Logger
	purgers []Purger

	validate *validator.Validate
	now      func() time.Time

	mu                 sync.Mutex
	lastRefreshAttempt time.Time

	// offlineMu guards the offline identity separately from mu: Current may
	// be called while mu is held by a refresh.
	offlineMu     sync.Mutex
	offlineUserID string
}

// NewManager constructs a Manager. The purgers are invoked, in order, when a
// logout must also clear the user's local records.
func NewManager(db *sql.DB, client api.Client, log logging.Logger, purgers ...Purger) *Manager {
	return &Manager{
		db:       db,
		client:   client,
		log:      log.With("component", "session"),
		purgers:  purgers,
		validate: validator.New(),
		now:      time.Now,
	}
}

func (m *Manager) sessionRepo() sessions.Repository {
	return sessions.NewSQLiteRepository(m.db)
}

func (m *Manager) metadataRepo() metadata.Repository {
	return metadata.NewSQLiteRepository(m.db)
}

// Current returns the stored session, or, after a successful offline login,
// a token-less session carrying only the cached user identity so that list
// and sync paths can resolve the user's records. With neither it returns
// common.ErrNoSession.
func (m *Manager) Current(ctx context.Context) (*models.Session, error) {
	s, err := m.sessionRepo().Get(ctx)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			if uid := m.offlineUser(); uid != "" {
				return &models.Session{UserID: uid}, nil
			}
			return nil, common.ErrNoSession
		}
		return nil, err
	}
	return s, nil
}

func (m *Manager) offlineUser() string {
	m.offlineMu.Lock()
	defer m.offlineMu.Unlock()
	return m.offlineUserID
}

func (m *Manager) setOfflineUser(userID string) {
	m.offlineMu.Lock()
	defer m.offlineMu.Unlock()
	m.offlineUserID = userID
}

// Login authenticates against the server and persists a brand-new session
// plus the offline-login metadata. Any remote failure is reported as the
// generic common.ErrLoginFailed so callers cannot distinguish bad credentials
// from a dead network.
func (m *Manager) Login(ctx context.Context, login string, password []byte) (*models.Session, error) {
	if err := m.validate.Struct(credentials{Login: login, Password: password}); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", err)
	}

	pair, err := m.client.Login(ctx, login, string(password))
	if err != nil {
		m.log.Warn(ctx, "login failed", "error", err)
		return nil, common.ErrLoginFailed
	}

	s := m.sessionFromPair(pair, "")
	if err := s.Validate(); err != nil {
		return nil, err
	}

	salt := common.GenerateRandByteArray(32)
	verifier := cryptox.MakeVerifier(cryptox.DeriveKey(password, salt))

	err = dbx.WithTx(ctx, m.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := sessions.NewSQLiteRepository(tx).Replace(ctx, s); err != nil {
			return err
		}
		meta := metadata.NewSQLiteRepository(tx)
		if err := meta.Set(ctx, metaUsername, []byte(login)); err != nil {
			return err
		}
		if err := meta.Set(ctx, metaUserID, []byte(s.UserID)); err != nil {
			return err
		}
		if err := meta.Set(ctx, metaSalt, salt); err != nil {
			return err
		}
		return meta.Set(ctx, metaVerifier, verifier)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	m.setOfflineUser("")
	m.log.Info(ctx, "logged in", "user_id", s.UserID)
	return s, nil
}

// Register creates an account on the server. The caller is expected to log
// in afterwards; registration itself establishes no session.
func (m *Manager) Register(ctx context.Context, login string, password []byte) error {
	if err := m.validate.Struct(credentials{Login: login, Password: password}); err != nil {
		return fmt.Errorf("invalid credentials: %w", err)
	}
	if err := m.client.Register(ctx, login, string(password)); err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}
	m.log.Info(ctx, "registered", "login", login)
	return nil
}

// OfflineLogin verifies credentials against the locally cached salt and
// verifier, allowing the user to open their cached records without the
// server. Returns common.ErrLocalDataNotAvailable when nothing is cached and
// common.ErrorUnauthorized when verification fails.
func (m *Manager) OfflineLogin(ctx context.Context, login string, password []byte) error {
	meta := m.metadataRepo()

	savedLogin, err := meta.Get(ctx, metaUsername)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrLocalDataNotAvailable
		}
		return err
	}
	if string(savedLogin) != login {
		return common.ErrorUnauthorized
	}

	salt, err := meta.Get(ctx, metaSalt)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrLocalDataNotAvailable
		}
		return err
	}
	verifier, err := meta.Get(ctx, metaVerifier)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrLocalDataNotAvailable
		}
		return err
	}

	candidate := cryptox.MakeVerifier(cryptox.DeriveKey(password, salt))
	if subtle.ConstantTimeCompare(verifier, candidate) == 0 {
		return common.ErrorUnauthorized
	}

	uid, err := meta.Get(ctx, metaUserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrLocalDataNotAvailable
		}
		return err
	}
	m.setOfflineUser(string(uid))
	return nil
}

// ValidAccessToken returns a token with enough remaining life for an API
// call, refreshing first when the access token is inside RefreshThreshold.
// When the refresh token itself is too close to expiry no refresh is
// attempted and common.ErrRefreshTokenExpired is returned: the caller must
// force a re-login.
func (m *Manager) ValidAccessToken(ctx context.Context) (string, error) {
	s, err := m.Current(ctx)
	if err != nil {
		return "", err
	}

	now := m.now()
	if s.AccessRemaining(now) > RefreshThreshold {
		return s.AccessToken, nil
	}
	if s.RefreshRemaining(now) < MinRefreshLifetime {
		return "", common.ErrRefreshTokenExpired
	}

	if _, err := m.RefreshIfNeeded(ctx); err != nil {
		if errors.Is(err, common.ErrRefreshTokenExpired) || errors.Is(err, common.ErrNoSession) {
			return "", err
		}
		// Refresh could not run right now (e.g. offline). Degrade to the
		// current token while it still has any life left.
		if s.AccessRemaining(m.now()) > 0 {
			return s.AccessToken, nil
		}
		return "", err
	}

	s, err = m.Current(ctx)
	if err != nil {
		return "", err
	}
	return s.AccessToken, nil
}

// RefreshIfNeeded performs at most one refresh round trip. Concurrent
// callers serialize on the mutex; the cooldown suppresses attempts within
// RefreshCooldown of the previous one, successful or not. A refresh token
// rejected by the server destroys the session and cascades like a forced
// logout. Returns whether a new pair was obtained.
func (m *Manager) RefreshIfNeeded(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if now.Sub(m.lastRefreshAttempt) < RefreshCooldown {
		return false, nil
	}

	s, err := m.Current(ctx)
	if err != nil {
		return false, err
	}
	if s.AccessRemaining(now) > RefreshThreshold {
		// Someone else already refreshed while we waited on the mutex.
		return false, nil
	}
	if s.RefreshRemaining(now) < MinRefreshLifetime {
		return false, common.ErrRefreshTokenExpired
	}

	m.lastRefreshAttempt = now

	pair, err := m.client.Refresh(ctx, s.RefreshToken)
	if err != nil {
		if api.IsUnauthorized(err) {
			m.log.Warn(ctx, "refresh token rejected, forcing logout", "user_id", s.UserID)
			if ferr := m.forceLogout(ctx, s.UserID); ferr != nil {
				return false, ferr
			}
			return false, common.ErrRefreshTokenExpired
		}
		return false, fmt.Errorf("refresh failed: %w", err)
	}

	// The whole session is replaced; expiries are computed from now, never
	// from the old instants.
	fresh := m.sessionFromPair(pair, s.UserID)
	if err := fresh.Validate(); err != nil {
		return false, err
	}
	err = dbx.WithTx(ctx, m.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return sessions.NewSQLiteRepository(tx).Replace(ctx, fresh)
	})
	if err != nil {
		return false, fmt.Errorf("failed to persist refreshed session: %w", err)
	}

	m.log.Info(ctx, "session refreshed", "user_id", fresh.UserID)
	return true, nil
}

// HasValidTokenForAPI reports whether an API call can proceed: either the
// access token still has at least MinAPIAccessLifetime left, or a refresh is
// still possible.
func (m *Manager) HasValidTokenForAPI(ctx context.Context) bool {
	s, err := m.Current(ctx)
	if err != nil {
		return false
	}
	now := m.now()
	return s.AccessRemaining(now) >= MinAPIAccessLifetime ||
		s.RefreshRemaining(now) >= MinRefreshLifetime
}

// CanContinueWithoutRelogin is the stricter app-resume check: the refresh
// token must have at least MinResumeRefreshLifetime left.
func (m *Manager) CanContinueWithoutRelogin(ctx context.Context) bool {
	s, err := m.Current(ctx)
	if err != nil {
		return false
	}
	return s.RefreshRemaining(m.now()) >= MinResumeRefreshLifetime
}

// Logout notifies the server on a best-effort basis, then deletes the
// session. With clearUserData the user's local records and the offline-login
// metadata are removed as well; otherwise they are retained for a future
// offline-capable re-login.
func (m *Manager) Logout(ctx context.Context, clearUserData bool) error {
	s, err := m.Current(ctx)
	if err != nil {
		if errors.Is(err, common.ErrNoSession) {
			return nil
		}
		return err
	}

	// An offline-restored identity carries no token, so there is nothing to
	// revoke remotely.
	if s.AccessToken != "" {
		if err := m.client.Logout(ctx, s.AccessToken); err != nil {
			m.log.Warn(ctx, "remote logout failed, continuing", "error", err)
		}
	}

	if clearUserData {
		return m.forceLogout(ctx, s.UserID)
	}

	if err := m.sessionRepo().Delete(ctx, s.UserID); err != nil {
		return err
	}
	m.setOfflineUser("")
	m.log.Info(ctx, "logged out", "user_id", s.UserID)
	return nil
}

// ForceLogout destroys the session and clears the user's local data without
// contacting the server. Used when the refresh token itself is rejected.
func (m *Manager) ForceLogout(ctx context.Context) error {
	s, err := m.Current(ctx)
	if err != nil {
		if errors.Is(err, common.ErrNoSession) {
			return nil
		}
		return err
	}
	return m.forceLogout(ctx, s.UserID)
}

func (m *Manager) forceLogout(ctx context.Context, userID string) error {
	err := dbx.WithTx(ctx, m.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := sessions.NewSQLiteRepository(tx).Delete(ctx, userID); err != nil {
			return err
		}
		if err := metadata.NewSQLiteRepository(tx).Clear(ctx); err != nil {
			return err
		}
		for _, p := range m.purgers {
			if err := p.PurgeUser(ctx, tx, userID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	m.setOfflineUser("")
	m.log.Info(ctx, "session and local data destroyed", "user_id", userID)
	return nil
}

// sessionFromPair builds a Session from a token response. Expiry precedence:
// explicit instants from the server, then the access token's exp claim, then
// the configured fallback lifetimes. fallbackUserID keeps the owner when the
// refresh response omits it.
func (m *Manager) sessionFromPair(pair *api.TokenPair, fallbackUserID string) *models.Session {
	now := m.now().UTC()

	userID := pair.UserID
	if userID == "" {
		userID = fallbackUserID
	}

	accessExp := pair.AccessExpiresAt
	if accessExp.IsZero() {
		if exp, ok := jwtExpiry(pair.AccessToken); ok {
			accessExp = exp
		} else {
			accessExp = now.Add(AccessTokenTTL)
		}
	}
	refreshExp := pair.RefreshExpiresAt
	if refreshExp.IsZero() {
		refreshExp = now.Add(RefreshTokenTTL)
	}

	return &models.Session{
		UserID:           userID,
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
		CreatedAt:        now,
	}
}

// jwtExpiry reads the exp claim without verifying the signature; the client
// holds no signing key and only needs the instant for scheduling refreshes.
func jwtExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
