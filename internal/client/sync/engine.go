package sync

import (
	"context"
	"sync"
	"time"

	"github.com/avanags/libris/internal/client/api"
	"github.com/avanags/libris/internal/logging"
)

// RetentionWindow is how long a never-sent record may wait before a sync run
// gives up on pushing it and drops it locally.
const RetentionWindow = 48 * time.Hour

// Record is the local side of a synchronized entity.
type Record interface {
	// Key is the stable local identity.
	Key() string
	// RemoteKey is the server identity, empty while the record is unsent.
	RemoteKey() string
	// Unsent reports whether the server has never accepted the record.
	Unsent() bool
}

// Remote is the server side of a synchronized entity.
type Remote interface {
	// Key is the server identity.
	Key() string
}

// TokenSource supplies credentials for remote calls. The session manager
// implements it.
type TokenSource interface {
	ValidAccessToken(ctx context.Context) (string, error)
	RefreshIfNeeded(ctx context.Context) (bool, error)
	HasValidTokenForAPI(ctx context.Context) bool
}

// Family adapts one entity family (bookings, orders) to the engine: remote
// calls on one side, local-store queries and mutations on the other. All
// local reads are scoped to the currently logged-in user.
type Family[L Record, R Remote] interface {
	// Label names the family in outcomes, notifications and logs.
	Label() string

	FetchRemote(ctx context.Context, token string) ([]R, error)
	CreateRemote(ctx context.Context, token string, rec L) (R, error)
	DeleteRemote(ctx context.Context, token, remoteID string) error

	// LocalLinked lists records that carry a remote id and are not marked
	// for deletion.
	LocalLinked(ctx context.Context) ([]L, error)
	// LocalMarkedForDeletion lists records awaiting the remote delete step.
	LocalMarkedForDeletion(ctx context.Context) ([]L, error)
	// LocalUnsent lists never-sent records, oldest first.
	LocalUnsent(ctx context.Context) ([]L, error)
	// LocalUnsentOlderThan lists never-sent records created before cutoff.
	LocalUnsentOlderThan(ctx context.Context, cutoff time.Time) ([]L, error)

	// InsertFromRemote materializes a record first seen on the server.
	InsertFromRemote(ctx context.Context, r R) (L, error)
	// ApplyRemoteStatus moves rec onto the status the remote snapshot
	// implies, reporting the transition when one happened.
	ApplyRemoteStatus(ctx context.Context, rec L, r R) (oldStatus, newStatus string, changed bool, err error)
	// LinkCreated stamps the server identity on a just-accepted record and
	// advances its status.
	LinkCreated(ctx context.Context, rec L, r R) error
	DeleteLocal(ctx context.Context, localID string) error
}

// Engine runs the three-phase synchronization for one family. Runs are
// single-flight: a Sync call that finds another run in progress returns
// immediately with no outcomes.
type Engine[L Record, R Remote] struct {
	family Family[L, R]
	tokens TokenSource
	notify Notifier
	errs   *ErrorSet
	log    logging.Logger
	now    func() time.Time

	mu sync.Mutex
}

// NewEngine builds an engine. notify may be nil.
func NewEngine[L Record, R Remote](family Family[L, R], tokens TokenSource, notify Notifier, log logging.Logger) *Engine[L, R] {
	if notify == nil {
		notify = NopNotifier{}
	}
	return &Engine[L, R]{
		family: family,
		tokens: tokens,
		notify: notify,
		errs:   NewErrorSet(),
		log:    log.With("family", family.Label()),
		now:    time.Now,
	}
}

// Errors exposes the per-record failures remembered across runs.
func (e *Engine[L, R]) Errors() *ErrorSet { return e.errs }

// Sync executes one full run: reconcile the remote snapshot, push local
// deletions, push local creations, then expire stale never-sent records.
// The phases are strictly ordered; a failed remote fetch aborts the run so
// pushes never act on a stale view without knowing it.
func (e *Engine[L, R]) Sync(ctx context.Context) ([]Outcome, error) {
	if !e.mu.TryLock() {
		e.log.Debug(ctx, "sync already running, skipping")
		return nil, nil
	}
	defer e.mu.Unlock()

	if !e.tokens.HasValidTokenForAPI(ctx) {
		return []Outcome{{Family: e.family.Label(), Op: OpReconcile, Kind: KindAuthRequired}}, nil
	}

	out, err := e.reconcile(ctx)
	if err != nil {
		o := Outcome{Family: e.family.Label(), Op: OpReconcile, Kind: Classify(err), Err: err}
		e.log.Warn(ctx, "reconcile failed", "error", err, "kind", o.Kind)
		return append(out, o), nil
	}

	out = append(out, e.pushDeletions(ctx)...)
	out = append(out, e.pushCreations(ctx)...)
	out = append(out, e.expireStale(ctx)...)

	for _, o := range out {
		e.errs.Record(o)
	}
	e.log.Info(ctx, "sync finished", "outcomes", len(out))
	return out, nil
}

// withAuthRetry runs fn with a valid token, refreshing once and retrying
// once when the server answers unauthorized.
func (e *Engine[L, R]) withAuthRetry(ctx context.Context, fn func(token string) error) error {
	token, err := e.tokens.ValidAccessToken(ctx)
	if err != nil {
		return err
	}
	err = fn(token)
	if err == nil || !api.IsUnauthorized(err) {
		return err
	}
	if _, rerr := e.tokens.RefreshIfNeeded(ctx); rerr != nil {
		return rerr
	}
	token, terr := e.tokens.ValidAccessToken(ctx)
	if terr != nil {
		return terr
	}
	return fn(token)
}

// reconcile fetches the remote snapshot and folds it into the local store:
// records gone remotely are deleted locally, statuses are re-derived, and
// unknown remote records are inserted.
func (e *Engine[L, R]) reconcile(ctx context.Context) ([]Outcome, error) {
	label := e.family.Label()

	var remotes []R
	err := e.withAuthRetry(ctx, func(token string) error {
		var ferr error
		remotes, ferr = e.family.FetchRemote(ctx, token)
		return ferr
	})
	if err != nil {
		return nil, err
	}

	byRemote := make(map[string]R, len(remotes))
	for _, r := range remotes {
		byRemote[r.Key()] = r
	}

	locals, err := e.family.LocalLinked(ctx)
	if err != nil {
		return nil, err
	}

	var out []Outcome
	seen := make(map[string]bool, len(locals))
	for _, rec := range locals {
		seen[rec.RemoteKey()] = true

		r, ok := byRemote[rec.RemoteKey()]
		if !ok {
			// Deleted on the server; the local copy follows.
			if err := e.family.DeleteLocal(ctx, rec.Key()); err != nil {
				out = append(out, Outcome{Family: label, Op: OpReconcile, LocalID: rec.Key(), RemoteID: rec.RemoteKey(), Kind: Classify(err), Err: err})
				continue
			}
			e.notify.OnDeletedExternally(label, rec.Key())
			out = append(out, Outcome{Family: label, Op: OpReconcile, LocalID: rec.Key(), RemoteID: rec.RemoteKey()})
			continue
		}

		oldStatus, newStatus, changed, err := e.family.ApplyRemoteStatus(ctx, rec, r)
		if err != nil {
			out = append(out, Outcome{Family: label, Op: OpReconcile, LocalID: rec.Key(), RemoteID: rec.RemoteKey(), Kind: Classify(err), Err: err})
			continue
		}
		if changed {
			e.notify.OnStatusChanged(label, rec.Key(), oldStatus, newStatus)
			out = append(out, Outcome{Family: label, Op: OpReconcile, LocalID: rec.Key(), RemoteID: rec.RemoteKey()})
		}
	}

	for _, r := range remotes {
		if seen[r.Key()] {
			continue
		}
		rec, err := e.family.InsertFromRemote(ctx, r)
		if err != nil {
			out = append(out, Outcome{Family: label, Op: OpReconcile, RemoteID: r.Key(), Kind: Classify(err), Err: err})
			continue
		}
		e.notify.OnCreatedRemotely(label, rec.Key())
		out = append(out, Outcome{Family: label, Op: OpReconcile, LocalID: rec.Key(), RemoteID: r.Key()})
	}

	return out, nil
}

// pushDeletions completes the two-step delete path: remote delete first,
// local removal second. Records that never reached the server skip the
// remote call.
func (e *Engine[L, R]) pushDeletions(ctx context.Context) []Outcome {
	label := e.family.Label()

	marked, err := e.family.LocalMarkedForDeletion(ctx)
	if err != nil {
		return []Outcome{{Family: label, Op: OpPushDelete, Kind: Classify(err), Err: err}}
	}

	var out []Outcome
	for _, rec := range marked {
		if rid := rec.RemoteKey(); rid != "" {
			err := e.withAuthRetry(ctx, func(token string) error {
				return e.family.DeleteRemote(ctx, token, rid)
			})
			// A 404 means the server already forgot the record; the local
			// removal proceeds.
			if err != nil {
				if se, ok := api.AsStatus(err); !ok || se.Code != 404 {
					out = append(out, Outcome{Family: label, Op: OpPushDelete, LocalID: rec.Key(), RemoteID: rid, Kind: Classify(err), Err: err})
					continue
				}
			}
		}
		if err := e.family.DeleteLocal(ctx, rec.Key()); err != nil {
			out = append(out, Outcome{Family: label, Op: OpPushDelete, LocalID: rec.Key(), Kind: Classify(err), Err: err})
			continue
		}
		out = append(out, Outcome{Family: label, Op: OpPushDelete, LocalID: rec.Key(), RemoteID: rec.RemoteKey()})
	}
	return out
}

// pushCreations sends never-sent records oldest first. A success stamps the
// server identity and advances the status; a duplicate-active failure
// discards the local record; every other failure keeps it for a retry.
func (e *Engine[L, R]) pushCreations(ctx context.Context) []Outcome {
	label := e.family.Label()

	unsent, err := e.family.LocalUnsent(ctx)
	if err != nil {
		return []Outcome{{Family: label, Op: OpPushCreate, Kind: Classify(err), Err: err}}
	}

	var out []Outcome
	for _, rec := range unsent {
		var created R
		err := e.withAuthRetry(ctx, func(token string) error {
			var cerr error
			created, cerr = e.family.CreateRemote(ctx, token, rec)
			return cerr
		})
		if err != nil {
			kind := Classify(err)
			if !kind.Retained() {
				if derr := e.family.DeleteLocal(ctx, rec.Key()); derr != nil {
					e.log.Error(ctx, "failed to discard duplicate record", "local_id", rec.Key(), "error", derr)
				}
			}
			out = append(out, Outcome{Family: label, Op: OpPushCreate, LocalID: rec.Key(), Kind: kind, Err: err})
			continue
		}

		if err := e.family.LinkCreated(ctx, rec, created); err != nil {
			out = append(out, Outcome{Family: label, Op: OpPushCreate, LocalID: rec.Key(), RemoteID: created.Key(), Kind: Classify(err), Err: err})
			continue
		}
		out = append(out, Outcome{Family: label, Op: OpPushCreate, LocalID: rec.Key(), RemoteID: created.Key()})
	}
	return out
}

// expireStale drops never-sent records older than RetentionWindow. They
// could not be pushed for two days; keeping them would let a reader believe
// in a reservation the library never saw.
func (e *Engine[L, R]) expireStale(ctx context.Context) []Outcome {
	label := e.family.Label()
	cutoff := e.now().Add(-RetentionWindow)

	stale, err := e.family.LocalUnsentOlderThan(ctx, cutoff)
	if err != nil {
		return []Outcome{{Family: label, Op: OpExpire, Kind: Classify(err), Err: err}}
	}

	var out []Outcome
	for _, rec := range stale {
		if err := e.family.DeleteLocal(ctx, rec.Key()); err != nil {
			out = append(out, Outcome{Family: label, Op: OpExpire, LocalID: rec.Key(), Kind: Classify(err), Err: err})
			continue
		}
		e.notify.OnExpiredLocally(label, rec.Key())
		out = append(out, Outcome{Family: label, Op: OpExpire, LocalID: rec.Key()})
	}
	return out
}
