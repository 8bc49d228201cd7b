// Package sync implements the offline-first synchronization engine: a
// three-phase run (reconcile the remote snapshot, push local deletions, push
// local creations) shared by every entity family, plus the error classifier
// and the per-record error memory surfaced to the UI.
package sync

// ErrorKind is the closed classification of sync failures. Every failure a
// run produces maps to exactly one kind; the kind decides whether the local
// record is kept for a retry or discarded.
type ErrorKind string

const (
	// KindNone marks a successful outcome.
	KindNone ErrorKind = ""

	// KindDuplicateActiveRecord means the server already holds an active
	// record for the same book. The local copy is discarded.
	KindDuplicateActiveRecord ErrorKind = "duplicate_active_record"

	// KindInsufficientResource means the server lacks copies or stock to
	// satisfy the request. The local record is retained for a later retry.
	KindInsufficientResource ErrorKind = "insufficient_resource"

	// KindNetworkFailure covers transport-level failures. Retained.
	KindNetworkFailure ErrorKind = "network_failure"

	// KindServerFailure covers every other non-2xx reply. Retained.
	KindServerFailure ErrorKind = "server_failure"

	// KindAuthRequired means no usable credential exists; the run halts.
	KindAuthRequired ErrorKind = "auth_required"
)

// Retained reports whether a record failing with this kind stays in the
// local store for a future retry.
func (k ErrorKind) Retained() bool {
	return k != KindDuplicateActiveRecord && k != KindNone
}

// Op names the phase an outcome was produced in.
type Op string

const (
	OpReconcile  Op = "reconcile"
	OpPushDelete Op = "push_delete"
	OpPushCreate Op = "push_create"
	OpExpire     Op = "expire"
)

// Outcome is the typed result of one sync action on one record. Kind is
// KindNone on success.
type Outcome struct {
	Family   string
	Op       Op
	LocalID  string
	RemoteID string
	Kind     ErrorKind
	Err      error
}

// Failed reports whether the outcome describes a failure.
func (o Outcome) Failed() bool { return o.Kind != KindNone }
