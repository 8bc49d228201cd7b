package sync

// Notifier receives callbacks when a sync run changes local state behind the
// user's back. Implementations must be safe for concurrent use; the engine
// invokes them from whatever goroutine runs the sync.
type Notifier interface {
	// OnStatusChanged fires when reconciliation moves a record to a new status.
	OnStatusChanged(family, localID, oldStatus, newStatus string)

	// OnCreatedRemotely fires when a record first seen on the server is
	// inserted locally.
	OnCreatedRemotely(family, localID string)

	// OnDeletedExternally fires when a record was removed on the server and
	// the local copy is deleted to match.
	OnDeletedExternally(family, localID string)

	// OnExpiredLocally fires when a never-sent record ages past the
	// retention window and is dropped.
	OnExpiredLocally(family, localID string)
}

// NopNotifier ignores every callback.
type NopNotifier struct{}

func (NopNotifier) OnStatusChanged(string, string, string, string) {}
func (NopNotifier) OnCreatedRemotely(string, string)               {}
func (NopNotifier) OnDeletedExternally(string, string)             {}
func (NopNotifier) OnExpiredLocally(string, string)                {}
