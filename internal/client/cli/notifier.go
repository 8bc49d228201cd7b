package cli

// consoleNotifier surfaces background sync effects to the terminal so the
// user learns when the server changed records behind their back.
type consoleNotifier struct{}

func (consoleNotifier) OnStatusChanged(family, localID, oldStatus, newStatus string) {
	printlnFn("[" + family + "] " + localID + ": " + oldStatus + " -> " + newStatus)
}

func (consoleNotifier) OnCreatedRemotely(family, localID string) {
	printlnFn("[" + family + "] new record from server: " + localID)
}

func (consoleNotifier) OnDeletedExternally(family, localID string) {
	printlnFn("[" + family + "] removed on server: " + localID)
}

func (consoleNotifier) OnExpiredLocally(family, localID string) {
	printlnFn("[" + family + "] expired before it could be sent: " + localID)
}
