// Package cli provides the interactive Libris command-line client.
//
// It wires configuration, local storage, the REST gateway and the
// synchronization services into an interactive REPL that supports online and
// offline operation. Typical flow: prompt for credentials, start a background
// connectivity watcher, and execute user commands.
//
// Key features:
//   - Login / Logout (online with offline fallback)
//   - Create bookings and acquisition orders locally
//   - List records, delete records
//   - Sync with the server, inspect and dismiss sync errors
//
// The REPL is started via App.Root(ctx), which blocks until the user exits.
// See App, StartOnlineStatusWatcher, and runREPL for details.
package cli
