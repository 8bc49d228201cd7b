package cli

import (
	"context"
	"errors"
	"os"

	"github.com/avanags/libris/internal/common"
)

// Login authenticates online, falling back to offline verification against
// the cached credentials when the server cannot be reached.
func (a *App) Login(ctx context.Context) error {
	userName, err := GetSimpleText(a.reader, "Enter login", os.Stdout)
	if err != nil {
		printlnFn("error:", err)
		return err
	}

	password, err := GetPassword(os.Stdout)
	if err != nil {
		printlnFn("error:", err)
		return err
	}
	defer common.WipeByteArray(password)

	_, err = a.sessions.Login(ctx, userName, password)
	if err == nil {
		a.userName = userName
		a.setMode(ModeOnline)
		printlnFn("Login successful")
		a.syncAll(ctx)
		return nil
	}

	if !errors.Is(err, common.ErrLoginFailed) {
		printlnFn("Login unsuccessful:", err)
		return err
	}

	printlnFn("Server rejected or unreachable, trying offline login...")
	if oerr := a.sessions.OfflineLogin(ctx, userName, password); oerr != nil {
		printlnFn("Offline login unsuccessful:", oerr)
		a.userName = ""
		a.setMode(ModeDisabled)
		return err
	}

	a.userName = userName
	a.setMode(ModeOffline)
	printlnFn("Offline login successful; cached records are available read-only until the server returns")
	return nil
}

// Register creates an account; the user logs in afterwards.
func (a *App) Register(ctx context.Context) error {
	userName, err := GetSimpleText(a.reader, "Enter login", os.Stdout)
	if err != nil {
		printlnFn("error:", err)
		return err
	}

	password, err := GetPassword(os.Stdout)
	if err != nil {
		printlnFn("error:", err)
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.sessions.Register(ctx, userName, password); err != nil {
		printlnFn("Registration unsuccessful:", err)
		return err
	}
	printlnFn("Registration successful, you can now log in")
	return nil
}

// Logout asks whether local data should be kept for offline use, then tears
// the session down.
func (a *App) Logout(ctx context.Context) error {
	answer, err := GetSimpleText(a.reader, "Remove local data as well? (y/N)", os.Stdout)
	if err != nil {
		return err
	}
	clear := answer == "y" || answer == "Y"

	if err := a.sessions.Logout(ctx, clear); err != nil {
		printlnFn("Logout failed:", err)
		return err
	}

	a.userName = ""
	a.Mode = ""
	printlnFn("Logged out")
	return nil
}
