package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/avanags/libris/internal/client/sync"
	"github.com/avanags/libris/internal/common"
)

func (a *App) ListBookings(ctx context.Context) error {
	rows, err := a.bookings.List(ctx)
	if err != nil {
		printlnFn("error:", err)
		return err
	}
	if len(rows) == 0 {
		printlnFn("No bookings")
		return nil
	}
	for _, b := range rows {
		line := fmt.Sprintf("%s  %-9s  %s (%s)", b.LocalID, b.Status, b.BookTitle, b.BookID)
		if e, ok := findError(a.bookings.SyncErrors(), b.LocalID); ok {
			line += "  [!" + string(e.Kind) + "]"
		}
		printlnFn(line)
	}
	return nil
}

func (a *App) ListOrders(ctx context.Context) error {
	rows, err := a.orders.List(ctx)
	if err != nil {
		printlnFn("error:", err)
		return err
	}
	if len(rows) == 0 {
		printlnFn("No orders")
		return nil
	}
	for _, o := range rows {
		line := fmt.Sprintf("%s  %-14s  %s x%d", o.LocalID, o.Status, o.BookID, o.Quantity)
		if e, ok := findError(a.orders.SyncErrors(), o.LocalID); ok {
			line += "  [!" + string(e.Kind) + "]"
		}
		printlnFn(line)
	}
	return nil
}

// AddBooking creates a booking locally: book <book-id> <title...>
func (a *App) AddBooking(ctx context.Context, args []string) error {
	if len(args) < 2 {
		printlnFn("Usage: book <book-id> <title>")
		return nil
	}
	b, err := a.bookings.Add(ctx, args[0], strings.Join(args[1:], " "))
	if err != nil {
		printlnFn("error:", err)
		return err
	}
	printlnFn("Booking created locally:", b.LocalID)
	a.syncAll(ctx)
	return nil
}

// AddOrder creates an acquisition order locally: order <book-id> <quantity>
func (a *App) AddOrder(ctx context.Context, args []string) error {
	if len(args) != 2 {
		printlnFn("Usage: order <book-id> <quantity>")
		return nil
	}
	qty, err := strconv.Atoi(args[1])
	if err != nil {
		printlnFn("Quantity must be a number")
		return nil
	}
	o, err := a.orders.Add(ctx, args[0], qty)
	if err != nil {
		printlnFn("error:", err)
		return err
	}
	printlnFn("Order created locally:", o.LocalID)
	a.syncAll(ctx)
	return nil
}

// Delete marks a record for deletion: del <local-id>
func (a *App) Delete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		printlnFn("Usage: del <local-id>")
		return nil
	}
	id := args[0]

	err := a.bookings.Delete(ctx, id)
	if errors.Is(err, common.ErrorNotFound) {
		err = a.orders.Delete(ctx, id)
	}
	if err != nil {
		printlnFn("error:", err)
		return err
	}
	printlnFn("Marked for deletion:", id)
	a.syncAll(ctx)
	return nil
}

// Sync runs one synchronization pass over both families.
func (a *App) Sync(ctx context.Context) error {
	a.syncAll(ctx)
	return nil
}

// ShowErrors prints remembered sync failures for both families.
func (a *App) ShowErrors(ctx context.Context) error {
	all := append(a.bookings.SyncErrors(), a.orders.SyncErrors()...)
	if len(all) == 0 {
		printlnFn("No sync errors")
		return nil
	}
	for _, o := range all {
		printlnFn(fmt.Sprintf("%s  %s/%s  %s: %v", o.LocalID, o.Family, o.Op, o.Kind, o.Err))
	}
	return nil
}

// Acknowledge dismisses a remembered sync failure: ack <local-id>
func (a *App) Acknowledge(ctx context.Context, args []string) error {
	if len(args) != 1 {
		printlnFn("Usage: ack <local-id>")
		return nil
	}
	a.bookings.AcknowledgeError(args[0])
	a.orders.AcknowledgeError(args[0])
	printlnFn("Acknowledged:", args[0])
	return nil
}

func (a *App) syncAll(ctx context.Context) {
	if !a.isLoggedIn() || a.Mode != ModeOnline {
		return
	}
	failures := 0
	for _, run := range []func(context.Context) ([]sync.Outcome, error){a.bookings.Sync, a.orders.Sync} {
		out, err := run(ctx)
		if err != nil {
			printlnFn("Sync failed:", err)
			continue
		}
		for _, o := range out {
			if o.Failed() {
				failures++
			}
		}
	}
	if failures > 0 {
		printlnFn(fmt.Sprintf("Sync finished with %d problem(s); type 'errors' for details", failures))
	}
}

func findError(outcomes []sync.Outcome, localID string) (sync.Outcome, bool) {
	for _, o := range outcomes {
		if o.LocalID == localID {
			return o, true
		}
	}
	return sync.Outcome{}, false
}
