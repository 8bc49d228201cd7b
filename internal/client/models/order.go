package models

import (
	"fmt"
	"time"
)

// OrderStatus is the finite status domain of an acquisition order.
type OrderStatus string

const (
	// OrderStatusLocalPending means created locally, not yet sent.
	OrderStatusLocalPending OrderStatus = "LOCAL_PENDING"
	// OrderStatusServerPending means the server accepted the order but has not
	// confirmed the acquisition yet.
	OrderStatusServerPending OrderStatus = "SERVER_PENDING"
	// OrderStatusConfirmed is terminal.
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
)

// OrderEvent drives order status transitions.
type OrderEvent string

const (
	OrderEventSubmit  OrderEvent = "submit"
	OrderEventConfirm OrderEvent = "confirm"
)

// NextOrderStatus is the single transition function for the order family.
func NextOrderStatus(cur OrderStatus, ev OrderEvent) (OrderStatus, error) {
	switch {
	case cur == OrderStatusLocalPending && ev == OrderEventSubmit:
		return OrderStatusServerPending, nil
	case cur == OrderStatusServerPending && ev == OrderEventConfirm:
		return OrderStatusConfirmed, nil
	}
	return cur, fmt.Errorf("order: illegal transition %s on %s", ev, cur)
}

// Order is a locally persisted acquisition request for new copies of a title.
type Order struct {
	// LocalID is assigned at local creation and never reused.
	LocalID string

	// RemoteID is empty until the server accepts the order, then set exactly once.
	RemoteID string

	// UserID is the owning user.
	UserID string

	// BookID identifies the title to acquire.
	BookID string

	// Quantity is the number of copies requested, at least 1.
	Quantity int

	Status OrderStatus

	// MarkedForDeletion flags the record for the two-step delete path.
	MarkedForDeletion bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Key returns the stable local identity.
func (o *Order) Key() string { return o.LocalID }

// RemoteKey returns the server identity, empty while unsent.
func (o *Order) RemoteKey() string { return o.RemoteID }

// Unsent reports whether the record has never been accepted by the server.
func (o *Order) Unsent() bool { return o.RemoteID == "" }
