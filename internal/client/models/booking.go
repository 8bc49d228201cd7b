package models

import (
	"fmt"
	"time"
)

// BookingStatus is the finite status domain of a loan booking.
type BookingStatus string

const (
	// BookingStatusPending means created locally, not yet accepted by the server.
	BookingStatusPending BookingStatus = "PENDING"
	// BookingStatusConfirmed means the server accepted the booking.
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	// BookingStatusIssued means the book was handed out to the reader.
	BookingStatusIssued BookingStatus = "ISSUED"
	// BookingStatusReturned is terminal.
	BookingStatusReturned BookingStatus = "RETURNED"
)

// BookingEvent drives booking status transitions.
type BookingEvent string

const (
	BookingEventConfirm BookingEvent = "confirm"
	BookingEventIssue   BookingEvent = "issue"
	BookingEventReturn  BookingEvent = "return"
)

// NextBookingStatus is the single transition function for the booking family.
// Illegal transitions return an error instead of silently mutating state.
func NextBookingStatus(cur BookingStatus, ev BookingEvent) (BookingStatus, error) {
	switch {
	case cur == BookingStatusPending && ev == BookingEventConfirm:
		return BookingStatusConfirmed, nil
	case cur == BookingStatusConfirmed && ev == BookingEventIssue:
		return BookingStatusIssued, nil
	case cur == BookingStatusIssued && ev == BookingEventReturn:
		return BookingStatusReturned, nil
	}
	return cur, fmt.Errorf("booking: illegal transition %s on %s", ev, cur)
}

// Booking is a locally persisted loan reservation for a single book copy.
type Booking struct {
	// LocalID is assigned at local creation and never reused.
	LocalID string

	// RemoteID is empty until the server accepts the booking, then set exactly once.
	RemoteID string

	// UserID is the owning user.
	UserID string

	// BookID identifies the requested title on the server.
	BookID string

	// BookTitle is denormalized for list rendering while offline.
	BookTitle string

	Status BookingStatus

	// MarkedForDeletion flags the record for the two-step delete path.
	MarkedForDeletion bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Key returns the stable local identity.
func (b *Booking) Key() string { return b.LocalID }

// RemoteKey returns the server identity, empty while unsent.
func (b *Booking) RemoteKey() string { return b.RemoteID }

// Unsent reports whether the record has never been accepted by the server.
func (b *Booking) Unsent() bool { return b.RemoteID == "" }
