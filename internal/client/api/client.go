// Package api is the client's gateway to the Libris REST service. It exposes
// a narrow Client interface consumed by the session manager and the sync
// engine, plus the wire DTOs. Failures keep their HTTP status and body
// (StatusError) so callers can classify them.
package api

import (
	"context"
	"time"
)

// TokenPair is the authentication response: a fresh access/refresh pair.
// Expiry instants are optional; when absent the caller derives them from the
// access token claims or falls back to configured lifetimes.
type TokenPair struct {
	UserID           string    `json:"user_id"`
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at,omitzero"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at,omitzero"`
}

// Booking is a loan reservation as the server reports it.
type Booking struct {
	ID        string    `json:"id"`
	BookID    string    `json:"book_id"`
	BookTitle string    `json:"book_title"`
	Issued    bool      `json:"issued"`
	Returned  bool      `json:"returned"`
	CreatedAt time.Time `json:"created_at"`
}

// Key returns the server-side identity.
func (b Booking) Key() string { return b.ID }

// Order is an acquisition order as the server reports it.
type Order struct {
	ID        string    `json:"id"`
	BookID    string    `json:"book_id"`
	Quantity  int       `json:"quantity"`
	Confirmed bool      `json:"confirmed"`
	CreatedAt time.Time `json:"created_at"`
}

// Key returns the server-side identity.
func (o Order) Key() string { return o.ID }

// BookingRequest is the create payload for a booking.
type BookingRequest struct {
	BookID string `json:"book_id"`
}

// OrderRequest is the create payload for an order.
type OrderRequest struct {
	BookID   string `json:"book_id"`
	Quantity int    `json:"quantity"`
}

// Client is the remote gateway consumed by the rest of the client.
//
// Every call that talks to the server takes a bearer token explicitly; the
// gateway itself holds no credential state. Non-2xx responses are returned as
// *StatusError; transport failures wrap common.ErrUnavailable.
type Client interface {
	Close() error

	Register(ctx context.Context, login, password string) error
	Login(ctx context.Context, login, password string) (*TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, token string) error
	Ping(ctx context.Context) error

	Bookings(ctx context.Context, token string) ([]Booking, error)
	CreateBooking(ctx context.Context, token string, req BookingRequest) (*Booking, error)
	DeleteBooking(ctx context.Context, token, id string) error

	Orders(ctx context.Context, token string) ([]Order, error)
	CreateOrder(ctx context.Context, token string, req OrderRequest) (*Order, error)
	DeleteOrder(ctx context.Context, token, id string) error
}
