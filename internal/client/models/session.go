// Package models defines client-side data models used by the Libris client.
package models

import (
	"errors"
	"time"
)

// ErrSessionInvariant means a session was produced whose access token
// outlives its refresh token.
var ErrSessionInvariant = errors.New("access token must expire before refresh token")

// Session is the current user's credential pair and its expiry instants.
// A session is created on login, replaced wholesale on refresh (never
// partially mutated), and destroyed on logout.
type Session struct {
	// UserID is the id of the user that owns the session.
	UserID string

	// AccessToken is the short-lived bearer token sent with every API call.
	AccessToken string

	// RefreshToken is the long-lived token used to obtain a new pair.
	RefreshToken string

	// AccessExpiresAt is the instant the access token stops being usable.
	AccessExpiresAt time.Time

	// RefreshExpiresAt is the instant after which only a full re-login helps.
	RefreshExpiresAt time.Time

	// CreatedAt is when this pair was issued, in UTC.
	CreatedAt time.Time
}

// Validate enforces the session invariant: access lifetime strictly shorter
// than refresh lifetime.
func (s *Session) Validate() error {
	if !s.AccessExpiresAt.Before(s.RefreshExpiresAt) {
		return ErrSessionInvariant
	}
	return nil
}

// AccessRemaining returns how much access-token life is left at now.
func (s *Session) AccessRemaining(now time.Time) time.Duration {
	return s.AccessExpiresAt.Sub(now)
}

// RefreshRemaining returns how much refresh-token life is left at now.
func (s *Session) RefreshRemaining(now time.Time) time.Duration {
	return s.RefreshExpiresAt.Sub(now)
}
