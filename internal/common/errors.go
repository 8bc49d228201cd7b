// Package common defines shared constants and sentinel errors used across
// the Libris client layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Gateway-level errors.
	ErrUnavailable = errors.New("server unavailable")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")

	// ErrNoSession means no stored session exists for the device;
	// the user must log in.
	ErrNoSession = errors.New("no session")

	// ErrLoginFailed deliberately hides whether credentials were wrong or the
	// server was unreachable.
	ErrLoginFailed = errors.New("invalid credentials or network error")

	// ErrLocalDataNotAvailable means offline login data was never cached.
	ErrLocalDataNotAvailable = errors.New("local data unavailable")
)
