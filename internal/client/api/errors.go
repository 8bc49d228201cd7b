package api

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError is a non-2xx response from the server, kept with its raw body
// so protocol-level code can classify it.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Body)
}

// AsStatus extracts a StatusError from err, if any.
func AsStatus(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsUnauthorized reports whether err is an HTTP 401/403 response.
func IsUnauthorized(err error) bool {
	se, ok := AsStatus(err)
	return ok && (se.Code == http.StatusUnauthorized || se.Code == http.StatusForbidden)
}
