package sync

import (
	"errors"
	"strings"

	"github.com/avanags/libris/internal/client/api"
	"github.com/avanags/libris/internal/common"
)

// classifyRule maps an HTTP status plus a lower-cased response body to an
// ErrorKind. Rules are evaluated in order; the first match wins.
type classifyRule struct {
	kind  ErrorKind
	match func(code int, body string) bool
}

func containsAny(body string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(body, n) {
			return true
		}
	}
	return false
}

var classifyRules = []classifyRule{
	{
		kind: KindAuthRequired,
		match: func(code int, _ string) bool {
			return code == 401 || code == 403
		},
	},
	{
		kind: KindDuplicateActiveRecord,
		match: func(code int, body string) bool {
			return code == 400 && containsAny(body, "active", "exists")
		},
	},
	{
		kind: KindInsufficientResource,
		match: func(code int, body string) bool {
			if code == 409 {
				return true
			}
			return code == 400 && containsAny(body, "insufficient", "quantity", "stock", "copies")
		},
	},
	{
		kind:  KindServerFailure,
		match: func(int, string) bool { return true },
	},
}

// Classify maps a sync failure onto the closed ErrorKind set. Transport
// failures and other non-HTTP errors are treated as network failures so the
// record survives for a retry.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	if errors.Is(err, common.ErrorUnauthorized) ||
		errors.Is(err, common.ErrRefreshTokenExpired) ||
		errors.Is(err, common.ErrNoSession) {
		return KindAuthRequired
	}
	se, ok := api.AsStatus(err)
	if !ok {
		return KindNetworkFailure
	}
	body := strings.ToLower(se.Body)
	for _, r := range classifyRules {
		if r.match(se.Code, body) {
			return r.kind
		}
	}
	return KindServerFailure
}
