package digest

import (
	"errors"
	"fmt"
	"net/http"
)

// Upstream failure kinds. The assembler treats all of them as "fact absent",
// they differ only in logs.
var (
	ErrRateLimited = errors.New("rate limited")
	ErrUpstream    = errors.New("upstream error")
	ErrMalformed   = errors.New("malformed response")
	ErrUnreachable = errors.New("upstream unreachable")
)

// FailureKind returns a short label of the upstream failure for logging.
func FailureKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrUpstream):
		return "upstream_error"
	case errors.Is(err, ErrMalformed):
		return "malformed_response"
	case errors.Is(err, ErrUnreachable):
		return "unreachable"
	default:
		return "unknown"
	}
}

func statusError(code int) error {
	if code == http.StatusTooManyRequests {
		return fmt.Errorf("%w: status %d", ErrRateLimited, code)
	}
	return fmt.Errorf("%w: status %d", ErrUpstream, code)
}
