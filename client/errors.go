package client

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for registry operations.
var (
	// ErrUnauthorized is returned when the registry rejects the request
	// with 401 or 403.
	ErrUnauthorized = errors.New("client: unauthorized")

	// ErrNotFound is returned when the repository, tag, or digest does
	// not exist.
	ErrNotFound = errors.New("client: not found")

	// ErrRateLimited is returned when the registry responds with 429.
	// Match with errors.Is; the concrete error is a *RateLimitError
	// carrying the server's retry hint.
	ErrRateLimited = errors.New("client: rate limited")

	// ErrTransport is returned for connection failures, timeouts, and
	// 5xx responses.
	ErrTransport = errors.New("client: transport")

	// ErrProtocol is returned when the registry responds in a way the
	// client cannot interpret: malformed bodies, unexpected status
	// codes, or a digest header that does not match the content.
	ErrProtocol = errors.New("client: protocol")
)

// RateLimitError reports a 429 response. RetryAfter is the server's
// hint from the Retry-After header, or zero when absent.
type RateLimitError struct {
	RetryAfter time.Duration
	URL        string
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("client: rate limited (retry after %s): %s", e.RetryAfter, e.URL)
	}
	return "client: rate limited: " + e.URL
}

// Is reports ErrRateLimited so callers can match with errors.Is.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}
