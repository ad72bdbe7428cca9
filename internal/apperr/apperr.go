// Package apperr defines the shared error taxonomy for the approval core.
// Services return these sentinels (optionally wrapped); the HTTP layer maps
// them to status codes. Audit and notifier failures are never part of this
// taxonomy: they are logged and swallowed at the call site.
package apperr

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrForbidden is returned when the actor is known but not allowed to
	// perform the mutation.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidTransition is returned when the requested status change is not
	// an edge of the workflow transition table.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrVersionConflict is returned when a guarded write loses the optimistic
	// concurrency race. Callers should reload and retry.
	ErrVersionConflict = errors.New("record changed, please refresh")
	// ErrNotFound is returned for missing records and for unauthorized reads,
	// so existence is not leaked.
	ErrNotFound = errors.New("not found")
	// ErrRateLimited is returned when a cooldown or rate counter rejects the
	// call. Use RateLimited to attach a retry-after hint.
	ErrRateLimited = errors.New("rate limited")
	// ErrUpstreamFailure is returned when a dependency (datastore, policy
	// engine) fails in a way the caller cannot act on.
	ErrUpstreamFailure = errors.New("upstream failure")
)

// RateLimitedError wraps ErrRateLimited with a retry-after hint.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }

// RateLimited returns an ErrRateLimited carrying the given retry-after hint.
func RateLimited(retryAfter time.Duration) error {
	return &RateLimitedError{RetryAfter: retryAfter}
}

// RetryAfter returns the retry-after hint from err if it is a rate-limit
// error, or zero.
func RetryAfter(err error) time.Duration {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl.RetryAfter
	}
	return 0
}
