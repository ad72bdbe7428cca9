package repository

import (
	"context"
	"time"
)

// Repository defines persistence for login lockout counters and MFA codes.
//
// CheckLock and RecordFailure must each be a single server-side statement.
// Concurrent login attempts against one account race on these calls; a
// client-composed read-modify-write would let two near-simultaneous failures
// both observe the pre-increment count and miss the lock threshold.
type Repository interface {
	// CheckLock reports whether identity is currently locked and until when.
	// An expired lock is cleared as part of the same call.
	CheckLock(ctx context.Context, identity string) (locked bool, lockedUntil time.Time, err error)
	// RecordFailure increments the failure counter. Crossing maxAttempts sets
	// locked_until = now + lockout and resets the counter; justLocked is true
	// only on that exact transition.
	RecordFailure(ctx context.Context, identity string, maxAttempts int, lockout time.Duration) (justLocked bool, err error)
	// ClearFailures removes all failure state for identity.
	ClearFailures(ctx context.Context, identity string) error

	// ReplaceCode stores the hashed OTP for the actor, displacing any prior
	// code so at most one is active.
	ReplaceCode(ctx context.Context, actorID, codeHash string, expiresAt time.Time) error
	// ConsumeCode deletes and returns the actor's stored code in one
	// statement; ok is false when no code was stored. Verification is
	// one-shot regardless of match outcome.
	ConsumeCode(ctx context.Context, actorID string) (codeHash string, expiresAt time.Time, ok bool, err error)
}
