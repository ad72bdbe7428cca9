// Package cache provides the keyed-TTL store behind the MFA cooldown and
// rate counters. The memory implementation is per-process; deployments with
// more than one instance must use the Redis implementation so limits hold
// across replicas.
package cache

import (
	"context"
	"time"
)

// Cache is a small keyed-TTL store.
type Cache interface {
	// Get returns the value for key, ok false when missing or expired.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value under key for ttl.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Incr increments the counter under key and returns the new count. The
	// first increment starts the ttl window; later ones do not extend it.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// TTL returns the remaining lifetime of key, zero when absent.
	TTL(ctx context.Context, key string) (time.Duration, error)
	// Delete removes key.
	Delete(ctx context.Context, key string) error
}
