// Package stream mirrors audit events to a Kafka topic, best-effort.
// The database row is the source of truth; the stream is a diagnostic feed
// and its failures never surface to callers.
package stream

import (
	"context"

	"apflow/internal/audit/domain"
)

// Producer emits one audit event to the stream.
type Producer interface {
	Emit(ctx context.Context, e *domain.Event) error
	Close() error
}
