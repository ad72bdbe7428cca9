package stream

import (
	"context"
	"log"
	"time"

	"apflow/internal/audit/domain"
)

// emitTimeout is the max time allowed for a single async emit.
const emitTimeout = 5 * time.Second

// EmitAsync runs Emit in a goroutine with a short timeout so the caller is not
// blocked. producer and event may be nil; EmitAsync then returns immediately.
// The goroutine uses context.Background() so request cancellation does not
// abort an in-flight emit.
func EmitAsync(producer Producer, e *domain.Event) {
	if producer == nil || e == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		if err := producer.Emit(ctx, e); err != nil {
			log.Printf("audit stream: async emit failed: %v", err)
		}
	}()
}
