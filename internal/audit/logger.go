package audit

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"apflow/internal/audit/domain"
	auditrepo "apflow/internal/audit/repository"
	"apflow/internal/audit/stream"
)

// Logger appends a single audit event per state-changing action.
// Append is best-effort: failures are logged and do not affect the caller,
// so a committed status change is never reverted over a missing audit row.
type Logger interface {
	Append(ctx context.Context, subjectID, actorID, eventType, fromStatus, toStatus, payload string)
}

// Writer implements Logger using the audit repository and an optional
// Kafka mirror of every event.
type Writer struct {
	repo   auditrepo.Repository
	stream stream.Producer
}

// NewWriter returns a Logger that persists to repo. producer may be nil;
// then events are not mirrored to the stream.
func NewWriter(repo auditrepo.Repository, producer stream.Producer) *Writer {
	return &Writer{repo: repo, stream: producer}
}

// Append writes one audit event. Best-effort: errors are logged and not returned.
// actorID may be empty for system-originated events.
func (w *Writer) Append(ctx context.Context, subjectID, actorID, eventType, fromStatus, toStatus, payload string) {
	if w == nil || w.repo == nil {
		return
	}
	e := &domain.Event{
		ID:         uuid.New().String(),
		SubjectID:  subjectID,
		ActorID:    actorID,
		EventType:  eventType,
		FromStatus: fromStatus,
		ToStatus:   toStatus,
		Payload:    payload,
		CreatedAt:  time.Now().UTC(),
	}
	if err := w.repo.Create(ctx, e); err != nil {
		log.Printf("audit: failed to append event %s for %s: %v", eventType, subjectID, err)
	}
	stream.EmitAsync(w.stream, e)
}
