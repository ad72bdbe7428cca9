// Package notify delivers outbound notifications. Sends are diagnostic only:
// callers fire them asynchronously and never gate a business-state commit on
// the result.
package notify

import (
	"context"
	"log"
	"time"
)

// Notification kinds emitted by the approval core.
const (
	KindStatusChanged  = "status_changed"
	KindAccountLocked  = "account_locked"
	KindMFACode        = "mfa_code"
	KindInvoiceCreated = "invoice_created"
)

const sendTimeout = 15 * time.Second

// Notifier sends one notification of the given kind to a recipient address
// (phone number or email, per channel).
type Notifier interface {
	Send(ctx context.Context, kind, recipient string, data map[string]string) error
}

// SendAsync fires the notification on its own goroutine with a detached
// context and logs failures. n may be nil.
func SendAsync(n Notifier, kind, recipient string, data map[string]string) {
	if n == nil || recipient == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if err := n.Send(ctx, kind, recipient, data); err != nil {
			log.Printf("notify: send %s to %s failed: %v", kind, recipient, err)
		}
	}()
}

// LogNotifier writes notifications to the process log. Used in development
// and as the fallback when no SMS credentials are configured. It never logs
// code values.
type LogNotifier struct{}

func (LogNotifier) Send(_ context.Context, kind, recipient string, _ map[string]string) error {
	log.Printf("notify: [%s] -> %s", kind, recipient)
	return nil
}
