package domain

import "time"

// Event types recorded by the approval core.
const (
	EventInvoiceCreated       = "invoice_created"
	EventStatusChanged        = "status_changed"
	EventBankDetailsConfirmed = "bank_details_confirmed"
	EventLoginFailure         = "login_failure"
	EventAccountLocked        = "account_locked"
	EventMFAIssued            = "mfa_code_issued"
	EventMFAVerified          = "mfa_code_verified"
	EventLoginSuccess         = "login_success"
)

// SystemActorName is substituted at read time for events with no actor.
const SystemActorName = "System"

// Event is one immutable audit record. ActorID is empty for system-originated
// events; rows are never updated or deleted.
type Event struct {
	ID         string
	SubjectID  string
	ActorID    string
	EventType  string
	FromStatus string
	ToStatus   string
	Payload    string
	CreatedAt  time.Time
}

// Filter selects events for listing. Zero values mean "no constraint".
type Filter struct {
	SubjectID string
	ActorID   string
	EventType string
	Since     time.Time
	Until     time.Time
	Limit     int32
	Offset    int32
}
