package domain

import "time"

// Status is the closed set of approval workflow states.
type Status string

const (
	StatusSubmitted         Status = "submitted"
	StatusPendingManager    Status = "pending_manager"
	StatusApprovedByManager Status = "approved_by_manager"
	StatusPendingAdmin      Status = "pending_admin"
	StatusReadyForPayment   Status = "ready_for_payment"
	StatusPaid              Status = "paid"
	StatusArchived          Status = "archived"
	StatusRejected          Status = "rejected"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusSubmitted, StatusPendingManager, StatusApprovedByManager,
		StatusPendingAdmin, StatusReadyForPayment, StatusPaid,
		StatusArchived, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return len(Transitions[s]) == 0
}

// Workflow is the mutable approval-state record attached one-to-one to an
// invoice. Version increases by exactly 1 per successful write; every
// mutation goes through the conditional-write guard.
type Workflow struct {
	InvoiceID            string
	Status               Status
	Version              int64
	ManagerUserID        string
	RejectionReason      string
	BankDetailsConfirmed bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}
