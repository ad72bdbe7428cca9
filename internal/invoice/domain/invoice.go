package domain

import (
	"errors"
	"time"
)

// CategoryOther marks invoices outside the standard expense categories.
// Viewer-role access to these requires the other_invoices entitlement.
const CategoryOther = "other"

// Invoice is an accounts-payable invoice. Approval state lives on the
// one-to-one Workflow record, not here.
type Invoice struct {
	ID           string
	SubmitterID  string
	DepartmentID string
	ProgramName  string
	Category     string
	Extracted    ExtractedFields
	CreatedAt    time.Time
}

// ExtractedFields holds the fields lifted from the uploaded document.
// Description is free text; the legacy producer-access rule scans it.
type ExtractedFields struct {
	VendorName  string
	AmountCents int64
	Description string
	BankAccount string
	BankBranch  string
}

// Validate validates the invoice for persistence.
func (i *Invoice) Validate() error {
	if i.SubmitterID == "" {
		return errors.New("submitter is required")
	}
	if i.Extracted.AmountCents < 0 {
		return errors.New("amount must not be negative")
	}
	return nil
}
