package repository

import (
	"context"

	invoicedomain "apflow/internal/invoice/domain"
	"apflow/internal/workflow/domain"
)

// Repository defines persistence for invoices and their workflows.
//
// The three *WithVersion methods are the optimistic concurrency guard: each is
// a single conditional UPDATE matching invoice id and expected version and
// incrementing the version in the same statement. They return ok=false when
// the version is stale; the caller owns retry.
type Repository interface {
	CreateInvoiceWithWorkflow(ctx context.Context, inv *invoicedomain.Invoice, wf *domain.Workflow) error
	GetInvoice(ctx context.Context, id string) (*invoicedomain.Invoice, error)
	GetWorkflow(ctx context.Context, invoiceID string) (*domain.Workflow, error)
	UpdateStatusWithVersion(ctx context.Context, invoiceID string, expectedVersion int64, status domain.Status, rejectionReason string) (bool, error)
	ConfirmBankDetailsWithVersion(ctx context.Context, invoiceID string, expectedVersion int64) (bool, error)
	UpdateManagerWithVersion(ctx context.Context, invoiceID string, expectedVersion int64, managerUserID string) (bool, error)
}
