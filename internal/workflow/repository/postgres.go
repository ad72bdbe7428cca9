package repository

import (
	"context"
	"database/sql"
	"errors"

	invoicedomain "apflow/internal/invoice/domain"
	"apflow/internal/workflow/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an invoice/workflow repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateInvoiceWithWorkflow persists the invoice and its workflow in one
// transaction, so an invoice can never exist without a workflow.
func (r *PostgresRepository) CreateInvoiceWithWorkflow(ctx context.Context, inv *invoicedomain.Invoice, wf *domain.Workflow) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO invoices (id, submitter_id, department_id, program_name, category, vendor_name, amount_cents, description, bank_account, bank_branch, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		inv.ID, inv.SubmitterID, inv.DepartmentID, inv.ProgramName, inv.Category,
		inv.Extracted.VendorName, inv.Extracted.AmountCents, inv.Extracted.Description,
		inv.Extracted.BankAccount, inv.Extracted.BankBranch, inv.CreatedAt)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO workflows (invoice_id, status, version, manager_user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)`,
		wf.InvoiceID, string(wf.Status), wf.Version, wf.ManagerUserID, wf.CreatedAt)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// GetInvoice returns the invoice for id, or nil if not found.
func (r *PostgresRepository) GetInvoice(ctx context.Context, id string) (*invoicedomain.Invoice, error) {
	var inv invoicedomain.Invoice
	err := r.db.QueryRowContext(ctx, `
		SELECT id, submitter_id, department_id, program_name, category, vendor_name, amount_cents, description, bank_account, bank_branch, created_at
		FROM invoices WHERE id = $1`, id).
		Scan(&inv.ID, &inv.SubmitterID, &inv.DepartmentID, &inv.ProgramName, &inv.Category,
			&inv.Extracted.VendorName, &inv.Extracted.AmountCents, &inv.Extracted.Description,
			&inv.Extracted.BankAccount, &inv.Extracted.BankBranch, &inv.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &inv, nil
}

// GetWorkflow returns the workflow for invoiceID, or nil if not found.
func (r *PostgresRepository) GetWorkflow(ctx context.Context, invoiceID string) (*domain.Workflow, error) {
	var (
		wf     domain.Workflow
		status string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT invoice_id, status, version, manager_user_id, rejection_reason, bank_details_confirmed, created_at, updated_at
		FROM workflows WHERE invoice_id = $1`, invoiceID).
		Scan(&wf.InvoiceID, &status, &wf.Version, &wf.ManagerUserID, &wf.RejectionReason,
			&wf.BankDetailsConfirmed, &wf.CreatedAt, &wf.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	wf.Status = domain.Status(status)
	return &wf, nil
}

// UpdateStatusWithVersion moves the workflow to status iff the stored version
// equals expectedVersion, incrementing the version in the same statement.
// Returns ok=false (no error) when zero rows matched.
func (r *PostgresRepository) UpdateStatusWithVersion(ctx context.Context, invoiceID string, expectedVersion int64, status domain.Status, rejectionReason string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE workflows
		SET status = $3, rejection_reason = $4, version = version + 1, updated_at = now()
		WHERE invoice_id = $1 AND version = $2`,
		invoiceID, expectedVersion, string(status), rejectionReason)
	if err != nil {
		return false, err
	}
	return oneRow(res)
}

// ConfirmBankDetailsWithVersion sets the bank-details flag under the same
// version guard as status changes. Status is left untouched.
func (r *PostgresRepository) ConfirmBankDetailsWithVersion(ctx context.Context, invoiceID string, expectedVersion int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE workflows
		SET bank_details_confirmed = TRUE, version = version + 1, updated_at = now()
		WHERE invoice_id = $1 AND version = $2`,
		invoiceID, expectedVersion)
	if err != nil {
		return false, err
	}
	return oneRow(res)
}

// UpdateManagerWithVersion reassigns the workflow's manager under the version guard.
func (r *PostgresRepository) UpdateManagerWithVersion(ctx context.Context, invoiceID string, expectedVersion int64, managerUserID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE workflows
		SET manager_user_id = $3, version = version + 1, updated_at = now()
		WHERE invoice_id = $1 AND version = $2`,
		invoiceID, expectedVersion, managerUserID)
	if err != nil {
		return false, err
	}
	return oneRow(res)
}

func oneRow(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
