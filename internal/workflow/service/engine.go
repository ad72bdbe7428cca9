// Package service implements the invoice approval lifecycle. Every mutation
// runs through the version-guarded repository write; audit and notification
// follow the state commit and never revert it.
package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"apflow/internal/access"
	actordomain "apflow/internal/actor/domain"
	"apflow/internal/apperr"
	"apflow/internal/assignment"
	"apflow/internal/audit"
	auditdomain "apflow/internal/audit/domain"
	invoicedomain "apflow/internal/invoice/domain"
	"apflow/internal/notify"
	"apflow/internal/workflow/domain"
	workflowrepo "apflow/internal/workflow/repository"
)

// ProfileGetter is the slice of the profile repository the engine needs to
// find notification recipients.
type ProfileGetter interface {
	GetByID(ctx context.Context, id string) (*actordomain.Profile, error)
}

// CreateInvoiceInput is the submitter-supplied invoice content.
type CreateInvoiceInput struct {
	ProgramName string
	Category    string
	Extracted   invoicedomain.ExtractedFields
}

// InvoiceView pairs an invoice with its workflow for read results.
type InvoiceView struct {
	Invoice  *invoicedomain.Invoice
	Workflow *domain.Workflow
}

// Engine drives the approval state machine.
type Engine struct {
	repo     workflowrepo.Repository
	access   *access.Resolver
	assign   *assignment.Resolver
	auditLog audit.Logger
	profiles ProfileGetter
	notifier notify.Notifier
	tracer   trace.Tracer
}

// NewEngine returns an Engine with the given dependencies. notifier may be nil.
func NewEngine(
	repo workflowrepo.Repository,
	accessResolver *access.Resolver,
	assignResolver *assignment.Resolver,
	auditLog audit.Logger,
	profiles ProfileGetter,
	notifier notify.Notifier,
) *Engine {
	return &Engine{
		repo:     repo,
		access:   accessResolver,
		assign:   assignResolver,
		auditLog: auditLog,
		profiles: profiles,
		notifier: notifier,
		tracer:   otel.Tracer("apflow/workflow"),
	}
}

// CreateInvoice persists a new invoice with its workflow in status submitted,
// resolving the approving manager from assignment policy. The manager may be
// empty when no policy rule yields one; the submitted -> pending_manager
// transition then stays blocked until one is assigned.
func (e *Engine) CreateInvoice(ctx context.Context, actor *actordomain.Actor, in CreateInvoiceInput) (*InvoiceView, error) {
	ctx, span := e.tracer.Start(ctx, "workflow.CreateInvoice")
	defer span.End()

	if actor == nil || actor.ID == "" {
		return nil, apperr.ErrForbidden
	}

	now := time.Now().UTC()
	inv := &invoicedomain.Invoice{
		ID:           uuid.New().String(),
		SubmitterID:  actor.ID,
		DepartmentID: actor.DepartmentID,
		ProgramName:  in.ProgramName,
		Category:     in.Category,
		Extracted:    in.Extracted,
		CreatedAt:    now,
	}
	if err := inv.Validate(); err != nil {
		return nil, err
	}

	managerID, err := e.assign.Resolve(ctx, inv.DepartmentID, inv.ProgramName)
	if err != nil {
		return nil, err
	}

	wf := &domain.Workflow{
		InvoiceID:     inv.ID,
		Status:        domain.StatusSubmitted,
		Version:       1,
		ManagerUserID: managerID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := e.repo.CreateInvoiceWithWorkflow(ctx, inv, wf); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("invoice.id", inv.ID))

	e.auditLog.Append(ctx, inv.ID, actor.ID, auditdomain.EventInvoiceCreated, "",
		string(domain.StatusSubmitted), createPayload(inv))
	return &InvoiceView{Invoice: inv, Workflow: wf}, nil
}

// Get returns the invoice and workflow visible to the actor. Denied reads
// come back as not found, so existence is not leaked.
func (e *Engine) Get(ctx context.Context, actor *actordomain.Actor, invoiceID string) (*InvoiceView, error) {
	inv, err := e.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, apperr.ErrNotFound
	}
	wf, err := e.repo.GetWorkflow(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if !e.access.CanAccess(actor, inv, wf) {
		return nil, apperr.ErrNotFound
	}
	return &InvoiceView{Invoice: inv, Workflow: wf}, nil
}

// Transition moves the workflow from its current status to `to` on behalf of
// the actor, guarded by the caller-supplied version. On success it emits
// exactly one status_changed audit event and notifies the submitter
// asynchronously.
func (e *Engine) Transition(ctx context.Context, actor *actordomain.Actor, invoiceID string, to domain.Status, version int64, reason string) (*domain.Workflow, error) {
	ctx, span := e.tracer.Start(ctx, "workflow.Transition",
		trace.WithAttributes(
			attribute.String("invoice.id", invoiceID),
			attribute.String("workflow.to", string(to)),
		))
	defer span.End()

	inv, wf, err := e.loadForMutation(ctx, actor, invoiceID)
	if err != nil {
		return nil, err
	}

	rule, ok := domain.FindRule(wf.Status, to)
	if !ok {
		return nil, apperr.ErrInvalidTransition
	}
	if err := checkRule(rule, actor, inv, wf, reason); err != nil {
		return nil, err
	}

	from := wf.Status
	updated, err := e.repo.UpdateStatusWithVersion(ctx, invoiceID, version, to, reason)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, apperr.ErrVersionConflict
	}
	wf.Status = to
	wf.Version = version + 1
	wf.RejectionReason = reason
	wf.UpdatedAt = time.Now().UTC()

	e.auditLog.Append(ctx, invoiceID, actor.ID, auditdomain.EventStatusChanged,
		string(from), string(to), transitionPayload(reason))
	if to == domain.StatusPendingManager && wf.ManagerUserID != "" {
		e.notifyActor(wf.ManagerUserID, notify.KindStatusChanged, map[string]string{
			"message": "invoice " + inv.ID + " is awaiting your approval",
		})
	}
	e.notifyActor(inv.SubmitterID, notify.KindStatusChanged, map[string]string{
		"message": "invoice " + inv.ID + " moved to " + string(to),
	})
	return wf, nil
}

// ConfirmBankDetails marks the extracted bank details as verified. Permitted
// only while the workflow is pending_manager and only by the assigned
// manager; status is unchanged but the write is still version-guarded.
func (e *Engine) ConfirmBankDetails(ctx context.Context, actor *actordomain.Actor, invoiceID string, version int64) (*domain.Workflow, error) {
	_, wf, err := e.loadForMutation(ctx, actor, invoiceID)
	if err != nil {
		return nil, err
	}
	if wf.Status != domain.StatusPendingManager {
		return nil, apperr.ErrInvalidTransition
	}
	if actor.Role != actordomain.RoleManager || actor.ID != wf.ManagerUserID {
		return nil, apperr.ErrForbidden
	}

	updated, err := e.repo.ConfirmBankDetailsWithVersion(ctx, invoiceID, version)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, apperr.ErrVersionConflict
	}
	wf.BankDetailsConfirmed = true
	wf.Version = version + 1
	wf.UpdatedAt = time.Now().UTC()

	e.auditLog.Append(ctx, invoiceID, actor.ID, auditdomain.EventBankDetailsConfirmed,
		string(wf.Status), string(wf.Status), "")
	return wf, nil
}

// ReassignManager sets a new approving manager, admin and operations only.
func (e *Engine) ReassignManager(ctx context.Context, actor *actordomain.Actor, invoiceID string, version int64, managerUserID string) (*domain.Workflow, error) {
	_, wf, err := e.loadForMutation(ctx, actor, invoiceID)
	if err != nil {
		return nil, err
	}
	if actor.Role != actordomain.RoleAdmin && actor.Role != actordomain.RoleOperations {
		return nil, apperr.ErrForbidden
	}
	if wf.Status.Terminal() {
		return nil, apperr.ErrInvalidTransition
	}

	updated, err := e.repo.UpdateManagerWithVersion(ctx, invoiceID, version, managerUserID)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, apperr.ErrVersionConflict
	}
	wf.ManagerUserID = managerUserID
	wf.Version = version + 1
	wf.UpdatedAt = time.Now().UTC()
	return wf, nil
}

// loadForMutation fetches the invoice and workflow for a guarded write.
// Authority over mutations comes from the transition rules, not the
// visibility resolver, so a denied mutation reads as forbidden rather than
// not found.
func (e *Engine) loadForMutation(ctx context.Context, actor *actordomain.Actor, invoiceID string) (*invoicedomain.Invoice, *domain.Workflow, error) {
	if actor == nil || actor.ID == "" {
		return nil, nil, apperr.ErrForbidden
	}
	inv, err := e.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, nil, err
	}
	if inv == nil {
		return nil, nil, apperr.ErrNotFound
	}
	wf, err := e.repo.GetWorkflow(ctx, invoiceID)
	if err != nil {
		return nil, nil, err
	}
	if wf == nil {
		return nil, nil, apperr.ErrUpstreamFailure
	}
	return inv, wf, nil
}

func checkRule(rule domain.Rule, actor *actordomain.Actor, inv *invoicedomain.Invoice, wf *domain.Workflow, reason string) error {
	allowed := rule.RoleAllowed(actor.Role)
	if !allowed && rule.SubmitterAllowed && actor.ID == inv.SubmitterID {
		allowed = true
	}
	if !allowed {
		return apperr.ErrForbidden
	}
	if rule.ManagerMustMatch && actor.Role == actordomain.RoleManager && actor.ID != wf.ManagerUserID {
		return apperr.ErrForbidden
	}
	if rule.RequireManagerAssigned && wf.ManagerUserID == "" {
		return apperr.ErrInvalidTransition
	}
	if rule.RequireReason && reason == "" {
		return apperr.ErrInvalidTransition
	}
	return nil
}

func (e *Engine) notifyActor(actorID string, kind string, data map[string]string) {
	if e.notifier == nil || e.profiles == nil || actorID == "" {
		return
	}
	// Recipient lookup is off the request path on purpose; a failure here
	// must not affect the committed transition.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		p, err := e.profiles.GetByID(ctx, actorID)
		if err != nil || p == nil || p.Phone == "" {
			return
		}
		notify.SendAsync(e.notifier, kind, p.Phone, data)
	}()
}

func createPayload(inv *invoicedomain.Invoice) string {
	raw, _ := json.Marshal(map[string]any{
		"program_name": inv.ProgramName,
		"category":     inv.Category,
		"vendor_name":  inv.Extracted.VendorName,
		"amount_cents": inv.Extracted.AmountCents,
	})
	return string(raw)
}

func transitionPayload(reason string) string {
	if reason == "" {
		return ""
	}
	raw, _ := json.Marshal(map[string]string{"reason": reason})
	return string(raw)
}
