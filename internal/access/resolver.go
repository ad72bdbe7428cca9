// Package access computes per-actor invoice visibility. The resolver is pure
// and fail-closed: it performs no I/O, and any rule whose dependent data is
// missing resolves to no access rather than guessing.
package access

import (
	"strings"

	actordomain "apflow/internal/actor/domain"
	invoicedomain "apflow/internal/invoice/domain"
	workflowdomain "apflow/internal/workflow/domain"
)

// Resolver evaluates the ordered visibility rules. operationsRoom is the
// allowlist of actor IDs enrolled in the operations room.
type Resolver struct {
	operationsRoom map[string]struct{}
}

// NewResolver returns a Resolver with the given operations-room member IDs.
func NewResolver(operationsRoomIDs []string) *Resolver {
	room := make(map[string]struct{}, len(operationsRoomIDs))
	for _, id := range operationsRoomIDs {
		if id != "" {
			room[id] = struct{}{}
		}
	}
	return &Resolver{operationsRoom: room}
}

// CanAccess reports whether actor may see the invoice. Rules are evaluated in
// order and the first match wins:
//
//  1. admin and operations see everything.
//  2. viewers see everything except "other"-category invoices, which need the
//     other_invoices entitlement.
//  3. the submitter sees their own invoice.
//  4. an actor named on a Producer: line of the description sees it.
//  5. managers see invoices assigned to them.
//  6. finance sees invoices at or past ready_for_payment.
//  7. operations-room members see everything.
//  8. otherwise no access.
func (r *Resolver) CanAccess(actor *actordomain.Actor, inv *invoicedomain.Invoice, wf *workflowdomain.Workflow) bool {
	if actor == nil || inv == nil {
		return false
	}

	switch actor.Role {
	case actordomain.RoleAdmin, actordomain.RoleOperations:
		return true
	case actordomain.RoleViewer:
		if inv.Category == invoicedomain.CategoryOther {
			return actor.HasEntitlement(actordomain.EntitlementOtherInvoices)
		}
		return true
	}

	if actor.ID != "" && actor.ID == inv.SubmitterID {
		return true
	}

	if nameMatchesProducer(actor.FullName, inv.Extracted.Description) {
		return true
	}

	if actor.Role == actordomain.RoleManager &&
		wf != nil && wf.ManagerUserID != "" && actor.ID == wf.ManagerUserID {
		return true
	}

	if actor.Role == actordomain.RoleFinance && wf != nil {
		switch wf.Status {
		case workflowdomain.StatusReadyForPayment, workflowdomain.StatusPaid, workflowdomain.StatusArchived:
			return true
		}
	}

	if _, ok := r.operationsRoom[actor.ID]; ok {
		return true
	}

	return false
}

func nameMatchesProducer(fullName, description string) bool {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return false
	}
	for _, name := range ProducerNames(description) {
		if strings.EqualFold(name, fullName) {
			return true
		}
	}
	return false
}
