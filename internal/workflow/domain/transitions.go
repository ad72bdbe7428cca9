package domain

import actordomain "apflow/internal/actor/domain"

// Rule is one edge of the transition table: who may move a workflow from the
// keyed status to Rule.To, and under which extra conditions. The engine
// evaluates rules; this package only declares them so the whole state machine
// is visible (and testable) in one place.
type Rule struct {
	To Status
	// Roles that may perform the transition.
	Roles []actordomain.Role
	// SubmitterAllowed additionally permits the invoice's submitter,
	// whatever their role.
	SubmitterAllowed bool
	// ManagerMustMatch requires a manager-role actor to be the workflow's
	// assigned manager. It does not constrain the other allowed roles.
	ManagerMustMatch bool
	// RequireManagerAssigned blocks the transition until a manager is set.
	RequireManagerAssigned bool
	// RequireReason makes the transition reject without a non-empty reason.
	RequireReason bool
}

// RoleAllowed reports whether the role appears in the rule's role list.
func (r Rule) RoleAllowed(role actordomain.Role) bool {
	for _, allowed := range r.Roles {
		if allowed == role {
			return true
		}
	}
	return false
}

// Transitions is the full (state, role) -> next-state table. Statuses absent
// from the map (or mapped to nil) are terminal.
var Transitions = map[Status][]Rule{
	StatusSubmitted: {
		{
			To:                     StatusPendingManager,
			Roles:                  []actordomain.Role{actordomain.RoleAdmin, actordomain.RoleOperations},
			SubmitterAllowed:       true,
			RequireManagerAssigned: true,
		},
		{
			To:               StatusRejected,
			Roles:            []actordomain.Role{actordomain.RoleManager, actordomain.RoleAdmin},
			ManagerMustMatch: true,
			RequireReason:    true,
		},
	},
	StatusPendingManager: {
		{
			To:               StatusApprovedByManager,
			Roles:            []actordomain.Role{actordomain.RoleManager},
			ManagerMustMatch: true,
		},
		{
			To:               StatusRejected,
			Roles:            []actordomain.Role{actordomain.RoleManager, actordomain.RoleAdmin},
			ManagerMustMatch: true,
			RequireReason:    true,
		},
	},
	StatusApprovedByManager: {
		{
			To:    StatusPendingAdmin,
			Roles: []actordomain.Role{actordomain.RoleAdmin, actordomain.RoleOperations},
		},
		{
			To:    StatusReadyForPayment,
			Roles: []actordomain.Role{actordomain.RoleAdmin, actordomain.RoleOperations},
		},
	},
	StatusPendingAdmin: {
		{
			To:    StatusReadyForPayment,
			Roles: []actordomain.Role{actordomain.RoleAdmin, actordomain.RoleOperations},
		},
		{
			To:               StatusRejected,
			Roles:            []actordomain.Role{actordomain.RoleManager, actordomain.RoleAdmin},
			ManagerMustMatch: true,
			RequireReason:    true,
		},
	},
	StatusReadyForPayment: {
		{
			To:    StatusPaid,
			Roles: []actordomain.Role{actordomain.RoleAdmin, actordomain.RoleOperations, actordomain.RoleFinance},
		},
	},
	StatusPaid: {
		{
			To:    StatusArchived,
			Roles: []actordomain.Role{actordomain.RoleAdmin, actordomain.RoleOperations},
		},
	},
}

// FindRule returns the rule for the (from, to) edge, or ok=false when the
// edge is not in the table.
func FindRule(from, to Status) (Rule, bool) {
	for _, r := range Transitions[from] {
		if r.To == to {
			return r, true
		}
	}
	return Rule{}, false
}
