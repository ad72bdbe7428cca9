package domain

import (
	"errors"
	"time"
)

// Role is the closed set of actor roles recognized by the approval core.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleOperations Role = "operations"
	RoleManager    Role = "manager"
	RoleFinance    Role = "finance"
	RoleViewer     Role = "viewer"
	RoleSubmitter  Role = "submitter"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleOperations, RoleManager, RoleFinance, RoleViewer, RoleSubmitter:
		return true
	}
	return false
}

// EntitlementOtherInvoices lets viewer-role actors see invoices in the "other" category.
const EntitlementOtherInvoices = "other_invoices"

// Actor is the authenticated caller as supplied by the identity layer.
// The approval core treats it as already verified.
type Actor struct {
	ID           string
	Role         Role
	FullName     string
	DepartmentID string
	ProgramIDs   []string
	AllowedPages []string
}

// HasEntitlement reports whether the actor's allowed pages include the given entitlement.
func (a *Actor) HasEntitlement(name string) bool {
	if a == nil {
		return false
	}
	for _, p := range a.AllowedPages {
		if p == name {
			return true
		}
	}
	return false
}

// Profile is the persisted account record behind an Actor.
type Profile struct {
	ID           string
	Email        string
	FullName     string
	Role         Role
	DepartmentID string
	ProgramIDs   []string
	AllowedPages []string
	Phone        string
	PasswordHash string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Validate validates the profile for persistence.
func (p *Profile) Validate() error {
	if p.Email == "" {
		return errors.New("email is required")
	}
	if !p.Role.Valid() {
		return errors.New("unknown role")
	}
	return nil
}

// Actor returns the request-scoped actor view of the profile.
func (p *Profile) Actor() *Actor {
	return &Actor{
		ID:           p.ID,
		Role:         p.Role,
		FullName:     p.FullName,
		DepartmentID: p.DepartmentID,
		ProgramIDs:   p.ProgramIDs,
		AllowedPages: p.AllowedPages,
	}
}
