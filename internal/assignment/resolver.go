// Package assignment picks the approving manager for a new invoice.
package assignment

import (
	"context"
	"strings"

	actordomain "apflow/internal/actor/domain"
	assignmentrepo "apflow/internal/assignment/repository"
)

// ProfileLister is the slice of the profile repository the resolver needs.
type ProfileLister interface {
	ListActiveManagers(ctx context.Context) ([]*actordomain.Profile, error)
}

// Resolver maps invoice context to a manager ID. Resolution is deterministic
// for stable inputs; priority is program override, then department default,
// then the first active manager profile covering the program or department.
type Resolver struct {
	policy   assignmentrepo.Repository
	profiles ProfileLister
}

// NewResolver returns a Resolver over the given policy and profile stores.
func NewResolver(policy assignmentrepo.Repository, profiles ProfileLister) *Resolver {
	return &Resolver{policy: policy, profiles: profiles}
}

// ProgramKey normalizes a program name into the override lookup key.
func ProgramKey(programName string) string {
	return strings.ToLower(strings.Join(strings.Fields(programName), " "))
}

// Resolve returns the manager ID for the department and program, or "" when
// no rule yields one.
func (r *Resolver) Resolve(ctx context.Context, departmentID, programName string) (string, error) {
	if key := ProgramKey(programName); key != "" {
		managerID, err := r.policy.GetOverride(ctx, key)
		if err != nil {
			return "", err
		}
		if managerID != "" {
			return managerID, nil
		}
	}

	if departmentID != "" {
		defaults, err := r.policy.GetDepartmentDefaults(ctx, departmentID)
		if err != nil {
			return "", err
		}
		if len(defaults) > 0 {
			return defaults[0], nil
		}
	}

	managers, err := r.profiles.ListActiveManagers(ctx)
	if err != nil {
		return "", err
	}
	for _, m := range managers {
		if managerCovers(m, departmentID, programName) {
			return m.ID, nil
		}
	}
	return "", nil
}

func managerCovers(p *actordomain.Profile, departmentID, programName string) bool {
	if departmentID != "" && p.DepartmentID == departmentID {
		return true
	}
	key := ProgramKey(programName)
	if key == "" {
		return false
	}
	for _, prog := range p.ProgramIDs {
		if ProgramKey(prog) == key {
			return true
		}
	}
	return false
}
