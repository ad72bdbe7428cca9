package repository

import "context"

// Repository defines persistence for manager assignment policy.
type Repository interface {
	// GetOverride returns the manager ID for a normalized program key, or ""
	// when no override exists.
	GetOverride(ctx context.Context, programKey string) (string, error)
	// GetDepartmentDefaults returns the department's ordered default-manager
	// list, empty when none is configured.
	GetDepartmentDefaults(ctx context.Context, departmentID string) ([]string, error)
	SetOverride(ctx context.Context, programKey, managerUserID string) error
	SetDepartmentDefaults(ctx context.Context, departmentID string, managerUserIDs []string) error
}
