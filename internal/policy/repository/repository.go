package repository

import (
	"context"

	"apflow/internal/policy/domain"
)

// Repository defines persistence for login policies.
type Repository interface {
	GetEnabledByDepartment(ctx context.Context, departmentID string) ([]*domain.Policy, error)
	Create(ctx context.Context, p *domain.Policy) error
}
