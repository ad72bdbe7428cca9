package repository

import (
	"context"

	"apflow/internal/actor/domain"
)

// Repository defines persistence for actor profiles.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Profile, error)
	GetByEmail(ctx context.Context, email string) (*domain.Profile, error)
	Create(ctx context.Context, p *domain.Profile) error
	// DisplayNames maps actor IDs to full names; missing IDs are absent from the result.
	DisplayNames(ctx context.Context, ids []string) (map[string]string, error)
	// ListActiveManagers returns active manager-role profiles ordered by creation time.
	ListActiveManagers(ctx context.Context) ([]*domain.Profile, error)
}
