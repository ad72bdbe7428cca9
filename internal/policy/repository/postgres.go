package repository

import (
	"context"
	"database/sql"

	"apflow/internal/policy/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a policy repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetEnabledByDepartment(ctx context.Context, departmentID string) ([]*domain.Policy, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, department_id, name, rules, enabled, created_at
		FROM mfa_policies
		WHERE department_id = $1 AND enabled
		ORDER BY created_at, id`, departmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Policy
	for rows.Next() {
		var p domain.Policy
		if err := rows.Scan(&p.ID, &p.DepartmentID, &p.Name, &p.Rules, &p.Enabled, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Create(ctx context.Context, p *domain.Policy) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mfa_policies (id, department_id, name, rules, enabled, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.DepartmentID, p.Name, p.Rules, p.Enabled, p.CreatedAt)
	return err
}
