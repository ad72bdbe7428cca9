package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an assignment-policy repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetOverride(ctx context.Context, programKey string) (string, error) {
	var managerID string
	err := r.db.QueryRowContext(ctx,
		"SELECT manager_user_id FROM manager_overrides WHERE program_key = $1", programKey).
		Scan(&managerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return managerID, nil
}

func (r *PostgresRepository) GetDepartmentDefaults(ctx context.Context, departmentID string) ([]string, error) {
	var raw []byte
	err := r.db.QueryRowContext(ctx,
		"SELECT manager_user_ids FROM department_defaults WHERE department_id = $1", departmentID).
		Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *PostgresRepository) SetOverride(ctx context.Context, programKey, managerUserID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO manager_overrides (program_key, manager_user_id)
		VALUES ($1, $2)
		ON CONFLICT (program_key) DO UPDATE SET manager_user_id = EXCLUDED.manager_user_id`,
		programKey, managerUserID)
	return err
}

func (r *PostgresRepository) SetDepartmentDefaults(ctx context.Context, departmentID string, managerUserIDs []string) error {
	raw, err := json.Marshal(managerUserIDs)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO department_defaults (department_id, manager_user_ids, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (department_id) DO UPDATE SET manager_user_ids = EXCLUDED.manager_user_ids, updated_at = now()`,
		departmentID, raw)
	return err
}
