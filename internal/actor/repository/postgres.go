package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"apflow/internal/actor/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a profile repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const profileColumns = "id, email, full_name, role, department_id, program_ids, allowed_pages, phone, password_hash, active, created_at, updated_at"

// GetByID returns the profile for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+profileColumns+" FROM profiles WHERE id = $1", id)
	return scanProfile(row)
}

// GetByEmail returns the profile for email, or nil if not found.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+profileColumns+" FROM profiles WHERE email = $1", email)
	return scanProfile(row)
}

// Create persists the profile. The profile must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, p *domain.Profile) error {
	programs, err := json.Marshal(p.ProgramIDs)
	if err != nil {
		return err
	}
	pages, err := json.Marshal(p.AllowedPages)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO profiles (id, email, full_name, role, department_id, program_ids, allowed_pages, phone, password_hash, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		p.ID, p.Email, p.FullName, string(p.Role), p.DepartmentID, programs, pages,
		p.Phone, p.PasswordHash, p.Active, p.CreatedAt, p.UpdatedAt)
	return err
}

// DisplayNames maps actor IDs to full names. IDs with no profile are omitted.
func (r *PostgresRepository) DisplayNames(ctx context.Context, ids []string) (map[string]string, error) {
	if len(ids) == 0 {
		return map[string]string{}, nil
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, full_name FROM profiles
		WHERE id IN (SELECT jsonb_array_elements_text($1::jsonb))`, raw)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string, len(ids))
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		out[id] = name
	}
	return out, rows.Err()
}

// ListActiveManagers returns active manager-role profiles ordered by creation time.
func (r *PostgresRepository) ListActiveManagers(ctx context.Context) ([]*domain.Profile, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+profileColumns+" FROM profiles WHERE role = $1 AND active ORDER BY created_at, id",
		string(domain.RoleManager))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Profile
	for rows.Next() {
		p, err := scanProfileRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row *sql.Row) (*domain.Profile, error) {
	p, err := scanProfileRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

func scanProfileRow(s rowScanner) (*domain.Profile, error) {
	var (
		p               domain.Profile
		role            string
		programs, pages []byte
	)
	if err := s.Scan(&p.ID, &p.Email, &p.FullName, &role, &p.DepartmentID,
		&programs, &pages, &p.Phone, &p.PasswordHash, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Role = domain.Role(role)
	if err := json.Unmarshal(programs, &p.ProgramIDs); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(pages, &p.AllowedPages); err != nil {
		return nil, err
	}
	return &p, nil
}
