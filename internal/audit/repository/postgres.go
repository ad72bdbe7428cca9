package repository

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"apflow/internal/audit/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit event repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the audit event. The event must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, e *domain.Event) error {
	actor := sql.NullString{String: e.ActorID, Valid: e.ActorID != ""}
	from := sql.NullString{String: e.FromStatus, Valid: e.FromStatus != ""}
	to := sql.NullString{String: e.ToStatus, Valid: e.ToStatus != ""}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, subject_id, actor_id, event_type, from_status, to_status, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.SubjectID, actor, e.EventType, from, to, e.Payload, e.CreatedAt)
	return err
}

// List returns events matching the filter, ordered by creation time ascending.
func (r *PostgresRepository) List(ctx context.Context, f domain.Filter) ([]*domain.Event, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, cond+"$"+strconv.Itoa(len(args)))
	}
	if f.SubjectID != "" {
		add("subject_id = ", f.SubjectID)
	}
	if f.ActorID != "" {
		add("actor_id = ", f.ActorID)
	}
	if f.EventType != "" {
		add("event_type = ", f.EventType)
	}
	if !f.Since.IsZero() {
		add("created_at >= ", f.Since)
	}
	if !f.Until.IsZero() {
		add("created_at < ", f.Until)
	}

	q := "SELECT id, subject_id, actor_id, event_type, from_status, to_status, payload, created_at FROM audit_events"
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY created_at, id"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += " LIMIT $" + strconv.Itoa(len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		q += " OFFSET $" + strconv.Itoa(len(args))
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Event
	for rows.Next() {
		var (
			e               domain.Event
			actor, from, to sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.SubjectID, &actor, &e.EventType, &from, &to, &e.Payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.ActorID = actor.String
		e.FromStatus = from.String
		e.ToStatus = to.String
		out = append(out, &e)
	}
	return out, rows.Err()
}
