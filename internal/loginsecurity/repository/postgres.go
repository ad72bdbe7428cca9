package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a login-security repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CheckLock reads the live lock and clears an expired one in the same
// statement. The SELECT only admits locks still in the future, so the
// cleared row never reports as locked.
func (r *PostgresRepository) CheckLock(ctx context.Context, identity string) (bool, time.Time, error) {
	var lockedUntil time.Time
	err := r.db.QueryRowContext(ctx, `
		WITH cleared AS (
			UPDATE failed_login_attempts
			SET locked_until = NULL, updated_at = now()
			WHERE identity = $1 AND locked_until IS NOT NULL AND locked_until <= now()
		)
		SELECT locked_until FROM failed_login_attempts
		WHERE identity = $1 AND locked_until IS NOT NULL AND locked_until > now()`,
		identity).Scan(&lockedUntil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, time.Time{}, nil
		}
		return false, time.Time{}, err
	}
	return true, lockedUntil, nil
}

// RecordFailure is one upsert: the conflict branch bumps the counter, and the
// CASE arms flip to a fresh lock with a zeroed counter when the bump reaches
// maxAttempts. Two concurrent calls serialize on the row, so exactly one of
// them observes the crossing.
func (r *PostgresRepository) RecordFailure(ctx context.Context, identity string, maxAttempts int, lockout time.Duration) (bool, error) {
	lockoutSeconds := int64(lockout / time.Second)
	var justLocked bool
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO failed_login_attempts (identity, attempt_count, locked_until, updated_at)
		VALUES ($1,
			CASE WHEN 1 >= $2 THEN 0 ELSE 1 END,
			CASE WHEN 1 >= $2 THEN now() + make_interval(secs => $3::double precision) END,
			now())
		ON CONFLICT (identity) DO UPDATE SET
			attempt_count = CASE WHEN failed_login_attempts.attempt_count + 1 >= $2 THEN 0
				ELSE failed_login_attempts.attempt_count + 1 END,
			locked_until = CASE WHEN failed_login_attempts.attempt_count + 1 >= $2
				THEN now() + make_interval(secs => $3::double precision)
				ELSE failed_login_attempts.locked_until END,
			updated_at = now()
		RETURNING attempt_count = 0 AND locked_until IS NOT NULL AND locked_until > now()`,
		identity, maxAttempts, lockoutSeconds).Scan(&justLocked)
	if err != nil {
		return false, err
	}
	return justLocked, nil
}

func (r *PostgresRepository) ClearFailures(ctx context.Context, identity string) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM failed_login_attempts WHERE identity = $1", identity)
	return err
}

func (r *PostgresRepository) ReplaceCode(ctx context.Context, actorID, codeHash string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mfa_otp_codes (actor_id, code_hash, expires_at, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (actor_id) DO UPDATE SET
			code_hash = EXCLUDED.code_hash,
			expires_at = EXCLUDED.expires_at,
			created_at = now()`,
		actorID, codeHash, expiresAt)
	return err
}

func (r *PostgresRepository) ConsumeCode(ctx context.Context, actorID string) (string, time.Time, bool, error) {
	var (
		codeHash  string
		expiresAt time.Time
	)
	err := r.db.QueryRowContext(ctx,
		"DELETE FROM mfa_otp_codes WHERE actor_id = $1 RETURNING code_hash, expires_at",
		actorID).Scan(&codeHash, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", time.Time{}, false, nil
		}
		return "", time.Time{}, false, err
	}
	return codeHash, expiresAt, true, nil
}
