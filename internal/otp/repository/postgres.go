package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"compliance-portal/backend/internal/otp/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an OTP challenge repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the OTP challenge. The challenge must have Token set.
func (r *PostgresRepository) Create(ctx context.Context, c *domain.Challenge) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO otp_challenges (token, email, organization_id, code_hash, issued_at, expires_at, attempt_count, superseded)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.Token, c.Email, c.OrgID, c.CodeHash, c.IssuedAt, c.ExpiresAt, c.AttemptCount, c.Superseded)
	return err
}

// GetByToken returns the challenge for token, or nil if not found.
func (r *PostgresRepository) GetByToken(ctx context.Context, token string) (*domain.Challenge, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT token, email, organization_id, code_hash, issued_at, expires_at, consumed_at, attempt_count, superseded
		 FROM otp_challenges WHERE token = $1`, token)
	return scanChallenge(row)
}

// LatestByTarget returns the most recently issued challenge for (email, orgID), or nil.
func (r *PostgresRepository) LatestByTarget(ctx context.Context, email string, orgID *int64) (*domain.Challenge, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT token, email, organization_id, code_hash, issued_at, expires_at, consumed_at, attempt_count, superseded
		 FROM otp_challenges
		 WHERE email = $1 AND organization_id IS NOT DISTINCT FROM $2
		 ORDER BY issued_at DESC LIMIT 1`, email, orgID)
	return scanChallenge(row)
}

// SupersedeUnconsumed marks all unconsumed challenges for the target superseded.
func (r *PostgresRepository) SupersedeUnconsumed(ctx context.Context, email string, orgID *int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE otp_challenges SET superseded = TRUE
		 WHERE email = $1 AND organization_id IS NOT DISTINCT FROM $2 AND consumed_at IS NULL`,
		email, orgID)
	return err
}

// IncrementAttempts bumps attempt_count for an unconsumed challenge and returns the new count.
func (r *PostgresRepository) IncrementAttempts(ctx context.Context, token string) (int, bool, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE otp_challenges SET attempt_count = attempt_count + 1
		 WHERE token = $1 AND consumed_at IS NULL
		 RETURNING attempt_count`, token)
	var count int
	if err := row.Scan(&count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return count, true, nil
}

// Consume sets consumed_at once. The conditional WHERE makes two concurrent
// verifies for the same challenge resolve to a single winner.
func (r *PostgresRepository) Consume(ctx context.Context, token string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE otp_challenges SET consumed_at = $2
		 WHERE token = $1 AND consumed_at IS NULL`, token, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// DeleteExpired removes challenges whose expiry is before the given time.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM otp_challenges WHERE expires_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChallenge(row rowScanner) (*domain.Challenge, error) {
	var c domain.Challenge
	var orgID sql.NullInt64
	var consumedAt sql.NullTime
	err := row.Scan(&c.Token, &c.Email, &orgID, &c.CodeHash, &c.IssuedAt, &c.ExpiresAt, &consumedAt, &c.AttemptCount, &c.Superseded)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if orgID.Valid {
		v := orgID.Int64
		c.OrgID = &v
	}
	if consumedAt.Valid {
		t := consumedAt.Time
		c.ConsumedAt = &t
	}
	return &c, nil
}
