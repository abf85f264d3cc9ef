package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"compliance-portal/backend/internal/session/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a verified-session repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the verified session. The session must have Token set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.VerifiedSession) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO verified_sessions (token, email, organization_id, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		s.Token, s.Email, s.OrgID, s.CreatedAt, s.ExpiresAt)
	return err
}

// GetByToken returns the session for token, or nil if not found.
func (r *PostgresRepository) GetByToken(ctx context.Context, token string) (*domain.VerifiedSession, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT token, email, organization_id, created_at, expires_at
		 FROM verified_sessions WHERE token = $1`, token)
	var s domain.VerifiedSession
	if err := row.Scan(&s.Token, &s.Email, &s.OrgID, &s.CreatedAt, &s.ExpiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// DeleteExpired removes sessions whose expiry is before the given time.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM verified_sessions WHERE expires_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
