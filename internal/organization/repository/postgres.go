package repository

import (
	"context"
	"database/sql"
	"errors"

	"compliance-portal/backend/internal/organization/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an organization repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the organization for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*domain.Org, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, contact_email, COALESCE(current_token, '') FROM organizations WHERE id = $1`, id)
	var o domain.Org
	if err := row.Scan(&o.ID, &o.Name, &o.ContactEmail, &o.CurrentToken); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

// SetCurrentToken overwrites the organization's current request-page token.
func (r *PostgresRepository) SetCurrentToken(ctx context.Context, id int64, token string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE organizations SET current_token = $2 WHERE id = $1`, id, token)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
