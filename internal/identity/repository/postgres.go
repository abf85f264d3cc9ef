package repository

import (
	"context"
	"database/sql"
	"errors"

	"compliance-portal/backend/internal/identity/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a staff user repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the user and fills in its generated ID.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	return r.db.QueryRowContext(ctx,
		`INSERT INTO users (username, password_hash, first_name, last_name, email, role, organization_id, is_active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		u.Username, u.PasswordHash, u.FirstName, u.LastName, u.Email,
		u.Role, u.OrganizationID, u.IsActive, u.CreatedAt).Scan(&u.ID)
}

// GetByUsername returns the user for username, or nil if not found.
func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, selectUser+` WHERE username = $1`, username)
	return scanUser(row)
}

// GetByID returns the user for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, selectUser+` WHERE id = $1`, id)
	return scanUser(row)
}

const selectUser = `SELECT id, username, password_hash, first_name, last_name, email, role, organization_id, is_active, created_at
	 FROM users`

func scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Email,
		&u.Role, &u.OrganizationID, &u.IsActive, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}
