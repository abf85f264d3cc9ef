package repository

import (
	"context"

	"compliance-portal/backend/internal/identity/domain"
)

// Repository defines persistence for staff users.
type Repository interface {
	Create(ctx context.Context, u *domain.User) error
	// GetByUsername returns the user or nil if not found.
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	// GetByID returns the user or nil if not found.
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}
