package repository

import (
	"context"

	"compliance-portal/backend/internal/organization/domain"
)

// Repository defines read access to the organization directory and write
// access to the current request-page token only.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*domain.Org, error)
	// SetCurrentToken overwrites the organization's request-page token.
	// The previous token becomes permanently unresolvable.
	SetCurrentToken(ctx context.Context, id int64, token string) error
}
