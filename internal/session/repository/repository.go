package repository

import (
	"context"
	"time"

	"compliance-portal/backend/internal/session/domain"
)

// Repository defines persistence for verified submitter sessions. Sessions
// live in the database so any instance can honor a session minted by another.
type Repository interface {
	Create(ctx context.Context, s *domain.VerifiedSession) error
	GetByToken(ctx context.Context, token string) (*domain.VerifiedSession, error)
	// DeleteExpired removes sessions past expiry. Lazy GC on mint.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
