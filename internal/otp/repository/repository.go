package repository

import (
	"context"
	"time"

	"compliance-portal/backend/internal/otp/domain"
)

// Repository defines persistence for OTP challenges. Mutations that decide
// verification outcomes (Consume, IncrementAttempts) are conditional writes
// so concurrent verifies for the same challenge serialize at the database.
type Repository interface {
	Create(ctx context.Context, c *domain.Challenge) error
	GetByToken(ctx context.Context, token string) (*domain.Challenge, error)
	// LatestByTarget returns the most recently issued challenge for the
	// (email, orgID) pair, or nil if none. Used for request-rate cooldown.
	LatestByTarget(ctx context.Context, email string, orgID *int64) (*domain.Challenge, error)
	// SupersedeUnconsumed marks every unconsumed challenge for the target as
	// superseded, so stale codes cannot verify after a reissue.
	SupersedeUnconsumed(ctx context.Context, email string, orgID *int64) error
	// IncrementAttempts bumps the attempt counter for an unconsumed challenge
	// and returns the new count. Returns ok false if the challenge is missing
	// or already consumed.
	IncrementAttempts(ctx context.Context, token string) (count int, ok bool, err error)
	// Consume sets consumedAt if and only if the challenge is not yet
	// consumed. Returns ok false when another verify won the race.
	Consume(ctx context.Context, token string, at time.Time) (ok bool, err error)
	// DeleteExpired removes challenges past their expiry. Lazy GC, called on
	// issue; expiry itself is enforced at read time.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
