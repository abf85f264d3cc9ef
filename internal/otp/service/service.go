// Package service implements OTP challenge issue and verification.
package service

import (
	"context"
	"log"
	"strings"
	"time"

	"compliance-portal/backend/internal/fault"
	"compliance-portal/backend/internal/otp"
	"compliance-portal/backend/internal/otp/domain"
	otprepo "compliance-portal/backend/internal/otp/repository"
	"compliance-portal/backend/internal/otpecho"
)

// VerifyResult is the outcome of a single verification attempt.
type VerifyResult int

const (
	// Verified: exact code match on a live challenge; challenge is now consumed.
	Verified VerifyResult = iota
	// Invalid: code mismatch, or the challenge was superseded by a newer one.
	Invalid
	// AlreadyConsumed: the challenge verified once before; never re-validates.
	AlreadyConsumed
	// Expired: past expiresAt, regardless of code.
	Expired
	// Locked: attempt budget exhausted, regardless of code.
	Locked
)

// IssuedChallenge is handed back to the orchestrator on issue. Code is for
// side-channel delivery only and must never appear in an HTTP response.
type IssuedChallenge struct {
	Token     string
	Code      string
	ExpiresAt time.Time
}

// Service issues and verifies short-lived, single-use passcodes.
type Service struct {
	repo        otprepo.Repository
	echo        otpecho.Store // nil unless test-mode echo is enabled
	ttl         time.Duration
	maxAttempts int
	nowF        func() time.Time
}

// New returns a Service. echo may be nil; when non-nil, issued codes are also
// stored for test-mode retrieval (the caller is responsible for only passing
// a store when the explicit config flag allows it).
func New(repo otprepo.Repository, echo otpecho.Store, ttl time.Duration, maxAttempts int) *Service {
	return &Service{
		repo:        repo,
		echo:        echo,
		ttl:         ttl,
		maxAttempts: maxAttempts,
		nowF:        func() time.Time { return time.Now().UTC() },
	}
}

// RequestOTP creates a new challenge for (email, orgID). Prior unconsumed
// challenges for the same target are marked superseded so stale codes cannot
// verify. Expired challenges are garbage-collected opportunistically.
func (s *Service) RequestOTP(ctx context.Context, email string, orgID *int64) (*IssuedChallenge, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, fault.New(fault.KindNotFound, "email is required")
	}

	now := s.nowF()
	if n, err := s.repo.DeleteExpired(ctx, now); err != nil {
		log.Printf("otp: expired cleanup failed: %v", err)
	} else if n > 0 {
		log.Printf("otp: cleaned up %d expired challenges", n)
	}

	if err := s.repo.SupersedeUnconsumed(ctx, email, orgID); err != nil {
		return nil, fault.Wrap(fault.KindUnavailable, "challenge supersede failed", err)
	}

	code, err := otp.GenerateCode()
	if err != nil {
		return nil, fault.Wrap(fault.KindUnavailable, "code generation failed", err)
	}
	token, err := otp.GenerateChallengeToken()
	if err != nil {
		return nil, fault.Wrap(fault.KindUnavailable, "token generation failed", err)
	}

	c := &domain.Challenge{
		Token:     token,
		Email:     email,
		OrgID:     orgID,
		CodeHash:  otp.HashCode(code),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fault.Wrap(fault.KindUnavailable, "challenge persist failed", err)
	}

	if s.echo != nil {
		s.echo.Put(ctx, token, code, c.ExpiresAt)
	}

	return &IssuedChallenge{Token: token, Code: code, ExpiresAt: c.ExpiresAt}, nil
}

// LastIssuedAt returns when the latest challenge for (email, orgID) was
// issued, or zero time if none. The access gate uses it for the request
// cooldown.
func (s *Service) LastIssuedAt(ctx context.Context, email string, orgID *int64) (time.Time, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	c, err := s.repo.LatestByTarget(ctx, email, orgID)
	if err != nil {
		return time.Time{}, fault.Wrap(fault.KindUnavailable, "challenge lookup failed", err)
	}
	if c == nil {
		return time.Time{}, nil
	}
	return c.IssuedAt, nil
}

// Verify checks code against the challenge identified by token.
//
// Check order: expiry, consumed, superseded, lock, then the constant-time
// code comparison. A mismatch increments the attempt counter; a match
// consumes the challenge through a conditional write so two concurrent
// verifies cannot both return Verified.
func (s *Service) Verify(ctx context.Context, token, code string) (VerifyResult, *domain.Challenge, error) {
	c, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		return Invalid, nil, fault.Wrap(fault.KindUnavailable, "challenge lookup failed", err)
	}
	if c == nil {
		return Invalid, nil, fault.New(fault.KindNotFound, "unknown challenge")
	}

	now := s.nowF()
	if now.After(c.ExpiresAt) {
		return Expired, c, nil
	}
	if c.ConsumedAt != nil {
		return AlreadyConsumed, c, nil
	}
	if c.Superseded {
		return Invalid, c, nil
	}
	if c.AttemptCount >= s.maxAttempts {
		return Locked, c, nil
	}

	if !otp.CodeEqual(code, c.CodeHash) {
		if _, _, err := s.repo.IncrementAttempts(ctx, token); err != nil {
			return Invalid, c, fault.Wrap(fault.KindUnavailable, "attempt update failed", err)
		}
		return Invalid, c, nil
	}

	ok, err := s.repo.Consume(ctx, token, now)
	if err != nil {
		return Invalid, c, fault.Wrap(fault.KindUnavailable, "challenge consume failed", err)
	}
	if !ok {
		// Lost the race to a concurrent verify.
		return AlreadyConsumed, c, nil
	}
	consumed := now
	c.ConsumedAt = &consumed
	return Verified, c, nil
}
