package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"compliance-portal/backend/internal/fault"
	"compliance-portal/backend/internal/otp/domain"
	"compliance-portal/backend/internal/otpecho"
)

type memChallengeRepo struct {
	mu sync.Mutex
	m  map[string]*domain.Challenge
}

func newMemChallengeRepo() *memChallengeRepo {
	return &memChallengeRepo{m: make(map[string]*domain.Challenge)}
}

func (r *memChallengeRepo) Create(ctx context.Context, c *domain.Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.m[c.Token] = &cp
	return nil
}

func (r *memChallengeRepo) GetByToken(ctx context.Context, token string) (*domain.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.m[token]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func sameOrg(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (r *memChallengeRepo) LatestByTarget(ctx context.Context, email string, orgID *int64) (*domain.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *domain.Challenge
	for _, c := range r.m {
		if c.Email != email || !sameOrg(c.OrgID, orgID) {
			continue
		}
		if latest == nil || c.IssuedAt.After(latest.IssuedAt) {
			latest = c
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (r *memChallengeRepo) SupersedeUnconsumed(ctx context.Context, email string, orgID *int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.m {
		if c.Email == email && sameOrg(c.OrgID, orgID) && c.ConsumedAt == nil {
			c.Superseded = true
		}
	}
	return nil
}

func (r *memChallengeRepo) IncrementAttempts(ctx context.Context, token string) (int, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.m[token]
	if !ok || c.ConsumedAt != nil {
		return 0, false, nil
	}
	c.AttemptCount++
	return c.AttemptCount, true, nil
}

func (r *memChallengeRepo) Consume(ctx context.Context, token string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.m[token]
	if !ok || c.ConsumedAt != nil {
		return false, nil
	}
	t := at
	c.ConsumedAt = &t
	return true, nil
}

func (r *memChallengeRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for tok, c := range r.m {
		if c.ExpiresAt.Before(before) {
			delete(r.m, tok)
			n++
		}
	}
	return n, nil
}

func newTestService(repo *memChallengeRepo) (*Service, *time.Time) {
	s := New(repo, nil, 15*time.Minute, 5)
	now := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)
	s.nowF = func() time.Time { return now }
	return s, &now
}

func orgPtr(id int64) *int64 { return &id }

func TestRequestOTP_IssuesChallenge(t *testing.T) {
	repo := newMemChallengeRepo()
	s, _ := newTestService(repo)
	ctx := context.Background()

	issued, err := s.RequestOTP(ctx, "A@Example.com", orgPtr(18))
	if err != nil {
		t.Fatalf("RequestOTP: %v", err)
	}
	if len(issued.Code) != 6 {
		t.Errorf("code length = %d, want 6", len(issued.Code))
	}
	if len(issued.Token) != 64 {
		t.Errorf("challenge token length = %d, want 64 hex chars", len(issued.Token))
	}
	c, _ := repo.GetByToken(ctx, issued.Token)
	if c == nil {
		t.Fatal("challenge not persisted")
	}
	if c.Email != "a@example.com" {
		t.Errorf("email not normalized: %q", c.Email)
	}
	if c.CodeHash == issued.Code {
		t.Error("plaintext code must not be persisted")
	}
	if got := c.ExpiresAt.Sub(c.IssuedAt); got != 15*time.Minute {
		t.Errorf("TTL = %v, want 15m", got)
	}
}

func TestVerify_SucceedsExactlyOnce(t *testing.T) {
	repo := newMemChallengeRepo()
	s, _ := newTestService(repo)
	ctx := context.Background()

	issued, err := s.RequestOTP(ctx, "a@example.com", orgPtr(18))
	if err != nil {
		t.Fatalf("RequestOTP: %v", err)
	}

	res, c, err := s.Verify(ctx, issued.Token, issued.Code)
	if err != nil || res != Verified {
		t.Fatalf("first Verify = (%v, %v), want Verified", res, err)
	}
	if c.ConsumedAt == nil {
		t.Error("consumedAt not set after Verified")
	}

	res, _, err = s.Verify(ctx, issued.Token, issued.Code)
	if err != nil {
		t.Fatalf("second Verify: %v", err)
	}
	if res != AlreadyConsumed {
		t.Errorf("replay of correct code = %v, want AlreadyConsumed", res)
	}
}

func TestVerify_ExpiredEvenWithCorrectCode(t *testing.T) {
	repo := newMemChallengeRepo()
	s, now := newTestService(repo)
	ctx := context.Background()

	issued, _ := s.RequestOTP(ctx, "a@example.com", nil)
	*now = now.Add(16 * time.Minute)

	res, _, err := s.Verify(ctx, issued.Token, issued.Code)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res != Expired {
		t.Errorf("Verify past expiry = %v, want Expired", res)
	}
}

func TestVerify_LocksAfterMaxAttempts(t *testing.T) {
	repo := newMemChallengeRepo()
	s, _ := newTestService(repo)
	ctx := context.Background()

	issued, _ := s.RequestOTP(ctx, "a@example.com", orgPtr(18))
	wrong := "000000"
	if wrong == issued.Code {
		wrong = "000001"
	}

	for i := 0; i < 5; i++ {
		res, _, err := s.Verify(ctx, issued.Token, wrong)
		if err != nil {
			t.Fatalf("Verify attempt %d: %v", i+1, err)
		}
		if res != Invalid {
			t.Fatalf("attempt %d = %v, want Invalid", i+1, res)
		}
	}

	// Sixth attempt is Locked even with the correct code.
	res, _, err := s.Verify(ctx, issued.Token, issued.Code)
	if err != nil {
		t.Fatalf("Verify after lock: %v", err)
	}
	if res != Locked {
		t.Errorf("Verify after budget exhausted = %v, want Locked", res)
	}
}

func TestVerify_SupersededChallengeIsInvalid(t *testing.T) {
	repo := newMemChallengeRepo()
	s, _ := newTestService(repo)
	ctx := context.Background()

	first, _ := s.RequestOTP(ctx, "a@example.com", orgPtr(18))
	second, _ := s.RequestOTP(ctx, "a@example.com", orgPtr(18))

	res, _, err := s.Verify(ctx, first.Token, first.Code)
	if err != nil {
		t.Fatalf("Verify superseded: %v", err)
	}
	if res != Invalid {
		t.Errorf("superseded challenge = %v, want Invalid", res)
	}

	res, _, err = s.Verify(ctx, second.Token, second.Code)
	if err != nil || res != Verified {
		t.Errorf("latest challenge = (%v, %v), want Verified", res, err)
	}
}

func TestVerify_UnknownToken(t *testing.T) {
	repo := newMemChallengeRepo()
	s, _ := newTestService(repo)

	_, _, err := s.Verify(context.Background(), "no-such-token", "123456")
	if !fault.IsKind(err, fault.KindNotFound) {
		t.Errorf("unknown token kind = %v, want NotFound", fault.KindOf(err))
	}
}

func TestVerify_CodeOnlyValidatesAgainstOwnChallenge(t *testing.T) {
	repo := newMemChallengeRepo()
	s, _ := newTestService(repo)
	ctx := context.Background()

	a, _ := s.RequestOTP(ctx, "a@example.com", orgPtr(18))
	b, _ := s.RequestOTP(ctx, "b@example.com", orgPtr(18))
	if a.Code == b.Code {
		t.Skip("random codes collided; rerun")
	}

	res, _, err := s.Verify(ctx, b.Token, a.Code)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res != Invalid {
		t.Errorf("cross-challenge code = %v, want Invalid", res)
	}
}

func TestRequestOTP_EchoStoreReceivesCode(t *testing.T) {
	repo := newMemChallengeRepo()
	echo := otpecho.NewMemoryStore()
	s := New(repo, echo, 15*time.Minute, 5)
	ctx := context.Background()

	issued, err := s.RequestOTP(ctx, "a@example.com", nil)
	if err != nil {
		t.Fatalf("RequestOTP: %v", err)
	}
	code, ok := echo.Get(ctx, issued.Token)
	if !ok || code != issued.Code {
		t.Errorf("echo store Get = (%q, %v), want issued code", code, ok)
	}
}

func TestLastIssuedAt(t *testing.T) {
	repo := newMemChallengeRepo()
	s, now := newTestService(repo)
	ctx := context.Background()

	got, err := s.LastIssuedAt(ctx, "a@example.com", orgPtr(18))
	if err != nil || !got.IsZero() {
		t.Fatalf("LastIssuedAt before any issue = (%v, %v), want zero", got, err)
	}

	if _, err := s.RequestOTP(ctx, "a@example.com", orgPtr(18)); err != nil {
		t.Fatalf("RequestOTP: %v", err)
	}
	got, err = s.LastIssuedAt(ctx, "A@EXAMPLE.COM", orgPtr(18))
	if err != nil {
		t.Fatalf("LastIssuedAt: %v", err)
	}
	if !got.Equal(*now) {
		t.Errorf("LastIssuedAt = %v, want %v", got, *now)
	}
}
