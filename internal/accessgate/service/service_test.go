package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"compliance-portal/backend/internal/events"
	"compliance-portal/backend/internal/fault"
	orgdomain "compliance-portal/backend/internal/organization/domain"
	otpdomain "compliance-portal/backend/internal/otp/domain"
	otpsvc "compliance-portal/backend/internal/otp/service"
	"compliance-portal/backend/internal/otpecho"
	reqdomain "compliance-portal/backend/internal/request/domain"
	reqrepo "compliance-portal/backend/internal/request/repository"
	reqsvc "compliance-portal/backend/internal/request/service"
	sessiondomain "compliance-portal/backend/internal/session/domain"
	"compliance-portal/backend/internal/tokenvault"
)

// ---- fakes ----

type memOrgRepo struct {
	mu   sync.Mutex
	orgs map[int64]*orgdomain.Org
}

func (r *memOrgRepo) GetByID(ctx context.Context, id int64) (*orgdomain.Org, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	org, ok := r.orgs[id]
	if !ok {
		return nil, nil
	}
	cp := *org
	return &cp, nil
}

func (r *memOrgRepo) SetCurrentToken(ctx context.Context, id int64, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if org, ok := r.orgs[id]; ok {
		org.CurrentToken = token
	}
	return nil
}

type memChallengeRepo struct {
	mu         sync.Mutex
	challenges map[string]*otpdomain.Challenge
}

func newMemChallengeRepo() *memChallengeRepo {
	return &memChallengeRepo{challenges: make(map[string]*otpdomain.Challenge)}
}

func (r *memChallengeRepo) Create(ctx context.Context, c *otpdomain.Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.challenges[c.Token] = &cp
	return nil
}

func (r *memChallengeRepo) GetByToken(ctx context.Context, token string) (*otpdomain.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.challenges[token]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func sameOrg(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (r *memChallengeRepo) LatestByTarget(ctx context.Context, email string, orgID *int64) (*otpdomain.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *otpdomain.Challenge
	for _, c := range r.challenges {
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
	for _, c := range r.challenges {
		if c.Email == email && sameOrg(c.OrgID, orgID) && c.ConsumedAt == nil {
			c.Superseded = true
		}
	}
	return nil
}

func (r *memChallengeRepo) IncrementAttempts(ctx context.Context, token string) (int, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.challenges[token]
	if !ok || c.ConsumedAt != nil {
		return 0, false, nil
	}
	c.AttemptCount++
	return c.AttemptCount, true, nil
}

func (r *memChallengeRepo) Consume(ctx context.Context, token string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.challenges[token]
	if !ok || c.ConsumedAt != nil {
		return false, nil
	}
	c.ConsumedAt = &at
	return true, nil
}

func (r *memChallengeRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for tok, c := range r.challenges {
		if c.ExpiresAt.Before(before) {
			delete(r.challenges, tok)
			n++
		}
	}
	return n, nil
}

type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*sessiondomain.VerifiedSession
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[string]*sessiondomain.VerifiedSession)}
}

func (r *memSessionRepo) Create(ctx context.Context, s *sessiondomain.VerifiedSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.sessions[s.Token] = &cp
	return nil
}

func (r *memSessionRepo) GetByToken(ctx context.Context, token string) (*sessiondomain.VerifiedSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[token]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *memSessionRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for tok, s := range r.sessions {
		if s.ExpiresAt.Before(before) {
			delete(r.sessions, tok)
			n++
		}
	}
	return n, nil
}

type memRequestRepo struct {
	mu       sync.Mutex
	nextID   int64
	requests map[int64]*reqdomain.Request
}

var testStatuses = []reqdomain.Status{
	{ID: 1, Name: reqdomain.StatusSubmitted, SLADays: 30},
	{ID: 5, Name: reqdomain.StatusClosed, SLADays: 0},
}

func (r *memRequestRepo) Create(ctx context.Context, req *reqdomain.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	req.ID = r.nextID
	cp := *req
	r.requests[req.ID] = &cp
	return nil
}

func (r *memRequestRepo) GetByID(ctx context.Context, id int64) (*reqdomain.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return nil, nil
	}
	cp := *req
	return &cp, nil
}

func (r *memRequestRepo) ListByOrg(ctx context.Context, orgID int64, limit, offset int32) ([]*reqdomain.Request, error) {
	return nil, nil
}

func (r *memRequestRepo) ListAll(ctx context.Context, limit, offset int32) ([]*reqdomain.Request, error) {
	return nil, nil
}

func (r *memRequestRepo) UpdateWithHistory(ctx context.Context, id int64, fn reqrepo.ApplyFunc) (*reqdomain.Request, error) {
	return nil, nil
}

func (r *memRequestRepo) GetHistory(ctx context.Context, requestID int64) ([]*reqdomain.HistoryEntry, error) {
	return nil, nil
}

func (r *memRequestRepo) ListStatuses(ctx context.Context) ([]reqdomain.Status, error) {
	return testStatuses, nil
}

func (r *memRequestRepo) GetStatusByName(ctx context.Context, name string) (*reqdomain.Status, error) {
	for _, s := range testStatuses {
		if s.Name == name {
			cp := s
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memRequestRepo) GetStatusByID(ctx context.Context, id int32) (*reqdomain.Status, error) {
	for _, s := range testStatuses {
		if s.ID == id {
			cp := s
			return &cp, nil
		}
	}
	return nil, nil
}

type recordingSender struct {
	mu    sync.Mutex
	sent  []string // "to: subject"
	texts []string
}

func (s *recordingSender) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, to+": "+subject)
	s.texts = append(s.texts, textBody)
	return nil
}

type memEmitter struct {
	mu     sync.Mutex
	events []*events.Event
}

func (e *memEmitter) Emit(ctx context.Context, ev *events.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return nil
}

func (e *memEmitter) Close() error { return nil }

// waitForEvents polls until n events arrived; emission runs on background
// goroutines.
func (e *memEmitter) waitForEvents(t *testing.T, n int) []*events.Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		e.mu.Lock()
		if len(e.events) >= n {
			out := append([]*events.Event(nil), e.events...)
			e.mu.Unlock()
			return out
		}
		e.mu.Unlock()
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d events", n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// ---- fixtures ----

type fixture struct {
	gate     *Service
	orgs     *memOrgRepo
	echo     *otpecho.MemoryStore
	sessions *memSessionRepo
	sender   *recordingSender
	token    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	token := tokenvault.Encode(18, time.Now().UTC())
	orgs := &memOrgRepo{orgs: map[int64]*orgdomain.Org{
		18: {ID: 18, Name: "Acme Corp", ContactEmail: "dpo@acme.example", CurrentToken: token},
	}}
	echo := otpecho.NewMemoryStore()
	otps := otpsvc.New(newMemChallengeRepo(), echo, 15*time.Minute, 5)
	sessions := newMemSessionRepo()
	sender := &recordingSender{}
	requests := reqsvc.NewService(
		&memRequestRepo{requests: make(map[int64]*reqdomain.Request)},
		orgs, nil, nil, 30)
	gate := NewService(orgs, otps, sessions, requests, sender, nil,
		60*time.Second, 20*time.Minute)
	return &fixture{gate: gate, orgs: orgs, echo: echo, sessions: sessions, sender: sender, token: token}
}

// verify walks the happy path up to a session grant.
func (f *fixture) verify(t *testing.T, email string) *SessionGrant {
	t.Helper()
	v, err := f.gate.BeginVerification(context.Background(), f.token, email)
	if err != nil {
		t.Fatalf("BeginVerification: %v", err)
	}
	code, ok := f.echo.Get(context.Background(), v.ChallengeToken)
	if !ok {
		t.Fatal("echo store has no code for challenge")
	}
	grant, err := f.gate.CompleteVerification(context.Background(), v.ChallengeToken, code)
	if err != nil {
		t.Fatalf("CompleteVerification: %v", err)
	}
	return grant
}

// ---- tests ----

func TestResolveOrganization(t *testing.T) {
	f := newFixture(t)

	org, err := f.gate.ResolveOrganization(context.Background(), f.token)
	if err != nil {
		t.Fatalf("ResolveOrganization: %v", err)
	}
	if org.ID != 18 || org.Name != "Acme Corp" {
		t.Errorf("org = %+v", org)
	}

	_, err = f.gate.ResolveOrganization(context.Background(), "not-a-token")
	if !fault.IsKind(err, fault.KindNotFound) {
		t.Errorf("malformed token kind = %v, want NotFound", fault.KindOf(err))
	}
}

func TestResolveOrganization_ReissueRevokesOldToken(t *testing.T) {
	f := newFixture(t)
	vault := tokenvault.New(f.orgs)

	newToken, err := vault.Issue(context.Background(), 18)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := f.gate.ResolveOrganization(context.Background(), newToken); err != nil {
		t.Errorf("current token rejected: %v", err)
	}
	_, err = f.gate.ResolveOrganization(context.Background(), f.token)
	if !fault.IsKind(err, fault.KindForbidden) {
		t.Errorf("revoked token kind = %v, want Forbidden", fault.KindOf(err))
	}
}

func TestBeginVerification_SendsCodeByEmail(t *testing.T) {
	f := newFixture(t)

	v, err := f.gate.BeginVerification(context.Background(), f.token, "Asha@Example.com")
	if err != nil {
		t.Fatalf("BeginVerification: %v", err)
	}
	if v.ChallengeToken == "" {
		t.Error("challenge token empty")
	}

	if len(f.sender.sent) != 1 || !strings.HasPrefix(f.sender.sent[0], "asha@example.com:") {
		t.Fatalf("sent = %v, want one mail to normalized address", f.sender.sent)
	}
	code, ok := f.echo.Get(context.Background(), v.ChallengeToken)
	if !ok {
		t.Fatal("echo store empty")
	}
	if !strings.Contains(f.sender.texts[0], code) {
		t.Error("email body does not contain the code")
	}
}

func TestBeginVerification_CooldownLocks(t *testing.T) {
	f := newFixture(t)

	if _, err := f.gate.BeginVerification(context.Background(), f.token, "asha@example.com"); err != nil {
		t.Fatalf("first BeginVerification: %v", err)
	}
	_, err := f.gate.BeginVerification(context.Background(), f.token, "asha@example.com")
	if !fault.IsKind(err, fault.KindLocked) {
		t.Errorf("immediate retry kind = %v, want Locked", fault.KindOf(err))
	}

	// A different submitter is not affected by someone else's cooldown.
	if _, err := f.gate.BeginVerification(context.Background(), f.token, "ben@example.com"); err != nil {
		t.Errorf("other target blocked: %v", err)
	}
}

func TestCompleteVerification_MintsSession(t *testing.T) {
	f := newFixture(t)
	grant := f.verify(t, "asha@example.com")

	if grant.Token == "" {
		t.Fatal("session token empty")
	}
	sess, _ := f.sessions.GetByToken(context.Background(), grant.Token)
	if sess == nil {
		t.Fatal("session not persisted")
	}
	if sess.Email != "asha@example.com" || sess.OrgID != 18 {
		t.Errorf("session = %+v", sess)
	}
}

func TestCompleteVerification_WrongCode(t *testing.T) {
	f := newFixture(t)
	v, err := f.gate.BeginVerification(context.Background(), f.token, "asha@example.com")
	if err != nil {
		t.Fatalf("BeginVerification: %v", err)
	}

	_, err = f.gate.CompleteVerification(context.Background(), v.ChallengeToken, "000000")
	if !fault.IsKind(err, fault.KindForbidden) {
		t.Errorf("wrong code kind = %v, want Forbidden", fault.KindOf(err))
	}

	// The correct code still works afterwards; one mismatch does not burn it.
	code, _ := f.echo.Get(context.Background(), v.ChallengeToken)
	if _, err := f.gate.CompleteVerification(context.Background(), v.ChallengeToken, code); err != nil {
		t.Errorf("correct code after one mismatch: %v", err)
	}
}

func TestCompleteVerification_ReplayIsConflict(t *testing.T) {
	f := newFixture(t)
	v, err := f.gate.BeginVerification(context.Background(), f.token, "asha@example.com")
	if err != nil {
		t.Fatalf("BeginVerification: %v", err)
	}
	code, _ := f.echo.Get(context.Background(), v.ChallengeToken)
	if _, err := f.gate.CompleteVerification(context.Background(), v.ChallengeToken, code); err != nil {
		t.Fatalf("first verify: %v", err)
	}

	_, err = f.gate.CompleteVerification(context.Background(), v.ChallengeToken, code)
	if !fault.IsKind(err, fault.KindConflict) {
		t.Errorf("replay kind = %v, want Conflict", fault.KindOf(err))
	}
}

func TestVerificationFlowEmitsEvents(t *testing.T) {
	f := newFixture(t)
	em := &memEmitter{}
	f.gate.SetEmitter(em)

	f.verify(t, "asha@example.com")

	got := em.waitForEvents(t, 2)
	seen := make(map[string]*events.Event, len(got))
	for _, ev := range got {
		seen[ev.EventType] = ev
	}
	for _, want := range []string{events.TypeOTPRequested, events.TypeOTPVerified} {
		ev, ok := seen[want]
		if !ok {
			t.Fatalf("no %s event emitted, got %v", want, got)
		}
		if ev.OrgID != "18" || ev.Actor != "asha@example.com" {
			t.Errorf("%s event = org %q actor %q", want, ev.OrgID, ev.Actor)
		}
	}
}

func TestSubmitRequest_UsesSessionIdentity(t *testing.T) {
	f := newFixture(t)
	grant := f.verify(t, "asha@example.com")

	req, err := f.gate.SubmitRequest(context.Background(), grant.Token, SubmitParams{
		FirstName: "Asha",
		LastName:  "Rao",
		Phone:     "+15550100",
		Type:      reqdomain.TypeAccess,
		Comment:   "copy of my records",
	})
	if err != nil {
		t.Fatalf("SubmitRequest: %v", err)
	}
	if req.OrganizationID != 18 {
		t.Errorf("org = %d, want 18 from session", req.OrganizationID)
	}
	if req.Email != "asha@example.com" {
		t.Errorf("email = %q, want session email", req.Email)
	}
	if req.StatusName != reqdomain.StatusSubmitted {
		t.Errorf("status = %q", req.StatusName)
	}

	// OTP mail plus submission acknowledgement.
	if len(f.sender.sent) != 2 {
		t.Errorf("mails sent = %d, want 2", len(f.sender.sent))
	}
}

func TestSubmitRequest_NoSessionForbidden(t *testing.T) {
	f := newFixture(t)
	_, err := f.gate.SubmitRequest(context.Background(), "deadbeef", SubmitParams{Type: reqdomain.TypeAccess})
	if !fault.IsKind(err, fault.KindForbidden) {
		t.Errorf("kind = %v, want Forbidden", fault.KindOf(err))
	}
}

func TestSubmitRequest_ExpiredSession(t *testing.T) {
	f := newFixture(t)
	past := time.Now().UTC().Add(-time.Hour)
	_ = f.sessions.Create(context.Background(), &sessiondomain.VerifiedSession{
		Token: "stale", Email: "asha@example.com", OrgID: 18,
		CreatedAt: past.Add(-20 * time.Minute), ExpiresAt: past,
	})

	_, err := f.gate.SubmitRequest(context.Background(), "stale", SubmitParams{Type: reqdomain.TypeAccess})
	if !fault.IsKind(err, fault.KindExpired) {
		t.Errorf("kind = %v, want Expired", fault.KindOf(err))
	}
}
