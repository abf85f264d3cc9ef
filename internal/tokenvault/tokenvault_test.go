package tokenvault

import (
	"context"
	"encoding/base64"
	"strings"
	"sync"
	"testing"
	"time"

	"compliance-portal/backend/internal/events"
	"compliance-portal/backend/internal/fault"
	orgdomain "compliance-portal/backend/internal/organization/domain"
)

type memOrgRepo struct {
	mu sync.Mutex
	m  map[int64]*orgdomain.Org
}

func newMemOrgRepo(orgs ...*orgdomain.Org) *memOrgRepo {
	r := &memOrgRepo{m: make(map[int64]*orgdomain.Org)}
	for _, o := range orgs {
		r.m[o.ID] = o
	}
	return r
}

func (r *memOrgRepo) GetByID(ctx context.Context, id int64) (*orgdomain.Org, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.m[id]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, nil
}

func (r *memOrgRepo) SetCurrentToken(ctx context.Context, id int64, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.m[id]; ok {
		o.CurrentToken = token
	}
	return nil
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	issued := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	token := Encode(18, issued)
	if strings.ContainsAny(token, "+/=") {
		t.Errorf("token %q is not URL safe", token)
	}
	orgID, err := Decode(token)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if orgID != 18 {
		t.Errorf("orgID = %d, want 18", orgID)
	}
}

func TestDecode_MalformedInputs(t *testing.T) {
	cases := []struct {
		name  string
		token string
	}{
		{"not base64", "!!!not-base64!!!"},
		{"wrong structure", base64.RawURLEncoding.EncodeToString([]byte("user_123_456"))},
		{"missing org id", base64.RawURLEncoding.EncodeToString([]byte("org_123_"))},
		{"empty", ""},
		{"plain text", base64.RawURLEncoding.EncodeToString([]byte("hello world"))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.token)
			if !fault.IsKind(err, fault.KindNotFound) {
				t.Errorf("Decode(%q) kind = %v, want NotFound", tc.token, fault.KindOf(err))
			}
		})
	}
}

func TestIssue_PersistsAndOverwrites(t *testing.T) {
	repo := newMemOrgRepo(&orgdomain.Org{ID: 18, Name: "Acme"})
	v := New(repo)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	times := []time.Time{base, base.Add(time.Second)}
	i := 0
	v.nowF = func() time.Time { t := times[i]; i++; return t }

	t1, err := v.Issue(context.Background(), 18)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	t2, err := v.Issue(context.Background(), 18)
	if err != nil {
		t.Fatalf("Issue again: %v", err)
	}
	if t1 == t2 {
		t.Error("reissued token should differ from the first")
	}
	org, _ := repo.GetByID(context.Background(), 18)
	if org.CurrentToken != t2 {
		t.Errorf("stored token = %q, want latest %q", org.CurrentToken, t2)
	}
	// Both still decode to the org; only the stored pointer decides currency.
	if id, _ := Decode(t1); id != 18 {
		t.Errorf("old token decodes to %d", id)
	}
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

func TestIssue_EmitsTokenIssuedEvent(t *testing.T) {
	repo := newMemOrgRepo(&orgdomain.Org{ID: 18, Name: "Acme"})
	v := New(repo)
	em := &memEmitter{}
	v.SetEmitter(em)

	token, err := v.Issue(context.Background(), 18)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Emission is asynchronous; poll briefly.
	deadline := time.Now().Add(2 * time.Second)
	for {
		em.mu.Lock()
		n := len(em.events)
		em.mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no event emitted")
		}
		time.Sleep(5 * time.Millisecond)
	}

	em.mu.Lock()
	ev := em.events[0]
	em.mu.Unlock()
	if ev.EventType != events.TypeTokenIssued || ev.OrgID != "18" {
		t.Errorf("event = type %q org %q", ev.EventType, ev.OrgID)
	}
	for k, v := range ev.Metadata {
		if strings.Contains(v, token) {
			t.Errorf("metadata %q leaks the token", k)
		}
	}
}

func TestIssue_UnknownOrg(t *testing.T) {
	v := New(newMemOrgRepo())
	_, err := v.Issue(context.Background(), 404)
	if !fault.IsKind(err, fault.KindNotFound) {
		t.Errorf("Issue for missing org kind = %v, want NotFound", fault.KindOf(err))
	}
}
