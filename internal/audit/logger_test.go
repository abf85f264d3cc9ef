package audit

import (
	"context"
	"errors"
	"sync"
	"testing"

	"compliance-portal/backend/internal/audit/domain"
)

type memAuditRepo struct {
	mu      sync.Mutex
	entries []*domain.AuditLog
	failing bool
}

func (r *memAuditRepo) Create(ctx context.Context, a *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing {
		return errors.New("db down")
	}
	r.entries = append(r.entries, a)
	return nil
}

func (r *memAuditRepo) GetByID(ctx context.Context, id string) (*domain.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.entries {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, nil
}

func (r *memAuditRepo) ListByOrg(ctx context.Context, orgID string, limit, offset int32) ([]*domain.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.AuditLog
	for _, a := range r.entries {
		if a.OrgID == orgID {
			out = append(out, a)
		}
	}
	return out, nil
}

func TestLogEvent_FillsDefaults(t *testing.T) {
	repo := &memAuditRepo{}
	l := NewLogger(repo, nil)
	l.LogEvent(context.Background(), "", "submitter@example.com", "otp_verified", "challenge", "")

	if len(repo.entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(repo.entries))
	}
	e := repo.entries[0]
	if e.ID == "" {
		t.Error("ID not generated")
	}
	if e.OrgID != SentinelOrgID {
		t.Errorf("OrgID = %q, want sentinel", e.OrgID)
	}
	if e.IP != "unknown" {
		t.Errorf("IP = %q, want unknown", e.IP)
	}
}

func TestLogEvent_BestEffortOnFailure(t *testing.T) {
	repo := &memAuditRepo{failing: true}
	l := NewLogger(repo, func(context.Context) string { return "10.0.0.1" })
	// Must not panic or propagate the repository error.
	l.LogEvent(context.Background(), "18", "42", "request_updated", "request", `{"status":"Closed"}`)
}
