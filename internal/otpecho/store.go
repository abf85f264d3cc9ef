// Package otpecho provides an in-memory store for issued passcodes by
// challenge token, used only when the test-mode echo flag is enabled
// (GET /dev/otp). Never enabled in production; config.Load rejects it.
package otpecho

import (
	"context"
	"sync"
	"time"
)

// Store holds plain passcodes by challenge token for test-mode retrieval.
type Store interface {
	// Put stores code for challengeToken until expiresAt.
	Put(ctx context.Context, challengeToken, code string, expiresAt time.Time)
	// Get returns the code for challengeToken if present and not expired.
	Get(ctx context.Context, challengeToken string) (code string, ok bool)
}

type entry struct {
	code      string
	expiresAt time.Time
}

// MemoryStore is an in-memory Store implementation.
type MemoryStore struct {
	mu   sync.RWMutex
	m    map[string]entry
	nowF func() time.Time
}

// NewMemoryStore returns a new in-memory echo store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		m:    make(map[string]entry),
		nowF: func() time.Time { return time.Now().UTC() },
	}
}

// Put stores code for challengeToken until expiresAt.
func (s *MemoryStore) Put(ctx context.Context, challengeToken, code string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[challengeToken] = entry{code: code, expiresAt: expiresAt}
}

// Get returns the code for challengeToken if present and not expired.
// Expired entries are dropped on read.
func (s *MemoryStore) Get(ctx context.Context, challengeToken string) (string, bool) {
	s.mu.RLock()
	e, ok := s.m[challengeToken]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}
	if !e.expiresAt.After(s.nowF()) {
		s.mu.Lock()
		delete(s.m, challengeToken)
		s.mu.Unlock()
		return "", false
	}
	return e.code, true
}
