package service

import (
	"context"
	"strconv"
	"time"

	"compliance-portal/backend/internal/fault"
	"compliance-portal/backend/internal/identity/domain"
	"compliance-portal/backend/internal/identity/repository"
	"compliance-portal/backend/internal/security"
)

// LoginResult carries the issued staff token and the authenticated user.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

// Service authenticates staff users and issues access tokens.
type Service struct {
	users  repository.Repository
	hasher *security.Hasher
	tokens *security.TokenProvider
}

func NewService(users repository.Repository, hasher *security.Hasher, tokens *security.TokenProvider) *Service {
	return &Service{users: users, hasher: hasher, tokens: tokens}
}

// Login verifies username/password and returns a signed staff token. Unknown
// username and wrong password both map to the same Forbidden error so the
// response never reveals which accounts exist.
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, fault.Wrap(fault.KindUnavailable, "looking up user", err)
	}
	if u == nil || !u.IsActive {
		return nil, fault.New(fault.KindForbidden, "invalid credentials")
	}
	if err := s.hasher.Compare(u.PasswordHash, []byte(password)); err != nil {
		return nil, fault.New(fault.KindForbidden, "invalid credentials")
	}
	token, _, expiresAt, err := s.tokens.IssueAccess(
		strconv.FormatInt(u.ID, 10),
		strconv.FormatInt(u.OrganizationID, 10),
		string(u.Role),
	)
	if err != nil {
		return nil, fault.Wrap(fault.KindUnavailable, "signing token", err)
	}
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: u}, nil
}
