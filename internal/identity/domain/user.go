package domain

import (
	"time"

	"compliance-portal/backend/internal/platform/rbac"
)

// User is a staff account. Submitters never have a User row; they
// authenticate per-request with an email OTP instead.
type User struct {
	ID             int64
	Username       string
	PasswordHash   string
	FirstName      string
	LastName       string
	Email          string
	Role           rbac.Role
	OrganizationID int64
	IsActive       bool
	CreatedAt      time.Time
}
