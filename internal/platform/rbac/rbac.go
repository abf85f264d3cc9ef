// Package rbac holds the role vocabulary and the capability checks the
// workflow consults. Authorization is a pure function of the caller's role
// and organization; there is no per-request policy document.
package rbac

import (
	"compliance-portal/backend/internal/fault"
)

// Role is the acting user's role as supplied by the identity resolver.
type Role string

const (
	// RoleSubmitter is the anonymous, OTP-verified data subject.
	RoleSubmitter Role = "submitter"
	// RoleUser is organization staff.
	RoleUser Role = "user"
	// RoleAdmin is an organization administrator.
	RoleAdmin Role = "admin"
	// RoleSuperAdmin is a global administrator crossing organization scopes.
	RoleSuperAdmin Role = "superadmin"
)

// Valid reports whether r is a recognized role.
func (r Role) Valid() bool {
	switch r {
	case RoleSubmitter, RoleUser, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// Caller identifies the acting user for workflow calls.
type Caller struct {
	UserID int64
	Role   Role
	OrgID  int64
}

// IsGlobal reports whether the caller crosses organization boundaries.
func (c Caller) IsGlobal() bool { return c.Role == RoleSuperAdmin }

// CanAssign reports whether the role may change a request's assignee.
// Field-level rule: only staff and admins reassign; submitters never do.
func CanAssign(r Role) bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// CanIssueOrgToken reports whether the role may generate request-page URL
// tokens for an organization.
func CanIssueOrgToken(r Role) bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// RequireSameOrg returns Forbidden unless the caller belongs to orgID or is
// a global administrator.
func RequireSameOrg(c Caller, orgID int64) error {
	if c.IsGlobal() || c.OrgID == orgID {
		return nil
	}
	return fault.New(fault.KindForbidden, "caller is not a member of the request's organization")
}
