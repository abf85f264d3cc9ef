package domain

import "time"

// RequestType is the kind of compliance request a submitter can file.
type RequestType string

const (
	TypeAccess     RequestType = "Access"
	TypeCorrection RequestType = "Correction"
	TypeNomination RequestType = "Nomination"
	TypeErasure    RequestType = "Erasure"
	TypeGrievance  RequestType = "Grievance"
)

// Valid reports whether t is a recognized request type.
func (t RequestType) Valid() bool {
	switch t {
	case TypeAccess, TypeCorrection, TypeNomination, TypeErasure, TypeGrievance:
		return true
	}
	return false
}

// Canonical status names. The authoritative vocabulary (including SLA days)
// lives in the request_statuses table; these constants name the statuses the
// workflow rules reference directly.
const (
	StatusSubmitted    = "Submitted"
	StatusInProgress   = "InProgress"
	StatusAwaitingInfo = "AwaitingInfo"
	StatusEscalated    = "Escalated"
	StatusClosed       = "Closed"
)

// Status is one row of the status vocabulary.
type Status struct {
	ID      int32
	Name    string
	SLADays int
}

// Request is a compliance request filed against an organization.
type Request struct {
	ID               int64
	OrganizationID   int64
	FirstName        string
	LastName         string
	Email            string
	Phone            string
	Type             RequestType
	Comment          string
	StatusID         int32
	StatusName       string
	AssignedToUserID *int64
	CreatedAt        time.Time
	LastUpdatedAt    time.Time
	CompletionDate   time.Time
	CompletedOnTime  *bool
	ClosedAt         *time.Time
	ClosureComments  string
}

// Closed reports whether the request is in its terminal state.
func (r *Request) Closed() bool { return r.StatusName == StatusClosed }

// HistoryEntry records one accepted update to a request. Entries are written
// in the same transaction as the update they describe.
type HistoryEntry struct {
	ID               int64
	RequestID        int64
	ChangeDate       time.Time
	ChangedByUserID  int64
	OldStatusID      *int32
	NewStatusID      *int32
	OldAssignedToUID *int64
	NewAssignedToUID *int64
	Comments         string
}

// UpdatePatch carries the fields an update may change. Nil means "leave as
// is". An accepted update must carry a status change, an assignment change,
// new closure comments, or comment text; comment text alone is a recorded
// annotation, not a no-op.
type UpdatePatch struct {
	StatusID        *int32
	AssignedTo      *int64
	ClosureComments *string
	Comment         string
}

// Empty reports whether the patch names no fields and carries no comment.
func (p UpdatePatch) Empty() bool {
	return p.StatusID == nil && p.AssignedTo == nil && p.ClosureComments == nil && p.Comment == ""
}
