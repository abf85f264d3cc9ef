// Package service implements the request workflow: creation with an SLA
// completion date, the guarded status state machine, and the audit history
// that is written atomically with every accepted update.
package service

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"time"

	"compliance-portal/backend/internal/audit"
	"compliance-portal/backend/internal/events"
	"compliance-portal/backend/internal/fault"
	"compliance-portal/backend/internal/notification"
	orgrepo "compliance-portal/backend/internal/organization/repository"
	"compliance-portal/backend/internal/platform/rbac"
	"compliance-portal/backend/internal/request/domain"
	"compliance-portal/backend/internal/request/repository"
)

// CreateParams carries the submitter-supplied fields of a new request.
type CreateParams struct {
	OrganizationID int64
	FirstName      string
	LastName       string
	Email          string
	Phone          string
	Type           domain.RequestType
	Comment        string
}

// Service orchestrates the request workflow. Notifications and audit entries
// are best-effort; persistence failures in either never fail the operation
// that triggered them.
type Service struct {
	repo           repository.Repository
	orgs           orgrepo.Repository
	notify         notification.Sender
	auditor        audit.AuditLogger
	emitter        events.Emitter
	defaultSLADays int
	nowF           func() time.Time
}

func NewService(repo repository.Repository, orgs orgrepo.Repository, notify notification.Sender, auditor audit.AuditLogger, defaultSLADays int) *Service {
	return &Service{
		repo:           repo,
		orgs:           orgs,
		notify:         notify,
		auditor:        auditor,
		defaultSLADays: defaultSLADays,
		nowF:           func() time.Time { return time.Now().UTC() },
	}
}

// SetEmitter attaches the event stream. Emission is asynchronous and
// best-effort; a nil emitter disables it.
func (s *Service) SetEmitter(e events.Emitter) { s.emitter = e }

// Create files a new request in the Submitted status and stamps its SLA
// completion date from the status vocabulary.
func (s *Service) Create(ctx context.Context, p CreateParams) (*domain.Request, error) {
	if !p.Type.Valid() {
		return nil, fault.Newf(fault.KindNotFound, "unknown request type %q", p.Type)
	}
	status, err := s.repo.GetStatusByName(ctx, domain.StatusSubmitted)
	if err != nil {
		return nil, fault.Wrap(fault.KindUnavailable, "loading status vocabulary", err)
	}
	if status == nil {
		return nil, fault.New(fault.KindUnavailable, "status vocabulary not seeded")
	}
	sla := status.SLADays
	if sla <= 0 {
		sla = s.defaultSLADays
	}
	now := s.nowF()
	req := &domain.Request{
		OrganizationID: p.OrganizationID,
		FirstName:      p.FirstName,
		LastName:       p.LastName,
		Email:          p.Email,
		Phone:          p.Phone,
		Type:           p.Type,
		Comment:        p.Comment,
		StatusID:       status.ID,
		StatusName:     status.Name,
		CreatedAt:      now,
		LastUpdatedAt:  now,
		CompletionDate: now.AddDate(0, 0, sla),
	}
	if err := s.repo.Create(ctx, req); err != nil {
		return nil, fault.Wrap(fault.KindUnavailable, "creating request", err)
	}
	s.logAudit(ctx, req.OrganizationID, p.Email, "request_created", req.ID, map[string]any{
		"type": string(p.Type),
	})
	events.EmitAsync(s.emitter, events.New(strconv.FormatInt(req.OrganizationID, 10),
		events.TypeRequestCreated, p.Email, map[string]string{
			"request_id": strconv.FormatInt(req.ID, 10),
			"type":       string(p.Type),
		}))
	return req, nil
}

// Get returns the request if the caller may see it.
func (s *Service) Get(ctx context.Context, caller rbac.Caller, id int64) (*domain.Request, error) {
	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fault.Wrap(fault.KindUnavailable, "loading request", err)
	}
	if req == nil {
		return nil, fault.Newf(fault.KindNotFound, "request %d not found", id)
	}
	if err := rbac.RequireSameOrg(caller, req.OrganizationID); err != nil {
		return nil, err
	}
	return req, nil
}

// List returns the caller's visible requests, newest first. Global admins see
// every organization; everyone else sees only their own.
func (s *Service) List(ctx context.Context, caller rbac.Caller, limit, offset int32) ([]*domain.Request, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var (
		reqs []*domain.Request
		err  error
	)
	if caller.IsGlobal() {
		reqs, err = s.repo.ListAll(ctx, limit, offset)
	} else {
		reqs, err = s.repo.ListByOrg(ctx, caller.OrgID, limit, offset)
	}
	if err != nil {
		return nil, fault.Wrap(fault.KindUnavailable, "listing requests", err)
	}
	return reqs, nil
}

// History returns the request's audit trail if the caller may see the request.
func (s *Service) History(ctx context.Context, caller rbac.Caller, id int64) ([]*domain.HistoryEntry, error) {
	if _, err := s.Get(ctx, caller, id); err != nil {
		return nil, err
	}
	entries, err := s.repo.GetHistory(ctx, id)
	if err != nil {
		return nil, fault.Wrap(fault.KindUnavailable, "loading history", err)
	}
	return entries, nil
}

// Statuses returns the status vocabulary.
func (s *Service) Statuses(ctx context.Context) ([]domain.Status, error) {
	statuses, err := s.repo.ListStatuses(ctx)
	if err != nil {
		return nil, fault.Wrap(fault.KindUnavailable, "loading status vocabulary", err)
	}
	return statuses, nil
}

// Update applies a patch to the request under the workflow rules. The row
// update and its history entry commit together or not at all. Rules, in
// check order: the caller must belong to the request's organization (global
// admins excepted), a patch carrying neither a field change nor comment text
// is a no-op, only staff may reassign, and a Closed request accepts no
// further updates. Comment text alone is accepted and recorded as a history
// annotation.
func (s *Service) Update(ctx context.Context, caller rbac.Caller, id int64, patch domain.UpdatePatch) (*domain.Request, error) {
	var newStatus *domain.Status
	if patch.StatusID != nil {
		st, err := s.repo.GetStatusByID(ctx, *patch.StatusID)
		if err != nil {
			return nil, fault.Wrap(fault.KindUnavailable, "loading status vocabulary", err)
		}
		if st == nil {
			return nil, fault.Newf(fault.KindNotFound, "unknown status %d", *patch.StatusID)
		}
		newStatus = st
	}

	var (
		statusChanged bool
		closed        bool
	)
	now := s.nowF()
	req, err := s.repo.UpdateWithHistory(ctx, id, func(req *domain.Request) (*domain.HistoryEntry, error) {
		if err := rbac.RequireSameOrg(caller, req.OrganizationID); err != nil {
			return nil, err
		}
		if patch.Empty() {
			return nil, fault.New(fault.KindNoOp, "update names no fields")
		}
		if patch.AssignedTo != nil && !rbac.CanAssign(caller.Role) {
			return nil, fault.New(fault.KindForbidden, "role may not change assignment")
		}
		if req.Closed() {
			return nil, fault.New(fault.KindConflict, "request is closed")
		}

		entry := &domain.HistoryEntry{
			RequestID:       req.ID,
			ChangeDate:      now,
			ChangedByUserID: caller.UserID,
			Comments:        patch.Comment,
		}

		oldStatus := req.StatusID
		statusChanged = newStatus != nil && newStatus.ID != req.StatusID
		if statusChanged {
			req.StatusID = newStatus.ID
			req.StatusName = newStatus.Name
		}
		// The entry always records the pre/post status pair, even when the
		// update leaves the status alone.
		postStatus := req.StatusID
		entry.OldStatusID = &oldStatus
		entry.NewStatusID = &postStatus

		assigneeChanged := patch.AssignedTo != nil &&
			(req.AssignedToUserID == nil || *req.AssignedToUserID != *patch.AssignedTo)
		if assigneeChanged {
			entry.OldAssignedToUID = req.AssignedToUserID
			entry.NewAssignedToUID = patch.AssignedTo
			req.AssignedToUserID = patch.AssignedTo
		}

		closureChanged := patch.ClosureComments != nil && *patch.ClosureComments != req.ClosureComments
		if closureChanged {
			req.ClosureComments = *patch.ClosureComments
		}

		commented := patch.Comment != ""
		if !statusChanged && !assigneeChanged && !closureChanged && !commented {
			return nil, fault.New(fault.KindNoOp, "update changes nothing")
		}

		closed = statusChanged && newStatus.Name == domain.StatusClosed
		if closed {
			closedAt := now
			onTime := onOrBeforeDay(now, req.CompletionDate)
			req.ClosedAt = &closedAt
			req.CompletedOnTime = &onTime
		}
		req.LastUpdatedAt = now
		return entry, nil
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, req.OrganizationID, strconv.FormatInt(caller.UserID, 10), "request_updated", req.ID, map[string]any{
		"status": req.StatusName,
	})
	eventType := events.TypeRequestUpdated
	if closed {
		eventType = events.TypeRequestClosed
	}
	events.EmitAsync(s.emitter, events.New(strconv.FormatInt(req.OrganizationID, 10),
		eventType, strconv.FormatInt(caller.UserID, 10), map[string]string{
			"request_id": strconv.FormatInt(req.ID, 10),
			"status":     req.StatusName,
		}))
	if statusChanged {
		s.notifySubmitter(ctx, req, closed)
	}
	return req, nil
}

// onOrBeforeDay compares calendar days in UTC; the SLA deadline is inclusive.
func onOrBeforeDay(t, deadline time.Time) bool {
	ty, tm, td := t.UTC().Date()
	dy, dm, dd := deadline.UTC().Date()
	a := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	b := time.Date(dy, dm, dd, 0, 0, 0, 0, time.UTC)
	return !a.After(b)
}

func (s *Service) notifySubmitter(ctx context.Context, req *domain.Request, closed bool) {
	if s.notify == nil {
		return
	}
	orgName := ""
	if org, err := s.orgs.GetByID(ctx, req.OrganizationID); err == nil && org != nil {
		orgName = org.Name
	}
	var msg notification.Message
	if closed {
		msg = notification.ClosureMessage(req.ID, orgName, req.ClosureComments)
	} else {
		msg = notification.StatusChangeMessage(req.ID, orgName, req.StatusName)
	}
	if err := s.notify.Send(ctx, req.Email, msg.Subject, msg.HTMLBody, msg.TextBody); err != nil {
		log.Printf("request: notification for request %d failed: %v", req.ID, err)
	}
}

func (s *Service) logAudit(ctx context.Context, orgID int64, actorID, action string, requestID int64, meta map[string]any) {
	if s.auditor == nil {
		return
	}
	b, _ := json.Marshal(meta)
	s.auditor.LogEvent(ctx, strconv.FormatInt(orgID, 10), actorID, action,
		"request:"+strconv.FormatInt(requestID, 10), string(b))
}
