// Package service implements the access gate: the portal-token front door,
// the OTP verification flow, and the verified session that alone is allowed
// to file requests.
package service

import (
	"context"
	"log"
	"strconv"
	"strings"
	"time"

	"compliance-portal/backend/internal/audit"
	"compliance-portal/backend/internal/events"
	"compliance-portal/backend/internal/fault"
	"compliance-portal/backend/internal/notification"
	orgdomain "compliance-portal/backend/internal/organization/domain"
	orgrepo "compliance-portal/backend/internal/organization/repository"
	"compliance-portal/backend/internal/otp"
	otpsvc "compliance-portal/backend/internal/otp/service"
	reqdomain "compliance-portal/backend/internal/request/domain"
	reqsvc "compliance-portal/backend/internal/request/service"
	sessiondomain "compliance-portal/backend/internal/session/domain"
	sessionrepo "compliance-portal/backend/internal/session/repository"
	"compliance-portal/backend/internal/tokenvault"
)

// Verification is handed back after an OTP is issued. The code itself travels
// by email only.
type Verification struct {
	ChallengeToken string
	ExpiresAt      time.Time
}

// SessionGrant is the proof of a completed verification.
type SessionGrant struct {
	Token     string
	ExpiresAt time.Time
}

// SubmitParams carries the submitter-supplied request fields. Organization
// and email come from the verified session, never from the caller.
type SubmitParams struct {
	FirstName string
	LastName  string
	Phone     string
	Type      reqdomain.RequestType
	Comment   string
}

// Service orchestrates the anonymous submitter flow end to end.
type Service struct {
	orgs       orgrepo.Repository
	otps       *otpsvc.Service
	sessions   sessionrepo.Repository
	requests   *reqsvc.Service
	notify     notification.Sender
	auditor    audit.AuditLogger
	emitter    events.Emitter
	cooldown   time.Duration
	sessionTTL time.Duration
	nowF       func() time.Time
}

func NewService(orgs orgrepo.Repository, otps *otpsvc.Service, sessions sessionrepo.Repository,
	requests *reqsvc.Service, notify notification.Sender, auditor audit.AuditLogger,
	cooldown, sessionTTL time.Duration) *Service {
	return &Service{
		orgs:       orgs,
		otps:       otps,
		sessions:   sessions,
		requests:   requests,
		notify:     notify,
		auditor:    auditor,
		cooldown:   cooldown,
		sessionTTL: sessionTTL,
		nowF:       func() time.Time { return time.Now().UTC() },
	}
}

// SetEmitter attaches the event stream. Emission is asynchronous and
// best-effort; a nil emitter disables it.
func (s *Service) SetEmitter(e events.Emitter) { s.emitter = e }

// ResolveOrganization maps a portal URL token to its organization. A token
// that decodes but is not the organization's current one has been revoked by
// reissue and is Forbidden; a malformed token is NotFound.
func (s *Service) ResolveOrganization(ctx context.Context, token string) (*orgdomain.Org, error) {
	orgID, err := tokenvault.Decode(token)
	if err != nil {
		return nil, err
	}
	org, err := s.orgs.GetByID(ctx, orgID)
	if err != nil {
		return nil, fault.Wrap(fault.KindUnavailable, "loading organization", err)
	}
	if org == nil {
		return nil, fault.New(fault.KindNotFound, "organization not found")
	}
	if org.CurrentToken != token {
		return nil, fault.New(fault.KindForbidden, "token has been revoked")
	}
	return org, nil
}

// BeginVerification resolves the portal token, enforces the per-target
// cooldown, issues an OTP challenge, and emails the code. The code never
// appears in the return value.
func (s *Service) BeginVerification(ctx context.Context, portalToken, email string) (*Verification, error) {
	org, err := s.ResolveOrganization(ctx, portalToken)
	if err != nil {
		return nil, err
	}
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, fault.New(fault.KindNotFound, "email is required")
	}

	last, err := s.otps.LastIssuedAt(ctx, email, &org.ID)
	if err != nil {
		return nil, err
	}
	now := s.nowF()
	if !last.IsZero() && now.Sub(last) < s.cooldown {
		return nil, fault.New(fault.KindLocked, "a code was sent recently, wait before retrying")
	}

	issued, err := s.otps.RequestOTP(ctx, email, &org.ID)
	if err != nil {
		return nil, err
	}

	if s.notify != nil {
		msg := notification.OTPMessage(issued.Code, org.Name, issued.ExpiresAt)
		if err := s.notify.Send(ctx, email, msg.Subject, msg.HTMLBody, msg.TextBody); err != nil {
			log.Printf("accessgate: otp delivery to %s failed: %v", email, err)
		}
	}
	s.logEvent(ctx, strconv.FormatInt(org.ID, 10), email, "otp_requested", "challenge", "")
	events.EmitAsync(s.emitter, events.New(strconv.FormatInt(org.ID, 10),
		events.TypeOTPRequested, email, nil))

	return &Verification{ChallengeToken: issued.Token, ExpiresAt: issued.ExpiresAt}, nil
}

// CompleteVerification checks the code and, on success, mints a verified
// session bound to the challenge's email and organization. Failure outcomes
// keep their distinct kinds here; the HTTP layer collapses them so responses
// do not reveal challenge state.
func (s *Service) CompleteVerification(ctx context.Context, challengeToken, code string) (*SessionGrant, error) {
	result, c, err := s.otps.Verify(ctx, challengeToken, code)
	if err != nil {
		return nil, err
	}
	switch result {
	case otpsvc.Verified:
	case otpsvc.Expired:
		s.logFailure(ctx, c.OrgID, c.Email, "expired")
		return nil, fault.New(fault.KindExpired, "code expired")
	case otpsvc.AlreadyConsumed:
		s.logFailure(ctx, c.OrgID, c.Email, "already_consumed")
		return nil, fault.New(fault.KindConflict, "code already used")
	case otpsvc.Locked:
		s.logFailure(ctx, c.OrgID, c.Email, "locked")
		return nil, fault.New(fault.KindLocked, "too many attempts")
	default:
		s.logFailure(ctx, c.OrgID, c.Email, "mismatch")
		return nil, fault.New(fault.KindForbidden, "verification failed")
	}
	if c.OrgID == nil {
		return nil, fault.New(fault.KindForbidden, "challenge is not bound to an organization")
	}

	now := s.nowF()
	if n, err := s.sessions.DeleteExpired(ctx, now); err != nil {
		log.Printf("accessgate: session cleanup failed: %v", err)
	} else if n > 0 {
		log.Printf("accessgate: cleaned up %d expired sessions", n)
	}

	token, err := otp.GenerateChallengeToken()
	if err != nil {
		return nil, fault.Wrap(fault.KindUnavailable, "session token generation failed", err)
	}
	sess := &sessiondomain.VerifiedSession{
		Token:     token,
		Email:     c.Email,
		OrgID:     *c.OrgID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, fault.Wrap(fault.KindUnavailable, "session persist failed", err)
	}
	s.logEvent(ctx, strconv.FormatInt(*c.OrgID, 10), c.Email, "otp_verified", "challenge", "")
	events.EmitAsync(s.emitter, events.New(strconv.FormatInt(*c.OrgID, 10),
		events.TypeOTPVerified, c.Email, nil))

	return &SessionGrant{Token: token, ExpiresAt: sess.ExpiresAt}, nil
}

// SubmitRequest files a request on behalf of a verified session. The session
// supplies the organization and email; a missing or expired session never
// reaches the workflow.
func (s *Service) SubmitRequest(ctx context.Context, sessionToken string, p SubmitParams) (*reqdomain.Request, error) {
	sess, err := s.sessions.GetByToken(ctx, sessionToken)
	if err != nil {
		return nil, fault.Wrap(fault.KindUnavailable, "loading session", err)
	}
	if sess == nil {
		return nil, fault.New(fault.KindForbidden, "verification required")
	}
	if s.nowF().After(sess.ExpiresAt) {
		return nil, fault.New(fault.KindExpired, "verification expired, request a new code")
	}

	req, err := s.requests.Create(ctx, reqsvc.CreateParams{
		OrganizationID: sess.OrgID,
		FirstName:      p.FirstName,
		LastName:       p.LastName,
		Email:          sess.Email,
		Phone:          p.Phone,
		Type:           p.Type,
		Comment:        p.Comment,
	})
	if err != nil {
		return nil, err
	}

	if s.notify != nil {
		orgName := ""
		if org, oerr := s.orgs.GetByID(ctx, sess.OrgID); oerr == nil && org != nil {
			orgName = org.Name
		}
		msg := notification.SubmissionMessage(req.ID, string(req.Type), orgName, req.CompletionDate)
		if err := s.notify.Send(ctx, sess.Email, msg.Subject, msg.HTMLBody, msg.TextBody); err != nil {
			log.Printf("accessgate: submission ack to %s failed: %v", sess.Email, err)
		}
	}
	return req, nil
}

func (s *Service) logFailure(ctx context.Context, orgID *int64, email, reason string) {
	org := ""
	if orgID != nil {
		org = strconv.FormatInt(*orgID, 10)
	}
	s.logEvent(ctx, org, email, "otp_failed", "challenge", `{"reason":"`+reason+`"}`)
}

func (s *Service) logEvent(ctx context.Context, orgID, actorID, action, resource, metadata string) {
	if s.auditor == nil {
		return
	}
	s.auditor.LogEvent(ctx, orgID, actorID, action, resource, metadata)
}
