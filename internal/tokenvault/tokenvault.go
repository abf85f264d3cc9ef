// Package tokenvault issues and resolves the per-organization request-page
// URL token. The token is a reversible capability pointer: it encodes the
// organization ID, and revocation is achieved by overwriting the stored
// current token, not by a revocation list.
package tokenvault

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"compliance-portal/backend/internal/events"
	"compliance-portal/backend/internal/fault"
	orgrepo "compliance-portal/backend/internal/organization/repository"
)

// tokenPattern is the decoded structural form: org_<unix-millis>_<orgID>.
var tokenPattern = regexp.MustCompile(`^org_(\d+)_(\d+)$`)

// Vault issues and resolves organization URL tokens.
type Vault struct {
	orgs    orgrepo.Repository
	emitter events.Emitter
	nowF    func() time.Time
}

// New returns a Vault backed by the organization directory.
func New(orgs orgrepo.Repository) *Vault {
	return &Vault{orgs: orgs, nowF: func() time.Time { return time.Now().UTC() }}
}

// SetEmitter attaches the event stream. Emission is asynchronous and
// best-effort; a nil emitter disables it.
func (v *Vault) SetEmitter(e events.Emitter) { v.emitter = e }

// Encode builds the URL-safe token for orgID at the given issue time.
// Exposed for tests; callers use Issue.
func Encode(orgID int64, issuedAt time.Time) string {
	raw := fmt.Sprintf("org_%d_%d", issuedAt.UnixMilli(), orgID)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// Decode reverses Encode. Malformed encoding, charset, or structure yields NotFound.
// Decode does not confirm the token is still the organization's current one;
// callers must compare against the stored current token before trusting it.
func Decode(token string) (int64, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0, fault.Wrap(fault.KindNotFound, "malformed token", err)
	}
	m := tokenPattern.FindSubmatch(raw)
	if m == nil {
		return 0, fault.New(fault.KindNotFound, "malformed token")
	}
	orgID, err := strconv.ParseInt(string(m[2]), 10, 64)
	if err != nil {
		return 0, fault.Wrap(fault.KindNotFound, "malformed token", err)
	}
	return orgID, nil
}

// Issue generates a fresh token for the organization and persists it,
// overwriting any prior token. The prior token stops resolving through the
// access gate immediately. Caller authorization (admin only) is enforced at
// the handler layer.
func (v *Vault) Issue(ctx context.Context, orgID int64) (string, error) {
	org, err := v.orgs.GetByID(ctx, orgID)
	if err != nil {
		return "", fault.Wrap(fault.KindUnavailable, "organization lookup failed", err)
	}
	if org == nil {
		return "", fault.Newf(fault.KindNotFound, "organization %d not found", orgID)
	}
	token := Encode(orgID, v.nowF())
	if err := v.orgs.SetCurrentToken(ctx, orgID, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fault.Newf(fault.KindNotFound, "organization %d not found", orgID)
		}
		return "", fault.Wrap(fault.KindUnavailable, "token persist failed", err)
	}
	// The event carries only the org, never the token itself.
	events.EmitAsync(v.emitter, events.New(strconv.FormatInt(orgID, 10),
		events.TypeTokenIssued, "", nil))
	return token, nil
}

// Resolve decodes the token to an organization ID. It performs no currency
// check; see Decode.
func (v *Vault) Resolve(token string) (int64, error) {
	return Decode(token)
}
