// Package handler exposes the admin endpoints for organization portal
// tokens: issuing (which revokes the previous token) and reading the
// current request-page URL.
package handler

import (
	"net/http"
	"strconv"
	"strings"

	"compliance-portal/backend/internal/fault"
	orgrepo "compliance-portal/backend/internal/organization/repository"
	"compliance-portal/backend/internal/platform/httpx"
	"compliance-portal/backend/internal/platform/rbac"
	"compliance-portal/backend/internal/server/middleware"
	"compliance-portal/backend/internal/tokenvault"
)

type Handler struct {
	vault         *tokenvault.Vault
	orgs          orgrepo.Repository
	portalBaseURL string
}

func New(vault *tokenvault.Vault, orgs orgrepo.Repository, portalBaseURL string) *Handler {
	return &Handler{vault: vault, orgs: orgs, portalBaseURL: strings.TrimSuffix(portalBaseURL, "/")}
}

// Register mounts the admin routes. The caller wraps mux with the staff auth
// middleware.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/staff/organizations/{id}/token", h.issueToken)
	mux.HandleFunc("GET /api/staff/organizations/{id}/portal-url", h.portalURL)
}

type tokenResponse struct {
	Token string `json:"token"`
	URL   string `json:"url"`
}

func (h *Handler) requestPageURL(token string) string {
	return h.portalBaseURL + "/portal/" + token
}

// issueToken generates a fresh portal token for the organization. The
// previous token stops resolving the moment the new one is stored.
func (h *Handler) issueToken(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFrom(r.Context())
	if !ok {
		httpx.WriteJSON(w, http.StatusUnauthorized, httpx.ErrorBody{Error: "authentication required"})
		return
	}
	orgID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		httpx.BadRequest(w, "invalid organization id")
		return
	}
	if !rbac.CanIssueOrgToken(caller.Role) {
		httpx.WriteError(w, fault.New(fault.KindForbidden, "role may not issue portal tokens"))
		return
	}
	if err := rbac.RequireSameOrg(caller, orgID); err != nil {
		httpx.WriteError(w, err)
		return
	}

	token, err := h.vault.Issue(r.Context(), orgID)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tokenResponse{Token: token, URL: h.requestPageURL(token)})
}

// portalURL returns the organization's current request-page URL.
func (h *Handler) portalURL(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFrom(r.Context())
	if !ok {
		httpx.WriteJSON(w, http.StatusUnauthorized, httpx.ErrorBody{Error: "authentication required"})
		return
	}
	orgID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		httpx.BadRequest(w, "invalid organization id")
		return
	}
	if err := rbac.RequireSameOrg(caller, orgID); err != nil {
		httpx.WriteError(w, err)
		return
	}

	org, err := h.orgs.GetByID(r.Context(), orgID)
	if err != nil {
		httpx.WriteError(w, fault.Wrap(fault.KindUnavailable, "loading organization", err))
		return
	}
	if org == nil {
		httpx.WriteError(w, fault.New(fault.KindNotFound, "organization not found"))
		return
	}
	if org.CurrentToken == "" {
		httpx.WriteError(w, fault.New(fault.KindNotFound, "no portal token issued yet"))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tokenResponse{Token: org.CurrentToken, URL: h.requestPageURL(org.CurrentToken)})
}
