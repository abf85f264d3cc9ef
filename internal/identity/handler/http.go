// Package handler exposes the staff login endpoint.
package handler

import (
	"net/http"
	"time"

	"compliance-portal/backend/internal/identity/service"
	"compliance-portal/backend/internal/platform/httpx"
)

type Handler struct {
	auth *service.Service
}

func New(auth *service.Service) *Handler {
	return &Handler{auth: auth}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/login", h.login)
}

type loginBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Role      string    `json:"role"`
	OrgID     int64     `json:"organizationId"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var body loginBody
	if err := httpx.Decode(r, &body); err != nil {
		httpx.BadRequest(w, "malformed request body")
		return
	}
	res, err := h.auth.Login(r.Context(), body.Username, body.Password)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, loginResponse{
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		Role:      string(res.User.Role),
		OrgID:     res.User.OrganizationID,
	})
}
