// Package handler exposes the public submitter endpoints: portal token
// resolution, the OTP flow, and request submission.
package handler

import (
	"net/http"
	"time"

	"compliance-portal/backend/internal/accessgate/service"
	"compliance-portal/backend/internal/fault"
	"compliance-portal/backend/internal/otpecho"
	"compliance-portal/backend/internal/platform/httpx"
	reqdomain "compliance-portal/backend/internal/request/domain"
)

type Handler struct {
	gate *service.Service
	echo otpecho.Store // nil unless test-mode echo is enabled
}

func New(gate *service.Service, echo otpecho.Store) *Handler {
	return &Handler{gate: gate, echo: echo}
}

// Register mounts the public routes. The dev echo route is only registered
// when an echo store was configured.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/portal/{token}", h.resolvePortal)
	mux.HandleFunc("POST /api/portal/{token}/otp", h.requestOTP)
	mux.HandleFunc("POST /api/verify", h.verify)
	mux.HandleFunc("POST /api/requests", h.submitRequest)
	if h.echo != nil {
		mux.HandleFunc("GET /api/dev/otp/{challengeToken}", h.echoCode)
	}
}

type orgResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func (h *Handler) resolvePortal(w http.ResponseWriter, r *http.Request) {
	org, err := h.gate.ResolveOrganization(r.Context(), r.PathValue("token"))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orgResponse{ID: org.ID, Name: org.Name})
}

type otpRequestBody struct {
	Email string `json:"email"`
}

type otpResponse struct {
	ChallengeToken string    `json:"challengeToken"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

func (h *Handler) requestOTP(w http.ResponseWriter, r *http.Request) {
	var body otpRequestBody
	if err := httpx.Decode(r, &body); err != nil {
		httpx.BadRequest(w, "malformed request body")
		return
	}
	v, err := h.gate.BeginVerification(r.Context(), r.PathValue("token"), body.Email)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, otpResponse{ChallengeToken: v.ChallengeToken, ExpiresAt: v.ExpiresAt})
}

type verifyBody struct {
	ChallengeToken string `json:"challengeToken"`
	Code           string `json:"code"`
}

type sessionResponse struct {
	SessionToken string    `json:"sessionToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// verify completes the OTP check. Mismatch, unknown challenge, and replay
// all collapse to the same 403 body so a caller probing the endpoint learns
// nothing about which challenges exist or their state. Expiry and lockout
// keep their own codes: both are about the caller's own challenge.
func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	var body verifyBody
	if err := httpx.Decode(r, &body); err != nil {
		httpx.BadRequest(w, "malformed request body")
		return
	}
	grant, err := h.gate.CompleteVerification(r.Context(), body.ChallengeToken, body.Code)
	if err != nil {
		switch fault.KindOf(err) {
		case fault.KindNotFound, fault.KindForbidden, fault.KindConflict:
			httpx.WriteJSON(w, http.StatusForbidden, httpx.ErrorBody{Error: "verification failed"})
		default:
			httpx.WriteError(w, err)
		}
		return
	}
	httpx.WriteJSON(w, http.StatusOK, sessionResponse{SessionToken: grant.Token, ExpiresAt: grant.ExpiresAt})
}

type submitBody struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Phone       string `json:"phone"`
	RequestType string `json:"requestType"`
	Comment     string `json:"comment"`
}

type requestResponse struct {
	ID             int64     `json:"id"`
	Status         string    `json:"status"`
	RequestType    string    `json:"requestType"`
	CompletionDate time.Time `json:"completionDate"`
}

func (h *Handler) submitRequest(w http.ResponseWriter, r *http.Request) {
	sessionToken := r.Header.Get("X-Session-Token")
	if sessionToken == "" {
		httpx.WriteJSON(w, http.StatusForbidden, httpx.ErrorBody{Error: "verification required"})
		return
	}
	var body submitBody
	if err := httpx.Decode(r, &body); err != nil {
		httpx.BadRequest(w, "malformed request body")
		return
	}
	req, err := h.gate.SubmitRequest(r.Context(), sessionToken, service.SubmitParams{
		FirstName: body.FirstName,
		LastName:  body.LastName,
		Phone:     body.Phone,
		Type:      reqdomain.RequestType(body.RequestType),
		Comment:   body.Comment,
	})
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, requestResponse{
		ID:             req.ID,
		Status:         req.StatusName,
		RequestType:    string(req.Type),
		CompletionDate: req.CompletionDate,
	})
}

// echoCode returns the plaintext code for a challenge. Test environments
// only; registration is gated on the explicit config flag.
func (h *Handler) echoCode(w http.ResponseWriter, r *http.Request) {
	code, ok := h.echo.Get(r.Context(), r.PathValue("challengeToken"))
	if !ok {
		httpx.WriteJSON(w, http.StatusNotFound, httpx.ErrorBody{Error: "no code for challenge"})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"code": code})
}
