// Package handler exposes the staff request endpoints: listing, detail,
// history, the status vocabulary, and workflow updates.
package handler

import (
	"net/http"
	"strconv"
	"time"

	"compliance-portal/backend/internal/fault"
	"compliance-portal/backend/internal/platform/httpx"
	"compliance-portal/backend/internal/request/domain"
	"compliance-portal/backend/internal/request/service"
	"compliance-portal/backend/internal/server/middleware"
)

type Handler struct {
	requests *service.Service
}

func New(requests *service.Service) *Handler {
	return &Handler{requests: requests}
}

// Register mounts the staff routes on mux. The caller wraps mux with the
// staff auth middleware; handlers assume a caller on the context.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/staff/requests", h.list)
	mux.HandleFunc("GET /api/staff/requests/{id}", h.get)
	mux.HandleFunc("PATCH /api/staff/requests/{id}", h.update)
	mux.HandleFunc("GET /api/staff/requests/{id}/history", h.history)
	mux.HandleFunc("GET /api/staff/statuses", h.statuses)
}

type requestView struct {
	ID              int64      `json:"id"`
	OrganizationID  int64      `json:"organizationId"`
	FirstName       string     `json:"firstName"`
	LastName        string     `json:"lastName"`
	Email           string     `json:"email"`
	Phone           string     `json:"phone"`
	RequestType     string     `json:"requestType"`
	Comment         string     `json:"comment,omitempty"`
	StatusID        int32      `json:"statusId"`
	Status          string     `json:"status"`
	AssignedTo      *int64     `json:"assignedTo,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	LastUpdatedAt   time.Time  `json:"lastUpdatedAt"`
	CompletionDate  time.Time  `json:"completionDate"`
	CompletedOnTime *bool      `json:"completedOnTime,omitempty"`
	ClosedAt        *time.Time `json:"closedAt,omitempty"`
	ClosureComments string     `json:"closureComments,omitempty"`
}

func toView(req *domain.Request) requestView {
	return requestView{
		ID:              req.ID,
		OrganizationID:  req.OrganizationID,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Email:           req.Email,
		Phone:           req.Phone,
		RequestType:     string(req.Type),
		Comment:         req.Comment,
		StatusID:        req.StatusID,
		Status:          req.StatusName,
		AssignedTo:      req.AssignedToUserID,
		CreatedAt:       req.CreatedAt,
		LastUpdatedAt:   req.LastUpdatedAt,
		CompletionDate:  req.CompletionDate,
		CompletedOnTime: req.CompletedOnTime,
		ClosedAt:        req.ClosedAt,
		ClosureComments: req.ClosureComments,
	}
}

func queryInt32(r *http.Request, name string, fallback int32) int32 {
	if s := r.URL.Query().Get(name); s != "" {
		if n, err := strconv.ParseInt(s, 10, 32); err == nil {
			return int32(n)
		}
	}
	return fallback
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFrom(r.Context())
	if !ok {
		httpx.WriteJSON(w, http.StatusUnauthorized, httpx.ErrorBody{Error: "authentication required"})
		return
	}
	reqs, err := h.requests.List(r.Context(), caller,
		queryInt32(r, "limit", 50), queryInt32(r, "offset", 0))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	views := make([]requestView, len(reqs))
	for i, req := range reqs {
		views[i] = toView(req)
	}
	httpx.WriteJSON(w, http.StatusOK, views)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFrom(r.Context())
	if !ok {
		httpx.WriteJSON(w, http.StatusUnauthorized, httpx.ErrorBody{Error: "authentication required"})
		return
	}
	id, ok := pathID(r)
	if !ok {
		httpx.BadRequest(w, "invalid request id")
		return
	}
	req, err := h.requests.Get(r.Context(), caller, id)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toView(req))
}

type updateBody struct {
	StatusID        *int32  `json:"statusId"`
	AssignedTo      *int64  `json:"assignedTo"`
	ClosureComments *string `json:"closureComments"`
	Comment         string  `json:"comment"`
}

type updateResponse struct {
	Updated bool         `json:"updated"`
	Request *requestView `json:"request,omitempty"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFrom(r.Context())
	if !ok {
		httpx.WriteJSON(w, http.StatusUnauthorized, httpx.ErrorBody{Error: "authentication required"})
		return
	}
	id, ok := pathID(r)
	if !ok {
		httpx.BadRequest(w, "invalid request id")
		return
	}
	var body updateBody
	if err := httpx.Decode(r, &body); err != nil {
		httpx.BadRequest(w, "malformed request body")
		return
	}
	req, err := h.requests.Update(r.Context(), caller, id, domain.UpdatePatch{
		StatusID:        body.StatusID,
		AssignedTo:      body.AssignedTo,
		ClosureComments: body.ClosureComments,
		Comment:         body.Comment,
	})
	if err != nil {
		// A patch that changes nothing is reported, not failed.
		if fault.IsKind(err, fault.KindNoOp) {
			httpx.WriteJSON(w, http.StatusOK, updateResponse{Updated: false})
			return
		}
		httpx.WriteError(w, err)
		return
	}
	v := toView(req)
	httpx.WriteJSON(w, http.StatusOK, updateResponse{Updated: true, Request: &v})
}

type historyView struct {
	ID              int64     `json:"id"`
	ChangeDate      time.Time `json:"changeDate"`
	ChangedByUserID int64     `json:"changedBy"`
	OldStatusID     *int32    `json:"oldStatusId,omitempty"`
	NewStatusID     *int32    `json:"newStatusId,omitempty"`
	OldAssignedTo   *int64    `json:"oldAssignedTo,omitempty"`
	NewAssignedTo   *int64    `json:"newAssignedTo,omitempty"`
	Comments        string    `json:"comments,omitempty"`
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFrom(r.Context())
	if !ok {
		httpx.WriteJSON(w, http.StatusUnauthorized, httpx.ErrorBody{Error: "authentication required"})
		return
	}
	id, ok := pathID(r)
	if !ok {
		httpx.BadRequest(w, "invalid request id")
		return
	}
	entries, err := h.requests.History(r.Context(), caller, id)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	views := make([]historyView, len(entries))
	for i, e := range entries {
		views[i] = historyView{
			ID:              e.ID,
			ChangeDate:      e.ChangeDate,
			ChangedByUserID: e.ChangedByUserID,
			OldStatusID:     e.OldStatusID,
			NewStatusID:     e.NewStatusID,
			OldAssignedTo:   e.OldAssignedToUID,
			NewAssignedTo:   e.NewAssignedToUID,
			Comments:        e.Comments,
		}
	}
	httpx.WriteJSON(w, http.StatusOK, views)
}

type statusView struct {
	ID      int32  `json:"id"`
	Name    string `json:"name"`
	SLADays int    `json:"slaDays"`
}

func (h *Handler) statuses(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.requests.Statuses(r.Context())
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	views := make([]statusView, len(statuses))
	for i, s := range statuses {
		views[i] = statusView{ID: s.ID, Name: s.Name, SLADays: s.SLADays}
	}
	httpx.WriteJSON(w, http.StatusOK, views)
}
