// Package requests exposes the dispatch pool over HTTP. Identity and role
// are already-resolved inputs carried in the request body; when token is
// non-empty every call must carry "Bearer <token>" in Authorization.
package requests

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sasyevadam01/sl-enterprise-sub002/core/model"
	"github.com/sasyevadam01/sl-enterprise-sub002/core/pool"
	"github.com/sasyevadam01/sl-enterprise-sub002/core/request"
)

// Handler serves the request query and mutation surface.
type Handler struct {
	mgr   *pool.Manager
	token string
	now   func() time.Time
}

// NewHandler returns the http.Handler for /api/requests.
func NewHandler(mgr *pool.Manager, token string) http.Handler {
	h := &Handler{mgr: mgr, token: token, now: time.Now}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/requests", h.requests)
	mux.HandleFunc("/api/requests/take", h.take)
	mux.HandleFunc("/api/requests/take-batch", h.takeBatch)
	mux.HandleFunc("/api/requests/release", h.release)
	mux.HandleFunc("/api/requests/complete", h.complete)
	mux.HandleFunc("/api/requests/cancel", h.cancel)
	mux.HandleFunc("/api/requests/urgent", h.markUrgent)
	return h.authorize(mux)
}

func (h *Handler) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.token != "" {
			auth := r.Header.Get("Authorization")
			if auth != "Bearer "+h.token {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// requestView is a DispatchRequest plus the read-time derived wait. The
// wait is computed per response and never cached.
type requestView struct {
	model.DispatchRequest
	WaitTimeSeconds float64 `json:"wait_time_seconds"`
}

func (h *Handler) view(r model.DispatchRequest) requestView {
	return requestView{DispatchRequest: r, WaitTimeSeconds: r.WaitSeconds(h.now().UTC())}
}

func (h *Handler) requests(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := request.Filter{
		AssignedTo:  q.Get("assigned_to"),
		RequesterID: q.Get("requester_id"),
		LocationID:  q.Get("location_id"),
	}
	switch status := q.Get("status"); status {
	case "", "active":
		f.Statuses = []model.RequestStatus{model.StatusPending, model.StatusProcessing}
	case "all":
	default:
		for _, s := range strings.Split(status, ",") {
			f.Statuses = append(f.Statuses, model.RequestStatus(s))
		}
	}
	if v := q.Get("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.CreatedFrom = t
		}
	}
	if v := q.Get("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.CreatedTo = t
		}
	}
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	f.Offset, _ = strconv.Atoi(q.Get("offset"))

	items, err := h.mgr.List(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]requestView, 0, len(items))
	for _, item := range items {
		views = append(views, h.view(item))
	}
	writeJSON(w, http.StatusOK, views)
}

type createBody struct {
	Kind             string  `json:"kind"`
	RequesterID      string  `json:"requester_id"`
	TargetLocationID string  `json:"target_location_id"`
	Description      string  `json:"description"`
	Quantity         float64 `json:"quantity"`
	Unit             string  `json:"unit"`
	ConfirmationCode string  `json:"confirmation_code"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var body createBody
	if !decode(w, r, &body) {
		return
	}
	created, err := h.mgr.Create(r.Context(), pool.CreateInput{
		Kind:             model.RequestKind(body.Kind),
		RequesterID:      body.RequesterID,
		TargetLocationID: body.TargetLocationID,
		Description:      body.Description,
		Quantity:         body.Quantity,
		Unit:             body.Unit,
		ConfirmationCode: body.ConfirmationCode,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.view(created))
}

type takeBody struct {
	RequestID  string   `json:"request_id"`
	RequestIDs []string `json:"request_ids"`
	OperatorID string   `json:"operator_id"`
	ETAMinutes int      `json:"eta_minutes"`
}

func (h *Handler) take(w http.ResponseWriter, r *http.Request) {
	var body takeBody
	if !requirePost(w, r) || !decode(w, r, &body) {
		return
	}
	taken, err := h.mgr.Take(r.Context(), body.RequestID, body.OperatorID, body.ETAMinutes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(taken))
}

func (h *Handler) takeBatch(w http.ResponseWriter, r *http.Request) {
	var body takeBody
	if !requirePost(w, r) || !decode(w, r, &body) {
		return
	}
	outcomes := h.mgr.TakeBatch(r.Context(), body.RequestIDs, body.OperatorID, body.ETAMinutes)
	writeJSON(w, http.StatusMultiStatus, outcomes)
}

type releaseBody struct {
	RequestID  string `json:"request_id"`
	OperatorID string `json:"operator_id"`
}

func (h *Handler) release(w http.ResponseWriter, r *http.Request) {
	var body releaseBody
	if !requirePost(w, r) || !decode(w, r, &body) {
		return
	}
	released, err := h.mgr.Release(r.Context(), body.RequestID, body.OperatorID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(released))
}

type completeBody struct {
	RequestID        string `json:"request_id"`
	OperatorID       string `json:"operator_id"`
	ConfirmationCode string `json:"confirmation_code"`
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	var body completeBody
	if !requirePost(w, r) || !decode(w, r, &body) {
		return
	}
	completed, err := h.mgr.Complete(r.Context(), body.RequestID, body.OperatorID, body.ConfirmationCode)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(completed))
}

type cancelBody struct {
	RequestID string `json:"request_id"`
	ActorID   string `json:"actor_id"`
	Role      string `json:"role"`
	Reason    string `json:"reason"`
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	var body cancelBody
	if !requirePost(w, r) || !decode(w, r, &body) {
		return
	}
	cancelled, err := h.mgr.Cancel(r.Context(), body.RequestID, body.ActorID, model.ActorRole(body.Role), body.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(cancelled))
}

type urgentBody struct {
	RequestID string `json:"request_id"`
}

func (h *Handler) markUrgent(w http.ResponseWriter, r *http.Request) {
	var body urgentBody
	if !requirePost(w, r) || !decode(w, r, &body) {
		return
	}
	marked, err := h.mgr.MarkUrgent(r.Context(), body.RequestID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(marked))
}

func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, pool.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, request.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, pool.ErrNotOwner):
		status = http.StatusForbidden
	case errors.Is(err, pool.ErrCodeMismatch):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, pool.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, request.ErrConflict):
		// Covers ErrAlreadyTaken; callers must refresh pool state.
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
