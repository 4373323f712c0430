/*
handlers.go - HTTP API handlers for the leave decision engine

PURPOSE:
  Exposes the leave engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the lifecycle/domain logic.

ENDPOINTS:
  Leaves:
    POST   /api/leaves                  Create leave request
    POST   /api/leaves/preview          Dry-run computation
    GET    /api/leaves/{id}             Get leave with breakdowns
    GET    /api/leaves?user_id=...      List a user's leaves
    PUT    /api/leaves/{id}/end-date    Edit end date (new revision)
    POST   /api/leaves/{id}/approve     Approve pending leave
    POST   /api/leaves/{id}/reject     Reject pending leave
    POST   /api/leaves/{id}/cancel      Cancel pending/approved leave
    GET    /api/leaves/{id}/tracking    Extension ledger entries

  Plans:
    GET    /api/plans?mess_id=...       List plans
    POST   /api/plans                   Create plan from JSON
    GET    /api/plans/{id}              Get plan

  Memberships:
    POST   /api/memberships             Enroll user in plan
    GET    /api/memberships?user_id=... List user memberships

  Off days:
    POST   /api/off-days                Declare mess closure
    GET    /api/off-days?mess_id=...    List closures in a window
    POST   /api/off-days/{id}/cancel    Cancel closure

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, invalid transition
  - 404: Resource not found
  - 409: Conflict (duplicate leave, concurrent modification)
  - 500: Internal errors
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/messkit/leave-engine/engine"
	"github.com/messkit/leave-engine/factory"
	"github.com/messkit/leave-engine/leave"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Lifecycle   *leave.Lifecycle
	Store       leave.TxStore
	PlanFactory *factory.PlanFactory
	Metrics     *Metrics
	Logger      zerolog.Logger
}

// NewHandler creates a handler around the lifecycle and its store.
func NewHandler(lc *leave.Lifecycle, metrics *Metrics, logger zerolog.Logger) *Handler {
	return &Handler{
		Lifecycle:   lc,
		Store:       lc.Store,
		PlanFactory: factory.NewPlanFactory(),
		Metrics:     metrics,
		Logger:      logger,
	}
}

// =============================================================================
// LEAVE ENDPOINTS
// =============================================================================

// CreateLeave creates a new leave request.
// POST /api/leaves
func (h *Handler) CreateLeave(w http.ResponseWriter, r *http.Request) {
	var req CreateLeaveRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	in, err := req.ToInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	l, err := h.Lifecycle.Create(r.Context(), in)
	if err != nil {
		writeDomainError(w, "Failed to create leave", err)
		return
	}

	h.Metrics.IncLeaveCreated(string(l.Status))
	writeJSON(w, http.StatusCreated, toLeaveDTO(l))
}

// PreviewLeave runs the computation without persisting.
// POST /api/leaves/preview
func (h *Handler) PreviewLeave(w http.ResponseWriter, r *http.Request) {
	var req CreateLeaveRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	in, err := req.ToInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	comp, err := h.Lifecycle.Preview(r.Context(), in)
	if err != nil {
		writeDomainError(w, "Failed to preview leave", err)
		return
	}
	writeJSON(w, http.StatusOK, toPreviewDTO(comp))
}

// GetLeave returns a single leave with its stored breakdowns.
// GET /api/leaves/{id}
func (h *Handler) GetLeave(w http.ResponseWriter, r *http.Request) {
	id := leave.LeaveID(chi.URLParam(r, "id"))
	l, err := h.Lifecycle.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get leave", err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveDTO(l))
}

// ListLeaves returns a user's leaves.
// GET /api/leaves?user_id=...
func (h *Handler) ListLeaves(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id query parameter is required", nil)
		return
	}
	leaves, err := h.Lifecycle.ListByUser(r.Context(), leave.UserID(userID))
	if err != nil {
		writeDomainError(w, "Failed to list leaves", err)
		return
	}
	dtos := make([]LeaveDTO, len(leaves))
	for i, l := range leaves {
		dtos[i] = toLeaveDTO(l)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// EditEndDate changes the end date under a new revision.
// PUT /api/leaves/{id}/end-date
func (h *Handler) EditEndDate(w http.ResponseWriter, r *http.Request) {
	id := leave.LeaveID(chi.URLParam(r, "id"))
	var req EditEndDateRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	newEnd, err := engine.ParseDate(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	l, err := h.Lifecycle.EditEndDate(r.Context(), id, newEnd)
	if err != nil {
		writeDomainError(w, "Failed to edit leave", err)
		return
	}
	h.Metrics.IncTransition("edited")
	writeJSON(w, http.StatusOK, toLeaveDTO(l))
}

// ApproveLeave approves a pending leave.
// POST /api/leaves/{id}/approve
func (h *Handler) ApproveLeave(w http.ResponseWriter, r *http.Request) {
	id := leave.LeaveID(chi.URLParam(r, "id"))
	var req ApproveLeaveRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	l, err := h.Lifecycle.Approve(r.Context(), id, req.ApprovedBy)
	if err != nil {
		writeDomainError(w, "Failed to approve leave", err)
		return
	}
	h.Metrics.IncTransition("approved")
	writeJSON(w, http.StatusOK, toLeaveDTO(l))
}

// RejectLeave rejects a pending leave.
// POST /api/leaves/{id}/reject
func (h *Handler) RejectLeave(w http.ResponseWriter, r *http.Request) {
	id := leave.LeaveID(chi.URLParam(r, "id"))
	var req RejectLeaveRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	l, err := h.Lifecycle.Reject(r.Context(), id, req.Reason)
	if err != nil {
		writeDomainError(w, "Failed to reject leave", err)
		return
	}
	h.Metrics.IncTransition("rejected")
	writeJSON(w, http.StatusOK, toLeaveDTO(l))
}

// CancelLeave cancels a pending or approved leave, reversing extensions.
// POST /api/leaves/{id}/cancel
func (h *Handler) CancelLeave(w http.ResponseWriter, r *http.Request) {
	id := leave.LeaveID(chi.URLParam(r, "id"))
	l, err := h.Lifecycle.Cancel(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to cancel leave", err)
		return
	}
	h.Metrics.IncTransition("cancelled")
	writeJSON(w, http.StatusOK, toLeaveDTO(l))
}

// GetTracking returns the extension ledger for a leave.
// GET /api/leaves/{id}/tracking
func (h *Handler) GetTracking(w http.ResponseWriter, r *http.Request) {
	id := leave.LeaveID(chi.URLParam(r, "id"))
	entries, err := h.Store.ListTracking(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to list tracking entries", err)
		return
	}
	writeJSON(w, http.StatusOK, toTrackingDTOs(entries))
}

// =============================================================================
// PLAN ENDPOINTS
// =============================================================================

// ListPlans returns a mess's plans.
// GET /api/plans?mess_id=...
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	messID := r.URL.Query().Get("mess_id")
	if messID == "" {
		writeError(w, http.StatusBadRequest, "mess_id query parameter is required", nil)
		return
	}
	plans, err := h.Store.ListPlans(r.Context(), leave.MessID(messID))
	if err != nil {
		writeDomainError(w, "Failed to list plans", err)
		return
	}
	writeJSON(w, http.StatusOK, plans)
}

// CreatePlan creates a plan from its JSON definition.
// POST /api/plans
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var pj factory.PlanJSON
	if !decodeBody(w, r, &pj) {
		return
	}
	plan, err := h.PlanFactory.FromJSON(pj)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid plan definition", err)
		return
	}
	if err := h.Store.SavePlan(r.Context(), plan); err != nil {
		writeDomainError(w, "Failed to save plan", err)
		return
	}
	writeJSON(w, http.StatusCreated, plan)
}

// GetPlan returns one plan.
// GET /api/plans/{id}
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := h.Store.GetPlan(r.Context(), leave.PlanID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to get plan", err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// =============================================================================
// MEMBERSHIP ENDPOINTS
// =============================================================================

// CreateMembership enrolls a user in a plan.
// POST /api/memberships
func (h *Handler) CreateMembership(w http.ResponseWriter, r *http.Request) {
	var req CreateMembershipRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	amount, err := decimal.NewFromString(req.PaymentAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid payment amount", err)
		return
	}

	m := &leave.Membership{
		ID:            leave.MembershipID(uuid.NewString()),
		UserID:        leave.UserID(req.UserID),
		MessID:        leave.MessID(req.MessID),
		PlanID:        leave.PlanID(req.PlanID),
		Status:        leave.MembershipActive,
		PaymentAmount: amount,
		CreatedAt:     time.Now().UTC(),
	}
	if req.SubscriptionStart != "" {
		if m.SubscriptionStart, err = engine.ParseDate(req.SubscriptionStart); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid subscription start", err)
			return
		}
	}
	if req.SubscriptionEnd != "" {
		if m.SubscriptionEnd, err = engine.ParseDate(req.SubscriptionEnd); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid subscription end", err)
			return
		}
	}

	if err := h.Store.SaveMembership(r.Context(), m); err != nil {
		writeDomainError(w, "Failed to save membership", err)
		return
	}
	writeJSON(w, http.StatusCreated, toMembershipDTO(m))
}

// ListMemberships returns a user's memberships.
// GET /api/memberships?user_id=...
func (h *Handler) ListMemberships(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id query parameter is required", nil)
		return
	}
	memberships, err := h.Store.ListMemberships(r.Context(), leave.UserID(userID))
	if err != nil {
		writeDomainError(w, "Failed to list memberships", err)
		return
	}
	dtos := make([]MembershipDTO, len(memberships))
	for i, m := range memberships {
		dtos[i] = toMembershipDTO(m)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// OFF DAY ENDPOINTS
// =============================================================================

// CreateOffDay declares a mess closure.
// POST /api/off-days
func (h *Handler) CreateOffDay(w http.ResponseWriter, r *http.Request) {
	var req CreateOffDayRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	start, err := engine.ParseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start date", err)
		return
	}
	end := start
	if req.EndDate != "" {
		if end, err = engine.ParseDate(req.EndDate); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid end date", err)
			return
		}
	}
	if end.Before(start) {
		writeError(w, http.StatusBadRequest, "End date before start date", nil)
		return
	}

	o := &leave.MessOffDay{
		ID:         uuid.NewString(),
		MessID:     leave.MessID(req.MessID),
		Start:      start,
		End:        end,
		StartMeals: req.StartMeals,
		EndMeals:   req.EndMeals,
		Status:     leave.OffDayActive,
		CreatedAt:  time.Now().UTC(),
	}
	if err := h.Store.SaveOffDay(r.Context(), o); err != nil {
		writeDomainError(w, "Failed to save off day", err)
		return
	}
	writeJSON(w, http.StatusCreated, toOffDayDTO(o))
}

// ListOffDays returns a mess's closures intersecting the given window
// (defaults to the current year).
// GET /api/off-days?mess_id=...&from=...&to=...
func (h *Handler) ListOffDays(w http.ResponseWriter, r *http.Request) {
	messID := r.URL.Query().Get("mess_id")
	if messID == "" {
		writeError(w, http.StatusBadRequest, "mess_id query parameter is required", nil)
		return
	}

	now := time.Now().UTC()
	w0 := engine.NewDate(now.Year(), time.January, 1)
	w1 := engine.NewDate(now.Year(), time.December, 31)
	if from := r.URL.Query().Get("from"); from != "" {
		d, err := engine.ParseDate(from)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid from date", err)
			return
		}
		w0 = d
	}
	if to := r.URL.Query().Get("to"); to != "" {
		d, err := engine.ParseDate(to)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid to date", err)
			return
		}
		w1 = d
	}

	offDays, err := h.Store.ListOffDays(r.Context(), leave.MessID(messID), engine.Window{Start: w0, End: w1})
	if err != nil {
		writeDomainError(w, "Failed to list off days", err)
		return
	}
	dtos := make([]OffDayDTO, len(offDays))
	for i, o := range offDays {
		dtos[i] = toOffDayDTO(o)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CancelOffDay marks a closure cancelled so it no longer suppresses meals.
// POST /api/off-days/{id}/cancel
func (h *Handler) CancelOffDay(w http.ResponseWriter, r *http.Request) {
	o, err := h.Store.GetOffDay(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get off day", err)
		return
	}
	o.Status = leave.OffDayCancelled
	if err := h.Store.UpdateOffDay(r.Context(), o); err != nil {
		writeDomainError(w, "Failed to cancel off day", err)
		return
	}
	writeJSON(w, http.StatusOK, toOffDayDTO(o))
}

// Healthz reports liveness.
// GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

func decodeAndValidate(w http.ResponseWriter, r *http.Request, v any) bool {
	if !decodeBody(w, r, v) {
		return false
	}
	if err := validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

// writeDomainError maps domain errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case engine.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case engine.IsConflict(err), errors.Is(err, engine.ErrConcurrentModification), errors.Is(err, engine.ErrDuplicateTracking):
		writeError(w, http.StatusConflict, message, err)
	case engine.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
