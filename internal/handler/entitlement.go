// Package handler contains HTTP handlers for the entitlement service.
//
// Routes:
//   - GET  /entitlement/status  -> read-only eligibility for display
//   - POST /entitlement/reserve -> atomic reserve-or-reject before the action
//   - POST /entitlement/release -> compensating undo when the action failed
//
// All three sit behind the principal middleware. A denial is a routine
// outcome: reserve answers 200 with allowed=false, never an error status.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/DukeRupert/applygate/internal/auth"
	"github.com/DukeRupert/applygate/internal/domain"
	"github.com/DukeRupert/applygate/internal/service"
)

// EntitlementHandler serves the entitlement API.
type EntitlementHandler struct {
	entitlements service.EntitlementService
	logger       *slog.Logger
}

// NewEntitlementHandler creates a new EntitlementHandler.
func NewEntitlementHandler(entitlements service.EntitlementService, logger *slog.Logger) *EntitlementHandler {
	return &EntitlementHandler{
		entitlements: entitlements,
		logger:       logger,
	}
}

// RegisterRoutes registers entitlement routes on the provided mux. The mux
// is expected to already be wrapped in the principal middleware.
func (h *EntitlementHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /entitlement/status", h.HandleStatus)
	mux.HandleFunc("POST /entitlement/reserve", h.HandleReserve)
	mux.HandleFunc("POST /entitlement/release", h.HandleRelease)
}

// eligibilityResponse is the wire shape of an entitlement decision.
type eligibilityResponse struct {
	Allowed        bool       `json:"allowed"`
	Reason         string     `json:"reason"`
	Plan           string     `json:"plan"`
	Used           int        `json:"used"`
	Limit          *int       `json:"limit"`
	Remaining      *int       `json:"remaining"`
	WindowStart    *time.Time `json:"windowStart,omitempty"`
	ResetAt        *time.Time `json:"resetAt"`
	DaysUntilReset *int       `json:"daysUntilReset"`
}

func toResponse(e *domain.Eligibility) eligibilityResponse {
	return eligibilityResponse{
		Allowed:        e.Allowed,
		Reason:         string(e.Reason),
		Plan:           string(e.Plan),
		Used:           e.Used,
		Limit:          e.Limit,
		Remaining:      e.Remaining,
		WindowStart:    e.WindowStart,
		ResetAt:        e.WindowEnd,
		DaysUntilReset: e.DaysUntilReset,
	}
}

// HandleStatus returns the current eligibility without consuming anything.
func (h *EntitlementHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	principalID, ok := h.principal(w, r)
	if !ok {
		return
	}

	result, err := h.entitlements.Status(r.Context(), principalID)
	h.writeDecision(w, r, result, err)
}

// HandleReserve consumes one unit of quota if eligible.
func (h *EntitlementHandler) HandleReserve(w http.ResponseWriter, r *http.Request) {
	principalID, ok := h.principal(w, r)
	if !ok {
		return
	}

	result, err := h.entitlements.Reserve(r.Context(), principalID)
	h.writeDecision(w, r, result, err)
}

// releaseRequest identifies the window a reservation should be returned to.
// Reserve responses include windowStart so callers can round-trip it.
type releaseRequest struct {
	WindowStart time.Time `json:"windowStart"`
}

// HandleRelease returns one previously reserved unit. Idempotent.
func (h *EntitlementHandler) HandleRelease(w http.ResponseWriter, r *http.Request) {
	principalID, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req releaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("entitlement.release", "request body must be JSON with a windowStart timestamp"))
		return
	}
	if req.WindowStart.IsZero() {
		ErrorResponse(w, r, h.logger, domain.Invalid("entitlement.release", "windowStart is required"))
		return
	}

	if err := h.entitlements.Release(r.Context(), principalID, req.WindowStart); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// writeDecision writes an eligibility result. Routine decisions (including
// denials) are 200; an evaluation failure is the one decision that is also
// an error, surfaced as 503 with the fail-closed body.
func (h *EntitlementHandler) writeDecision(w http.ResponseWriter, r *http.Request, result *domain.Eligibility, err error) {
	if err != nil {
		if result != nil && result.Reason == domain.ReasonEvaluationFailed {
			logError(h.logger, r, err, domain.ErrorCode(err), domain.ErrorOp(err), http.StatusServiceUnavailable)
			writeJSON(w, http.StatusServiceUnavailable, toResponse(result))
			return
		}
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toResponse(result))
}

func (h *EntitlementHandler) principal(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	principalID := auth.GetPrincipalFromRequest(r)
	if principalID == uuid.Nil {
		UnauthorizedResponse(w, r, h.logger)
		return uuid.Nil, false
	}
	return principalID, true
}
