// Package handler contains HTTP handlers for the entitlement service.
//
// This file implements the billing-event intake: the write side of the
// subscription snapshot.
//
// Routes:
//   - POST /internal/billing/events     -> apply a pushed subscription fact
//   - POST /internal/billing/sync       -> pull current state from Stripe
//   - POST /internal/billing/cancel     -> cancel at period end, then re-sync
//   - POST /internal/billing/reactivate -> clear the cancel flag, then re-sync
//
// These routes are INTERNAL: the billing pipeline that calls them has
// already verified provider webhooks upstream, so the facts arriving here
// are trusted.
package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/DukeRupert/applygate/internal/billing"
	"github.com/DukeRupert/applygate/internal/domain"
	"github.com/DukeRupert/applygate/internal/service"
)

// BillingHandler applies subscription facts from the billing provider.
type BillingHandler struct {
	subscriptions service.SubscriptionService
	billing       billing.Service
	logger        *slog.Logger
}

// NewBillingHandler creates a new BillingHandler.
// billingService may be nil when Stripe is not configured; the sync route
// then answers 503.
func NewBillingHandler(subscriptions service.SubscriptionService, billingService billing.Service, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{
		subscriptions: subscriptions,
		billing:       billingService,
		logger:        logger,
	}
}

// RegisterRoutes registers billing intake routes on the provided mux.
func (h *BillingHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /internal/billing/events", h.HandleEvent)
	mux.HandleFunc("POST /internal/billing/sync", h.HandleSync)
	mux.HandleFunc("POST /internal/billing/cancel", h.HandleCancel)
	mux.HandleFunc("POST /internal/billing/reactivate", h.HandleReactivate)
}

// billingEventRequest is the pushed subscription-fact shape.
type billingEventRequest struct {
	PrincipalID       uuid.UUID `json:"principalId"`
	PlanID            string    `json:"planId"`
	Status            string    `json:"status"`
	OccurredAt        time.Time `json:"occurredAt"`
	CancelAtPeriodEnd bool      `json:"cancelAtPeriodEnd"`
}

// subscriptionResponse is the applied snapshot returned to the pipeline.
type subscriptionResponse struct {
	PrincipalID       uuid.UUID `json:"principalId"`
	PlanID            string    `json:"planId"`
	Status            string    `json:"status"`
	SubscribedAt      time.Time `json:"subscribedAt"`
	CancelAtPeriodEnd bool      `json:"cancelAtPeriodEnd"`
}

// HandleEvent applies a subscription fact pushed by the billing pipeline.
func (h *BillingHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	const op = "billing.intake_event"

	var req billingEventRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 65536)).Decode(&req); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "request body must be a JSON subscription fact"))
		return
	}

	sub, err := h.subscriptions.ApplyBillingFact(r.Context(), domain.BillingFact{
		PrincipalID:       req.PrincipalID,
		PlanID:            domain.PlanID(req.PlanID),
		Status:            domain.SubscriptionStatus(req.Status),
		OccurredAt:        req.OccurredAt,
		CancelAtPeriodEnd: req.CancelAtPeriodEnd,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, subscriptionResponse{
		PrincipalID:       sub.PrincipalID,
		PlanID:            string(sub.PlanID),
		Status:            string(sub.Status),
		SubscribedAt:      sub.SubscribedAt,
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	})
}

// syncRequest asks for a principal's subscription to be pulled from Stripe.
type syncRequest struct {
	PrincipalID    uuid.UUID `json:"principalId"`
	SubscriptionID string    `json:"subscriptionId"`
}

// HandleSync pulls the current subscription state from Stripe and applies it.
// A recovery path for missed pushes.
func (h *BillingHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	const op = "billing.sync"

	if h.billing == nil {
		h.logger.Warn("billing sync requested but stripe is not configured")
		ErrorResponse(w, r, h.logger, domain.Unavailable(nil, op, "billing provider is not configured"))
		return
	}

	req, ok := h.decodeSyncRequest(w, r, op)
	if !ok {
		return
	}

	h.pullAndApply(w, r, op, req)
}

// HandleCancel flags the subscription to cancel at period end in Stripe and
// re-applies the resulting state, so the snapshot's cancelAtPeriodEnd flips
// without waiting for a pushed fact.
func (h *BillingHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	const op = "billing.cancel"

	if h.billing == nil {
		ErrorResponse(w, r, h.logger, domain.Unavailable(nil, op, "billing provider is not configured"))
		return
	}

	req, ok := h.decodeSyncRequest(w, r, op)
	if !ok {
		return
	}

	if err := h.billing.CancelSubscription(req.SubscriptionID); err != nil {
		ErrorResponse(w, r, h.logger, domain.Unavailable(err, op, "failed to cancel subscription with billing provider"))
		return
	}

	h.pullAndApply(w, r, op, req)
}

// HandleReactivate clears the cancel-at-period-end flag in Stripe and
// re-applies the resulting state.
func (h *BillingHandler) HandleReactivate(w http.ResponseWriter, r *http.Request) {
	const op = "billing.reactivate"

	if h.billing == nil {
		ErrorResponse(w, r, h.logger, domain.Unavailable(nil, op, "billing provider is not configured"))
		return
	}

	req, ok := h.decodeSyncRequest(w, r, op)
	if !ok {
		return
	}

	if err := h.billing.ReactivateSubscription(req.SubscriptionID); err != nil {
		ErrorResponse(w, r, h.logger, domain.Unavailable(err, op, "failed to reactivate subscription with billing provider"))
		return
	}

	h.pullAndApply(w, r, op, req)
}

func (h *BillingHandler) decodeSyncRequest(w http.ResponseWriter, r *http.Request, op string) (syncRequest, bool) {
	var req syncRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 65536)).Decode(&req); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "request body must be JSON"))
		return syncRequest{}, false
	}
	if req.PrincipalID == uuid.Nil || req.SubscriptionID == "" {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "principalId and subscriptionId are required"))
		return syncRequest{}, false
	}
	return req, true
}

// pullAndApply fetches the subscription from the billing provider, maps its
// price onto a plan and applies the resulting fact to the snapshot.
func (h *BillingHandler) pullAndApply(w http.ResponseWriter, r *http.Request, op string, req syncRequest) {
	stripeSub, err := h.billing.GetSubscription(req.SubscriptionID)
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Unavailable(err, op, "failed to fetch subscription from billing provider"))
		return
	}

	planID := domain.PlanID("")
	if len(stripeSub.Items.Data) > 0 && stripeSub.Items.Data[0].Price != nil {
		planID = h.billing.PlanForPriceID(stripeSub.Items.Data[0].Price.ID)
	}
	if planID == "" {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "subscription price does not map to a known plan"))
		return
	}

	sub, err := h.subscriptions.ApplyBillingFact(r.Context(), billing.FactFromSubscription(req.PrincipalID, stripeSub, planID))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	h.logger.Info("subscription state applied from billing provider",
		"op", op,
		"principal_id", sub.PrincipalID,
		"plan", sub.PlanID,
		"status", sub.Status,
		"cancel_at_period_end", sub.CancelAtPeriodEnd,
	)

	writeJSON(w, http.StatusOK, subscriptionResponse{
		PrincipalID:       sub.PrincipalID,
		PlanID:            string(sub.PlanID),
		Status:            string(sub.Status),
		SubscribedAt:      sub.SubscribedAt,
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	})
}
