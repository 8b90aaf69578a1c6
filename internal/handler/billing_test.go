package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"

	"github.com/DukeRupert/applygate/internal/domain"
)

// stubSubscriptions records applied facts.
type stubSubscriptions struct {
	applied  []domain.BillingFact
	applyErr error
}

func (s *stubSubscriptions) ActiveSnapshot(ctx context.Context, principalID uuid.UUID) (*domain.Subscription, error) {
	return nil, nil
}

func (s *stubSubscriptions) ApplyBillingFact(ctx context.Context, fact domain.BillingFact) (*domain.Subscription, error) {
	if s.applyErr != nil {
		return nil, s.applyErr
	}
	s.applied = append(s.applied, fact)
	return &domain.Subscription{
		ID:                uuid.New(),
		PrincipalID:       fact.PrincipalID,
		PlanID:            fact.PlanID,
		Status:            fact.Status,
		SubscribedAt:      fact.OccurredAt,
		CancelAtPeriodEnd: fact.CancelAtPeriodEnd,
	}, nil
}

func (s *stubSubscriptions) Invalidate(principalID uuid.UUID) {}

// stubBilling holds one subscription and mutates its cancel flag the way the
// provider would.
type stubBilling struct {
	sub             *stripe.Subscription
	priceToPlan     map[string]domain.PlanID
	cancelCalls     int
	reactivateCalls int
}

func newStubBilling(priceID string, plan domain.PlanID) *stubBilling {
	return &stubBilling{
		sub: &stripe.Subscription{
			Status:    stripe.SubscriptionStatusActive,
			StartDate: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC).Unix(),
			Items: &stripe.SubscriptionItemList{
				Data: []*stripe.SubscriptionItem{
					{Price: &stripe.Price{ID: priceID}},
				},
			},
		},
		priceToPlan: map[string]domain.PlanID{priceID: plan},
	}
}

func (s *stubBilling) GetSubscription(subscriptionID string) (*stripe.Subscription, error) {
	return s.sub, nil
}

func (s *stubBilling) CancelSubscription(subscriptionID string) error {
	s.cancelCalls++
	s.sub.CancelAtPeriodEnd = true
	return nil
}

func (s *stubBilling) ReactivateSubscription(subscriptionID string) error {
	s.reactivateCalls++
	s.sub.CancelAtPeriodEnd = false
	return nil
}

func (s *stubBilling) PlanForPriceID(priceID string) domain.PlanID {
	return s.priceToPlan[priceID]
}

func TestHandleEvent(t *testing.T) {
	subs := &stubSubscriptions{}
	h := NewBillingHandler(subs, nil, testLogger())

	principal := uuid.New()
	payload, _ := json.Marshal(billingEventRequest{
		PrincipalID: principal,
		PlanID:      string(domain.PlanStandard),
		Status:      string(domain.SubscriptionStatusActive),
		OccurredAt:  time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
	})

	req := httptest.NewRequest(http.MethodPost, "/internal/billing/events", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	h.HandleEvent(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(subs.applied) != 1 {
		t.Fatalf("expected 1 applied fact, got %d", len(subs.applied))
	}
	if subs.applied[0].PrincipalID != principal {
		t.Error("fact carried the wrong principal")
	}

	var body subscriptionResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.PlanID != string(domain.PlanStandard) {
		t.Errorf("expected plan %q, got %q", domain.PlanStandard, body.PlanID)
	}
}

func TestHandleEventRejectsBadBody(t *testing.T) {
	subs := &stubSubscriptions{}
	h := NewBillingHandler(subs, nil, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/internal/billing/events", strings.NewReader("not-json"))
	rec := httptest.NewRecorder()
	h.HandleEvent(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(subs.applied) != 0 {
		t.Errorf("expected no applied facts, got %d", len(subs.applied))
	}
}

func TestHandleEventPropagatesValidationError(t *testing.T) {
	subs := &stubSubscriptions{applyErr: domain.Invalid("subscription.apply_billing_fact", "unknown subscription status")}
	h := NewBillingHandler(subs, nil, testLogger())

	payload, _ := json.Marshal(billingEventRequest{
		PrincipalID: uuid.New(),
		PlanID:      string(domain.PlanStandard),
		Status:      "paused",
		OccurredAt:  time.Now(),
	})

	req := httptest.NewRequest(http.MethodPost, "/internal/billing/events", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	h.HandleEvent(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleSyncWithoutStripeConfigured(t *testing.T) {
	subs := &stubSubscriptions{}
	h := NewBillingHandler(subs, nil, testLogger())

	payload, _ := json.Marshal(syncRequest{PrincipalID: uuid.New(), SubscriptionID: "sub_123"})

	req := httptest.NewRequest(http.MethodPost, "/internal/billing/sync", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	h.HandleSync(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when stripe is not configured, got %d", rec.Code)
	}
}

func TestHandleCancelFlipsCancelFlag(t *testing.T) {
	subs := &stubSubscriptions{}
	billingStub := newStubBilling("price_std_m", domain.PlanStandard)
	h := NewBillingHandler(subs, billingStub, testLogger())

	principal := uuid.New()
	payload, _ := json.Marshal(syncRequest{PrincipalID: principal, SubscriptionID: "sub_123"})

	req := httptest.NewRequest(http.MethodPost, "/internal/billing/cancel", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	h.HandleCancel(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if billingStub.cancelCalls != 1 {
		t.Fatalf("expected 1 provider cancel call, got %d", billingStub.cancelCalls)
	}
	if len(subs.applied) != 1 {
		t.Fatalf("expected the post-cancel state to be applied, got %d facts", len(subs.applied))
	}
	if !subs.applied[0].CancelAtPeriodEnd {
		t.Error("applied fact must carry the cancel flag")
	}

	var body subscriptionResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if !body.CancelAtPeriodEnd {
		t.Error("response must reflect the cancel flag")
	}
}

func TestHandleReactivateClearsCancelFlag(t *testing.T) {
	subs := &stubSubscriptions{}
	billingStub := newStubBilling("price_std_m", domain.PlanStandard)
	billingStub.sub.CancelAtPeriodEnd = true
	h := NewBillingHandler(subs, billingStub, testLogger())

	payload, _ := json.Marshal(syncRequest{PrincipalID: uuid.New(), SubscriptionID: "sub_123"})

	req := httptest.NewRequest(http.MethodPost, "/internal/billing/reactivate", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	h.HandleReactivate(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if billingStub.reactivateCalls != 1 {
		t.Fatalf("expected 1 provider reactivate call, got %d", billingStub.reactivateCalls)
	}
	if len(subs.applied) != 1 || subs.applied[0].CancelAtPeriodEnd {
		t.Error("applied fact must have the cancel flag cleared")
	}
}

func TestHandleCancelWithoutStripeConfigured(t *testing.T) {
	subs := &stubSubscriptions{}
	h := NewBillingHandler(subs, nil, testLogger())

	payload, _ := json.Marshal(syncRequest{PrincipalID: uuid.New(), SubscriptionID: "sub_123"})

	req := httptest.NewRequest(http.MethodPost, "/internal/billing/cancel", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	h.HandleCancel(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when stripe is not configured, got %d", rec.Code)
	}
	if len(subs.applied) != 0 {
		t.Errorf("expected no applied facts, got %d", len(subs.applied))
	}
}

func TestHandleSyncAppliesPulledState(t *testing.T) {
	subs := &stubSubscriptions{}
	billingStub := newStubBilling("price_prem_m", domain.PlanPremium)
	h := NewBillingHandler(subs, billingStub, testLogger())

	payload, _ := json.Marshal(syncRequest{PrincipalID: uuid.New(), SubscriptionID: "sub_123"})

	req := httptest.NewRequest(http.MethodPost, "/internal/billing/sync", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	h.HandleSync(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(subs.applied) != 1 || subs.applied[0].PlanID != domain.PlanPremium {
		t.Error("expected the pulled premium state to be applied")
	}
	if billingStub.cancelCalls != 0 || billingStub.reactivateCalls != 0 {
		t.Error("sync must not mutate provider state")
	}
}
