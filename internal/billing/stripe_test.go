package billing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"

	"github.com/DukeRupert/applygate/internal/domain"
)

func TestPlanForPriceID(t *testing.T) {
	svc := NewStripeService("sk_test_dummy", PriceConfig{
		StandardMonthlyPriceID:   "price_std_m",
		StandardYearlyPriceID:    "price_std_y",
		PremiumMonthlyPriceID:    "price_prem_m",
		PremiumYearlyPriceID:     "price_prem_y",
		InstitutionYearlyPriceID: "price_inst_y",
	})

	tests := []struct {
		priceID string
		want    domain.PlanID
	}{
		{"price_std_m", domain.PlanStandard},
		{"price_std_y", domain.PlanStandard},
		{"price_prem_m", domain.PlanPremium},
		{"price_prem_y", domain.PlanPremium},
		{"price_inst_y", domain.PlanInstitution},
		{"price_unknown", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.priceID, func(t *testing.T) {
			if got := svc.PlanForPriceID(tt.priceID); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestStatusFromStripe(t *testing.T) {
	tests := []struct {
		status stripe.SubscriptionStatus
		want   domain.SubscriptionStatus
	}{
		{stripe.SubscriptionStatusActive, domain.SubscriptionStatusActive},
		{stripe.SubscriptionStatusTrialing, domain.SubscriptionStatusActive},
		{stripe.SubscriptionStatusCanceled, domain.SubscriptionStatusCancelled},
		{stripe.SubscriptionStatusIncomplete, domain.SubscriptionStatusPending},
		{stripe.SubscriptionStatusIncompleteExpired, domain.SubscriptionStatusExpired},
		{stripe.SubscriptionStatusPastDue, domain.SubscriptionStatusInactive},
		{stripe.SubscriptionStatusUnpaid, domain.SubscriptionStatusInactive},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := StatusFromStripe(tt.status); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestFactFromSubscription(t *testing.T) {
	principal := uuid.New()
	start := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

	sub := &stripe.Subscription{
		Status:            stripe.SubscriptionStatusActive,
		StartDate:         start.Unix(),
		CancelAtPeriodEnd: true,
	}

	fact := FactFromSubscription(principal, sub, domain.PlanPremium)

	if fact.PrincipalID != principal {
		t.Error("fact carried the wrong principal")
	}
	if fact.PlanID != domain.PlanPremium {
		t.Errorf("expected plan %q, got %q", domain.PlanPremium, fact.PlanID)
	}
	if fact.Status != domain.SubscriptionStatusActive {
		t.Errorf("expected active status, got %q", fact.Status)
	}
	if !fact.OccurredAt.Equal(start) {
		t.Errorf("expected anchor %v, got %v", start, fact.OccurredAt)
	}
	if !fact.CancelAtPeriodEnd {
		t.Error("expected cancel flag to carry over")
	}
}
