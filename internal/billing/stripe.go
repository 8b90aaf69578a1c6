// Package billing provides the Stripe side of the subscription-fact boundary.
//
// Billing itself (payments, invoices, proration) lives entirely in Stripe.
// This package only pulls subscription state and translates it into the
// BillingFact shape the snapshot service consumes.
package billing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/subscription"

	"github.com/DukeRupert/applygate/internal/domain"
)

// Service defines the interface for billing-provider operations.
type Service interface {
	// GetSubscription retrieves a Stripe subscription by ID.
	GetSubscription(subscriptionID string) (*stripe.Subscription, error)

	// CancelSubscription sets a subscription to cancel at period end.
	CancelSubscription(subscriptionID string) error

	// ReactivateSubscription removes the cancel_at_period_end flag.
	ReactivateSubscription(subscriptionID string) error

	// PlanForPriceID returns the plan for a given Stripe price ID, or ""
	// when the price is not one of ours.
	PlanForPriceID(priceID string) domain.PlanID
}

// PriceConfig holds the Stripe price IDs for each paid plan.
type PriceConfig struct {
	StandardMonthlyPriceID   string
	StandardYearlyPriceID    string
	PremiumMonthlyPriceID    string
	PremiumYearlyPriceID     string
	InstitutionYearlyPriceID string
}

// stripeService is the concrete implementation of Service.
type stripeService struct {
	prices      PriceConfig
	priceToPlan map[string]domain.PlanID
}

// NewStripeService creates a new Stripe billing service.
// The secretKey authenticates Stripe API calls; prices configure which
// Stripe price IDs map to which plans.
func NewStripeService(secretKey string, prices PriceConfig) Service {
	stripe.Key = secretKey

	priceToPlan := make(map[string]domain.PlanID)
	if prices.StandardMonthlyPriceID != "" {
		priceToPlan[prices.StandardMonthlyPriceID] = domain.PlanStandard
	}
	if prices.StandardYearlyPriceID != "" {
		priceToPlan[prices.StandardYearlyPriceID] = domain.PlanStandard
	}
	if prices.PremiumMonthlyPriceID != "" {
		priceToPlan[prices.PremiumMonthlyPriceID] = domain.PlanPremium
	}
	if prices.PremiumYearlyPriceID != "" {
		priceToPlan[prices.PremiumYearlyPriceID] = domain.PlanPremium
	}
	if prices.InstitutionYearlyPriceID != "" {
		priceToPlan[prices.InstitutionYearlyPriceID] = domain.PlanInstitution
	}

	return &stripeService{
		prices:      prices,
		priceToPlan: priceToPlan,
	}
}

func (s *stripeService) GetSubscription(subscriptionID string) (*stripe.Subscription, error) {
	sub, err := subscription.Get(subscriptionID, nil)
	if err != nil {
		return nil, fmt.Errorf("stripe get subscription: %w", err)
	}
	return sub, nil
}

func (s *stripeService) CancelSubscription(subscriptionID string) error {
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	}
	_, err := subscription.Update(subscriptionID, params)
	if err != nil {
		return fmt.Errorf("stripe cancel subscription: %w", err)
	}
	return nil
}

func (s *stripeService) ReactivateSubscription(subscriptionID string) error {
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(false),
	}
	_, err := subscription.Update(subscriptionID, params)
	if err != nil {
		return fmt.Errorf("stripe reactivate subscription: %w", err)
	}
	return nil
}

func (s *stripeService) PlanForPriceID(priceID string) domain.PlanID {
	if plan, ok := s.priceToPlan[priceID]; ok {
		return plan
	}
	return ""
}

// StatusFromStripe maps a Stripe subscription status onto the snapshot
// status set.
func StatusFromStripe(status stripe.SubscriptionStatus) domain.SubscriptionStatus {
	switch status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return domain.SubscriptionStatusActive
	case stripe.SubscriptionStatusCanceled:
		return domain.SubscriptionStatusCancelled
	case stripe.SubscriptionStatusIncomplete:
		return domain.SubscriptionStatusPending
	case stripe.SubscriptionStatusIncompleteExpired:
		return domain.SubscriptionStatusExpired
	default:
		// past_due, unpaid, paused: the plan grants nothing until billing
		// recovers.
		return domain.SubscriptionStatusInactive
	}
}

// FactFromSubscription translates a Stripe subscription into the fact shape
// the snapshot service applies. The anchor is the subscription start; the
// snapshot upsert decides whether it actually resets (only on plan change).
func FactFromSubscription(principalID uuid.UUID, sub *stripe.Subscription, planID domain.PlanID) domain.BillingFact {
	return domain.BillingFact{
		PrincipalID:       principalID,
		PlanID:            planID,
		Status:            StatusFromStripe(sub.Status),
		OccurredAt:        time.Unix(sub.StartDate, 0).UTC(),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
}
