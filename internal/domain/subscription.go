// Package domain contains core business types and interfaces.
//
// This file defines the subscription snapshot: the per-principal record of
// which plan is active and since when. Writes are owned by the billing-event
// intake path; the entitlement path is read-mostly.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus represents the possible states of a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusInactive  SubscriptionStatus = "inactive"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusPending   SubscriptionStatus = "pending"
)

// ValidSubscriptionStatus reports whether s is one of the known statuses.
func ValidSubscriptionStatus(s SubscriptionStatus) bool {
	switch s {
	case SubscriptionStatusActive, SubscriptionStatusInactive,
		SubscriptionStatusExpired, SubscriptionStatusCancelled,
		SubscriptionStatusPending:
		return true
	}
	return false
}

// Subscription is the current subscription snapshot for a principal.
// At most one record exists per principal.
//
// SubscribedAt is the window anchor: the instant the current plan became
// active. It is reset whenever the plan id changes (upgrade/downgrade), never
// on mere renewal of the same plan.
type Subscription struct {
	ID                uuid.UUID
	PrincipalID       uuid.UUID
	PlanID            PlanID
	Status            SubscriptionStatus
	SubscribedAt      time.Time
	CancelAtPeriodEnd bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsActive returns true if the snapshot grants its plan's capabilities.
// Every other status behaves as if the principal had no subscription at all,
// regardless of what PlanID says.
func (s *Subscription) IsActive() bool {
	return s.Status == SubscriptionStatusActive
}

// BillingFact is a subscription fact received from the billing provider,
// pushed by the intake pipeline or pulled via the billing API. It carries
// exactly what the snapshot needs and nothing of billing itself.
type BillingFact struct {
	PrincipalID       uuid.UUID
	PlanID            PlanID
	Status            SubscriptionStatus
	OccurredAt        time.Time
	CancelAtPeriodEnd bool
}
