// Package service contains the business logic layer.
//
// This file implements the subscription snapshot service: the read-mostly
// view of a principal's current plan, fed by the billing-event intake path.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/DukeRupert/applygate/internal/domain"
	"github.com/DukeRupert/applygate/internal/metrics"
)

// =============================================================================
// Interface Definition
// =============================================================================

// SubscriptionService exposes the subscription snapshot for a principal and
// applies billing facts to it.
type SubscriptionService interface {
	// ActiveSnapshot returns the snapshot for a principal, or nil when the
	// principal has never subscribed. Absence is a normal state, not an error.
	ActiveSnapshot(ctx context.Context, principalID uuid.UUID) (*domain.Subscription, error)

	// ApplyBillingFact records a subscription fact from the billing provider
	// and invalidates any cached snapshot for the principal.
	ApplyBillingFact(ctx context.Context, fact domain.BillingFact) (*domain.Subscription, error)

	// Invalidate drops the cached snapshot for a principal, forcing the next
	// read through to the store.
	Invalidate(principalID uuid.UUID)
}

// subscriptionStore is the slice of the repository this service needs.
type subscriptionStore interface {
	GetSubscriptionByPrincipal(ctx context.Context, principalID uuid.UUID) (*domain.Subscription, error)
	UpsertSubscription(ctx context.Context, fact domain.BillingFact) (*domain.Subscription, error)
}

// =============================================================================
// Implementation
// =============================================================================

type subscriptionService struct {
	store        subscriptionStore
	catalog      *domain.Catalog
	logger       *slog.Logger
	storeTimeout time.Duration
	cache        *snapshotCache
}

// NewSubscriptionService creates a SubscriptionService. Facts naming a plan
// the catalog does not carry are rejected at intake, never written. cacheTTL
// of zero disables caching; every read goes to the store.
func NewSubscriptionService(store subscriptionStore, catalog *domain.Catalog, logger *slog.Logger, storeTimeout, cacheTTL time.Duration) SubscriptionService {
	if catalog == nil {
		catalog = domain.DefaultCatalog()
	}
	return &subscriptionService{
		store:        store,
		catalog:      catalog,
		logger:       logger,
		storeTimeout: storeTimeout,
		cache:        newSnapshotCache(cacheTTL),
	}
}

func (s *subscriptionService) ActiveSnapshot(ctx context.Context, principalID uuid.UUID) (*domain.Subscription, error) {
	if sub, ok := s.cache.get(principalID); ok {
		metrics.SnapshotCacheHits.Inc()
		return sub, nil
	}
	metrics.SnapshotCacheMisses.Inc()

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	sub, err := s.store.GetSubscriptionByPrincipal(ctx, principalID)
	if err != nil {
		if domain.ErrorCode(err) == domain.ENOTFOUND {
			// Never-subscribed principals are common; cache the miss too.
			s.cache.put(principalID, nil)
			return nil, nil
		}
		return nil, err
	}

	s.cache.put(principalID, sub)
	return sub, nil
}

func (s *subscriptionService) ApplyBillingFact(ctx context.Context, fact domain.BillingFact) (*domain.Subscription, error) {
	const op = "subscription.apply_billing_fact"

	if fact.PrincipalID == uuid.Nil {
		return nil, domain.Invalid(op, "principal id is required")
	}
	if !s.catalog.Has(fact.PlanID) {
		return nil, domain.Invalid(op, "unknown plan id")
	}
	if !domain.ValidSubscriptionStatus(fact.Status) {
		return nil, domain.Invalid(op, "unknown subscription status")
	}
	if fact.OccurredAt.IsZero() {
		return nil, domain.Invalid(op, "occurred_at is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	sub, err := s.store.UpsertSubscription(ctx, fact)
	if err != nil {
		return nil, err
	}

	s.cache.invalidate(fact.PrincipalID)

	s.logger.Info("billing fact applied",
		"principal_id", fact.PrincipalID,
		"plan", sub.PlanID,
		"status", sub.Status,
		"anchor", sub.SubscribedAt,
	)
	return sub, nil
}

func (s *subscriptionService) Invalidate(principalID uuid.UUID) {
	s.cache.invalidate(principalID)
}

// =============================================================================
// Snapshot Cache
// =============================================================================

// snapshotCache is an explicit TTL cache for subscription snapshots. It
// stores both hits and misses (nil entries); writers invalidate per
// principal. A zero TTL turns the cache off entirely.
type snapshotCache struct {
	ttl time.Duration

	mu      sync.RWMutex
	entries map[uuid.UUID]*snapshotEntry
}

type snapshotEntry struct {
	sub       *domain.Subscription
	expiresAt time.Time
}

func newSnapshotCache(ttl time.Duration) *snapshotCache {
	c := &snapshotCache{
		ttl:     ttl,
		entries: make(map[uuid.UUID]*snapshotEntry),
	}

	if ttl > 0 {
		go c.cleanup()
	}

	return c
}

func (c *snapshotCache) get(principalID uuid.UUID) (*domain.Subscription, bool) {
	if c.ttl <= 0 {
		return nil, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[principalID]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.sub, true
}

func (c *snapshotCache) put(principalID uuid.UUID, sub *domain.Subscription) {
	if c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[principalID] = &snapshotEntry{
		sub:       sub,
		expiresAt: time.Now().Add(c.ttl),
	}
}

func (c *snapshotCache) invalidate(principalID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, principalID)
}

// cleanup periodically removes expired entries to prevent memory leaks.
func (c *snapshotCache) cleanup() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		now := time.Now()
		for id, entry := range c.entries {
			if now.After(entry.expiresAt) {
				delete(c.entries, id)
			}
		}
		c.mu.Unlock()
	}
}
