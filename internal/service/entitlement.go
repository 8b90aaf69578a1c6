// Package service contains the business logic layer.
//
// This file implements the eligibility evaluator and the entitlement facade:
// the single entry point the action executor calls before creating an
// application. Status answers "could this principal act right now" without
// consuming anything; Reserve is the one mutating operation, an atomic
// reserve-or-reject; Release is the compensating undo when the gated action
// fails after a reservation was spent.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/DukeRupert/applygate/internal/domain"
	"github.com/DukeRupert/applygate/internal/metrics"
)

// =============================================================================
// Interface Definition
// =============================================================================

// EntitlementService decides whether a principal may submit an application.
type EntitlementService interface {
	// Status is the read-only evaluation for display. Calling it any number
	// of times never changes usage.
	Status(ctx context.Context, principalID uuid.UUID) (*domain.Eligibility, error)

	// Reserve atomically consumes one unit of quota if the principal is
	// eligible. A denial is a routine outcome carried in the result, not an
	// error.
	Reserve(ctx context.Context, principalID uuid.UUID) (*domain.Eligibility, error)

	// Release returns one previously reserved unit for the given window.
	// Idempotent: releasing more than was consumed never under-flows.
	Release(ctx context.Context, principalID uuid.UUID, windowStart time.Time) error
}

// SnapshotSource is the read side of the subscription service, split out so
// the evaluator can be tested against a fake.
type SnapshotSource interface {
	ActiveSnapshot(ctx context.Context, principalID uuid.UUID) (*domain.Subscription, error)
}

// EntitlementConfig configures the entitlement service.
type EntitlementConfig struct {
	Catalog     *domain.Catalog
	Snapshots   SnapshotSource
	Usage       UsageService
	DefaultPlan domain.PlanID
	Logger      *slog.Logger

	// Now is the clock used for window calculation. Defaults to time.Now;
	// injectable for tests.
	Now func() time.Time
}

// =============================================================================
// Implementation
// =============================================================================

// defaultPlanAnchor is the window anchor for principals with no active
// subscription. Pinning it to the epoch makes default-plan windows
// deterministic without needing a per-principal record.
var defaultPlanAnchor = time.Unix(0, 0).UTC()

type entitlementService struct {
	catalog     *domain.Catalog
	snapshots   SnapshotSource
	usage       UsageService
	defaultPlan domain.PlanID
	logger      *slog.Logger
	now         func() time.Time
}

// NewEntitlementService creates an EntitlementService.
func NewEntitlementService(cfg EntitlementConfig) EntitlementService {
	if cfg.Catalog == nil {
		cfg.Catalog = domain.DefaultCatalog()
	}
	if cfg.DefaultPlan == "" {
		cfg.DefaultPlan = domain.PlanFree
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &entitlementService{
		catalog:     cfg.Catalog,
		snapshots:   cfg.Snapshots,
		usage:       cfg.Usage,
		defaultPlan: cfg.DefaultPlan,
		logger:      cfg.Logger,
		now:         cfg.Now,
	}
}

func (s *entitlementService) Status(ctx context.Context, principalID uuid.UUID) (*domain.Eligibility, error) {
	return s.run(ctx, "status", principalID, false)
}

func (s *entitlementService) Reserve(ctx context.Context, principalID uuid.UUID) (*domain.Eligibility, error) {
	return s.run(ctx, "reserve", principalID, true)
}

func (s *entitlementService) Release(ctx context.Context, principalID uuid.UUID, windowStart time.Time) error {
	if err := s.usage.Release(ctx, principalID, windowStart); err != nil {
		return err
	}
	metrics.UsageReleased.Inc()
	return nil
}

func (s *entitlementService) run(ctx context.Context, operation string, principalID uuid.UUID, reserve bool) (*domain.Eligibility, error) {
	start := time.Now()
	result, err := s.evaluate(ctx, principalID, reserve)
	metrics.EntitlementDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())

	if result != nil {
		decision := "denied"
		if result.Allowed {
			decision = "allowed"
		}
		metrics.EntitlementDecisions.WithLabelValues(operation, decision, string(result.Reason)).Inc()
	}
	return result, err
}

// evaluate runs the eligibility algorithm. When reserve is true the quota
// check and the increment happen as one atomic store operation; otherwise
// nothing is mutated.
//
// Any failure to read the snapshot or the counter yields a denied result
// with ReasonEvaluationFailed alongside the error: the engine fails closed,
// because an entitlement check that fails open defeats billing enforcement.
func (s *entitlementService) evaluate(ctx context.Context, principalID uuid.UUID, reserve bool) (*domain.Eligibility, error) {
	const op = "entitlement.evaluate"

	now := s.now().UTC()

	snap, err := s.snapshots.ActiveSnapshot(ctx, principalID)
	if err != nil {
		s.logger.Error("snapshot read failed, denying",
			"principal_id", principalID,
			"error", err,
		)
		return failClosed(), err
	}

	// No active subscription resolves to the configured default plan. A
	// snapshot in any non-active status grants nothing, whatever its plan
	// id says.
	planID := s.defaultPlan
	anchor := defaultPlanAnchor
	if snap != nil && snap.IsActive() {
		planID = snap.PlanID
		anchor = snap.SubscribedAt
	}

	features, err := s.catalog.FeatureSet(planID)
	if err != nil {
		// Data-integrity fault: a plan id was written that the catalog does
		// not know. Operator-facing, never a routine denial.
		s.logger.Error("unknown plan on subscription",
			"principal_id", principalID,
			"plan", planID,
			"error", err,
		)
		return failClosed(), err
	}

	if !features.CanSubmit {
		return &domain.Eligibility{
			Allowed: false,
			Reason:  domain.ReasonPlanForbids,
			Plan:    planID,
		}, nil
	}

	if features.SubmissionLimit == nil {
		// Unlimited: always allowed. Reserve still records consumption for
		// analytics, bucketed by calendar month, but a failure there must
		// never deny the action.
		if reserve {
			if err := s.usage.Record(ctx, principalID, monthStart(now)); err != nil {
				s.logger.Warn("best-effort usage record failed",
					"principal_id", principalID,
					"error", err,
				)
			}
		}
		return &domain.Eligibility{
			Allowed: true,
			Reason:  domain.ReasonOK,
			Plan:    planID,
		}, nil
	}

	limit := *features.SubmissionLimit

	// The counter key is the window start. With no periodic window the limit
	// spans the whole subscription, anchored at subscribed_at.
	windowStart := anchor
	var windowEnd *time.Time
	var daysUntilReset *int
	if features.WindowDays != nil {
		w := domain.CurrentWindow(anchor, *features.WindowDays, now)
		windowStart = w.Start
		end := w.End
		windowEnd = &end
		days := w.DaysUntilReset(now)
		daysUntilReset = &days
	}

	var used int
	allowed := false
	if reserve {
		count, consumed, err := s.usage.TryConsume(ctx, principalID, windowStart, limit)
		if err != nil {
			s.logger.Error("usage consume failed, denying",
				"principal_id", principalID,
				"error", err,
			)
			return failClosed(), err
		}
		if consumed {
			used = count
			allowed = true
		} else {
			used = s.peekAfterReject(ctx, principalID, windowStart, limit)
		}
	} else {
		used, err = s.usage.Peek(ctx, principalID, windowStart)
		if err != nil {
			s.logger.Error("usage read failed, denying",
				"principal_id", principalID,
				"error", err,
			)
			return failClosed(), err
		}
		allowed = used < limit
	}

	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}

	reason := domain.ReasonOK
	if !allowed {
		reason = domain.ReasonLimitReached
	}

	return &domain.Eligibility{
		Allowed:        allowed,
		Reason:         reason,
		Plan:           planID,
		Used:           used,
		Limit:          &limit,
		Remaining:      &remaining,
		WindowStart:    &windowStart,
		WindowEnd:      windowEnd,
		DaysUntilReset: daysUntilReset,
	}, nil
}

// peekAfterReject fetches the count for a denied reserve so the result can
// report real usage. The denial already stands; on a read error the limit
// itself is the best available answer.
func (s *entitlementService) peekAfterReject(ctx context.Context, principalID uuid.UUID, windowStart time.Time, limit int) int {
	used, err := s.usage.Peek(ctx, principalID, windowStart)
	if err != nil {
		s.logger.Warn("usage read after rejection failed",
			"principal_id", principalID,
			"error", err,
		)
		return limit
	}
	return used
}

func failClosed() *domain.Eligibility {
	return &domain.Eligibility{
		Allowed: false,
		Reason:  domain.ReasonEvaluationFailed,
	}
}

// monthStart returns the first instant of now's month in UTC, the analytics
// bucket for unlimited plans.
func monthStart(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}
