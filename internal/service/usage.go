// Package service contains the business logic layer.
//
// This file implements the usage counter service: durable, concurrency-safe
// consumption tracking per (principal, window).
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// UsageService tracks action consumption within usage windows.
type UsageService interface {
	// Peek returns the current count for a window, 0 if no record exists.
	// Peek never creates a record.
	Peek(ctx context.Context, principalID uuid.UUID, windowStart time.Time) (int, error)

	// TryConsume atomically increments the counter by 1 if and only if it is
	// below limit. It returns the count after the attempt and whether the
	// unit was consumed. The check and the increment are a single store
	// operation: concurrent calls can never over-consume.
	TryConsume(ctx context.Context, principalID uuid.UUID, windowStart time.Time, limit int) (int, bool, error)

	// Record increments the counter unconditionally, for analytics on
	// unlimited plans. Best effort: errors are returned for logging but must
	// never deny the action.
	Record(ctx context.Context, principalID uuid.UUID, windowStart time.Time) error

	// Release decrements the counter by 1, never below zero. A compensating
	// undo for a reservation whose gated action failed; safe to call more
	// than once.
	Release(ctx context.Context, principalID uuid.UUID, windowStart time.Time) error
}

// usageStore is the slice of the repository this service needs.
type usageStore interface {
	CountUsage(ctx context.Context, principalID uuid.UUID, windowStart time.Time) (int, error)
	IncrementUsageBelow(ctx context.Context, principalID uuid.UUID, windowStart time.Time, limit int) (int, bool, error)
	IncrementUsage(ctx context.Context, principalID uuid.UUID, windowStart time.Time) error
	DecrementUsage(ctx context.Context, principalID uuid.UUID, windowStart time.Time) error
}

// =============================================================================
// Implementation
// =============================================================================

type usageService struct {
	store        usageStore
	logger       *slog.Logger
	storeTimeout time.Duration
}

// NewUsageService creates a UsageService. Every store access is bounded by
// storeTimeout; a timeout surfaces as EUNAVAILABLE and the evaluator fails
// closed.
func NewUsageService(store usageStore, logger *slog.Logger, storeTimeout time.Duration) UsageService {
	return &usageService{
		store:        store,
		logger:       logger,
		storeTimeout: storeTimeout,
	}
}

func (s *usageService) Peek(ctx context.Context, principalID uuid.UUID, windowStart time.Time) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	return s.store.CountUsage(ctx, principalID, windowStart)
}

func (s *usageService) TryConsume(ctx context.Context, principalID uuid.UUID, windowStart time.Time, limit int) (int, bool, error) {
	// A non-positive limit can never be consumed against. Guarded here
	// because the store's insert arm would otherwise create the first row
	// unconditionally.
	if limit <= 0 {
		return 0, false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	return s.store.IncrementUsageBelow(ctx, principalID, windowStart, limit)
}

func (s *usageService) Record(ctx context.Context, principalID uuid.UUID, windowStart time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	return s.store.IncrementUsage(ctx, principalID, windowStart)
}

func (s *usageService) Release(ctx context.Context, principalID uuid.UUID, windowStart time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.store.DecrementUsage(ctx, principalID, windowStart); err != nil {
		return err
	}

	s.logger.Info("usage released",
		"principal_id", principalID,
		"window_start", windowStart,
	)
	return nil
}
