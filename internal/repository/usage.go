package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/DukeRupert/applygate/internal/domain"
)

const countUsage = `
SELECT COALESCE(count, 0)
FROM usage_counters
WHERE principal_id = $1 AND window_start = $2
`

// CountUsage returns the consumption recorded for a principal in the window
// starting at windowStart, 0 when no row exists. A read never creates a row.
func (q *Queries) CountUsage(ctx context.Context, principalID uuid.UUID, windowStart time.Time) (int, error) {
	const op = "repository.count_usage"

	var count int
	err := q.db.QueryRowContext(ctx, countUsage, principalID, windowStart).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, domain.Unavailable(err, op, "failed to read usage counter")
	}
	return count, nil
}

const incrementUsageBelow = `
INSERT INTO usage_counters (principal_id, window_start, count)
VALUES ($1, $2, 1)
ON CONFLICT (principal_id, window_start) DO UPDATE
SET count = usage_counters.count + 1, updated_at = now()
WHERE usage_counters.count < $3
RETURNING count
`

// IncrementUsageBelow atomically consumes one unit if and only if the counter
// is below limit. It returns the count after consumption and whether the
// consume succeeded.
//
// The conditional lives in the statement itself: Postgres takes a row lock on
// the conflicting counter, so concurrent calls for one (principal, window)
// serialize and at most limit of them can ever succeed. The caller must
// reject limit <= 0 up front: the insert arm fires unconditionally when no
// row exists yet.
func (q *Queries) IncrementUsageBelow(ctx context.Context, principalID uuid.UUID, windowStart time.Time, limit int) (int, bool, error) {
	const op = "repository.increment_usage_below"

	var count int
	err := q.db.QueryRowContext(ctx, incrementUsageBelow, principalID, windowStart, limit).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Condition failed: counter already at or above limit.
			return 0, false, nil
		}
		return 0, false, domain.Unavailable(err, op, "failed to consume usage")
	}
	return count, true, nil
}

const incrementUsage = `
INSERT INTO usage_counters (principal_id, window_start, count)
VALUES ($1, $2, 1)
ON CONFLICT (principal_id, window_start) DO UPDATE
SET count = usage_counters.count + 1, updated_at = now()
`

// IncrementUsage records one unit unconditionally. Used on the best-effort
// analytics path for unlimited plans.
func (q *Queries) IncrementUsage(ctx context.Context, principalID uuid.UUID, windowStart time.Time) error {
	const op = "repository.increment_usage"

	if _, err := q.db.ExecContext(ctx, incrementUsage, principalID, windowStart); err != nil {
		return domain.Unavailable(err, op, "failed to record usage")
	}
	return nil
}

const decrementUsage = `
UPDATE usage_counters
SET count = count - 1, updated_at = now()
WHERE principal_id = $1 AND window_start = $2 AND count > 0
`

// DecrementUsage releases one previously consumed unit. The count > 0 guard
// makes release idempotent with respect to under-flow: releasing more times
// than was consumed leaves the counter at zero.
func (q *Queries) DecrementUsage(ctx context.Context, principalID uuid.UUID, windowStart time.Time) error {
	const op = "repository.decrement_usage"

	if _, err := q.db.ExecContext(ctx, decrementUsage, principalID, windowStart); err != nil {
		return domain.Unavailable(err, op, "failed to release usage")
	}
	return nil
}
