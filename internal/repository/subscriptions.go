package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/DukeRupert/applygate/internal/domain"
)

const getSubscriptionByPrincipal = `
SELECT id, principal_id, plan_id, status, subscribed_at, cancel_at_period_end, created_at, updated_at
FROM subscriptions
WHERE principal_id = $1
`

// GetSubscriptionByPrincipal returns the subscription snapshot for a
// principal, or an ENOTFOUND error when none exists. Absence is a normal
// state: callers fall back to the default plan.
func (q *Queries) GetSubscriptionByPrincipal(ctx context.Context, principalID uuid.UUID) (*domain.Subscription, error) {
	const op = "repository.get_subscription"

	row := q.db.QueryRowContext(ctx, getSubscriptionByPrincipal, principalID)

	var s domain.Subscription
	err := row.Scan(
		&s.ID,
		&s.PrincipalID,
		&s.PlanID,
		&s.Status,
		&s.SubscribedAt,
		&s.CancelAtPeriodEnd,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "subscription", principalID.String())
		}
		return nil, domain.Unavailable(err, op, "failed to read subscription")
	}
	return &s, nil
}

const upsertSubscription = `
INSERT INTO subscriptions (id, principal_id, plan_id, status, subscribed_at, cancel_at_period_end)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (principal_id) DO UPDATE SET
    plan_id              = EXCLUDED.plan_id,
    status               = EXCLUDED.status,
    cancel_at_period_end = EXCLUDED.cancel_at_period_end,
    subscribed_at        = CASE
        WHEN subscriptions.plan_id IS DISTINCT FROM EXCLUDED.plan_id
            THEN EXCLUDED.subscribed_at
        ELSE subscriptions.subscribed_at
    END,
    updated_at           = now()
RETURNING id, principal_id, plan_id, status, subscribed_at, cancel_at_period_end, created_at, updated_at
`

// UpsertSubscription applies a billing fact to the snapshot. The window
// anchor (subscribed_at) is reset only when the plan id actually changes;
// renewing the same plan keeps the existing anchor. The CASE runs inside the
// upsert so a concurrent intake cannot observe a half-applied anchor.
func (q *Queries) UpsertSubscription(ctx context.Context, fact domain.BillingFact) (*domain.Subscription, error) {
	const op = "repository.upsert_subscription"

	row := q.db.QueryRowContext(ctx, upsertSubscription,
		uuid.New(),
		fact.PrincipalID,
		fact.PlanID,
		fact.Status,
		fact.OccurredAt,
		fact.CancelAtPeriodEnd,
	)

	var s domain.Subscription
	err := row.Scan(
		&s.ID,
		&s.PrincipalID,
		&s.PlanID,
		&s.Status,
		&s.SubscribedAt,
		&s.CancelAtPeriodEnd,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, domain.Unavailable(err, op, "failed to upsert subscription")
	}
	return &s, nil
}
