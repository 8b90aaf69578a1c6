// Package domain contains core business types and interfaces.
//
// This file defines the entitlement decision types. Allow/deny outcomes are
// plain data, never errors: the caller maps ReasonPlanForbids to an upgrade
// prompt and ReasonLimitReached to a "resets in N days" message.
package domain

import "time"

// ReasonCode explains an entitlement decision.
type ReasonCode string

const (
	// ReasonOK means the action is permitted.
	ReasonOK ReasonCode = "ok"

	// ReasonPlanForbids means the plan does not include the action at all.
	ReasonPlanForbids ReasonCode = "plan_forbids_action"

	// ReasonLimitReached means the quota for the current window is used up.
	ReasonLimitReached ReasonCode = "limit_reached"

	// ReasonEvaluationFailed means the snapshot or counter store could not be
	// read. The engine fails closed: an entitlement check that fails open
	// would defeat billing enforcement.
	ReasonEvaluationFailed ReasonCode = "evaluation_failed"
)

// Eligibility is the outcome of an entitlement check.
//
// Limit, Remaining, WindowEnd and DaysUntilReset are nil for unlimited plans
// and for plans with no periodic window.
type Eligibility struct {
	Allowed        bool
	Reason         ReasonCode
	Plan           PlanID
	Used           int
	Limit          *int
	Remaining      *int
	WindowStart    *time.Time
	WindowEnd      *time.Time
	DaysUntilReset *int
}
