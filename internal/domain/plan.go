// Package domain contains core business types and interfaces.
//
// This file defines the plan catalog: the declarative table mapping a plan id
// to the feature set it grants. Plan rules live here as data, not as branches
// in the evaluator, so adding a plan never touches evaluation logic.
package domain

// PlanID identifies a subscription plan. Plans are defined at deploy time,
// never per-user.
type PlanID string

const (
	PlanFree        PlanID = "free"
	PlanStandard    PlanID = "standard"
	PlanPremium     PlanID = "premium"
	PlanInstitution PlanID = "institution"
)

// FeatureSet is the capability/limit bundle attached to a plan.
//
// A nil SubmissionLimit means unlimited; a zero limit means the action is
// always denied. WindowDays is only meaningful when a limit exists; with a
// nil WindowDays the limit never resets.
type FeatureSet struct {
	CanSubmit       bool
	SubmissionLimit *int
	WindowDays      *int
}

// Unlimited reports whether the feature set allows submissions with no cap.
func (f FeatureSet) Unlimited() bool {
	return f.CanSubmit && f.SubmissionLimit == nil
}

// Catalog is the immutable plan registry, loaded once at startup and safe for
// concurrent reads.
type Catalog struct {
	plans map[PlanID]FeatureSet
}

// NewCatalog builds a catalog from a plan table. The table is copied, so the
// caller's map can be discarded.
func NewCatalog(plans map[PlanID]FeatureSet) *Catalog {
	c := &Catalog{plans: make(map[PlanID]FeatureSet, len(plans))}
	for id, fs := range plans {
		c.plans[id] = fs
	}
	return c
}

// DefaultCatalog returns the production plan table.
func DefaultCatalog() *Catalog {
	return NewCatalog(map[PlanID]FeatureSet{
		PlanFree:        {CanSubmit: true, SubmissionLimit: IntPtr(1), WindowDays: IntPtr(30)},
		PlanStandard:    {CanSubmit: true, SubmissionLimit: IntPtr(3), WindowDays: IntPtr(30)},
		PlanPremium:     {CanSubmit: true},
		PlanInstitution: {CanSubmit: true},
	})
}

// FeatureSet returns the features for a plan id.
//
// An unregistered id is a data-integrity error (EUNKNOWNPLAN), distinct from
// any user-facing denial: every plan id ever written to a subscription must
// resolve here.
func (c *Catalog) FeatureSet(id PlanID) (FeatureSet, error) {
	fs, ok := c.plans[id]
	if !ok {
		return FeatureSet{}, UnknownPlan("catalog.feature_set", id)
	}
	return fs, nil
}

// Has reports whether a plan id is registered.
func (c *Catalog) Has(id PlanID) bool {
	_, ok := c.plans[id]
	return ok
}

// IntPtr returns a pointer to n, for building plan tables and test fixtures.
func IntPtr(n int) *int {
	return &n
}
