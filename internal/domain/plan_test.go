package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()

	tests := []struct {
		plan      PlanID
		canSubmit bool
		limit     *int
		window    *int
	}{
		{PlanFree, true, IntPtr(1), IntPtr(30)},
		{PlanStandard, true, IntPtr(3), IntPtr(30)},
		{PlanPremium, true, nil, nil},
		{PlanInstitution, true, nil, nil},
	}

	for _, tt := range tests {
		t.Run(string(tt.plan), func(t *testing.T) {
			fs, err := c.FeatureSet(tt.plan)
			require.NoError(t, err)
			assert.Equal(t, tt.canSubmit, fs.CanSubmit)
			assert.Equal(t, tt.limit, fs.SubmissionLimit)
			assert.Equal(t, tt.window, fs.WindowDays)
		})
	}
}

func TestCatalogUnknownPlan(t *testing.T) {
	c := DefaultCatalog()

	_, err := c.FeatureSet(PlanID("enterprise"))
	require.Error(t, err)
	assert.Equal(t, EUNKNOWNPLAN, ErrorCode(err))
	assert.False(t, c.Has(PlanID("enterprise")))
}

func TestFeatureSetUnlimited(t *testing.T) {
	tests := []struct {
		name string
		fs   FeatureSet
		want bool
	}{
		{"no limit", FeatureSet{CanSubmit: true}, true},
		{"limited", FeatureSet{CanSubmit: true, SubmissionLimit: IntPtr(3)}, false},
		{"zero limit", FeatureSet{CanSubmit: true, SubmissionLimit: IntPtr(0)}, false},
		{"cannot submit at all", FeatureSet{CanSubmit: false}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.fs.Unlimited())
		})
	}
}

func TestNewCatalogCopiesTable(t *testing.T) {
	table := map[PlanID]FeatureSet{
		PlanFree: {CanSubmit: true, SubmissionLimit: IntPtr(2), WindowDays: IntPtr(7)},
	}
	c := NewCatalog(table)

	// Mutating the caller's map must not affect the catalog.
	table[PlanFree] = FeatureSet{}
	fs, err := c.FeatureSet(PlanFree)
	require.NoError(t, err)
	assert.True(t, fs.CanSubmit)
	assert.Equal(t, 2, *fs.SubmissionLimit)
}
