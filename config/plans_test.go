package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPlanTable_Embedded(t *testing.T) {
	table, err := LoadPlanTable()
	require.NoError(t, err)

	assert.Equal(t, "basic", table.DefaultPlan)
	assert.Contains(t, table.Plans, "pro")
	assert.Contains(t, table.Plans, "core_learner")
}

func TestResolve(t *testing.T) {
	table, err := LoadPlanTable()
	require.NoError(t, err)

	t.Run("pro is unlimited even with limiting features", func(t *testing.T) {
		limits := table.Resolve("pro", []string{"3_companion_limit"})
		assert.Equal(t, "pro", limits.Plan)
		assert.Equal(t, Unlimited, limits.MaxCompanions)
		assert.Equal(t, Unlimited, limits.MonthlyCompanions)
	})

	t.Run("basic defaults", func(t *testing.T) {
		limits := table.Resolve("basic", nil)
		assert.Equal(t, 3, limits.MaxCompanions)
		assert.Equal(t, 10, limits.MonthlyCompanions)
		assert.Equal(t, 15, limits.MaxSessionMinutes)
	})

	t.Run("feature override takes most generous value", func(t *testing.T) {
		limits := table.Resolve("basic", []string{"3_companion_limit", "10_companion_limit"})
		assert.Equal(t, 10, limits.MaxCompanions)
	})

	t.Run("alias and case", func(t *testing.T) {
		limits := table.Resolve(" Core ", nil)
		assert.Equal(t, "core_learner", limits.Plan)
		assert.Equal(t, 10, limits.MaxCompanions)
	})

	t.Run("unknown plan falls back to default", func(t *testing.T) {
		limits := table.Resolve("enterprise", []string{"unknown_feature"})
		assert.Equal(t, "basic", limits.Plan)
		assert.Equal(t, 3, limits.MaxCompanions)
	})
}

func TestParsePlanTable_Errors(t *testing.T) {
	_, err := ParsePlanTable([]byte("version: 1\ndefault_plan: gold\nplans:\n  basic:\n    max_companions: 1\n    monthly_companions: 1\n    max_session_minutes: 10\n"))
	assert.ErrorContains(t, err, "default plan")

	_, err = ParsePlanTable([]byte("version: 1\ndefault_plan: basic\naliases:\n  x: y\nplans:\n  basic:\n    max_companions: 1\n    monthly_companions: 1\n    max_session_minutes: 10\n"))
	assert.ErrorContains(t, err, "alias")

	_, err = ParsePlanTable([]byte("version: [broken"))
	assert.Error(t, err)
}

func TestAllows(t *testing.T) {
	assert.True(t, Allows(Unlimited, 1000))
	assert.True(t, Allows(3, 2))
	assert.False(t, Allows(3, 3))
	assert.False(t, Allows(0, 0))
}

func TestApplyOverride_UnlimitedWins(t *testing.T) {
	assert.Equal(t, Unlimited, applyOverride(3, []int{Unlimited, 10}))
	assert.Equal(t, Unlimited, applyOverride(3, []int{10, Unlimited}))
	assert.Equal(t, 5, applyOverride(3, []int{5}))
}
