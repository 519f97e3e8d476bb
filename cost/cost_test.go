package cost_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sovereignrun/agentcore/cost"
)

func TestEstimateCostLocalRunnerIsFree(t *testing.T) {
	est := cost.EstimateCost("hello", cost.EstimateOptions{Model: "ollama/llama3"})
	assert.Equal(t, 1.0, est.Confidence)
	assert.Equal(t, 0.0, est.ExpectedCost)
}

func TestEstimateCostScalesWithComplexity(t *testing.T) {
	pricing := &cost.Pricing{InputPerMillion: 3, OutputPerMillion: 15}
	simple := cost.EstimateCost("hi", cost.EstimateOptions{Model: "claude", Pricing: pricing})
	complex := cost.EstimateCost(
		"Please analyze step-by-step the architecture tradeoffs of this distributed system and derive a migration plan.",
		cost.EstimateOptions{Model: "claude", Pricing: pricing, ToolsLen: 2},
	)
	assert.Less(t, simple.ExpectedCost, complex.ExpectedCost)
	assert.Less(t, complex.Confidence, simple.Confidence)
}

func TestEstimateCostWarnsWithoutPricing(t *testing.T) {
	est := cost.EstimateCost("hello there", cost.EstimateOptions{Model: "mystery-model"})
	require.NotEmpty(t, est.Warnings)
}

func TestRouterAppliesCapabilityGates(t *testing.T) {
	router := cost.NewRouter([]cost.ModelCapability{
		{Name: "fast-small", QualityTier: 1, SupportsTool: false},
		{Name: "big-tooled", QualityTier: 3, SupportsTool: true},
	}, false)

	decision, ok := router.Route(cost.TaskHints{NeedsTools: true})
	require.True(t, ok)
	assert.Equal(t, "big-tooled", decision.Model)
}

func TestRouterPrefersLocalWhenEligible(t *testing.T) {
	router := cost.NewRouter([]cost.ModelCapability{
		{Name: "cloud-model", QualityTier: 5},
		{Name: "local-model", QualityTier: 1, IsLocal: true},
	}, true)

	decision, ok := router.Route(cost.TaskHints{})
	require.True(t, ok)
	assert.Equal(t, "local-model", decision.Model)
}

func TestRouterNoSurvivorsReturnsFalse(t *testing.T) {
	router := cost.NewRouter([]cost.ModelCapability{{Name: "no-vision"}}, false)
	_, ok := router.Route(cost.TaskHints{NeedsVision: true})
	assert.False(t, ok)
}

func TestLedgerEnforcesPerRunCap(t *testing.T) {
	ledger := cost.NewLedger(cost.Caps{MaxPerRun: 1.0})
	d1 := ledger.Reserve("run-1", 0.6)
	require.True(t, d1.Allowed)
	d2 := ledger.Reserve("run-1", 0.6)
	assert.False(t, d2.Allowed)
	assert.Contains(t, d2.Reason, "per-run")
}

func TestLedgerTracksSpentPerRun(t *testing.T) {
	ledger := cost.NewLedger(cost.Caps{})
	ledger.Reserve("run-1", 0.25)
	ledger.Reserve("run-1", 0.10)
	assert.InDelta(t, 0.35, ledger.Spent("run-1"), 1e-9)
}

func TestLedgerEnforcesPerHourCap(t *testing.T) {
	ledger := cost.NewLedger(cost.Caps{MaxPerHour: 1.0})
	require.True(t, ledger.Reserve("run-1", 0.9).Allowed)
	d := ledger.Reserve("run-2", 0.5)
	assert.False(t, d.Allowed)
	assert.Greater(t, d.RetryAfter.Seconds(), 0.0)
}
