package risk_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/jmerrifield20/DeliveryRiskTracker/pkg/risk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	got := risk.Normalize(risk.Snapshot{
		PlannedTasks:       -1,
		CompletedTasks:     -2,
		InProgressTasks:    -3,
		BlockersCount:      -4,
		BugsOpen:           -5,
		ScopeChangePercent: 150,
		AvgCycleTimeDays:   -1.5,
	})
	assert.Equal(t, risk.Snapshot{ScopeChangePercent: 100}, got)

	got = risk.Normalize(risk.Snapshot{ScopeChangePercent: -10, AvgCycleTimeDays: math.NaN()})
	assert.Equal(t, 0.0, got.ScopeChangePercent)
	assert.Equal(t, 0.0, got.AvgCycleTimeDays)

	in := risk.Snapshot{PlannedTasks: 4, CompletedTasks: 2, InProgressTasks: 1, BlockersCount: 1, BugsOpen: 2, ScopeChangePercent: 12.5, AvgCycleTimeDays: 3}
	assert.Equal(t, in, risk.Normalize(in))
}

func TestNormalize_infinities(t *testing.T) {
	got := risk.Normalize(risk.Snapshot{ScopeChangePercent: math.Inf(1), AvgCycleTimeDays: math.Inf(1)})
	assert.Equal(t, 100.0, got.ScopeChangePercent)
	assert.Equal(t, 0.0, got.AvgCycleTimeDays)

	got = risk.Normalize(risk.Snapshot{ScopeChangePercent: math.Inf(-1), AvgCycleTimeDays: math.Inf(-1)})
	assert.Equal(t, 0.0, got.ScopeChangePercent)
	assert.Equal(t, 0.0, got.AvgCycleTimeDays)

	r := risk.NewEngine().Evaluate(risk.Snapshot{PlannedTasks: 10, CompletedTasks: 10, AvgCycleTimeDays: math.Inf(1)}, nil)
	assert.Equal(t, 0.0, r.KPIs.AvgCycleTimeDays)
	_, err := json.Marshal(r)
	require.NoError(t, err)
}

func TestComputeKPIs(t *testing.T) {
	k := risk.ComputeKPIs(risk.Snapshot{
		PlannedTasks:       10,
		CompletedTasks:     12,
		BlockersCount:      2,
		BugsOpen:           1,
		ScopeChangePercent: 12.3456,
		AvgCycleTimeDays:   2.004,
	})

	assert.Equal(t, 1.2, k.CompletionRate, "completion rate is not capped at 1")
	assert.Equal(t, 0, k.RemainingTasks)
	assert.Equal(t, 2, k.Blockers)
	assert.Equal(t, 1, k.BugsOpen)
	assert.Equal(t, 12.35, k.ScopeChangePercent)
	assert.Equal(t, 2.0, k.AvgCycleTimeDays)
}

func TestComputeKPIs_nothingPlanned(t *testing.T) {
	k := risk.ComputeKPIs(risk.Snapshot{CompletedTasks: 3})
	assert.Equal(t, 0.0, k.CompletionRate)
	assert.Equal(t, 0, k.RemainingTasks)
}

func TestComputeKPIs_roundsCompletionToThreeDecimals(t *testing.T) {
	assert.Equal(t, 0.333, risk.ComputeKPIs(risk.Snapshot{PlannedTasks: 3, CompletedTasks: 1}).CompletionRate)
	assert.Equal(t, 0.143, risk.ComputeKPIs(risk.Snapshot{PlannedTasks: 7, CompletedTasks: 1}).CompletionRate)
	// 1/16 = 0.0625 is exact in binary; the tie goes to the even digit.
	assert.Equal(t, 0.062, risk.ComputeKPIs(risk.Snapshot{PlannedTasks: 16, CompletedTasks: 1}).CompletionRate)
}
