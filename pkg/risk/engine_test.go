package risk_test

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/jmerrifield20/DeliveryRiskTracker/pkg/risk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signals(r risk.Result) []string {
	out := make([]string, 0, len(r.Contributions))
	for _, c := range r.Contributions {
		out = append(out, c.Signal)
	}
	return out
}

func contribution(t *testing.T, r risk.Result, signal string) risk.Contribution {
	t.Helper()
	for _, c := range r.Contributions {
		if c.Signal == signal {
			return c
		}
	}
	t.Fatalf("no %q contribution in %+v", signal, r.Contributions)
	return risk.Contribution{}
}

func TestEvaluate_stableMetrics(t *testing.T) {
	e := risk.NewEngine()
	r := e.Evaluate(risk.Snapshot{
		PlannedTasks:     10,
		CompletedTasks:   9,
		AvgCycleTimeDays: 1,
	}, nil)

	assert.Equal(t, []string{risk.StableReason}, r.Reasons)
	assert.Equal(t, 0, r.Score)
	assert.Equal(t, risk.LevelLow, r.Level)
	assert.Equal(t, 0.9, r.KPIs.CompletionRate)
}

func TestEvaluate_endToEndExample(t *testing.T) {
	e := risk.NewEngine()
	r := e.Evaluate(risk.Snapshot{
		PlannedTasks:       20,
		CompletedTasks:     8,
		InProgressTasks:    5,
		BlockersCount:      4,
		BugsOpen:           12,
		ScopeChangePercent: 20,
		AvgCycleTimeDays:   6,
	}, nil)

	assert.Equal(t, 58, r.Score)
	assert.Equal(t, risk.LevelMedium, r.Level)
	assert.Equal(t, []string{
		"Low completion rate (40%) vs planned tasks.",
		"High blockers count (4) slowing progress.",
		"High number of open bugs (12) causing rework.",
		"Scope increased by 20%—delivery risk increased.",
		"High average cycle time (6.0 days).",
	}, r.Reasons)

	assert.InDelta(t, 19.444, contribution(t, r, risk.SignalCompletion).Points, 0.001)
	assert.InDelta(t, 12, contribution(t, r, risk.SignalBlockers).Points, 1e-9)
	assert.InDelta(t, 9, contribution(t, r, risk.SignalBugs).Points, 1e-9)
	assert.InDelta(t, 10, contribution(t, r, risk.SignalScope).Points, 1e-9)
	assert.InDelta(t, 8, contribution(t, r, risk.SignalCycleTime).Points, 1e-9)

	assert.Equal(t, risk.KPIs{
		CompletionRate:     0.4,
		RemainingTasks:     12,
		Blockers:           4,
		BugsOpen:           12,
		ScopeChangePercent: 20,
		AvgCycleTimeDays:   6,
	}, r.KPIs)
}

func TestEvaluate_velocityDrop(t *testing.T) {
	e := risk.NewEngine()
	prev := risk.Snapshot{PlannedTasks: 10, CompletedTasks: 8}
	r := e.Evaluate(risk.Snapshot{PlannedTasks: 10, CompletedTasks: 5}, &prev)

	v := contribution(t, r, risk.SignalVelocity)
	assert.InDelta(t, 6, v.Points, 1e-9)
	assert.Equal(t, []string{
		"Low completion rate (50%) vs planned tasks.",
		"Velocity drop: completion rate decreased from 80% to 50%.",
	}, r.Reasons)
	// 15.56 completion + 6 trend
	assert.Equal(t, 22, r.Score)
	assert.Equal(t, risk.LevelLow, r.Level)
}

func TestEvaluate_velocityNotTriggered(t *testing.T) {
	e := risk.NewEngine()
	cur := risk.Snapshot{PlannedTasks: 10, CompletedTasks: 5}

	cases := []struct {
		name string
		prev *risk.Snapshot
	}{
		{"no previous", nil},
		{"previous planned nothing", &risk.Snapshot{PlannedTasks: 0, CompletedTasks: 4}},
		{"previous rate zero", &risk.Snapshot{PlannedTasks: 10, CompletedTasks: 0}},
		{"previous rate lower", &risk.Snapshot{PlannedTasks: 10, CompletedTasks: 3}},
		{"previous rate equal", &risk.Snapshot{PlannedTasks: 20, CompletedTasks: 10}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := e.Evaluate(cur, tc.prev)
			assert.NotContains(t, signals(r), risk.SignalVelocity)
			assert.Len(t, r.Reasons, 1)
		})
	}
}

func TestEvaluate_nothingPlannedSkipsCompletion(t *testing.T) {
	e := risk.NewEngine()
	r := e.Evaluate(risk.Snapshot{PlannedTasks: 0, CompletedTasks: 5}, nil)

	assert.Equal(t, 0.0, r.KPIs.CompletionRate)
	assert.NotContains(t, signals(r), risk.SignalCompletion)
	assert.Equal(t, []string{risk.StableReason}, r.Reasons)
	assert.Equal(t, 0, r.Score)
}

func TestEvaluate_moderateCompletion(t *testing.T) {
	e := risk.NewEngine()
	r := e.Evaluate(risk.Snapshot{PlannedTasks: 10, CompletedTasks: 7}, nil)

	assert.Equal(t, []string{"Moderate completion rate (70%)—schedule pressure possible."}, r.Reasons)
	assert.Equal(t, 8, r.Score)
}

func TestEvaluate_usesRoundedCompletionRate(t *testing.T) {
	e := risk.NewEngine()
	r := e.Evaluate(risk.Snapshot{PlannedTasks: 3, CompletedTasks: 2}, nil)

	assert.Equal(t, 0.667, r.KPIs.CompletionRate)
	assert.InDelta(t, (0.9-0.667)/0.9*35, contribution(t, r, risk.SignalCompletion).Points, 1e-9)
	assert.Equal(t, []string{"Moderate completion rate (67%)—schedule pressure possible."}, r.Reasons)
}

func TestEvaluate_reasonThresholds(t *testing.T) {
	e := risk.NewEngine()
	cases := []struct {
		name    string
		snap    risk.Snapshot
		reasons []string
	}{
		{"one blocker", risk.Snapshot{BlockersCount: 1}, []string{"Some blockers present (1)."}},
		{"three blockers", risk.Snapshot{BlockersCount: 3}, []string{"High blockers count (3) slowing progress."}},
		{"three bugs", risk.Snapshot{BugsOpen: 3}, []string{risk.StableReason}},
		{"four bugs", risk.Snapshot{BugsOpen: 4}, []string{"Open bugs (4) may slow delivery."}},
		{"ten bugs", risk.Snapshot{BugsOpen: 10}, []string{"High number of open bugs (10) causing rework."}},
		{"small scope change", risk.Snapshot{ScopeChangePercent: 4.9}, []string{risk.StableReason}},
		{"scope change", risk.Snapshot{ScopeChangePercent: 5}, []string{"Scope change of 5% detected."}},
		{"scope increase", risk.Snapshot{ScopeChangePercent: 15}, []string{"Scope increased by 15%—delivery risk increased."}},
		{"cycle time below reason", risk.Snapshot{AvgCycleTimeDays: 4.99}, []string{risk.StableReason}},
		{"cycle time high", risk.Snapshot{AvgCycleTimeDays: 5}, []string{"High average cycle time (5.0 days)."}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.reasons, e.Evaluate(tc.snap, nil).Reasons)
		})
	}
}

func TestEvaluate_cycleTimeBelowTwoDaysAddsNothing(t *testing.T) {
	e := risk.NewEngine()
	r := e.Evaluate(risk.Snapshot{AvgCycleTimeDays: 2}, nil)
	assert.Equal(t, 0.0, contribution(t, r, risk.SignalCycleTime).Points)

	r = e.Evaluate(risk.Snapshot{AvgCycleTimeDays: 4.99}, nil)
	assert.InDelta(t, 5.98, contribution(t, r, risk.SignalCycleTime).Points, 1e-9)
}

func TestEvaluate_scoreRoundsHalfToEven(t *testing.T) {
	e := risk.NewEngine()

	// 6 bugs → 4.5 points.
	r := e.Evaluate(risk.Snapshot{BugsOpen: 6}, nil)
	assert.Equal(t, 4, r.Score)

	// 2 bugs → 1.5 points.
	r = e.Evaluate(risk.Snapshot{BugsOpen: 2}, nil)
	assert.Equal(t, 2, r.Score)
}

func TestEvaluate_scoreBounds(t *testing.T) {
	e := risk.NewEngine()

	prev := risk.Snapshot{PlannedTasks: 10, CompletedTasks: 10}
	worst := e.Evaluate(risk.Snapshot{
		PlannedTasks:       10,
		BlockersCount:      100,
		BugsOpen:           100,
		ScopeChangePercent: 500,
		AvgCycleTimeDays:   100,
	}, &prev)
	assert.Equal(t, 100, worst.Score)
	assert.Equal(t, risk.LevelHigh, worst.Level)
	assert.Len(t, worst.Reasons, 6)

	negative := e.Evaluate(risk.Snapshot{
		PlannedTasks:       -5,
		CompletedTasks:     -5,
		InProgressTasks:    -1,
		BlockersCount:      -3,
		BugsOpen:           -7,
		ScopeChangePercent: -40,
		AvgCycleTimeDays:   -2,
	}, nil)
	assert.Equal(t, 0, negative.Score)
	assert.Equal(t, []string{risk.StableReason}, negative.Reasons)
}

func TestEvaluate_blockersMonotone(t *testing.T) {
	e := risk.NewEngine()
	base := risk.Snapshot{PlannedTasks: 10, CompletedTasks: 6, BugsOpen: 3}

	last := -1
	var atFive int
	for b := 0; b <= 10; b++ {
		s := base
		s.BlockersCount = b
		score := e.Evaluate(s, nil).Score
		require.GreaterOrEqual(t, score, last, "blockers=%d", b)
		last = score
		if b == 5 {
			atFive = score
		}
		if b > 5 {
			assert.Equal(t, atFive, score, "blockers=%d", b)
		}
	}
}

func TestEvaluate_idempotent(t *testing.T) {
	e := risk.NewEngine()
	cur := risk.Snapshot{PlannedTasks: 12, CompletedTasks: 5, BlockersCount: 2, BugsOpen: 7, ScopeChangePercent: 9, AvgCycleTimeDays: 3.5}
	prev := risk.Snapshot{PlannedTasks: 12, CompletedTasks: 9}

	a, err := json.Marshal(e.Evaluate(cur, &prev))
	require.NoError(t, err)
	b, err := json.Marshal(e.Evaluate(cur, &prev))
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestEvaluate_concurrentCalls(t *testing.T) {
	e := risk.NewEngine()
	cur := risk.Snapshot{PlannedTasks: 20, CompletedTasks: 8, BlockersCount: 4, BugsOpen: 12, ScopeChangePercent: 20, AvgCycleTimeDays: 6}
	want := e.Evaluate(cur, nil)

	var wg sync.WaitGroup
	results := make([]risk.Result, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = e.Evaluate(cur, nil)
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, want, r)
	}
}

func TestEvaluateSeries_pairsWithPredecessor(t *testing.T) {
	e := risk.NewEngine()
	snaps := []risk.Snapshot{
		{PlannedTasks: 10, CompletedTasks: 8},
		{PlannedTasks: 10, CompletedTasks: 5},
		{PlannedTasks: 10, CompletedTasks: 9},
	}

	results := e.EvaluateSeries(snaps)
	require.Len(t, results, 3)

	assert.NotContains(t, signals(results[0]), risk.SignalVelocity)
	assert.Contains(t, signals(results[1]), risk.SignalVelocity)
	assert.NotContains(t, signals(results[2]), risk.SignalVelocity)

	for i := range snaps {
		var prev *risk.Snapshot
		if i > 0 {
			prev = &snaps[i-1]
		}
		assert.Equal(t, e.Evaluate(snaps[i], prev), results[i])
	}
}

func TestEvaluateSeries_empty(t *testing.T) {
	assert.Empty(t, risk.NewEngine().EvaluateSeries(nil))
}

func TestLevelFor_boundaries(t *testing.T) {
	cases := map[int]risk.Level{
		0:   risk.LevelLow,
		39:  risk.LevelLow,
		40:  risk.LevelMedium,
		69:  risk.LevelMedium,
		70:  risk.LevelHigh,
		100: risk.LevelHigh,
	}
	for score, want := range cases {
		assert.Equal(t, want, risk.LevelFor(score), "score=%d", score)
	}
}

func TestLevel_Above(t *testing.T) {
	assert.True(t, risk.LevelHigh.Above(risk.LevelMedium))
	assert.True(t, risk.LevelMedium.Above(risk.LevelLow))
	assert.False(t, risk.LevelLow.Above(risk.LevelLow))
	assert.False(t, risk.LevelMedium.Above(risk.LevelHigh))
}
