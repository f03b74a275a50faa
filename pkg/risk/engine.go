package risk

import (
	"fmt"
	"math"
)

// Signal weights: the maximum number of points each signal can add.
const (
	completionWeight = 35.0
	blockerWeight    = 15.0
	bugWeight        = 15.0
	scopeWeight      = 15.0
	cycleWeight      = 10.0
	trendWeight      = 10.0
)

// Signal names reported in Contribution.Signal.
const (
	SignalCompletion = "completion"
	SignalBlockers   = "blockers"
	SignalBugs       = "bugs"
	SignalScope      = "scope"
	SignalCycleTime  = "cycle_time"
	SignalVelocity   = "velocity"
)

// evaluation carries the normalized inputs shared by every signal.
type evaluation struct {
	cur  Snapshot
	prev *Snapshot
	kpis KPIs
}

// signalFunc returns the contribution of one signal and whether the signal
// applies at all to this evaluation.
type signalFunc func(ev *evaluation) (Contribution, bool)

// Engine evaluates snapshots against a fixed, ordered set of signals.
// An Engine is immutable once built and safe for concurrent use.
type Engine struct {
	signals []signalFunc
}

// NewEngine returns an Engine loaded with the standard six signals.
// Reasons are emitted in the order the signals are listed here.
func NewEngine() *Engine {
	return &Engine{
		signals: []signalFunc{
			signalCompletion,
			signalBlockers,
			signalBugs,
			signalScope,
			signalCycleTime,
			signalVelocity,
		},
	}
}

// Evaluate scores current, using previous (nil for the first snapshot of a
// project) for the velocity trend.
func (e *Engine) Evaluate(current Snapshot, previous *Snapshot) Result {
	ev := &evaluation{cur: Normalize(current)}
	ev.kpis = ComputeKPIs(ev.cur)
	if previous != nil {
		p := Normalize(*previous)
		ev.prev = &p
	}

	total := 0.0
	reasons := make([]string, 0, len(e.signals))
	contributions := make([]Contribution, 0, len(e.signals))
	for _, s := range e.signals {
		c, ok := s(ev)
		if !ok {
			continue
		}
		total += c.Points
		contributions = append(contributions, c)
		if c.Reason != "" {
			reasons = append(reasons, c.Reason)
		}
	}

	if len(reasons) == 0 {
		reasons = append(reasons, StableReason)
	}

	score := int(math.RoundToEven(clamp(total, 0, 100)))
	return Result{
		Score:         score,
		Level:         LevelFor(score),
		Reasons:       reasons,
		KPIs:          ev.kpis,
		Contributions: contributions,
	}
}

// EvaluateSeries scores snapshots already sorted by (snapshot_date, id),
// pairing each one with its immediate predecessor.
func (e *Engine) EvaluateSeries(snaps []Snapshot) []Result {
	results := make([]Result, len(snaps))
	for i := range snaps {
		var prev *Snapshot
		if i > 0 {
			prev = &snaps[i-1]
		}
		results[i] = e.Evaluate(snaps[i], prev)
	}
	return results
}

// ── Signals ───────────────────────────────────────────────────────────────────

// signalCompletion uses the rounded completion rate, the same value reported
// in the KPIs. It does not apply when nothing is planned.
func signalCompletion(ev *evaluation) (Contribution, bool) {
	if ev.cur.PlannedTasks <= 0 {
		return Contribution{}, false
	}
	cr := ev.kpis.CompletionRate
	c := Contribution{
		Signal: SignalCompletion,
		Points: clamp((0.9-cr)/0.9, 0, 1) * completionWeight,
	}
	switch {
	case cr < 0.6:
		c.Reason = fmt.Sprintf("Low completion rate (%.0f%%) vs planned tasks.", cr*100)
	case cr < 0.8:
		c.Reason = fmt.Sprintf("Moderate completion rate (%.0f%%)—schedule pressure possible.", cr*100)
	}
	return c, true
}

func signalBlockers(ev *evaluation) (Contribution, bool) {
	b := ev.cur.BlockersCount
	c := Contribution{
		Signal: SignalBlockers,
		Points: clamp(float64(b)/5, 0, 1) * blockerWeight,
	}
	switch {
	case b >= 3:
		c.Reason = fmt.Sprintf("High blockers count (%d) slowing progress.", b)
	case b >= 1:
		c.Reason = fmt.Sprintf("Some blockers present (%d).", b)
	}
	return c, true
}

func signalBugs(ev *evaluation) (Contribution, bool) {
	n := ev.cur.BugsOpen
	c := Contribution{
		Signal: SignalBugs,
		Points: clamp(float64(n)/20, 0, 1) * bugWeight,
	}
	switch {
	case n >= 10:
		c.Reason = fmt.Sprintf("High number of open bugs (%d) causing rework.", n)
	case n >= 4:
		c.Reason = fmt.Sprintf("Open bugs (%d) may slow delivery.", n)
	}
	return c, true
}

func signalScope(ev *evaluation) (Contribution, bool) {
	pct := ev.cur.ScopeChangePercent
	c := Contribution{
		Signal: SignalScope,
		Points: clamp(pct/30, 0, 1) * scopeWeight,
	}
	switch {
	case pct >= 15:
		c.Reason = fmt.Sprintf("Scope increased by %.0f%%—delivery risk increased.", pct)
	case pct >= 5:
		c.Reason = fmt.Sprintf("Scope change of %.0f%% detected.", pct)
	}
	return c, true
}

// signalCycleTime adds nothing until the average cycle time passes 2 days.
func signalCycleTime(ev *evaluation) (Contribution, bool) {
	days := ev.cur.AvgCycleTimeDays
	c := Contribution{
		Signal: SignalCycleTime,
		Points: clamp((days-2)/5, 0, 1) * cycleWeight,
	}
	if days >= 5 {
		c.Reason = fmt.Sprintf("High average cycle time (%.1f days).", days)
	}
	return c, true
}

// signalVelocity applies only when a previous snapshot had a positive
// completion rate higher than the current one. The previous rate is not
// rounded.
func signalVelocity(ev *evaluation) (Contribution, bool) {
	if ev.prev == nil {
		return Contribution{}, false
	}
	prevRate := completionRate(*ev.prev)
	cr := ev.kpis.CompletionRate
	if prevRate <= 0 || cr >= prevRate {
		return Contribution{}, false
	}
	return Contribution{
		Signal: SignalVelocity,
		Points: clamp((prevRate-cr)/0.5, 0, 1) * trendWeight,
		Reason: fmt.Sprintf("Velocity drop: completion rate decreased from %.0f%% to %.0f%%.",
			prevRate*100, cr*100),
	}, true
}
