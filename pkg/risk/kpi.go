package risk

import (
	"math"
	"strconv"
)

// Normalize coerces out-of-range inputs instead of rejecting them: counts are
// floored at zero, scope change is clamped to [0, 100] and cycle time is
// floored at zero. A NaN scope becomes zero and an infinite one takes the
// nearer bound; a NaN or infinite cycle time becomes zero.
func Normalize(s Snapshot) Snapshot {
	return Snapshot{
		PlannedTasks:       max(s.PlannedTasks, 0),
		CompletedTasks:     max(s.CompletedTasks, 0),
		InProgressTasks:    max(s.InProgressTasks, 0),
		BlockersCount:      max(s.BlockersCount, 0),
		BugsOpen:           max(s.BugsOpen, 0),
		ScopeChangePercent: clamp(zeroNaN(s.ScopeChangePercent), 0, 100),
		AvgCycleTimeDays:   math.Max(finite(s.AvgCycleTimeDays), 0),
	}
}

// ComputeKPIs normalizes s and derives its KPI set.
func ComputeKPIs(s Snapshot) KPIs {
	n := Normalize(s)
	return KPIs{
		CompletionRate:     roundTo(completionRate(n), 3),
		RemainingTasks:     max(n.PlannedTasks-n.CompletedTasks, 0),
		Blockers:           n.BlockersCount,
		BugsOpen:           n.BugsOpen,
		ScopeChangePercent: roundTo(n.ScopeChangePercent, 2),
		AvgCycleTimeDays:   roundTo(n.AvgCycleTimeDays, 2),
	}
}

// completionRate is the unrounded completed/planned ratio, 0 when planned is 0.
func completionRate(s Snapshot) float64 {
	if s.PlannedTasks <= 0 {
		return 0
	}
	return float64(s.CompletedTasks) / float64(s.PlannedTasks)
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

func zeroNaN(x float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	return x
}

// finite maps NaN and ±Inf to zero.
func finite(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return x
}

// roundTo rounds x to the given number of decimal places using the exact
// binary value of x, with ties going to the even digit.
func roundTo(x float64, places int) float64 {
	v, err := strconv.ParseFloat(strconv.FormatFloat(x, 'f', places, 64), 64)
	if err != nil {
		return x
	}
	return v
}
