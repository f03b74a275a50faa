// Package risk implements the delivery risk scoring engine.
//
// The engine turns one project metrics snapshot, plus the snapshot that
// immediately precedes it, into a bounded 0–100 score, a discrete level, an
// ordered list of human-readable reasons and a derived KPI set. Evaluation is
// pure and deterministic: no I/O, no clock, no shared mutable state.
package risk

// Level is the discrete band derived from a risk score.
type Level string

const (
	LevelLow    Level = "LOW"
	LevelMedium Level = "MEDIUM"
	LevelHigh   Level = "HIGH"
)

// rank orders levels so callers can detect escalation.
func (l Level) rank() int {
	switch l {
	case LevelHigh:
		return 2
	case LevelMedium:
		return 1
	default:
		return 0
	}
}

// Above reports whether l is a strictly higher band than other.
func (l Level) Above(other Level) bool {
	return l.rank() > other.rank()
}

// StableReason is the only reason reported when no signal crosses its
// reason threshold.
const StableReason = "Metrics look stable. Low risk signals detected."

// Snapshot is one project's delivery metrics at a point in time.
// InProgressTasks is accepted and carried through but does not feed any
// signal.
type Snapshot struct {
	PlannedTasks       int     `json:"planned_tasks"        yaml:"planned_tasks"`
	CompletedTasks     int     `json:"completed_tasks"      yaml:"completed_tasks"`
	InProgressTasks    int     `json:"in_progress_tasks"    yaml:"in_progress_tasks"`
	BlockersCount      int     `json:"blockers_count"       yaml:"blockers_count"`
	BugsOpen           int     `json:"bugs_open"            yaml:"bugs_open"`
	ScopeChangePercent float64 `json:"scope_change_percent" yaml:"scope_change_percent"`
	AvgCycleTimeDays   float64 `json:"avg_cycle_time_days"  yaml:"avg_cycle_time_days"`
}

// KPIs are the presentation values derived from a normalized snapshot.
type KPIs struct {
	// CompletionRate is completed/planned rounded to 3 decimals, or 0 when
	// nothing is planned. It is not capped at 1.
	CompletionRate     float64 `json:"completion_rate"`
	RemainingTasks     int     `json:"remaining_tasks"`
	Blockers           int     `json:"blockers"`
	BugsOpen           int     `json:"bugs_open"`
	ScopeChangePercent float64 `json:"scope_change_percent"`
	AvgCycleTimeDays   float64 `json:"avg_cycle_time_days"`
}

// Contribution is the number of risk points one signal added to the total.
type Contribution struct {
	Signal string  `json:"signal"`
	Points float64 `json:"points"`
	Reason string  `json:"reason,omitempty"`
}

// Result is the outcome of a single evaluation.
type Result struct {
	Score   int      `json:"risk_score"`
	Level   Level    `json:"risk_level"`
	Reasons []string `json:"reasons"`
	KPIs    KPIs     `json:"kpis"`

	// Contributions lists every signal that applied, in evaluation order.
	Contributions []Contribution `json:"contributions"`
}

// LevelFor maps a 0–100 score to its level:
//
//	70–100 → HIGH
//	40–69  → MEDIUM
//	0–39   → LOW
func LevelFor(score int) Level {
	switch {
	case score >= 70:
		return LevelHigh
	case score >= 40:
		return LevelMedium
	default:
		return LevelLow
	}
}
