package model

import (
	"time"

	"github.com/jmerrifield20/DeliveryRiskTracker/pkg/risk"
)

// MetricsSnapshot is one stored measurement of a project's delivery metrics.
// Snapshots of a project are ordered by (SnapshotDate, ID).
type MetricsSnapshot struct {
	ID                 int64     `json:"id"                   db:"id"`
	ProjectID          int64     `json:"project_id"           db:"project_id"`
	SnapshotDate       string    `json:"snapshot_date"        db:"snapshot_date"`
	PlannedTasks       int       `json:"planned_tasks"        db:"planned_tasks"`
	CompletedTasks     int       `json:"completed_tasks"      db:"completed_tasks"`
	InProgressTasks    int       `json:"in_progress_tasks"    db:"in_progress_tasks"`
	BlockersCount      int       `json:"blockers_count"       db:"blockers_count"`
	BugsOpen           int       `json:"bugs_open"            db:"bugs_open"`
	ScopeChangePercent float64   `json:"scope_change_percent" db:"scope_change_percent"`
	AvgCycleTimeDays   float64   `json:"avg_cycle_time_days"  db:"avg_cycle_time_days"`
	Comments           string    `json:"comments"             db:"comments"`
	CreatedAt          time.Time `json:"created_at"           db:"created_at"`
}

// RiskInput returns the fields the scoring engine reads.
func (m *MetricsSnapshot) RiskInput() risk.Snapshot {
	return risk.Snapshot{
		PlannedTasks:       m.PlannedTasks,
		CompletedTasks:     m.CompletedTasks,
		InProgressTasks:    m.InProgressTasks,
		BlockersCount:      m.BlockersCount,
		BugsOpen:           m.BugsOpen,
		ScopeChangePercent: m.ScopeChangePercent,
		AvgCycleTimeDays:   m.AvgCycleTimeDays,
	}
}

// SnapshotInput carries the numeric metrics as submitted by a client.
// Pointer fields distinguish a missing value from an explicit zero. Missing
// and non-finite values are rejected; out-of-range values are coerced by Risk.
type SnapshotInput struct {
	PlannedTasks       *int     `json:"planned_tasks"        form:"planned_tasks"        binding:"required"`
	CompletedTasks     *int     `json:"completed_tasks"      form:"completed_tasks"      binding:"required"`
	InProgressTasks    *int     `json:"in_progress_tasks"    form:"in_progress_tasks"    binding:"required"`
	BlockersCount      *int     `json:"blockers_count"       form:"blockers_count"       binding:"required"`
	BugsOpen           *int     `json:"bugs_open"            form:"bugs_open"            binding:"required"`
	ScopeChangePercent *float64 `json:"scope_change_percent" form:"scope_change_percent" binding:"required,finite"`
	AvgCycleTimeDays   *float64 `json:"avg_cycle_time_days"  form:"avg_cycle_time_days"  binding:"required,finite"`
}

// Risk converts a validated input into a normalized engine snapshot: negative
// counts and cycle times become zero and scope change is clamped to [0, 100].
func (in *SnapshotInput) Risk() risk.Snapshot {
	return risk.Normalize(risk.Snapshot{
		PlannedTasks:       derefInt(in.PlannedTasks),
		CompletedTasks:     derefInt(in.CompletedTasks),
		InProgressTasks:    derefInt(in.InProgressTasks),
		BlockersCount:      derefInt(in.BlockersCount),
		BugsOpen:           derefInt(in.BugsOpen),
		ScopeChangePercent: derefFloat(in.ScopeChangePercent),
		AvgCycleTimeDays:   derefFloat(in.AvgCycleTimeDays),
	})
}

// AddMetricsRequest is the payload for recording a new snapshot.
type AddMetricsRequest struct {
	SnapshotDate string `json:"snapshot_date" form:"snapshot_date" binding:"required,datetime=2006-01-02"`
	SnapshotInput
	Comments string `json:"comments" form:"comments" binding:"max=2000"`
}

// Snapshot builds the record to persist for projectID.
func (r *AddMetricsRequest) Snapshot(projectID int64) *MetricsSnapshot {
	s := r.Risk()
	return &MetricsSnapshot{
		ProjectID:          projectID,
		SnapshotDate:       r.SnapshotDate,
		PlannedTasks:       s.PlannedTasks,
		CompletedTasks:     s.CompletedTasks,
		InProgressTasks:    s.InProgressTasks,
		BlockersCount:      s.BlockersCount,
		BugsOpen:           s.BugsOpen,
		ScopeChangePercent: s.ScopeChangePercent,
		AvgCycleTimeDays:   s.AvgCycleTimeDays,
		Comments:           r.Comments,
	}
}

// ScoreRequest asks for a risk evaluation without storing anything.
type ScoreRequest struct {
	Current  *SnapshotInput `json:"current"  binding:"required"`
	Previous *SnapshotInput `json:"previous"`
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func derefFloat(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
