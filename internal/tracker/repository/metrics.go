package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmerrifield20/DeliveryRiskTracker/internal/tracker/model"
)

const metricsColumns = `id, project_id, to_char(snapshot_date, 'YYYY-MM-DD'),
	planned_tasks, completed_tasks, in_progress_tasks, blockers_count, bugs_open,
	scope_change_percent, avg_cycle_time_days, comments, created_at`

// MetricsRepository stores metrics snapshots.
type MetricsRepository struct {
	db *pgxpool.Pool
}

// NewMetricsRepository creates a new MetricsRepository.
func NewMetricsRepository(db *pgxpool.Pool) *MetricsRepository {
	return &MetricsRepository{db: db}
}

// Create inserts a snapshot and fills in its ID and CreatedAt.
func (r *MetricsRepository) Create(ctx context.Context, m *model.MetricsSnapshot) error {
	m.CreatedAt = time.Now().UTC()
	query := `
		INSERT INTO metrics (
			project_id, snapshot_date, planned_tasks, completed_tasks, in_progress_tasks,
			blockers_count, bugs_open, scope_change_percent, avg_cycle_time_days,
			comments, created_at
		) VALUES ($1, $2::date, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`
	return r.db.QueryRow(ctx, query,
		m.ProjectID, m.SnapshotDate, m.PlannedTasks, m.CompletedTasks, m.InProgressTasks,
		m.BlockersCount, m.BugsOpen, m.ScopeChangePercent, m.AvgCycleTimeDays,
		m.Comments, m.CreatedAt,
	).Scan(&m.ID)
}

// ListByProject returns a project's snapshots in timeline order.
func (r *MetricsRepository) ListByProject(ctx context.Context, projectID int64) ([]*model.MetricsSnapshot, error) {
	query := `SELECT ` + metricsColumns + ` FROM metrics
	          WHERE project_id = $1
	          ORDER BY snapshot_date ASC, id ASC`
	return r.query(ctx, query, projectID)
}

// LatestTwo returns at most two snapshots, newest first.
func (r *MetricsRepository) LatestTwo(ctx context.Context, projectID int64) ([]*model.MetricsSnapshot, error) {
	query := `SELECT ` + metricsColumns + ` FROM metrics
	          WHERE project_id = $1
	          ORDER BY snapshot_date DESC, id DESC
	          LIMIT 2`
	return r.query(ctx, query, projectID)
}

func (r *MetricsRepository) query(ctx context.Context, query string, args ...any) ([]*model.MetricsSnapshot, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.MetricsSnapshot
	for rows.Next() {
		m, err := scanMetrics(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMetrics(row pgx.Row) (*model.MetricsSnapshot, error) {
	var m model.MetricsSnapshot
	err := row.Scan(
		&m.ID, &m.ProjectID, &m.SnapshotDate,
		&m.PlannedTasks, &m.CompletedTasks, &m.InProgressTasks,
		&m.BlockersCount, &m.BugsOpen,
		&m.ScopeChangePercent, &m.AvgCycleTimeDays,
		&m.Comments, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
