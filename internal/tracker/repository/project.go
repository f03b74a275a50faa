package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmerrifield20/DeliveryRiskTracker/internal/tracker/model"
)

// ErrNotFound is returned when a project is not found in the database.
var ErrNotFound = errors.New("project not found")

const projectColumns = `id, name, owner, to_char(start_date, 'YYYY-MM-DD'), to_char(end_date, 'YYYY-MM-DD'), created_at`

// ProjectRepository provides CRUD operations for projects against PostgreSQL.
type ProjectRepository struct {
	db *pgxpool.Pool
}

// NewProjectRepository creates a new ProjectRepository.
func NewProjectRepository(db *pgxpool.Pool) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// Create inserts a new project and fills in its ID and CreatedAt.
func (r *ProjectRepository) Create(ctx context.Context, p *model.Project) error {
	p.CreatedAt = time.Now().UTC()
	query := `
		INSERT INTO projects (name, owner, start_date, end_date, created_at)
		VALUES ($1, $2, $3::date, $4::date, $5)
		RETURNING id`
	return r.db.QueryRow(ctx, query, p.Name, p.Owner, p.StartDate, p.EndDate, p.CreatedAt).Scan(&p.ID)
}

// GetByID retrieves a project by ID.
func (r *ProjectRepository) GetByID(ctx context.Context, id int64) (*model.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`
	p, err := scanProject(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// List returns all projects, newest first.
func (r *ProjectRepository) List(ctx context.Context) ([]*model.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects ORDER BY id DESC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*model.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// Delete removes a project; its snapshots go with it via ON DELETE CASCADE.
func (r *ProjectRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListActivity returns each project with the date of its most recent snapshot.
func (r *ProjectRepository) ListActivity(ctx context.Context) ([]model.ProjectActivity, error) {
	query := `
		SELECT p.id, p.name, p.created_at, MAX(m.snapshot_date)::timestamptz
		FROM projects p
		LEFT JOIN metrics m ON m.project_id = p.id
		GROUP BY p.id, p.name, p.created_at
		ORDER BY p.id`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ProjectActivity
	for rows.Next() {
		var a model.ProjectActivity
		if err := rows.Scan(&a.ProjectID, &a.Name, &a.CreatedAt, &a.LastSnapshot); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Ping reports whether the database is reachable.
func (r *ProjectRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func scanProject(row pgx.Row) (*model.Project, error) {
	var p model.Project
	if err := row.Scan(&p.ID, &p.Name, &p.Owner, &p.StartDate, &p.EndDate, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}
