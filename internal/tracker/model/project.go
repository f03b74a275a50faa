package model

import (
	"strings"
	"time"
)

// DateLayout is the wire and storage format for calendar dates.
const DateLayout = "2006-01-02"

// Project is a tracked software delivery effort.
type Project struct {
	ID        int64     `json:"id"         db:"id"`
	Name      string    `json:"name"       db:"name"`
	Owner     string    `json:"owner"      db:"owner"`
	StartDate string    `json:"start_date" db:"start_date"`
	EndDate   string    `json:"end_date"   db:"end_date"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ProjectActivity is the minimal data the staleness monitor needs.
type ProjectActivity struct {
	ProjectID    int64
	Name         string
	CreatedAt    time.Time
	LastSnapshot *time.Time // nil when the project has no snapshots
}

// CreateProjectRequest is the payload for creating a project.
// EndDate must not precede StartDate.
type CreateProjectRequest struct {
	Name      string `json:"name"       form:"name"       binding:"required,max=200"`
	Owner     string `json:"owner"      form:"owner"      binding:"required,max=200"`
	StartDate string `json:"start_date" form:"start_date" binding:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date"   form:"end_date"   binding:"required,datetime=2006-01-02"`
}

// Trim strips surrounding whitespace from every field.
func (r *CreateProjectRequest) Trim() {
	r.Name = strings.TrimSpace(r.Name)
	r.Owner = strings.TrimSpace(r.Owner)
	r.StartDate = strings.TrimSpace(r.StartDate)
	r.EndDate = strings.TrimSpace(r.EndDate)
}

// ReportFilename is the download name for a project's CSV report.
func (p *Project) ReportFilename() string {
	return strings.ReplaceAll(p.Name, " ", "_") + "_report.csv"
}
