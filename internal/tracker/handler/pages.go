package handler

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/DeliveryRiskTracker/internal/tracker/model"
	"github.com/jmerrifield20/DeliveryRiskTracker/internal/tracker/repository"
	"github.com/jmerrifield20/DeliveryRiskTracker/internal/tracker/service"
	"github.com/jmerrifield20/DeliveryRiskTracker/pkg/risk"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{"dashboard", "project_new", "project_view", "metric_add", "report"}

var notices = map[string]string{
	"project_created": "Project created successfully!",
	"metrics_added":   "Metrics added successfully!",
	"not_found":       "Project not found.",
}

var metricFields = []string{
	"snapshot_date", "planned_tasks", "completed_tasks", "in_progress_tasks",
	"blockers_count", "bugs_open", "scope_change_percent", "avg_cycle_time_days", "comments",
}

var templateFuncs = template.FuncMap{
	"levelClass": func(l risk.Level) string { return strings.ToLower(string(l)) },
	"pct":        func(rate float64) string { return fmt.Sprintf("%.0f%%", rate*100) },
}

// PageHandler serves the server-rendered HTML interface.
type PageHandler struct {
	svc      *service.TrackerService
	pages    map[string]*template.Template
	readOnly bool
	logger   *zap.Logger
}

// NewPageHandler parses the embedded templates. When readOnly is true the
// create and add-metrics forms are not served.
func NewPageHandler(svc *service.TrackerService, readOnly bool, logger *zap.Logger) (*PageHandler, error) {
	registerBindings(logger)
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.New(name).Funcs(templateFuncs).ParseFS(templateFS,
			"templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		pages[name] = t
	}
	return &PageHandler{svc: svc, pages: pages, readOnly: readOnly, logger: logger}, nil
}

// Register mounts the HTML routes on r.
func (h *PageHandler) Register(r gin.IRoutes) {
	r.GET("/", h.Dashboard)
	r.GET("/projects/:id", h.ProjectView)
	r.GET("/projects/:id/report", h.Report)
	r.GET("/projects/:id/report.csv", h.ReportCSV)
	if h.readOnly {
		return
	}
	r.GET("/projects/new", h.NewProjectForm)
	r.POST("/projects/new", h.CreateProject)
	r.GET("/projects/:id/metrics/add", h.AddMetricsForm)
	r.POST("/projects/:id/metrics/add", h.AddMetrics)
}

// Dashboard handles GET /.
func (h *PageHandler) Dashboard(c *gin.Context) {
	cards, err := h.svc.Dashboard(c.Request.Context())
	if err != nil {
		h.renderError(c, "dashboard", err)
		return
	}
	h.render(c, http.StatusOK, "dashboard", gin.H{"Title": "Projects", "Cards": cards})
}

// NewProjectForm handles GET /projects/new.
func (h *PageHandler) NewProjectForm(c *gin.Context) {
	h.render(c, http.StatusOK, "project_new", gin.H{"Title": "New project", "Form": model.CreateProjectRequest{}})
}

// CreateProject handles POST /projects/new.
func (h *PageHandler) CreateProject(c *gin.Context) {
	var req model.CreateProjectRequest
	err := c.ShouldBind(&req)
	if err == nil {
		_, err = h.svc.CreateProject(c.Request.Context(), "web", &req)
	} else {
		err = model.AsValidation(err)
	}
	if err != nil {
		status, msg := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("create project", zap.Error(err))
		}
		h.render(c, status, "project_new", gin.H{"Title": "New project", "Form": req, "Error": msg})
		return
	}
	c.Redirect(http.StatusSeeOther, "/?notice=project_created")
}

// ProjectView handles GET /projects/:id.
func (h *PageHandler) ProjectView(c *gin.Context) {
	tl, ok := h.timeline(c)
	if !ok {
		return
	}
	h.render(c, http.StatusOK, "project_view", gin.H{"Title": tl.Project.Name, "Timeline": tl})
}

// AddMetricsForm handles GET /projects/:id/metrics/add.
func (h *PageHandler) AddMetricsForm(c *gin.Context) {
	p, ok := h.project(c)
	if !ok {
		return
	}
	h.render(c, http.StatusOK, "metric_add", gin.H{"Title": "Add metrics", "Project": p, "Form": map[string]string{}})
}

// AddMetrics handles POST /projects/:id/metrics/add.
func (h *PageHandler) AddMetrics(c *gin.Context) {
	p, ok := h.project(c)
	if !ok {
		return
	}

	var req model.AddMetricsRequest
	err := c.ShouldBind(&req)
	if err == nil {
		_, err = h.svc.AddSnapshot(c.Request.Context(), "web", p.ID, &req)
	} else {
		err = model.AsValidation(err)
	}
	if err != nil {
		status, msg := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("add metrics", zap.Error(err))
		}
		form := make(map[string]string, len(metricFields))
		for _, f := range metricFields {
			form[f] = c.PostForm(f)
		}
		h.render(c, status, "metric_add", gin.H{"Title": "Add metrics", "Project": p, "Form": form, "Error": "Error: " + msg})
		return
	}
	c.Redirect(http.StatusSeeOther, fmt.Sprintf("/projects/%d?notice=metrics_added", p.ID))
}

// Report handles GET /projects/:id/report.
func (h *PageHandler) Report(c *gin.Context) {
	tl, ok := h.timeline(c)
	if !ok {
		return
	}
	h.render(c, http.StatusOK, "report", gin.H{"Title": "Report: " + tl.Project.Name, "Timeline": tl})
}

// ReportCSV handles GET /projects/:id/report.csv.
func (h *PageHandler) ReportCSV(c *gin.Context) {
	tl, ok := h.timeline(c)
	if !ok {
		return
	}
	if err := serveReportCSV(c, tl); err != nil {
		h.logger.Warn("write csv report", zap.Int64("project_id", tl.Project.ID), zap.Error(err))
	}
}

func (h *PageHandler) project(c *gin.Context) (*model.Project, bool) {
	id, ok := projectID(c)
	if !ok {
		c.Redirect(http.StatusSeeOther, "/?notice=not_found")
		return nil, false
	}
	p, err := h.svc.GetProject(c.Request.Context(), id)
	if err != nil {
		h.renderError(c, "get project", err)
		return nil, false
	}
	return p, true
}

func (h *PageHandler) timeline(c *gin.Context) (*service.Timeline, bool) {
	id, ok := projectID(c)
	if !ok {
		c.Redirect(http.StatusSeeOther, "/?notice=not_found")
		return nil, false
	}
	tl, err := h.svc.Timeline(c.Request.Context(), id)
	if err != nil {
		h.renderError(c, "project timeline", err)
		return nil, false
	}
	return tl, true
}

// renderError sends missing projects back to the dashboard and shows
// anything else as an error page.
func (h *PageHandler) renderError(c *gin.Context, op string, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		c.Redirect(http.StatusSeeOther, "/?notice=not_found")
		return
	}
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(op, zap.Error(err))
	}
	h.render(c, status, "dashboard", gin.H{"Title": "Error", "Error": msg})
}

func (h *PageHandler) render(c *gin.Context, status int, page string, data gin.H) {
	data["ReadOnly"] = h.readOnly
	if _, set := data["Notice"]; !set {
		data["Notice"] = notices[c.Query("notice")]
	}

	var buf bytes.Buffer
	if err := h.pages[page].ExecuteTemplate(&buf, "layout", data); err != nil {
		h.logger.Error("render page", zap.String("page", page), zap.Error(err))
		c.String(http.StatusInternalServerError, "internal error")
		return
	}
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}
