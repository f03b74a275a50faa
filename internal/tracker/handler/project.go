package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/DeliveryRiskTracker/internal/auth"
	"github.com/jmerrifield20/DeliveryRiskTracker/internal/tracker/model"
	"github.com/jmerrifield20/DeliveryRiskTracker/internal/tracker/service"
	"go.uber.org/zap"
)

// ProjectHandler serves the JSON API for projects, snapshots and scoring.
type ProjectHandler struct {
	svc    *service.TrackerService
	logger *zap.Logger
}

// NewProjectHandler creates a new ProjectHandler.
func NewProjectHandler(svc *service.TrackerService, logger *zap.Logger) *ProjectHandler {
	registerBindings(logger)
	return &ProjectHandler{svc: svc, logger: logger}
}

// Register mounts the API routes. guard protects every mutating route.
func (h *ProjectHandler) Register(rg *gin.RouterGroup, guard gin.HandlerFunc) {
	projects := rg.Group("/projects")
	{
		projects.GET("", h.ListProjects)
		projects.POST("", guard, h.CreateProject)
		projects.GET("/:id", h.GetProject)
		projects.DELETE("/:id", guard, h.DeleteProject)
		projects.GET("/:id/metrics", h.ListMetrics)
		projects.POST("/:id/metrics", guard, h.AddMetrics)
		projects.GET("/:id/risk", h.LatestRisk)
		projects.GET("/:id/report.csv", h.ReportCSV)
	}
	rg.POST("/risk/score", h.Score)
}

// ListProjects handles GET /projects. Each project carries its latest risk.
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	cards, err := h.svc.Dashboard(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, "list projects", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": cards, "count": len(cards)})
}

// CreateProject handles POST /projects.
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	var req model.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.logger, "create project", model.AsValidation(err))
		return
	}

	p, err := h.svc.CreateProject(c.Request.Context(), auth.Subject(c), &req)
	if err != nil {
		writeError(c, h.logger, "create project", err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// GetProject handles GET /projects/:id.
func (h *ProjectHandler) GetProject(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project ID"})
		return
	}
	p, err := h.svc.GetProject(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, "get project", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// DeleteProject handles DELETE /projects/:id.
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project ID"})
		return
	}
	if err := h.svc.DeleteProject(c.Request.Context(), auth.Subject(c), id); err != nil {
		writeError(c, h.logger, "delete project", err)
		return
	}
	ForgetProject(id)
	c.Status(http.StatusNoContent)
}

// ListMetrics handles GET /projects/:id/metrics and returns the full timeline.
func (h *ProjectHandler) ListMetrics(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project ID"})
		return
	}
	tl, err := h.svc.Timeline(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, "project timeline", err)
		return
	}
	c.JSON(http.StatusOK, tl)
}

// AddMetrics handles POST /projects/:id/metrics.
func (h *ProjectHandler) AddMetrics(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project ID"})
		return
	}
	var req model.AddMetricsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.logger, "add metrics", model.AsValidation(err))
		return
	}

	res, err := h.svc.AddSnapshot(c.Request.Context(), auth.Subject(c), id, &req)
	if err != nil {
		writeError(c, h.logger, "add metrics", err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// LatestRisk handles GET /projects/:id/risk.
func (h *ProjectHandler) LatestRisk(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project ID"})
		return
	}
	card, err := h.svc.LatestRisk(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, "latest risk", err)
		return
	}
	c.JSON(http.StatusOK, card)
}

// ReportCSV handles GET /projects/:id/report.csv.
func (h *ProjectHandler) ReportCSV(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project ID"})
		return
	}
	tl, err := h.svc.Timeline(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, "report csv", err)
		return
	}
	if err := serveReportCSV(c, tl); err != nil {
		h.logger.Warn("write csv report", zap.Int64("project_id", id), zap.Error(err))
	}
}

// Score handles POST /risk/score: scores a snapshot pair without storing it.
func (h *ProjectHandler) Score(c *gin.Context) {
	var req model.ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.logger, "score", model.AsValidation(err))
		return
	}
	result, err := h.svc.ScoreAdHoc(&req)
	if err != nil {
		writeError(c, h.logger, "score", err)
		return
	}
	c.JSON(http.StatusOK, result)
}
