package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/DeliveryRiskTracker/pkg/risk"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	trackerRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	trackerRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tracker_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	trackerSnapshotsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracker_snapshots_recorded_total",
		Help: "Total metrics snapshots recorded.",
	})

	trackerRiskEvaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_risk_evaluations_total",
		Help: "Risk evaluations of newly recorded snapshots by level.",
	}, []string{"level"})

	trackerProjectRiskScore = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tracker_project_risk_score",
		Help: "Risk score of each project's most recently recorded snapshot.",
	}, []string{"project_id"})

	trackerStaleProjects = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tracker_stale_projects",
		Help: "Projects with no recent metrics snapshot.",
	})

	trackerWebhookDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_webhook_deliveries_total",
		Help: "Total webhook delivery attempts by event and result.",
	}, []string{"event", "status"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		trackerRequestsTotal.WithLabelValues(method, path, status).Inc()
		trackerRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordRisk is a service.RiskObserver that tracks newly recorded snapshots.
func RecordRisk(projectID int64, result risk.Result) {
	trackerSnapshotsTotal.Inc()
	trackerRiskEvaluations.WithLabelValues(string(result.Level)).Inc()
	trackerProjectRiskScore.WithLabelValues(strconv.FormatInt(projectID, 10)).Set(float64(result.Score))
}

// ForgetProject drops the per-project series of a deleted project.
func ForgetProject(projectID int64) {
	trackerProjectRiskScore.DeleteLabelValues(strconv.FormatInt(projectID, 10))
}

// SetStaleProjects sets the stale project gauge.
func SetStaleProjects(n int) {
	trackerStaleProjects.Set(float64(n))
}

// RecordWebhookDelivery records a webhook delivery attempt.
func RecordWebhookDelivery(event string, success bool) {
	status := "failure"
	if success {
		status = "success"
	}
	trackerWebhookDeliveries.WithLabelValues(event, status).Inc()
}
