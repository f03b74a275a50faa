// Package monitor flags projects that have stopped reporting metrics.
package monitor

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/jmerrifield20/DeliveryRiskTracker/internal/tracker/model"
	"go.uber.org/zap"
)

// EventProjectStale matches webhooks.EventProjectStale.
const EventProjectStale = "project.stale"

// Config holds staleness check configuration.
type Config struct {
	CheckInterval time.Duration
	StaleAfter    time.Duration
}

// ActivityLister returns every project with its latest snapshot date.
// *repository.ProjectRepository satisfies this interface.
type ActivityLister interface {
	ListActivity(ctx context.Context) ([]model.ProjectActivity, error)
}

// WebhookDispatchFunc is an optional callback for the stale event.
type WebhookDispatchFunc func(ctx context.Context, eventType string, projectID int64, payload map[string]string)

// GaugeFunc is an optional callback receiving the stale project count after
// each check.
type GaugeFunc func(stale int)

// StalenessMonitor periodically checks project activity. A project becomes
// stale once and stays stale until a newer snapshot arrives.
type StalenessMonitor struct {
	lister    ActivityLister
	cfg       Config
	mu        sync.Mutex
	stale     map[int64]bool
	now       func() time.Time
	onWebhook WebhookDispatchFunc
	onGauge   GaugeFunc
	logger    *zap.Logger
}

// New creates a StalenessMonitor.
func New(lister ActivityLister, cfg Config, logger *zap.Logger) *StalenessMonitor {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = time.Hour
	}
	if cfg.StaleAfter == 0 {
		cfg.StaleAfter = 7 * 24 * time.Hour
	}
	return &StalenessMonitor{
		lister: lister,
		cfg:    cfg,
		stale:  make(map[int64]bool),
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

// SetWebhookDispatch configures the webhook dispatch callback.
func (m *StalenessMonitor) SetWebhookDispatch(fn WebhookDispatchFunc) {
	m.onWebhook = fn
}

// SetGauge configures the stale count callback.
func (m *StalenessMonitor) SetGauge(fn GaugeFunc) {
	m.onGauge = fn
}

// Start checks once immediately, then on every tick until ctx is done.
func (m *StalenessMonitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()

	m.CheckAll(ctx)
	for {
		select {
		case <-ticker.C:
			m.CheckAll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// CheckAll evaluates every project and returns the number currently stale.
func (m *StalenessMonitor) CheckAll(ctx context.Context) int {
	projects, err := m.lister.ListActivity(ctx)
	if err != nil {
		m.logger.Error("monitor: list activity", zap.Error(err))
		return m.count()
	}

	now := m.now()
	seen := make(map[int64]bool, len(projects))

	var transitioned []model.ProjectActivity
	m.mu.Lock()
	for _, p := range projects {
		seen[p.ProjectID] = true
		last := p.CreatedAt
		if p.LastSnapshot != nil {
			last = *p.LastSnapshot
		}
		isStale := now.Sub(last) > m.cfg.StaleAfter

		switch {
		case isStale && !m.stale[p.ProjectID]:
			m.stale[p.ProjectID] = true
			transitioned = append(transitioned, p)
		case !isStale && m.stale[p.ProjectID]:
			delete(m.stale, p.ProjectID)
			m.logger.Info("monitor: project active again", zap.Int64("project_id", p.ProjectID))
		}
	}
	for id := range m.stale {
		if !seen[id] {
			delete(m.stale, id)
		}
	}
	n := len(m.stale)
	m.mu.Unlock()

	for _, p := range transitioned {
		m.logger.Warn("monitor: project stale",
			zap.Int64("project_id", p.ProjectID),
			zap.String("name", p.Name),
		)
		if m.onWebhook != nil {
			payload := map[string]string{
				"project_id": strconv.FormatInt(p.ProjectID, 10),
				"name":       p.Name,
			}
			if p.LastSnapshot != nil {
				payload["last_snapshot"] = p.LastSnapshot.Format(model.DateLayout)
			}
			m.onWebhook(ctx, EventProjectStale, p.ProjectID, payload)
		}
	}

	if m.onGauge != nil {
		m.onGauge(n)
	}
	return n
}

// IsStale reports whether the project is currently flagged.
func (m *StalenessMonitor) IsStale(projectID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stale[projectID]
}

func (m *StalenessMonitor) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stale)
}
