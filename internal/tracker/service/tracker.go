package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/jmerrifield20/DeliveryRiskTracker/internal/auditlog"
	"github.com/jmerrifield20/DeliveryRiskTracker/internal/tracker/model"
	"github.com/jmerrifield20/DeliveryRiskTracker/internal/tracker/repository"
	"github.com/jmerrifield20/DeliveryRiskTracker/pkg/risk"
	"go.uber.org/zap"
)

// ErrStoreUnavailable wraps storage failures so callers can tell them apart
// from validation errors and missing projects.
var ErrStoreUnavailable = errors.New("store unavailable")

// Webhook event names, kept in sync with the webhooks package.
const (
	EventRiskEscalated = "project.risk_escalated"
	EventRiskHigh      = "project.risk_high"
	EventSnapshotAdded = "snapshot.added"
)

// projectRepo is satisfied by *repository.ProjectRepository.
type projectRepo interface {
	Create(ctx context.Context, p *model.Project) error
	GetByID(ctx context.Context, id int64) (*model.Project, error)
	List(ctx context.Context) ([]*model.Project, error)
	Delete(ctx context.Context, id int64) error
}

// metricsRepo is satisfied by *repository.MetricsRepository.
type metricsRepo interface {
	Create(ctx context.Context, m *model.MetricsSnapshot) error
	ListByProject(ctx context.Context, projectID int64) ([]*model.MetricsSnapshot, error)
	LatestTwo(ctx context.Context, projectID int64) ([]*model.MetricsSnapshot, error)
}

// WebhookDispatcher fans events out to subscribers. *webhooks.Service
// satisfies this interface.
type WebhookDispatcher interface {
	Dispatch(ctx context.Context, eventType string, projectID int64, payload map[string]string)
}

// RiskObserver is told about every freshly recorded snapshot's evaluation.
type RiskObserver func(projectID int64, result risk.Result)

// ProjectRisk is one dashboard card. Risk and Latest are nil for a project
// with no snapshots.
type ProjectRisk struct {
	Project *model.Project         `json:"project"`
	Risk    *risk.Result           `json:"risk"`
	Latest  *model.MetricsSnapshot `json:"latest_snapshot"`
}

// TimelinePoint pairs a snapshot with its evaluation against the one before it.
type TimelinePoint struct {
	Snapshot *model.MetricsSnapshot `json:"snapshot"`
	Risk     risk.Result            `json:"risk"`
}

// ChartSeries holds parallel arrays for plotting a project's history.
type ChartSeries struct {
	Dates           []string  `json:"dates"`
	RiskScores      []int     `json:"risk_scores"`
	CompletionRates []float64 `json:"completion_rates"` // percent
}

// Timeline is a project's full evaluated history in (snapshot_date, id) order.
type Timeline struct {
	Project *model.Project  `json:"project"`
	Points  []TimelinePoint `json:"points"`
	Latest  *TimelinePoint  `json:"latest"`
	Chart   ChartSeries     `json:"chart"`
}

// SnapshotResult is returned by AddSnapshot.
type SnapshotResult struct {
	Snapshot     *model.MetricsSnapshot `json:"snapshot"`
	Risk         risk.Result            `json:"risk"`
	PreviousRisk *risk.Result           `json:"previous_risk,omitempty"`
	Escalated    bool                   `json:"escalated"`
}

// TrackerService holds the business logic around projects and snapshots.
type TrackerService struct {
	projects projectRepo
	metrics  metricsRepo
	engine   *risk.Engine
	audit    auditlog.Log      // nil = no audit writes
	webhooks WebhookDispatcher // nil = no alerts
	cache    *timelineCache    // nil = no caching
	onRisk   RiskObserver
	logger   *zap.Logger
}

// NewTrackerService creates a TrackerService.
func NewTrackerService(projects projectRepo, metrics metricsRepo, logger *zap.Logger) *TrackerService {
	return &TrackerService{
		projects: projects,
		metrics:  metrics,
		engine:   risk.NewEngine(),
		logger:   logger,
	}
}

// SetAuditLog enables audit entries for project and snapshot changes.
func (s *TrackerService) SetAuditLog(l auditlog.Log) { s.audit = l }

// SetWebhookDispatcher enables risk alerts.
func (s *TrackerService) SetWebhookDispatcher(d WebhookDispatcher) { s.webhooks = d }

// SetRiskObserver registers a callback run after each snapshot evaluation.
func (s *TrackerService) SetRiskObserver(fn RiskObserver) { s.onRisk = fn }

// SetTimelineTTL enables timeline caching. A non-positive ttl disables it.
func (s *TrackerService) SetTimelineTTL(ttl time.Duration) {
	if ttl <= 0 {
		s.cache = nil
		return
	}
	s.cache = newTimelineCache(ttl)
}

// RunCacheEviction drops expired timelines every interval until ctx ends.
func (s *TrackerService) RunCacheEviction(ctx context.Context, interval time.Duration) {
	if s.cache == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := s.cache.evict(); n > 0 {
				s.logger.Debug("timeline cache evicted", zap.Int("count", n))
			}
		case <-ctx.Done():
			return
		}
	}
}

// CreateProject validates and stores a new project.
func (s *TrackerService) CreateProject(ctx context.Context, actor string, req *model.CreateProjectRequest) (*model.Project, error) {
	req.Trim()
	if err := model.Validate(req); err != nil {
		return nil, err
	}

	p := &model.Project{
		Name:      req.Name,
		Owner:     req.Owner,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	}
	if err := s.projects.Create(ctx, p); err != nil {
		return nil, storeErr("create project", err)
	}

	s.appendAudit(ctx, p.ID, auditlog.ActionProjectCreated, actor, p)
	s.logger.Info("project created", zap.Int64("project_id", p.ID), zap.String("name", p.Name))
	return p, nil
}

// GetProject returns a project or repository.ErrNotFound.
func (s *TrackerService) GetProject(ctx context.Context, id int64) (*model.Project, error) {
	p, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr("get project", err)
	}
	return p, nil
}

// ListProjects returns every project, newest first.
func (s *TrackerService) ListProjects(ctx context.Context) ([]*model.Project, error) {
	projects, err := s.projects.List(ctx)
	if err != nil {
		return nil, storeErr("list projects", err)
	}
	return projects, nil
}

// DeleteProject removes a project and its snapshots.
func (s *TrackerService) DeleteProject(ctx context.Context, actor string, id int64) error {
	if err := s.projects.Delete(ctx, id); err != nil {
		return storeErr("delete project", err)
	}
	if s.cache != nil {
		s.cache.invalidate(id)
	}
	s.appendAudit(ctx, id, auditlog.ActionProjectDeleted, actor, map[string]int64{"project_id": id})
	s.logger.Info("project deleted", zap.Int64("project_id", id))
	return nil
}

// Dashboard evaluates every project's latest snapshot against the one before.
func (s *TrackerService) Dashboard(ctx context.Context) ([]ProjectRisk, error) {
	projects, err := s.ListProjects(ctx)
	if err != nil {
		return nil, err
	}

	cards := make([]ProjectRisk, 0, len(projects))
	for _, p := range projects {
		card, err := s.latestRisk(ctx, p)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, nil
}

// LatestRisk returns the dashboard card for one project.
func (s *TrackerService) LatestRisk(ctx context.Context, projectID int64) (ProjectRisk, error) {
	p, err := s.GetProject(ctx, projectID)
	if err != nil {
		return ProjectRisk{}, err
	}
	return s.latestRisk(ctx, p)
}

func (s *TrackerService) latestRisk(ctx context.Context, p *model.Project) (ProjectRisk, error) {
	latestTwo, err := s.metrics.LatestTwo(ctx, p.ID)
	if err != nil {
		return ProjectRisk{}, storeErr("latest metrics", err)
	}
	card := ProjectRisk{Project: p}
	if len(latestTwo) == 0 {
		return card, nil
	}
	var prev *risk.Snapshot
	if len(latestTwo) > 1 {
		in := latestTwo[1].RiskInput()
		prev = &in
	}
	result := s.engine.Evaluate(latestTwo[0].RiskInput(), prev)
	card.Risk = &result
	card.Latest = latestTwo[0]
	return card, nil
}

// AddSnapshot validates and stores a snapshot, then evaluates it against the
// snapshot that preceded it and raises alerts when risk worsened.
func (s *TrackerService) AddSnapshot(ctx context.Context, actor string, projectID int64, req *model.AddMetricsRequest) (*SnapshotResult, error) {
	if err := model.Validate(req); err != nil {
		return nil, err
	}
	p, err := s.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	snap := req.Snapshot(projectID)
	if err := s.metrics.Create(ctx, snap); err != nil {
		return nil, storeErr("create snapshot", err)
	}
	if s.cache != nil {
		s.cache.invalidate(projectID)
	}
	s.appendAudit(ctx, projectID, auditlog.ActionSnapshotAdded, actor, snap)

	// The row is committed; a failed history read must not turn into a retry
	// that stores it twice. Score it on its own instead.
	res, err := s.evaluateAround(ctx, snap)
	if err != nil {
		s.logger.Warn("evaluate snapshot history, scoring without previous",
			zap.Int64("project_id", projectID),
			zap.Int64("snapshot_id", snap.ID),
			zap.Error(err),
		)
		res = &SnapshotResult{Snapshot: snap, Risk: s.engine.Evaluate(snap.RiskInput(), nil)}
	}

	if s.onRisk != nil {
		s.onRisk(projectID, res.Risk)
	}
	s.alert(ctx, p, res)

	s.logger.Info("snapshot added",
		zap.Int64("project_id", projectID),
		zap.Int64("snapshot_id", snap.ID),
		zap.Int("risk_score", res.Risk.Score),
		zap.String("risk_level", string(res.Risk.Level)),
	)
	return res, nil
}

// evaluateAround scores snap against its predecessor in timeline order, and
// that predecessor against its own, so a back-dated snapshot is handled too.
func (s *TrackerService) evaluateAround(ctx context.Context, snap *model.MetricsSnapshot) (*SnapshotResult, error) {
	history, err := s.metrics.ListByProject(ctx, snap.ProjectID)
	if err != nil {
		return nil, storeErr("list snapshots", err)
	}

	idx := -1
	for i, m := range history {
		if m.ID == snap.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		history = append(history, snap)
		idx = len(history) - 1
	}

	inputs := make([]risk.Snapshot, idx+1)
	for i := 0; i <= idx; i++ {
		inputs[i] = history[i].RiskInput()
	}
	res := &SnapshotResult{Snapshot: snap}
	if idx == 0 {
		res.Risk = s.engine.Evaluate(inputs[0], nil)
		return res, nil
	}

	res.Risk = s.engine.Evaluate(inputs[idx], &inputs[idx-1])
	var beforePrev *risk.Snapshot
	if idx >= 2 {
		beforePrev = &inputs[idx-2]
	}
	prevRisk := s.engine.Evaluate(inputs[idx-1], beforePrev)
	res.PreviousRisk = &prevRisk
	res.Escalated = res.Risk.Level.Above(prevRisk.Level)
	return res, nil
}

func (s *TrackerService) alert(ctx context.Context, p *model.Project, res *SnapshotResult) {
	if s.webhooks == nil {
		return
	}
	payload := map[string]string{
		"project_id":    strconv.FormatInt(p.ID, 10),
		"project_name":  p.Name,
		"snapshot_id":   strconv.FormatInt(res.Snapshot.ID, 10),
		"snapshot_date": res.Snapshot.SnapshotDate,
		"risk_score":    strconv.Itoa(res.Risk.Score),
		"risk_level":    string(res.Risk.Level),
	}
	s.webhooks.Dispatch(ctx, EventSnapshotAdded, p.ID, payload)

	if res.Escalated {
		escalated := clonePayload(payload)
		escalated["previous_risk_level"] = string(res.PreviousRisk.Level)
		escalated["previous_risk_score"] = strconv.Itoa(res.PreviousRisk.Score)
		s.webhooks.Dispatch(ctx, EventRiskEscalated, p.ID, escalated)
	}
	if res.Risk.Level == risk.LevelHigh {
		high := clonePayload(payload)
		if len(res.Risk.Reasons) > 0 {
			high["top_reason"] = res.Risk.Reasons[0]
		}
		s.webhooks.Dispatch(ctx, EventRiskHigh, p.ID, high)
	}
}

// Timeline returns the project's evaluated history, served from cache when
// a fresh copy exists.
func (s *TrackerService) Timeline(ctx context.Context, projectID int64) (*Timeline, error) {
	if s.cache != nil {
		if tl, ok := s.cache.get(projectID); ok {
			return tl, nil
		}
	}

	p, err := s.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	history, err := s.metrics.ListByProject(ctx, projectID)
	if err != nil {
		return nil, storeErr("list snapshots", err)
	}

	inputs := make([]risk.Snapshot, len(history))
	for i, m := range history {
		inputs[i] = m.RiskInput()
	}
	results := s.engine.EvaluateSeries(inputs)

	tl := &Timeline{
		Project: p,
		Points:  make([]TimelinePoint, len(history)),
		Chart: ChartSeries{
			Dates:           make([]string, len(history)),
			RiskScores:      make([]int, len(history)),
			CompletionRates: make([]float64, len(history)),
		},
	}
	for i, m := range history {
		tl.Points[i] = TimelinePoint{Snapshot: m, Risk: results[i]}
		tl.Chart.Dates[i] = m.SnapshotDate
		tl.Chart.RiskScores[i] = results[i].Score
		tl.Chart.CompletionRates[i] = math.Round(results[i].KPIs.CompletionRate*1000) / 10
	}
	if n := len(tl.Points); n > 0 {
		tl.Latest = &tl.Points[n-1]
	}

	if s.cache != nil {
		s.cache.set(projectID, tl)
	}
	return tl, nil
}

// ScoreAdHoc validates and scores a snapshot pair without storing anything.
func (s *TrackerService) ScoreAdHoc(req *model.ScoreRequest) (risk.Result, error) {
	if err := model.Validate(req); err != nil {
		return risk.Result{}, err
	}
	var prev *risk.Snapshot
	if req.Previous != nil {
		in := req.Previous.Risk()
		prev = &in
	}
	return s.engine.Evaluate(req.Current.Risk(), prev), nil
}

func (s *TrackerService) appendAudit(ctx context.Context, projectID int64, action, actor string, payload any) {
	if s.audit == nil {
		return
	}
	if actor == "" {
		actor = auditlog.SystemActor
	}
	if _, err := s.audit.Append(ctx, auditlog.ProjectSubject(projectID), action, actor, payload); err != nil {
		s.logger.Warn("audit append failed",
			zap.Int64("project_id", projectID),
			zap.String("action", action),
			zap.Error(err),
		)
	}
}

// storeErr passes ErrNotFound through and marks everything else as a
// storage failure.
func storeErr(op string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

func clonePayload(in map[string]string) map[string]string {
	out := make(map[string]string, len(in)+2)
	for k, v := range in {
		out[k] = v
	}
	return out
}
