package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmerrifield20/DeliveryRiskTracker/internal/tracker/model"
	"go.uber.org/zap"
)

type stubLister struct {
	projects []model.ProjectActivity
	err      error
}

func (s *stubLister) ListActivity(_ context.Context) ([]model.ProjectActivity, error) {
	return s.projects, s.err
}

var base = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func ptr(t time.Time) *time.Time { return &t }

func newMonitor(l ActivityLister) *StalenessMonitor {
	m := New(l, Config{StaleAfter: 7 * 24 * time.Hour}, zap.NewNop())
	m.now = func() time.Time { return base }
	return m
}

func TestCheckAll_firesOncePerTransition(t *testing.T) {
	lister := &stubLister{projects: []model.ProjectActivity{
		{ProjectID: 1, Name: "Apollo", CreatedAt: base.AddDate(0, -2, 0), LastSnapshot: ptr(base.AddDate(0, 0, -10))},
		{ProjectID: 2, Name: "Gemini", CreatedAt: base.AddDate(0, -2, 0), LastSnapshot: ptr(base.AddDate(0, 0, -1))},
	}}
	m := newMonitor(lister)

	var fired []int64
	m.SetWebhookDispatch(func(_ context.Context, eventType string, id int64, payload map[string]string) {
		if eventType != EventProjectStale {
			t.Errorf("event = %q", eventType)
		}
		if payload["last_snapshot"] != "2024-05-22" {
			t.Errorf("last_snapshot = %q", payload["last_snapshot"])
		}
		fired = append(fired, id)
	})
	var gauge int
	m.SetGauge(func(n int) { gauge = n })

	if n := m.CheckAll(context.Background()); n != 1 {
		t.Errorf("first check stale = %d, want 1", n)
	}
	m.CheckAll(context.Background())

	if len(fired) != 1 || fired[0] != 1 {
		t.Errorf("fired = %v, want [1]", fired)
	}
	if gauge != 1 || !m.IsStale(1) || m.IsStale(2) {
		t.Errorf("unexpected state: gauge=%d stale(1)=%v stale(2)=%v", gauge, m.IsStale(1), m.IsStale(2))
	}
}

func TestCheckAll_recoversAndRefires(t *testing.T) {
	lister := &stubLister{projects: []model.ProjectActivity{
		{ProjectID: 1, CreatedAt: base.AddDate(0, -1, 0), LastSnapshot: ptr(base.AddDate(0, 0, -8))},
	}}
	m := newMonitor(lister)
	fired := 0
	m.SetWebhookDispatch(func(context.Context, string, int64, map[string]string) { fired++ })

	m.CheckAll(context.Background())
	lister.projects[0].LastSnapshot = ptr(base)
	m.CheckAll(context.Background())
	if m.IsStale(1) {
		t.Fatal("project should have recovered")
	}
	lister.projects[0].LastSnapshot = ptr(base.AddDate(0, 0, -30))
	m.CheckAll(context.Background())

	if fired != 2 {
		t.Errorf("fired = %d, want 2", fired)
	}
}

func TestCheckAll_noSnapshotsUsesCreatedAt(t *testing.T) {
	lister := &stubLister{projects: []model.ProjectActivity{
		{ProjectID: 1, CreatedAt: base.AddDate(0, 0, -2)},
		{ProjectID: 2, CreatedAt: base.AddDate(0, 0, -20)},
	}}
	m := newMonitor(lister)
	m.CheckAll(context.Background())

	if m.IsStale(1) || !m.IsStale(2) {
		t.Errorf("stale(1)=%v stale(2)=%v, want false/true", m.IsStale(1), m.IsStale(2))
	}
}

func TestCheckAll_dropsDeletedProjects(t *testing.T) {
	lister := &stubLister{projects: []model.ProjectActivity{
		{ProjectID: 1, CreatedAt: base.AddDate(0, 0, -20)},
	}}
	m := newMonitor(lister)
	m.CheckAll(context.Background())

	lister.projects = nil
	if n := m.CheckAll(context.Background()); n != 0 {
		t.Errorf("stale after delete = %d, want 0", n)
	}
}

func TestCheckAll_listErrorKeepsState(t *testing.T) {
	lister := &stubLister{projects: []model.ProjectActivity{
		{ProjectID: 1, CreatedAt: base.AddDate(0, 0, -20)},
	}}
	m := newMonitor(lister)
	m.CheckAll(context.Background())

	lister.err = errors.New("db down")
	if n := m.CheckAll(context.Background()); n != 1 {
		t.Errorf("stale on error = %d, want 1", n)
	}
}
