package client_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jmerrifield20/DeliveryRiskTracker/pkg/client"
	"github.com/jmerrifield20/DeliveryRiskTracker/pkg/risk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── Stub server ─────────────────────────────────────────────────────────

func stubTrackerServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	engine := risk.NewEngine()

	mux.HandleFunc("GET /api/v1/projects", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"projects": []map[string]any{
				{"project": map[string]any{"id": 2, "name": "Gemini"}, "risk": nil, "latest_snapshot": nil},
				{"project": map[string]any{"id": 1, "name": "Apollo"}, "risk": map[string]any{"risk_score": 56, "risk_level": "MEDIUM"}},
			},
			"count": 2,
		})
	})

	mux.HandleFunc("POST /api/v1/projects", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret-token" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"Bearer token required"}`))
			return
		}
		var req client.CreateProjectRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Owner == "" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"owner is required"}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"id": 3, "name": req.Name, "owner": req.Owner,
			"start_date": req.StartDate, "end_date": req.EndDate,
		})
	})

	mux.HandleFunc("GET /api/v1/projects/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "1" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"project not found"}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"id": 1, "name": "Apollo", "owner": "Dana"})
	})

	mux.HandleFunc("DELETE /api/v1/projects/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /api/v1/projects/{id}/metrics", func(w http.ResponseWriter, r *http.Request) {
		// Decode into a generic map so the test sees the flattened wire shape.
		var raw map[string]any
		json.NewDecoder(r.Body).Decode(&raw)
		if _, ok := raw["planned_tasks"]; !ok {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"planned_tasks is required"}`))
			return
		}
		b, _ := json.Marshal(raw)
		var snap risk.Snapshot
		json.Unmarshal(b, &snap)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"snapshot": raw,
			"risk":     engine.Evaluate(snap, nil),
		})
	})

	mux.HandleFunc("GET /api/v1/projects/{id}/metrics", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"project": map[string]any{"id": 1, "name": "Apollo"},
			"points":  []map[string]any{{"snapshot": map[string]any{"snapshot_date": "2024-02-01", "planned_tasks": 50}}},
			"chart":   map[string]any{"dates": []string{"2024-02-01"}, "risk_scores": []int{56}},
		})
	})

	mux.HandleFunc("GET /api/v1/projects/{id}/risk", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"project": map[string]any{"id": 1},
			"risk":    map[string]any{"risk_score": 56, "risk_level": "MEDIUM", "reasons": []string{"x"}},
		})
	})

	mux.HandleFunc("GET /api/v1/projects/{id}/report.csv", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte("Date,Planned,Completed,Risk Score,Risk Level\n2024-02-01,50,20,56,MEDIUM\n"))
	})

	mux.HandleFunc("POST /api/v1/risk/score", func(w http.ResponseWriter, r *http.Request) {
		var req client.ScoreRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(engine.Evaluate(req.Current, req.Previous))
	})

	return httptest.NewServer(mux)
}

func newClient(t *testing.T, opts ...client.Option) *client.Client {
	t.Helper()
	srv := stubTrackerServer(t)
	t.Cleanup(srv.Close)
	c, err := client.New(srv.URL, opts...)
	require.NoError(t, err)
	return c
}

// ── Tests ───────────────────────────────────────────────────────────────

func TestNew_rejectsBadURL(t *testing.T) {
	_, err := client.New("localhost:8080/nope")
	assert.Error(t, err)
	_, err = client.New("http://localhost:8080/")
	assert.NoError(t, err)
}

func TestListProjects(t *testing.T) {
	c := newClient(t)
	cards, err := c.ListProjects(context.Background())
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Equal(t, "Gemini", cards[0].Project.Name)
	assert.Nil(t, cards[0].Risk)
	require.NotNil(t, cards[1].Risk)
	assert.Equal(t, 56, cards[1].Risk.Score)
	assert.Equal(t, risk.LevelMedium, cards[1].Risk.Level)
}

func TestCreateProject(t *testing.T) {
	c := newClient(t, client.WithBearerToken("secret-token"))
	p, err := c.CreateProject(context.Background(), client.CreateProjectRequest{
		Name: "Hermes", Owner: "Kai", StartDate: "2024-01-01", EndDate: "2024-12-31",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), p.ID)
	assert.Equal(t, "Kai", p.Owner)
}

func TestCreateProject_errors(t *testing.T) {
	anon := newClient(t)
	_, err := anon.CreateProject(context.Background(), client.CreateProjectRequest{Name: "x", Owner: "y"})
	assert.ErrorIs(t, err, client.ErrUnauthorized)

	authed := newClient(t, client.WithBearerToken("secret-token"))
	_, err = authed.CreateProject(context.Background(), client.CreateProjectRequest{Name: "x"})
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "owner is required", apiErr.Message)
}

func TestGetProject_notFound(t *testing.T) {
	c := newClient(t)
	p, err := c.GetProject(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Apollo", p.Name)

	_, err = c.GetProject(context.Background(), 99)
	assert.ErrorIs(t, err, client.ErrNotFound)
}

func TestDeleteProject(t *testing.T) {
	c := newClient(t)
	assert.NoError(t, c.DeleteProject(context.Background(), 1))
}

func TestAddMetrics_sendsFlatSnapshot(t *testing.T) {
	c := newClient(t)
	res, err := c.AddMetrics(context.Background(), 1, client.AddMetricsRequest{
		SnapshotDate: "2024-02-01",
		Snapshot: risk.Snapshot{
			PlannedTasks: 50, CompletedTasks: 20, InProgressTasks: 10, BlockersCount: 3,
			BugsOpen: 10, ScopeChangePercent: 25, AvgCycleTimeDays: 6,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 56, res.Risk.Score)
	assert.Equal(t, "2024-02-01", res.Snapshot.SnapshotDate)
	assert.Equal(t, 50, res.Snapshot.PlannedTasks)
}

func TestTimelineAndLatestRisk(t *testing.T) {
	c := newClient(t)
	tl, err := c.Timeline(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, tl.Points, 1)
	assert.Equal(t, 50, tl.Points[0].Snapshot.PlannedTasks)
	assert.Equal(t, []int{56}, tl.Chart.RiskScores)

	card, err := c.LatestRisk(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, risk.LevelMedium, card.Risk.Level)
}

func TestDownloadReport(t *testing.T) {
	c := newClient(t)
	var buf bytes.Buffer
	require.NoError(t, c.DownloadReport(context.Background(), 1, &buf))
	assert.Contains(t, buf.String(), "2024-02-01,50,20,56,MEDIUM")
}

func TestScore(t *testing.T) {
	c := newClient(t)
	prev := risk.Snapshot{PlannedTasks: 10, CompletedTasks: 8}
	res, err := c.Score(context.Background(), client.ScoreRequest{
		Current:  risk.Snapshot{PlannedTasks: 10, CompletedTasks: 5},
		Previous: &prev,
	})
	require.NoError(t, err)
	assert.Equal(t, 22, res.Score)
	assert.Equal(t, risk.LevelLow, res.Level)
}
