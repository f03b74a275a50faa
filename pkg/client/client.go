package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jmerrifield20/DeliveryRiskTracker/pkg/risk"
)

const apiPrefix = "/api/v1"

// maxResponseBytes caps JSON response bodies. CSV reports are streamed.
const maxResponseBytes = 4 << 20

var (
	// ErrNotFound matches an *APIError with status 404.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized matches an *APIError with status 401.
	ErrUnauthorized = errors.New("unauthorized")
)

// APIError is a non-2xx response from the tracker.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.StatusCode, e.Message)
}

// Is lets errors.Is match ErrNotFound and ErrUnauthorized.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	}
	return false
}

// Project is a tracked delivery effort.
type Project struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Owner     string    `json:"owner"`
	StartDate string    `json:"start_date"`
	EndDate   string    `json:"end_date"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateProjectRequest is the payload for CreateProject. Dates are YYYY-MM-DD.
type CreateProjectRequest struct {
	Name      string `json:"name"`
	Owner     string `json:"owner"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// MetricsSnapshot is one stored observation of a project.
type MetricsSnapshot struct {
	ID           int64  `json:"id"`
	ProjectID    int64  `json:"project_id"`
	SnapshotDate string `json:"snapshot_date"`
	risk.Snapshot
	Comments  string    `json:"comments"`
	CreatedAt time.Time `json:"created_at"`
}

// AddMetricsRequest is the payload for AddMetrics. Every counter is sent,
// so zero values are recorded as zero.
type AddMetricsRequest struct {
	SnapshotDate string `json:"snapshot_date"`
	risk.Snapshot
	Comments string `json:"comments,omitempty"`
}

// ProjectCard is a project together with its latest risk. Risk and Latest
// are nil until the first snapshot is recorded.
type ProjectCard struct {
	Project *Project         `json:"project"`
	Risk    *risk.Result     `json:"risk"`
	Latest  *MetricsSnapshot `json:"latest_snapshot"`
}

// TimelinePoint is a snapshot with its evaluation.
type TimelinePoint struct {
	Snapshot *MetricsSnapshot `json:"snapshot"`
	Risk     risk.Result      `json:"risk"`
}

// Timeline is a project's evaluated history, oldest first.
type Timeline struct {
	Project *Project        `json:"project"`
	Points  []TimelinePoint `json:"points"`
	Latest  *TimelinePoint  `json:"latest"`
	Chart   struct {
		Dates           []string  `json:"dates"`
		RiskScores      []int     `json:"risk_scores"`
		CompletionRates []float64 `json:"completion_rates"`
	} `json:"chart"`
}

// SnapshotResult is returned by AddMetrics.
type SnapshotResult struct {
	Snapshot     *MetricsSnapshot `json:"snapshot"`
	Risk         risk.Result      `json:"risk"`
	PreviousRisk *risk.Result     `json:"previous_risk,omitempty"`
	Escalated    bool             `json:"escalated"`
}

// ScoreRequest is the payload for Score.
type ScoreRequest struct {
	Current  risk.Snapshot  `json:"current"`
	Previous *risk.Snapshot `json:"previous,omitempty"`
}

// Client talks to a single tracker instance.
type Client struct {
	base        string
	httpClient  *http.Client
	bearerToken string
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return errors.New("nil http client")
		}
		c.httpClient = hc
		return nil
	}
}

// WithBearerToken attaches an API token to every request.
func WithBearerToken(token string) Option {
	return func(c *Client) error {
		c.bearerToken = token
		return nil
	}
}

// WithTimeout overrides the default 10s request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		c.httpClient.Timeout = d
		return nil
	}
}

// WithInsecureSkipVerify disables TLS certificate verification.
// Only use this in development against a self-signed certificate.
func WithInsecureSkipVerify() Option {
	return func(c *Client) error {
		c.httpClient = &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec
			},
			Timeout: c.httpClient.Timeout,
		}
		return nil
	}
}

// New creates a Client for the tracker at base, e.g. "http://localhost:8080".
func New(base string, opts ...Option) (*Client, error) {
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q", base)
	}
	c := &Client{
		base:       strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNew is like New but panics on error. Useful in tests and program init.
func MustNew(base string, opts ...Option) *Client {
	c, err := New(base, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// ListProjects returns every project with its latest risk, newest first.
func (c *Client) ListProjects(ctx context.Context) ([]ProjectCard, error) {
	var out struct {
		Projects []ProjectCard `json:"projects"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/projects", nil, &out); err != nil {
		return nil, err
	}
	return out.Projects, nil
}

// CreateProject creates a project.
func (c *Client) CreateProject(ctx context.Context, req CreateProjectRequest) (*Project, error) {
	var p Project
	if err := c.doJSON(ctx, http.MethodPost, "/projects", req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProject fetches a single project.
func (c *Client) GetProject(ctx context.Context, id int64) (*Project, error) {
	var p Project
	if err := c.doJSON(ctx, http.MethodGet, projectPath(id, ""), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteProject removes a project and all of its snapshots.
func (c *Client) DeleteProject(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, projectPath(id, ""), nil, nil)
}

// AddMetrics records a snapshot and returns its evaluation.
func (c *Client) AddMetrics(ctx context.Context, projectID int64, req AddMetricsRequest) (*SnapshotResult, error) {
	var res SnapshotResult
	if err := c.doJSON(ctx, http.MethodPost, projectPath(projectID, "/metrics"), req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Timeline returns the project's evaluated snapshot history.
func (c *Client) Timeline(ctx context.Context, projectID int64) (*Timeline, error) {
	var tl Timeline
	if err := c.doJSON(ctx, http.MethodGet, projectPath(projectID, "/metrics"), nil, &tl); err != nil {
		return nil, err
	}
	return &tl, nil
}

// LatestRisk returns the project with its most recent evaluation.
func (c *Client) LatestRisk(ctx context.Context, projectID int64) (*ProjectCard, error) {
	var card ProjectCard
	if err := c.doJSON(ctx, http.MethodGet, projectPath(projectID, "/risk"), nil, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// DownloadReport copies the project's CSV report to w.
func (c *Client) DownloadReport(ctx context.Context, projectID int64, w io.Writer) error {
	req, err := c.newRequest(ctx, http.MethodGet, projectPath(projectID, "/report.csv"), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return readAPIError(resp)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("read report: %w", err)
	}
	return nil
}

// Score evaluates a snapshot pair on the server without storing anything.
func (c *Client) Score(ctx context.Context, req ScoreRequest) (*risk.Result, error) {
	var res risk.Result
	if err := c.doJSON(ctx, http.MethodPost, "/risk/score", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func projectPath(id int64, suffix string) string {
	return "/projects/" + strconv.FormatInt(id, 10) + suffix
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+apiPrefix+path, r)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}
	return req, nil
}

// doJSON sends body (if any) as JSON and decodes a 2xx response into out
// (if non-nil).
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return readAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func readAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		apiErr.Message = payload.Error
	}
	return apiErr
}
