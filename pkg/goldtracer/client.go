// Package goldtracer is a Go client for the goldtracer dashboard backend.
package goldtracer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"goldtracer/internal/domain"
)

// Backend paths.
const (
	PathSummary        = "/api/dashboard/summary"
	PathHistory        = "/api/macro/history"
	PathSync           = "/api/cron/sync"
	PathFedWatchUpdate = "/api/admin/fedwatch/update"
)

// Operation names used for logging and metrics.
const (
	OpSummary  = "summary"
	OpHistory  = "history"
	OpSync     = "sync"
	OpFedWatch = "fedwatch_update"
)

// ErrStatus is matched by every non-2xx response error.
var ErrStatus = errors.New("unexpected status")

// StatusError reports a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// Is makes errors.Is(err, ErrStatus) true for any StatusError.
func (e *StatusError) Is(target error) bool { return target == ErrStatus }

// Recorder observes request outcomes. outcome is "ok" or "error".
type Recorder interface {
	ObserveRequest(op, outcome string, d time.Duration)
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.rec = r }
}

// WithAdminKey sets the key sent with manual corrections.
func WithAdminKey(key string) Option {
	return func(c *Client) { c.adminKey = key }
}

// WithDefaultMeetingDate sets the meeting date used when a correction omits
// one.
func WithDefaultMeetingDate(date string) Option {
	return func(c *Client) { c.defaultMeeting = date }
}

// Client talks to the dashboard backend. It is safe for concurrent use.
type Client struct {
	baseURL        string
	timeout        time.Duration
	httpClient     *http.Client
	log            *slog.Logger
	rec            Recorder
	adminKey       string
	defaultMeeting string
}

// NewClient creates a client for baseURL. An empty baseURL yields
// same-origin relative paths.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		timeout:        30 * time.Second,
		log:            slog.Default(),
		defaultMeeting: "2026-03-18",
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}
	return c
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// request is one backend call.
type request struct {
	op     string
	method string
	path   string
	query  url.Values
	body   any
}

// do sends r and decodes a JSON response into dest (when non-nil).
func (c *Client) do(ctx context.Context, r request, dest any) (err error) {
	start := time.Now()
	defer func() {
		if c.rec == nil {
			return
		}
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		c.rec.ObserveRequest(r.op, outcome, time.Since(start))
	}()

	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		buf, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("marshal json: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	if dest == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}

// Summary fetches the full dashboard snapshot.
func (c *Client) Summary(ctx context.Context) (*domain.Snapshot, error) {
	var snap domain.Snapshot
	if err := c.do(ctx, request{op: OpSummary, method: http.MethodGet, path: PathSummary}, &snap); err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	return &snap, nil
}

// History fetches the macro yield history for r.
func (c *Client) History(ctx context.Context, r domain.HistoryRange) ([]domain.HistoryPoint, error) {
	if _, err := domain.ParseHistoryRange(string(r)); err != nil {
		return nil, fmt.Errorf("history %q: %w", r, err)
	}
	var points []domain.HistoryPoint
	q := url.Values{"range": {string(r)}}
	if err := c.do(ctx, request{op: OpHistory, method: http.MethodGet, path: PathHistory, query: q}, &points); err != nil {
		return nil, fmt.Errorf("history %s: %w", r, err)
	}
	return points, nil
}

// SyncAck is the backend's response to a forced sync.
type SyncAck struct {
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Sync asks the backend to refresh its caches. full requests a complete
// re-pull of every source.
func (c *Client) Sync(ctx context.Context, full bool) (*SyncAck, error) {
	var q url.Values
	if full {
		q = url.Values{"full": {"true"}}
	}
	var ack SyncAck
	if err := c.do(ctx, request{op: OpSync, method: http.MethodGet, path: PathSync, query: q}, &ack); err != nil {
		return nil, fmt.Errorf("sync: %w", err)
	}
	return &ack, nil
}

// FedWatchUpdate is the manual FedWatch override body.
type FedWatchUpdate struct {
	ProbPause   float64 `json:"prob_pause" validate:"gte=0,lte=100"`
	ProbCut25   float64 `json:"prob_cut_25" validate:"gte=0,lte=100"`
	MeetingDate string  `json:"meeting_date" validate:"required,datetime=2006-01-02"`
	AdminKey    string  `json:"admin_key,omitempty"`
}

// UpdateFedWatch posts a validated manual FedWatch override.
func (c *Client) UpdateFedWatch(ctx context.Context, u FedWatchUpdate) error {
	if u.AdminKey == "" {
		u.AdminKey = c.adminKey
	}
	if err := validateUpdate(u); err != nil {
		return err
	}
	if err := c.do(ctx, request{op: OpFedWatch, method: http.MethodPost, path: PathFedWatchUpdate, body: u}, nil); err != nil {
		return fmt.Errorf("fedwatch update: %w", err)
	}
	return nil
}
