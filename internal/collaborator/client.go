// Package collaborator talks to the downstream collection and ETL
// services over their submit-and-poll HTTP contract.
package collaborator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ErlanBelekov/pipeline-scheduler/internal/metrics"
	"golang.org/x/time/rate"
)

const DefaultTimeout = 120 * time.Second

// Task states reported by collaborators.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Submission is the payload of a submit call. Body is sent as JSON when
// non-nil; Query is appended to the submit URL.
type Submission struct {
	Body  map[string]any
	Query url.Values
}

// Report is a collaborator's view of one of its tasks.
type Report struct {
	Status       string         `json:"status"`
	Result       map[string]any `json:"result"`
	Error        *string        `json:"error"`
	ErrorMessage *string        `json:"error_message"`
}

// Message returns whichever error field the collaborator populated.
func (r Report) Message() string {
	if r.ErrorMessage != nil && *r.ErrorMessage != "" {
		return *r.ErrorMessage
	}
	if r.Error != nil && *r.Error != "" {
		return *r.Error
	}
	return "unknown error"
}

type submitResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

type Option func(*Client)

// WithRate caps outbound requests per second. Zero disables pacing.
func WithRate(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// Client speaks to one collaborator service.
type Client struct {
	name       string
	baseURL    string
	submitPath string
	statusPath string
	http       *http.Client
	limiter    *rate.Limiter
}

func New(name, baseURL, submitPath, statusPath string, opts ...Option) *Client {
	c := &Client{
		name:       name,
		baseURL:    strings.TrimRight(baseURL, "/"),
		submitPath: submitPath,
		statusPath: strings.TrimRight(statusPath, "/"),
		http:       &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Inf, 0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewCollection returns a client for the data collection service.
func NewCollection(baseURL string, opts ...Option) *Client {
	return New("data_collection", baseURL, "/api/v1/collection/scrape", "/api/v1/collection/tasks", opts...)
}

// NewETL returns a client for the ETL processing service.
func NewETL(baseURL string, opts ...Option) *Client {
	return New("etl_processing", baseURL, "/api/v1/etl/process", "/api/v1/etl/tasks", opts...)
}

func (c *Client) Name() string { return c.name }

// Submit starts a remote task and returns the collaborator's task id.
func (c *Client) Submit(ctx context.Context, sub Submission) (string, error) {
	target := c.baseURL + c.submitPath
	if len(sub.Query) > 0 {
		target += "?" + sub.Query.Encode()
	}

	var body io.Reader
	if sub.Body != nil {
		raw, err := json.Marshal(sub.Body)
		if err != nil {
			return "", &Error{Service: c.name, Op: "submit", Err: fmt.Errorf("encode body: %w", err)}
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, body)
	if err != nil {
		return "", &Error{Service: c.name, Op: "submit", Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	var resp submitResponse
	if err := c.do(req, "submit", &resp); err != nil {
		return "", err
	}
	if resp.TaskID == "" {
		return "", &Error{Service: c.name, Op: "submit", Message: "response carried no task_id"}
	}
	return resp.TaskID, nil
}

// Status fetches the current report for a remote task.
func (c *Client) Status(ctx context.Context, taskID string) (Report, error) {
	target := c.baseURL + c.statusPath + "/" + url.PathEscape(taskID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Report{}, &Error{Service: c.name, Op: "status", Err: err}
	}

	var report Report
	if err := c.do(req, "status", &report); err != nil {
		return Report{}, err
	}
	return report, nil
}

// Ping checks the service's /health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return &Error{Service: c.name, Op: "ping", Err: err}
	}
	return c.do(req, "ping", nil)
}

func (c *Client) do(req *http.Request, op string, out any) error {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return &Error{Service: c.name, Op: op, Err: err}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.CollaboratorRequestDuration.WithLabelValues(c.name, op, "error").Observe(time.Since(start).Seconds())
		return &Error{Service: c.name, Op: op, Err: err}
	}
	defer resp.Body.Close()
	metrics.CollaboratorRequestDuration.WithLabelValues(c.name, op, strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &Error{Service: c.name, Op: op, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Service: c.name, Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
