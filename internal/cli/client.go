package cli

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
)

// BasePath is where the scheduler mounts its management API.
const BasePath = "/api/v1/scheduler"

type Schedule struct {
	ID              string         `json:"schedule_id"`
	Name            string         `json:"name"`
	Description     string         `json:"description,omitempty"`
	Type            string         `json:"schedule_type"`
	CronExpression  string         `json:"cron_expression,omitempty"`
	IntervalSeconds int            `json:"interval_seconds,omitempty"`
	ScheduledTime   *time.Time     `json:"scheduled_time,omitempty"`
	TaskType        string         `json:"task_type"`
	TaskConfig      map[string]any `json:"task_config"`
	Status          string         `json:"status"`
	MaxRetries      int            `json:"max_retries"`
	RetryDelay      int            `json:"retry_delay"`
	CreatedAt       time.Time      `json:"created_at"`
	LastRunAt       *time.Time     `json:"last_run_at"`
	NextRunAt       *time.Time     `json:"next_run_at"`
}

type Execution struct {
	ID               string         `json:"execution_id"`
	ScheduleID       string         `json:"schedule_id"`
	TaskType         string         `json:"task_type"`
	Status           string         `json:"status"`
	StartedAt        *time.Time     `json:"started_at"`
	CompletedAt      *time.Time     `json:"completed_at"`
	DurationSeconds  *float64       `json:"duration_seconds"`
	RetryCount       int            `json:"retry_count"`
	MaxRetries       int            `json:"max_retries"`
	Result           map[string]any `json:"result"`
	ErrorMessage     *string        `json:"error_message"`
	CollectionTaskID *string        `json:"collection_task_id"`
	ETLTaskID        *string        `json:"etl_task_id"`
	CreatedAt        time.Time      `json:"created_at"`
}

// Terminal reports whether the execution will not change again.
func (e Execution) Terminal() bool {
	return e.Status == "completed" || e.Status == "failed" || e.Status == "cancelled"
}

// CreateScheduleRequest mirrors the server's create body. Zero-valued
// optional fields are omitted so server defaults apply.
type CreateScheduleRequest struct {
	Name            string         `json:"name"`
	Description     string         `json:"description,omitempty"`
	ScheduleType    string         `json:"schedule_type"`
	CronExpression  string         `json:"cron_expression,omitempty"`
	IntervalSeconds int            `json:"interval_seconds,omitempty"`
	ScheduledTime   *time.Time     `json:"scheduled_time,omitempty"`
	TaskType        string         `json:"task_type"`
	TaskConfig      map[string]any `json:"task_config,omitempty"`
	MaxRetries      *int           `json:"max_retries,omitempty"`
	RetryDelay      *int           `json:"retry_delay,omitempty"`
}

type ScheduleList struct {
	Schedules []Schedule `json:"schedules"`
	Total     int        `json:"total"`
	Active    int        `json:"active"`
	Paused    int        `json:"paused"`
	Disabled  int        `json:"disabled"`
}

type ExecutionList struct {
	Executions []Execution `json:"executions"`
	Total      int         `json:"total"`
	Completed  int         `json:"completed"`
	Failed     int         `json:"failed"`
	Running    int         `json:"running"`
}

type Stats struct {
	Scheduler struct {
		Running      bool                  `json:"running"`
		TotalJobs    int                   `json:"total_jobs"`
		JobIDs       []string              `json:"job_ids"`
		NextRunTimes map[string]*time.Time `json:"next_run_times"`
	} `json:"scheduler"`
	Queue struct {
		QueueSize        int `json:"queue_size"`
		RunningTasks     int `json:"running_tasks"`
		PendingRetries   int `json:"pending_retries"`
		HistoryTotal     int `json:"history_total"`
		HistoryCompleted int `json:"history_completed"`
		HistoryFailed    int `json:"history_failed"`
	} `json:"queue"`
	SchedulesTotal int `json:"schedules_total"`
}

// APIError is a non-2xx answer from the scheduler.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) CreateSchedule(ctx context.Context, req CreateScheduleRequest) (*Schedule, error) {
	var resp struct {
		Schedule Schedule `json:"schedule"`
	}
	if err := c.do(ctx, http.MethodPost, "/schedules", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Schedule, nil
}

func (c *Client) ListSchedules(ctx context.Context, status string) (*ScheduleList, error) {
	path := "/schedules"
	if status != "" {
		path += "?" + url.Values{"status": {status}}.Encode()
	}
	var list ScheduleList
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (c *Client) GetSchedule(ctx context.Context, id string) (*Schedule, error) {
	var resp struct {
		Schedule Schedule `json:"schedule"`
	}
	if err := c.do(ctx, http.MethodGet, "/schedules/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Schedule, nil
}

// UpdateSchedule sends only the given fields.
func (c *Client) UpdateSchedule(ctx context.Context, id string, fields map[string]any) (*Schedule, error) {
	var resp struct {
		Schedule Schedule `json:"schedule"`
	}
	if err := c.do(ctx, http.MethodPut, "/schedules/"+url.PathEscape(id), fields, &resp); err != nil {
		return nil, err
	}
	return &resp.Schedule, nil
}

func (c *Client) DeleteSchedule(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/schedules/"+url.PathEscape(id), nil, nil)
}

func (c *Client) PauseSchedule(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/schedules/"+url.PathEscape(id)+"/pause", nil, nil)
}

func (c *Client) ResumeSchedule(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/schedules/"+url.PathEscape(id)+"/resume", nil, nil)
}

func (c *Client) TriggerSchedule(ctx context.Context, id string) (*Execution, error) {
	var resp struct {
		Execution Execution `json:"execution"`
	}
	if err := c.do(ctx, http.MethodPost, "/schedules/"+url.PathEscape(id)+"/trigger", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Execution, nil
}

func (c *Client) GetExecution(ctx context.Context, id string) (*Execution, error) {
	var exec Execution
	if err := c.do(ctx, http.MethodGet, "/executions/"+url.PathEscape(id), nil, &exec); err != nil {
		return nil, err
	}
	return &exec, nil
}

func (c *Client) ListExecutions(ctx context.Context, scheduleID string, limit int) (*ExecutionList, error) {
	q := url.Values{}
	if scheduleID != "" {
		q.Set("schedule_id", scheduleID)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/executions"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var list ExecutionList
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var stats Stats
	if err := c.do(ctx, http.MethodGet, "/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+BasePath+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", strings.ToLower(method), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
