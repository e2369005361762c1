package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, serverURL string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--server", serverURL}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestSchedulesList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "paused", r.URL.Query().Get("status"))
		_ = json.NewEncoder(w).Encode(ScheduleList{
			Schedules: []Schedule{
				{ID: "sch-1", Name: "nightly", Type: "cron", CronExpression: "0 2 * * *", TaskType: "pipeline", Status: "paused"},
				{ID: "sch-2", Name: "sync", Type: "interval", IntervalSeconds: 43200, TaskType: "pipeline", Status: "paused"},
			},
			Total:  2,
			Paused: 2,
		})
	}))
	defer server.Close()

	out, err := run(t, server.URL, "schedules", "list", "--status", "paused")
	require.NoError(t, err)
	assert.Contains(t, out, "sch-1")
	assert.Contains(t, out, "0 2 * * *")
	assert.Contains(t, out, "every 12h0m0s")
	assert.Contains(t, out, "2 total, 0 active, 2 paused, 0 disabled")
}

func TestSchedulesCreate_BuildsRequest(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{"schedule": map[string]any{"schedule_id": "sch-9"}})
	}))
	defer server.Close()

	out, err := run(t, server.URL, "schedules", "create", "sync",
		"--every", "90s", "--task", "data_collection", "--config", `{"url":"https://example.com"}`,
		"--retry-delay", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "Created sch-9")

	assert.Equal(t, "interval", got["schedule_type"])
	assert.Equal(t, float64(90), got["interval_seconds"])
	assert.Equal(t, "data_collection", got["task_type"])
	assert.Equal(t, map[string]any{"url": "https://example.com"}, got["task_config"])
	assert.Equal(t, float64(0), got["retry_delay"])
	assert.NotContains(t, got, "max_retries")
}

func TestSchedulesCreate_RecurrenceFlags(t *testing.T) {
	_, err := run(t, "http://127.0.0.1:1", "schedules", "create", "x")
	assert.Error(t, err, "a recurrence flag is required")

	_, err = run(t, "http://127.0.0.1:1", "schedules", "create", "x", "--cron", "* * * * *", "--every", "1m")
	assert.Error(t, err, "recurrence flags are exclusive")

	_, err = run(t, "http://127.0.0.1:1", "schedules", "create", "x", "--at", "tomorrow")
	assert.Error(t, err)
}

func TestSchedulesActions_HitExpectedRoutes(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls = append(calls, r.Method+" "+r.URL.Path)
		mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"message": "ok"})
	}))
	defer server.Close()

	for _, verb := range []string{"pause", "resume", "delete"} {
		_, err := run(t, server.URL, "schedules", verb, "sch-1")
		require.NoError(t, err, verb)
	}
	assert.Equal(t, []string{
		"POST /api/v1/scheduler/schedules/sch-1/pause",
		"POST /api/v1/scheduler/schedules/sch-1/resume",
		"DELETE /api/v1/scheduler/schedules/sch-1",
	}, calls)
}

func TestSchedulesUpdate_NothingToUpdate(t *testing.T) {
	_, err := run(t, "http://127.0.0.1:1", "schedules", "update", "sch-1")
	assert.ErrorContains(t, err, "nothing to update")
}

func TestSchedulesGet_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"Schedule not found"}`))
	}))
	defer server.Close()

	_, err := run(t, server.URL, "schedules", "get", "missing")
	assert.ErrorContains(t, err, "Schedule not found")
}

func TestTriggerWait_FollowsToCompletion(t *testing.T) {
	var polls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/trigger"):
			_ = json.NewEncoder(w).Encode(map[string]any{
				"execution": Execution{ID: "exec-1", Status: "pending"},
			})
		case r.URL.Path == "/api/v1/scheduler/executions/exec-1":
			status := "running"
			if polls.Add(1) >= 2 {
				status = "completed"
			}
			_ = json.NewEncoder(w).Encode(Execution{ID: "exec-1", Status: status})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--server", server.URL, "schedules", "trigger", "sch-1", "--wait", "--interval", "10ms"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "Started execution exec-1")
	assert.Contains(t, out.String(), "completed")
}

func TestExecutionsGet_WatchReportsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		msg := "ETL processing failed: boom"
		_ = json.NewEncoder(w).Encode(Execution{ID: "exec-2", Status: "failed", RetryCount: 2, MaxRetries: 2, ErrorMessage: &msg})
	}))
	defer server.Close()

	out, err := run(t, server.URL, "executions", "get", "exec-2", "--watch", "--interval", "10ms")
	assert.ErrorContains(t, err, "exec-2 failed")
	assert.Contains(t, out, "ETL processing failed: boom")
	assert.Contains(t, out, "2/2")
}

func TestStats(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/scheduler/stats", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"scheduler": {"running": true, "total_jobs": 1, "job_ids": ["sch-1"], "next_run_times": {"sch-1": null}},
			"queue": {"queue_size": 3, "running_tasks": 1, "history_total": 3, "history_completed": 2},
			"schedules_total": 1
		}`))
	}))
	defer server.Close()

	out, err := run(t, server.URL, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Running:         true")
	assert.Contains(t, out, "3 (2 completed, 0 failed)")
	assert.Contains(t, out, "sch-1")
}

func TestSeed_CreatesDemoSchedules(t *testing.T) {
	var (
		mu      sync.Mutex
		created []CreateScheduleRequest
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/scheduler/schedules" {
			t.Errorf("unexpected path %s", r.URL.Path)
			return
		}
		var req CreateScheduleRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		mu.Lock()
		created = append(created, req)
		mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"schedule": map[string]any{"schedule_id": "id-" + req.Name, "name": req.Name}})
	}))
	defer server.Close()

	out, err := run(t, server.URL, "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "4 schedules created")
	require.Len(t, created, 4)
	assert.Equal(t, "0 2 * * *", created[0].CronExpression)
	assert.Equal(t, 43200, created[1].IntervalSeconds)
	assert.Equal(t, "data_collection", created[3].TaskType)
}

func TestSeed_ReportsFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Failed to add schedule to scheduler"}`))
	}))
	defer server.Close()

	out, err := run(t, server.URL, "seed")
	assert.ErrorContains(t, err, "4 schedules failed")
	assert.Contains(t, out, "Failed to add schedule to scheduler")
}
