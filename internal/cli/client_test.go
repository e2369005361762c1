package cli

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_CreateSchedule(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/scheduler/schedules", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "cron", body["schedule_type"])
		assert.Equal(t, float64(2), body["max_retries"])
		assert.NotContains(t, body, "retry_delay")
		assert.NotContains(t, body, "interval_seconds")

		_ = json.NewEncoder(w).Encode(map[string]any{
			"schedule": map[string]any{"schedule_id": "sch-1", "name": body["name"], "status": "active"},
			"message":  "Schedule created successfully. Next run: None",
		})
	}))
	defer server.Close()

	s, err := NewClient(server.URL, "tok").CreateSchedule(context.Background(), CreateScheduleRequest{
		Name:           "nightly",
		ScheduleType:   "cron",
		CronExpression: "0 2 * * *",
		TaskType:       "pipeline",
		MaxRetries:     intPtr(2),
	})
	require.NoError(t, err)
	assert.Equal(t, "sch-1", s.ID)
	assert.Equal(t, "nightly", s.Name)
}

func TestClient_NoTokenNoHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(Stats{})
	}))
	defer server.Close()

	_, err := NewClient(server.URL+"/", "").Stats(context.Background())
	require.NoError(t, err)
}

func TestClient_APIError(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"json error body", http.StatusNotFound, `{"error":"Schedule not found"}`, "Schedule not found"},
		{"plain body", http.StatusBadGateway, "upstream down", "upstream down"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewClient(server.URL, "").GetSchedule(context.Background(), "x")
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr), "got %v", err)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.wantMsg, apiErr.Message)
		})
	}
}

func TestClient_ListExecutionsQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/scheduler/executions", r.URL.Path)
		assert.Equal(t, "sch-1", r.URL.Query().Get("schedule_id"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		_ = json.NewEncoder(w).Encode(ExecutionList{
			Executions: []Execution{{ID: "e2"}, {ID: "e1"}},
			Total:      2,
		})
	}))
	defer server.Close()

	list, err := NewClient(server.URL, "").ListExecutions(context.Background(), "sch-1", 5)
	require.NoError(t, err)
	require.Len(t, list.Executions, 2)
	assert.Equal(t, "e2", list.Executions[0].ID)
}

func TestClient_UpdateSendsOnlyGivenFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"status": "paused"}, body)
		_ = json.NewEncoder(w).Encode(map[string]any{"schedule": map[string]any{"schedule_id": "sch-1", "status": "paused"}})
	}))
	defer server.Close()

	s, err := NewClient(server.URL, "").UpdateSchedule(context.Background(), "sch-1", map[string]any{"status": "paused"})
	require.NoError(t, err)
	assert.Equal(t, "paused", s.Status)
}

func TestExecution_Terminal(t *testing.T) {
	for status, want := range map[string]bool{
		"pending": false, "running": false, "completed": true, "failed": true, "cancelled": true,
	} {
		assert.Equal(t, want, Execution{Status: status}.Terminal(), status)
	}
}
