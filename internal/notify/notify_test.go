package notify_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/ErlanBelekov/pipeline-scheduler/internal/domain"
	"github.com/ErlanBelekov/pipeline-scheduler/internal/notify"
)

func failedExecution() domain.TaskExecution {
	msg := "ETL processing failed: <bad> input"
	return domain.TaskExecution{
		ID:           "exec-1",
		ScheduleID:   "sched-1",
		TaskType:     domain.TaskTypePipeline,
		Status:       domain.ExecutionFailed,
		RetryCount:   2,
		MaxRetries:   2,
		ErrorMessage: &msg,
	}
}

func TestNew_FallsBackToLogNotifier(t *testing.T) {
	cases := []struct{ key, from, to string }{
		{"", "alerts@example.com", "ops@example.com"},
		{"re_key", "", "ops@example.com"},
		{"re_key", "alerts@example.com", " , "},
	}
	for _, c := range cases {
		if _, ok := notify.New(c.key, c.from, c.to, slog.Default()).(*notify.LogNotifier); !ok {
			t.Errorf("New(%q, %q, %q) should return LogNotifier", c.key, c.from, c.to)
		}
	}

	if _, ok := notify.New("re_key", "alerts@example.com", "a@x.io,b@x.io", slog.Default()).(*notify.ResendNotifier); !ok {
		t.Error("expected ResendNotifier when fully configured")
	}
}

func TestLogNotifier_LogsFailure(t *testing.T) {
	var buf bytes.Buffer
	n := notify.New("", "", "", slog.New(slog.NewTextHandler(&buf, nil)))

	if err := n.ExecutionFailed(context.Background(), failedExecution()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "execution_id=exec-1") || !strings.Contains(out, "retry_count=2") {
		t.Errorf("log output missing fields: %s", out)
	}
}

func TestBody_EscapesError(t *testing.T) {
	body := notify.Body(failedExecution())
	if strings.Contains(body, "<bad>") {
		t.Error("error text was not escaped")
	}
	if !strings.Contains(body, "Attempts: 3") {
		t.Errorf("body missing attempt count: %s", body)
	}
	if got := notify.Subject(failedExecution()); !strings.Contains(got, "exec-1") {
		t.Errorf("subject = %q", got)
	}
}
