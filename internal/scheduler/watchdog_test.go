package scheduler

import (
	"log/slog"
	"testing"
	"time"

	"github.com/ErlanBelekov/pipeline-scheduler/internal/domain"
	"github.com/ErlanBelekov/pipeline-scheduler/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

type staticLister []domain.TaskExecution

func (s staticLister) Running() []domain.TaskExecution { return s }

func TestWatchdog_FlagsExecutionsPastThreshold(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	old := now.Add(-45 * time.Minute)
	fresh := now.Add(-time.Minute)

	w := NewWatchdog(staticLister{
		{ID: "old", StartedAt: &old},
		{ID: "fresh", StartedAt: &fresh},
		{ID: "unstarted"},
	}, time.Minute, 30*time.Minute, slog.Default())
	w.now = func() time.Time { return now }

	assert.Equal(t, 1, w.inspect())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StalledExecutions))
}

func TestWatchdog_NothingStalled(t *testing.T) {
	w := NewWatchdog(staticLister{}, time.Minute, time.Minute, slog.Default())

	assert.Zero(t, w.inspect())
	assert.Zero(t, testutil.ToFloat64(metrics.StalledExecutions))
}
