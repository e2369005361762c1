package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/pipeline-scheduler/internal/domain"
	"github.com/ErlanBelekov/pipeline-scheduler/internal/metrics"
)

type runningLister interface {
	Running() []domain.TaskExecution
}

// Watchdog reports executions that have been running longer than a
// threshold. It only observes; remote polling has no ceiling, so a
// stalled execution is left alone.
type Watchdog struct {
	source    runningLister
	interval  time.Duration
	threshold time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

func NewWatchdog(source runningLister, interval, threshold time.Duration, logger *slog.Logger) *Watchdog {
	return &Watchdog{
		source:    source,
		interval:  interval,
		threshold: threshold,
		logger:    logger.With("component", "watchdog"),
		now:       time.Now,
	}
}

func (w *Watchdog) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("watchdog started", "interval", w.interval, "threshold", w.threshold)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watchdog shut down")
			return
		case <-ticker.C:
			w.inspect()
		}
	}
}

func (w *Watchdog) inspect() int {
	cutoff := w.now().Add(-w.threshold)
	stalled := 0
	for _, e := range w.source.Running() {
		if e.StartedAt == nil || e.StartedAt.After(cutoff) {
			continue
		}
		stalled++
		w.logger.Warn("execution stalled",
			"execution_id", e.ID,
			"schedule_id", e.ScheduleID,
			"task_type", e.TaskType,
			"running_for", w.now().Sub(*e.StartedAt).Round(time.Second),
		)
	}
	metrics.StalledExecutions.Set(float64(stalled))
	return stalled
}
