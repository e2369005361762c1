// Package scheduler runs task executions against collaborator services
// and tracks their retry lifecycle.
package scheduler

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/ErlanBelekov/pipeline-scheduler/internal/collaborator"
	"github.com/ErlanBelekov/pipeline-scheduler/internal/domain"
	"github.com/ErlanBelekov/pipeline-scheduler/internal/history"
	ctxlog "github.com/ErlanBelekov/pipeline-scheduler/internal/log"
	"github.com/ErlanBelekov/pipeline-scheduler/internal/metrics"
	"github.com/ErlanBelekov/pipeline-scheduler/internal/notify"
	"github.com/google/uuid"
)

// Collaborator is a remote service that accepts tasks and reports on them.
type Collaborator interface {
	Name() string
	Submit(ctx context.Context, sub collaborator.Submission) (string, error)
	Status(ctx context.Context, taskID string) (collaborator.Report, error)
}

type Config struct {
	QueueSize    int
	HistorySize  int
	PollInterval time.Duration
}

type Stats struct {
	QueueSize        int
	RunningTasks     int
	PendingRetries   int
	HistoryTotal     int
	HistoryPending   int
	HistoryRunning   int
	HistoryCompleted int
	HistoryFailed    int
	HistoryCancelled int
}

// Dispatcher owns every execution from enqueue to its terminal state.
// All bookkeeping sits behind one mutex; callers only ever see clones.
type Dispatcher struct {
	collection   Collaborator
	etl          Collaborator
	notifier     notify.Notifier
	logger       *slog.Logger
	pollInterval time.Duration
	now          func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	queue   *history.Ring[string]
	history *history.Tracker
	running map[string]*domain.TaskExecution
	done    map[string]chan struct{}
	retries map[string]*time.Timer
	closed  bool
}

func NewDispatcher(collection, etl Collaborator, notifier notify.Notifier, cfg Config, logger *slog.Logger) *Dispatcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		collection:   collection,
		etl:          etl,
		notifier:     notifier,
		logger:       logger.With("component", "dispatcher"),
		pollInterval: cfg.PollInterval,
		now:          time.Now,
		ctx:          ctx,
		cancel:       cancel,
		queue:        history.NewRing[string](cfg.QueueSize),
		history:      history.NewTracker(cfg.HistorySize),
		running:      make(map[string]*domain.TaskExecution),
		done:         make(map[string]chan struct{}),
		retries:      make(map[string]*time.Timer),
	}
}

// Enqueue records a pending execution for s and starts it in the
// background. The returned snapshot is taken before the run begins.
func (d *Dispatcher) Enqueue(ctx context.Context, s *domain.Schedule) domain.TaskExecution {
	config := maps.Clone(s.TaskConfig)
	if config == nil {
		config = make(map[string]any)
	}
	exec := &domain.TaskExecution{
		ID:                uuid.NewString(),
		ScheduleID:        s.ID,
		TaskType:          s.TaskType,
		TaskConfig:        config,
		Status:            domain.ExecutionPending,
		MaxRetries:        s.MaxRetries,
		RetryDelaySeconds: s.RetryDelaySeconds,
		CreatedAt:         d.now().UTC(),
	}

	runCtx := ctxlog.WithExecution(d.ctx, exec.ID, exec.ScheduleID)
	if id := ctxlog.RequestID(ctx); id != "" {
		runCtx = ctxlog.WithRequestID(runCtx, id)
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.WarnContext(runCtx, "dispatcher closed, execution not recorded")
		return exec.Clone()
	}
	d.queue.Push(exec.ID)
	d.history.Append(exec)
	snapshot := exec.Clone()
	d.done[exec.ID] = make(chan struct{})
	d.wg.Add(1)
	d.mu.Unlock()

	metrics.ExecutionsEnqueuedTotal.WithLabelValues(string(exec.TaskType)).Inc()
	d.logger.InfoContext(runCtx, "execution enqueued", "task_type", exec.TaskType)

	go func() {
		defer d.wg.Done()
		d.run(runCtx, exec)
	}()
	return snapshot
}

func (d *Dispatcher) run(ctx context.Context, exec *domain.TaskExecution) {
	d.mu.Lock()
	started := d.now().UTC()
	exec.Status = domain.ExecutionRunning
	exec.StartedAt = &started
	exec.CompletedAt = nil
	exec.DurationSeconds = nil
	d.running[exec.ID] = exec
	taskType := string(exec.TaskType)
	attempt := exec.RetryCount + 1
	d.mu.Unlock()

	metrics.ExecutionsInFlight.Inc()
	d.logger.InfoContext(ctx, "execution started", "task_type", taskType, "attempt", attempt)

	result, err := d.execute(ctx, exec)

	metrics.ExecutionsInFlight.Dec()

	d.mu.Lock()
	delete(d.running, exec.ID)

	if err != nil && d.ctx.Err() != nil {
		d.settleLocked(exec.ID)
		d.mu.Unlock()
		metrics.ExecutionsFinishedTotal.WithLabelValues(taskType, "abandoned").Inc()
		d.logger.WarnContext(ctx, "execution abandoned on shutdown")
		return
	}

	finished := d.now().UTC()
	duration := finished.Sub(started).Seconds()
	exec.CompletedAt = &finished
	exec.DurationSeconds = &duration

	if err == nil {
		exec.Status = domain.ExecutionCompleted
		exec.Result = result
		exec.ErrorMessage = nil
		d.settleLocked(exec.ID)
		d.mu.Unlock()

		metrics.ExecutionDuration.WithLabelValues(taskType, "completed").Observe(duration)
		metrics.ExecutionsFinishedTotal.WithLabelValues(taskType, "completed").Inc()
		d.logger.InfoContext(ctx, "execution completed", "duration_seconds", duration)
		return
	}

	msg := err.Error()
	exec.Status = domain.ExecutionFailed
	exec.Result = nil
	exec.ErrorMessage = &msg
	metrics.ExecutionDuration.WithLabelValues(taskType, "failed").Observe(duration)

	if exec.RetryCount < exec.MaxRetries {
		exec.RetryCount++
		delay := time.Duration(exec.RetryDelaySeconds) * time.Second
		d.retries[exec.ID] = time.AfterFunc(delay, func() { d.retry(ctx, exec) })
		retryCount := exec.RetryCount
		d.mu.Unlock()

		metrics.PendingRetries.Inc()
		metrics.ExecutionsFinishedTotal.WithLabelValues(taskType, "retried").Inc()
		d.logger.WarnContext(ctx, "execution failed, retry scheduled",
			"error", msg, "retry_count", retryCount, "retry_in", delay)
		return
	}

	snapshot := exec.Clone()
	d.mu.Unlock()

	metrics.ExecutionsFinishedTotal.WithLabelValues(taskType, "failed").Inc()
	d.logger.ErrorContext(ctx, "execution failed permanently", "error", msg, "retry_count", snapshot.RetryCount)
	if err := d.notifier.ExecutionFailed(ctx, snapshot); err != nil {
		d.logger.ErrorContext(ctx, "failure alert", "error", err)
	}

	// Waiters are released only after the alert went out.
	d.mu.Lock()
	d.settleLocked(exec.ID)
	d.mu.Unlock()
}

// retry is the timer-backed requeue of a failed execution.
func (d *Dispatcher) retry(ctx context.Context, exec *domain.TaskExecution) {
	d.mu.Lock()
	_, pending := d.retries[exec.ID]
	delete(d.retries, exec.ID)
	if d.closed {
		d.settleLocked(exec.ID)
		d.mu.Unlock()
		if pending {
			metrics.PendingRetries.Dec()
		}
		return
	}
	exec.ErrorMessage = nil
	exec.Status = domain.ExecutionPending
	d.wg.Add(1)
	d.mu.Unlock()

	metrics.PendingRetries.Dec()
	defer d.wg.Done()
	d.run(ctx, exec)
}

func (d *Dispatcher) settleLocked(id string) {
	if ch, ok := d.done[id]; ok {
		close(ch)
		delete(d.done, id)
	}
}

// Wait blocks until the execution reaches a terminal state or ctx ends.
// Unknown or already settled executions return immediately.
func (d *Dispatcher) Wait(ctx context.Context, id string) error {
	d.mu.Lock()
	ch, ok := d.done[id]
	d.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get prefers the running set over history for in-flight state.
func (d *Dispatcher) Get(id string) (domain.TaskExecution, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if e, ok := d.running[id]; ok {
		return e.Clone(), nil
	}
	if e := d.history.Find(id); e != nil {
		return e.Clone(), nil
	}
	return domain.TaskExecution{}, domain.ErrExecutionNotFound
}

// History lists retained executions newest first. An empty scheduleID
// lists all of them.
func (d *Dispatcher) History(scheduleID string, limit int) []domain.TaskExecution {
	d.mu.Lock()
	defer d.mu.Unlock()

	found := d.history.List(scheduleID, limit)
	out := make([]domain.TaskExecution, len(found))
	for i, e := range found {
		out[i] = e.Clone()
	}
	return out
}

// Running returns snapshots of executions currently in flight.
func (d *Dispatcher) Running() []domain.TaskExecution {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]domain.TaskExecution, 0, len(d.running))
	for _, e := range d.running {
		out = append(out, e.Clone())
	}
	return out
}

func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	counts := d.history.Counts()
	return Stats{
		QueueSize:        d.queue.Len(),
		RunningTasks:     len(d.running),
		PendingRetries:   len(d.retries),
		HistoryTotal:     d.history.Len(),
		HistoryPending:   counts[domain.ExecutionPending],
		HistoryRunning:   counts[domain.ExecutionRunning],
		HistoryCompleted: counts[domain.ExecutionCompleted],
		HistoryFailed:    counts[domain.ExecutionFailed],
		HistoryCancelled: counts[domain.ExecutionCancelled],
	}
}

// Shutdown abandons in-flight executions and pending retries, then waits
// for their goroutines to unwind or ctx to end.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	for id, t := range d.retries {
		// A timer that already fired is left for retry to account for.
		if !t.Stop() {
			continue
		}
		metrics.PendingRetries.Dec()
		delete(d.retries, id)
		d.settleLocked(id)
	}
	d.mu.Unlock()
	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		d.logger.Info("dispatcher shut down")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
