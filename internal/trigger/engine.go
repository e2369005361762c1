// Package trigger turns schedule recurrence definitions into live timers.
package trigger

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ErlanBelekov/pipeline-scheduler/internal/domain"
	"github.com/ErlanBelekov/pipeline-scheduler/internal/metrics"
	"github.com/robfig/cron/v3"
)

// DefaultMisfireGrace is how late a fire may run before it is dropped.
const DefaultMisfireGrace = 5 * time.Minute

// Callback is invoked when a schedule fires. The engine will not start
// another invocation for the same schedule until it returns.
type Callback func(ctx context.Context, scheduleID string)

type Config struct {
	Location     *time.Location
	MisfireGrace time.Duration
}

// Info summarizes the engine's registrations.
type Info struct {
	Running      bool
	TotalJobs    int
	JobIDs       []string
	NextRunTimes map[string]*time.Time
}

type registration struct {
	id       string
	timing   timing
	callback Callback
	entryID  cron.EntryID // zero while paused
	paused   bool
	inFlight *atomic.Bool // shared by every registration of the same id
}

// Engine owns one cron runner and the registrations scheduled on it.
// Firing coalesces missed ticks into one invocation.
type Engine struct {
	cron     *cron.Cron
	location *time.Location
	grace    time.Duration
	logger   *slog.Logger
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	regs    map[string]*registration
	flights map[string]*atomic.Bool
	running bool
}

func NewEngine(cfg Config, logger *slog.Logger) *Engine {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.MisfireGrace <= 0 {
		cfg.MisfireGrace = DefaultMisfireGrace
	}
	logger = logger.With("component", "trigger_engine")
	cl := cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())

	return &Engine{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLocation(cfg.Location),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
		location: cfg.Location,
		grace:    cfg.MisfireGrace,
		logger:   logger,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		regs:     make(map[string]*registration),
		flights:  make(map[string]*atomic.Bool),
	}
}

func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return
	}
	e.cron.Start()
	e.running = true
	e.logger.Info("trigger engine started", "timezone", e.location.String(), "misfire_grace", e.grace)
}

// Stop halts the timer loop without waiting for running callbacks. The
// context handed to callbacks is cancelled.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}
	e.cancel()
	e.cron.Stop()
	e.running = false
	e.logger.Info("trigger engine stopped")
}

func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Add registers s. It refuses duplicates, non-active schedules and
// invalid recurrence parameters.
func (e *Engine) Add(s *domain.Schedule, cb Callback) bool {
	if s.Status != domain.ScheduleStatusActive {
		e.logger.Warn("refusing non-active schedule", "schedule_id", s.ID, "status", s.Status)
		return false
	}
	t, err := build(s)
	if err != nil {
		e.logger.Warn("refusing schedule", "schedule_id", s.ID, "error", err)
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.regs[s.ID]; ok {
		e.logger.Warn("schedule already registered", "schedule_id", s.ID)
		return false
	}
	flight, ok := e.flights[s.ID]
	if !ok {
		flight = new(atomic.Bool)
		e.flights[s.ID] = flight
	}
	reg := &registration{id: s.ID, timing: t, callback: cb, inFlight: flight}
	reg.entryID = e.cron.Schedule(t.arm(), e.job(reg))
	e.regs[s.ID] = reg
	metrics.TriggersRegistered.Set(float64(len(e.regs)))

	e.logger.Info("schedule registered", "schedule_id", s.ID, "type", s.Type)
	return true
}

func (e *Engine) Remove(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.removeLocked(id)
}

func (e *Engine) removeLocked(id string) bool {
	reg, ok := e.regs[id]
	if !ok {
		return false
	}
	if reg.entryID != 0 {
		e.cron.Remove(reg.entryID)
	}
	delete(e.regs, id)
	// A run still in flight keeps the flag so a re-registration waits for it.
	if !reg.inFlight.Load() {
		delete(e.flights, id)
	}
	metrics.TriggersRegistered.Set(float64(len(e.regs)))
	e.logger.Info("schedule deregistered", "schedule_id", id)
	return true
}

// Pause stops firing while keeping the recurrence definition.
func (e *Engine) Pause(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	reg, ok := e.regs[id]
	if !ok {
		return false
	}
	if reg.paused {
		return true
	}
	e.cron.Remove(reg.entryID)
	reg.entryID = 0
	reg.paused = true
	e.logger.Info("schedule paused", "schedule_id", id)
	return true
}

// Resume re-arms a paused registration. The next fire is computed from
// now, so fires missed while paused are not replayed.
func (e *Engine) Resume(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	reg, ok := e.regs[id]
	if !ok {
		return false
	}
	if !reg.paused {
		return true
	}
	reg.entryID = e.cron.Schedule(reg.timing.arm(), e.job(reg))
	reg.paused = false
	e.logger.Info("schedule resumed", "schedule_id", id)
	return true
}

// NextRunTime returns nil for unknown or paused schedules.
func (e *Engine) NextRunTime(id string) *time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()

	reg, ok := e.regs[id]
	if !ok {
		return nil
	}
	return e.nextLocked(reg)
}

func (e *Engine) nextLocked(reg *registration) *time.Time {
	if reg.paused {
		return nil
	}
	if e.running {
		if next := e.cron.Entry(reg.entryID).Next; !next.IsZero() {
			return &next
		}
	}
	next := reg.timing.peek(e.now().In(e.location))
	return &next
}

func (e *Engine) Info() Info {
	e.mu.Lock()
	defer e.mu.Unlock()

	info := Info{
		Running:      e.running,
		TotalJobs:    len(e.regs),
		JobIDs:       make([]string, 0, len(e.regs)),
		NextRunTimes: make(map[string]*time.Time, len(e.regs)),
	}
	for id, reg := range e.regs {
		info.JobIDs = append(info.JobIDs, id)
		info.NextRunTimes[id] = e.nextLocked(reg)
	}
	slices.Sort(info.JobIDs)
	return info
}

func (e *Engine) job(reg *registration) cron.Job {
	return cron.FuncJob(func() { e.fire(reg) })
}

func (e *Engine) fire(reg *registration) {
	logger := e.logger.With("schedule_id", reg.id)

	e.mu.Lock()
	current, ok := e.regs[reg.id]
	if !ok || current != reg || reg.paused {
		e.mu.Unlock()
		return
	}
	if !reg.inFlight.CompareAndSwap(false, true) {
		if reg.timing.oneShot() {
			e.removeLocked(reg.id)
		}
		e.mu.Unlock()
		logger.Info("previous run still in flight, skipping")
		metrics.TriggerFiresTotal.WithLabelValues("skipped").Inc()
		return
	}
	entryID := reg.entryID
	e.mu.Unlock()
	defer e.land(reg)

	if late := e.lateness(entryID); late > e.grace {
		logger.Warn("dropping misfired trigger", "late_by", late)
		metrics.TriggerFiresTotal.WithLabelValues("misfired").Inc()
		if reg.timing.oneShot() {
			e.Remove(reg.id)
		}
		return
	}

	if reg.timing.oneShot() {
		e.Remove(reg.id)
	}

	metrics.TriggerFiresTotal.WithLabelValues("fired").Inc()
	logger.Debug("trigger fired")
	reg.callback(e.ctx, reg.id)
}

// land clears the in-flight flag of reg and forgets it once the id is
// no longer registered.
func (e *Engine) land(reg *registration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	reg.inFlight.Store(false)
	if _, ok := e.regs[reg.id]; !ok && e.flights[reg.id] == reg.inFlight {
		delete(e.flights, reg.id)
	}
}

// lateness measures how far behind its scheduled time the current
// activation of entryID started.
func (e *Engine) lateness(entryID cron.EntryID) time.Duration {
	prev := e.cron.Entry(entryID).Prev
	if prev.IsZero() {
		return 0
	}
	return e.now().Sub(prev)
}
