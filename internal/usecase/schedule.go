package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/pipeline-scheduler/internal/domain"
	"github.com/ErlanBelekov/pipeline-scheduler/internal/repository"
	"github.com/ErlanBelekov/pipeline-scheduler/internal/scheduler"
	"github.com/ErlanBelekov/pipeline-scheduler/internal/trigger"
)

// TriggerEngine is the subset of *trigger.Engine the usecase drives.
type TriggerEngine interface {
	Add(s *domain.Schedule, cb trigger.Callback) bool
	Remove(id string) bool
	Pause(id string) bool
	Resume(id string) bool
	NextRunTime(id string) *time.Time
	Info() trigger.Info
}

// Dispatcher is the subset of *scheduler.Dispatcher the usecase drives.
type Dispatcher interface {
	Enqueue(ctx context.Context, s *domain.Schedule) domain.TaskExecution
	Wait(ctx context.Context, id string) error
	Get(id string) (domain.TaskExecution, error)
	History(scheduleID string, limit int) []domain.TaskExecution
	Stats() scheduler.Stats
}

// RetryDefaults apply when a create request omits the retry policy.
type RetryDefaults struct {
	MaxRetries        int
	RetryDelaySeconds int
}

type ScheduleUsecase struct {
	repo       repository.ScheduleRepository
	engine     TriggerEngine
	dispatcher Dispatcher
	defaults   RetryDefaults
	logger     *slog.Logger
	now        func() time.Time
}

func NewScheduleUsecase(
	repo repository.ScheduleRepository,
	engine TriggerEngine,
	dispatcher Dispatcher,
	defaults RetryDefaults,
	logger *slog.Logger,
) *ScheduleUsecase {
	return &ScheduleUsecase{
		repo:       repo,
		engine:     engine,
		dispatcher: dispatcher,
		defaults:   defaults,
		logger:     logger.With("component", "schedule_usecase"),
		now:        time.Now,
	}
}

type CreateScheduleInput struct {
	Name              string
	Description       string
	Type              domain.ScheduleType
	CronExpression    string
	IntervalSeconds   int
	ScheduledTime     *time.Time
	TaskType          domain.TaskType
	TaskConfig        map[string]any
	MaxRetries        *int
	RetryDelaySeconds *int
}

// CreateSchedule stores a new active schedule and registers it with the
// trigger engine. A refused registration is rolled back.
func (u *ScheduleUsecase) CreateSchedule(ctx context.Context, input CreateScheduleInput) (*domain.Schedule, error) {
	s := &domain.Schedule{
		Name:              input.Name,
		Description:       input.Description,
		Type:              input.Type,
		CronExpression:    input.CronExpression,
		IntervalSeconds:   input.IntervalSeconds,
		ScheduledTime:     input.ScheduledTime,
		TaskType:          input.TaskType,
		TaskConfig:        input.TaskConfig,
		Status:            domain.ScheduleStatusActive,
		MaxRetries:        valueOr(input.MaxRetries, u.defaults.MaxRetries),
		RetryDelaySeconds: valueOr(input.RetryDelaySeconds, u.defaults.RetryDelaySeconds),
	}
	if s.TaskConfig == nil {
		s.TaskConfig = make(map[string]any)
	}
	if err := validate(s); err != nil {
		return nil, err
	}

	created, err := u.repo.Create(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("create schedule: %w", err)
	}

	if !u.engine.Add(created, u.fire) {
		if err := u.repo.Delete(ctx, created.ID); err != nil {
			u.logger.ErrorContext(ctx, "roll back refused schedule", "schedule_id", created.ID, "error", err)
		}
		return nil, domain.ErrTriggerRefused
	}

	created.NextRunAt = u.engine.NextRunTime(created.ID)
	u.logger.InfoContext(ctx, "schedule created", "schedule_id", created.ID, "type", created.Type, "task_type", created.TaskType)
	return created, nil
}

func (u *ScheduleUsecase) GetSchedule(ctx context.Context, id string) (*domain.Schedule, error) {
	s, err := u.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.NextRunAt = u.engine.NextRunTime(id)
	return s, nil
}

type ListSchedulesResult struct {
	Schedules []*domain.Schedule
	Total     int
	Active    int
	Paused    int
	Disabled  int
}

// ListSchedules counts by status over the filtered set.
func (u *ScheduleUsecase) ListSchedules(ctx context.Context, status domain.ScheduleStatus) (*ListSchedulesResult, error) {
	schedules, err := u.repo.List(ctx, repository.ListSchedulesInput{Status: status})
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}

	result := &ListSchedulesResult{Schedules: schedules, Total: len(schedules)}
	for _, s := range schedules {
		s.NextRunAt = u.engine.NextRunTime(s.ID)
		switch s.Status {
		case domain.ScheduleStatusActive:
			result.Active++
		case domain.ScheduleStatusPaused:
			result.Paused++
		case domain.ScheduleStatusDisabled:
			result.Disabled++
		}
	}
	return result, nil
}

// UpdateScheduleInput carries a partial update; nil fields are left alone.
type UpdateScheduleInput struct {
	Name              *string
	Description       *string
	CronExpression    *string
	IntervalSeconds   *int
	ScheduledTime     *time.Time
	TaskConfig        map[string]any
	Status            *domain.ScheduleStatus
	MaxRetries        *int
	RetryDelaySeconds *int
}

func (in UpdateScheduleInput) changesRecurrence() bool {
	return in.CronExpression != nil || in.IntervalSeconds != nil || in.ScheduledTime != nil
}

// UpdateSchedule applies a partial update. Status changes and recurrence
// edits are pushed to the trigger engine before the record is saved.
func (u *ScheduleUsecase) UpdateSchedule(ctx context.Context, id string, input UpdateScheduleInput) (*domain.Schedule, error) {
	current, err := u.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	next := current.Clone()
	if input.Name != nil {
		next.Name = *input.Name
	}
	if input.Description != nil {
		next.Description = *input.Description
	}
	if input.CronExpression != nil {
		next.CronExpression = *input.CronExpression
	}
	if input.IntervalSeconds != nil {
		next.IntervalSeconds = *input.IntervalSeconds
	}
	if input.ScheduledTime != nil {
		at := *input.ScheduledTime
		next.ScheduledTime = &at
	}
	if input.TaskConfig != nil {
		next.TaskConfig = input.TaskConfig
	}
	if input.Status != nil {
		next.Status = *input.Status
	}
	if input.MaxRetries != nil {
		next.MaxRetries = *input.MaxRetries
	}
	if input.RetryDelaySeconds != nil {
		next.RetryDelaySeconds = *input.RetryDelaySeconds
	}
	if err := validate(next); err != nil {
		return nil, err
	}

	if err := u.syncTrigger(current, next, input.changesRecurrence()); err != nil {
		return nil, err
	}

	updated, err := u.repo.Update(ctx, next)
	if err != nil {
		return nil, fmt.Errorf("update schedule: %w", err)
	}
	updated.NextRunAt = u.engine.NextRunTime(id)
	u.logger.InfoContext(ctx, "schedule updated", "schedule_id", id, "status", updated.Status)
	return updated, nil
}

func (u *ScheduleUsecase) syncTrigger(current, next *domain.Schedule, recurrenceChanged bool) error {
	from, to := current.Status, next.Status

	if recurrenceChanged && from != domain.ScheduleStatusDisabled {
		u.engine.Remove(current.ID)
		if to == domain.ScheduleStatusDisabled {
			return nil
		}
		return u.register(next)
	}
	if from == to {
		return nil
	}

	ok := true
	switch {
	case to == domain.ScheduleStatusDisabled:
		u.engine.Remove(current.ID)
	case from == domain.ScheduleStatusDisabled:
		return u.register(next)
	case to == domain.ScheduleStatusPaused:
		ok = u.engine.Pause(current.ID)
	case to == domain.ScheduleStatusActive:
		ok = u.engine.Resume(current.ID)
	}
	if !ok {
		return domain.ErrTriggerRefused
	}
	return nil
}

// register arms s and leaves it paused when its status says so.
func (u *ScheduleUsecase) register(s *domain.Schedule) error {
	armed := s.Clone()
	armed.Status = domain.ScheduleStatusActive
	if !u.engine.Add(armed, u.fire) {
		return domain.ErrTriggerRefused
	}
	if s.Status == domain.ScheduleStatusPaused && !u.engine.Pause(s.ID) {
		return domain.ErrTriggerRefused
	}
	return nil
}

func (u *ScheduleUsecase) DeleteSchedule(ctx context.Context, id string) error {
	if _, err := u.repo.GetByID(ctx, id); err != nil {
		return err
	}
	u.engine.Remove(id)
	if err := u.repo.Delete(ctx, id); err != nil {
		return err
	}
	u.logger.InfoContext(ctx, "schedule deleted", "schedule_id", id)
	return nil
}

func (u *ScheduleUsecase) PauseSchedule(ctx context.Context, id string) error {
	if _, err := u.repo.GetByID(ctx, id); err != nil {
		return err
	}
	if !u.engine.Pause(id) {
		return domain.ErrTriggerRefused
	}
	if err := u.repo.SetStatus(ctx, id, domain.ScheduleStatusPaused); err != nil {
		return err
	}
	u.logger.InfoContext(ctx, "schedule paused", "schedule_id", id)
	return nil
}

func (u *ScheduleUsecase) ResumeSchedule(ctx context.Context, id string) error {
	if _, err := u.repo.GetByID(ctx, id); err != nil {
		return err
	}
	if !u.engine.Resume(id) {
		return domain.ErrTriggerRefused
	}
	if err := u.repo.SetStatus(ctx, id, domain.ScheduleStatusActive); err != nil {
		return err
	}
	u.logger.InfoContext(ctx, "schedule resumed", "schedule_id", id)
	return nil
}

// TriggerSchedule runs a schedule now, bypassing the trigger engine.
func (u *ScheduleUsecase) TriggerSchedule(ctx context.Context, id string) (domain.TaskExecution, error) {
	s, err := u.repo.GetByID(ctx, id)
	if err != nil {
		return domain.TaskExecution{}, err
	}
	if err := s.ValidateTaskConfig(); err != nil {
		return domain.TaskExecution{}, err
	}

	exec := u.dispatcher.Enqueue(ctx, s)
	if err := u.repo.MarkRun(ctx, id, u.now()); err != nil {
		u.logger.WarnContext(ctx, "record manual run", "schedule_id", id, "error", err)
	}
	u.logger.InfoContext(ctx, "schedule triggered manually", "schedule_id", id, "execution_id", exec.ID)
	return exec, nil
}

// fire is the trigger callback. It holds the engine's in-flight slot
// until the execution settles so runs of one schedule never overlap.
func (u *ScheduleUsecase) fire(ctx context.Context, id string) {
	s, err := u.repo.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrScheduleNotFound) {
			u.logger.ErrorContext(ctx, "load fired schedule", "schedule_id", id, "error", err)
		}
		return
	}

	exec := u.dispatcher.Enqueue(ctx, s)
	if err := u.repo.MarkRun(ctx, id, u.now()); err != nil {
		u.logger.WarnContext(ctx, "record triggered run", "schedule_id", id, "error", err)
	}
	if err := u.dispatcher.Wait(ctx, exec.ID); err != nil {
		u.logger.DebugContext(ctx, "stopped waiting for execution", "execution_id", exec.ID, "error", err)
	}
}

type Stats struct {
	Engine         trigger.Info
	Dispatcher     scheduler.Stats
	SchedulesTotal int
}

func (u *ScheduleUsecase) Stats(ctx context.Context) (*Stats, error) {
	schedules, err := u.repo.List(ctx, repository.ListSchedulesInput{})
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return &Stats{
		Engine:         u.engine.Info(),
		Dispatcher:     u.dispatcher.Stats(),
		SchedulesTotal: len(schedules),
	}, nil
}

func validate(s *domain.Schedule) error {
	if s.MaxRetries < 0 {
		return &domain.ValidationError{Field: "max_retries", Reason: "must not be negative"}
	}
	if s.RetryDelaySeconds < 0 {
		return &domain.ValidationError{Field: "retry_delay", Reason: "must not be negative"}
	}
	if err := trigger.Validate(s); err != nil {
		return err
	}
	return s.ValidateTaskConfig()
}

func valueOr(p *int, fallback int) int {
	if p == nil {
		return fallback
	}
	return *p
}
