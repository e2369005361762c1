package domain

import (
	"errors"
	"maps"
	"time"
)

var (
	ErrScheduleNotFound  = errors.New("schedule not found")
	ErrExecutionNotFound = errors.New("execution not found")
	ErrTriggerRefused    = errors.New("trigger engine refused the request")
)

type ScheduleType string

const (
	ScheduleTypeCron     ScheduleType = "cron"
	ScheduleTypeInterval ScheduleType = "interval"
	ScheduleTypeOneTime  ScheduleType = "one_time"
)

type TaskType string

const (
	TaskTypeDataCollection TaskType = "data_collection"
	TaskTypeETLProcessing  TaskType = "etl_processing"
	TaskTypePipeline       TaskType = "pipeline"
)

type ScheduleStatus string

const (
	ScheduleStatusActive   ScheduleStatus = "active"
	ScheduleStatusPaused   ScheduleStatus = "paused"
	ScheduleStatusDisabled ScheduleStatus = "disabled"
)

// Schedule is a stored definition of when and what to run.
// Exactly one of CronExpression, IntervalSeconds or ScheduledTime is
// meaningful, chosen by Type.
type Schedule struct {
	ID          string
	Name        string
	Description string

	Type            ScheduleType
	CronExpression  string
	IntervalSeconds int
	ScheduledTime   *time.Time

	TaskType   TaskType
	TaskConfig map[string]any

	Status            ScheduleStatus
	MaxRetries        int
	RetryDelaySeconds int

	CreatedAt time.Time
	UpdatedAt time.Time
	LastRunAt *time.Time
	NextRunAt *time.Time
}

// Clone returns a copy that shares no mutable state with s.
func (s *Schedule) Clone() *Schedule {
	c := *s
	c.TaskConfig = maps.Clone(s.TaskConfig)
	c.ScheduledTime = clonePtr(s.ScheduledTime)
	c.LastRunAt = clonePtr(s.LastRunAt)
	c.NextRunAt = clonePtr(s.NextRunAt)
	return &c
}

// ValidateTaskConfig checks the task-level preconditions that can be
// verified without talking to a collaborator.
func (s *Schedule) ValidateTaskConfig() error {
	switch s.TaskType {
	case TaskTypeDataCollection, TaskTypePipeline:
		return nil
	case TaskTypeETLProcessing:
		id, _ := s.TaskConfig["collection_task_id"].(string)
		if id == "" {
			return &ValidationError{Field: "task_config.collection_task_id", Reason: "required for etl_processing tasks"}
		}
		return nil
	default:
		return &ValidationError{Field: "task_type", Reason: "unknown task type " + string(s.TaskType)}
	}
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
