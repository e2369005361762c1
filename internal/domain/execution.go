package domain

import (
	"maps"
	"time"
)

type ExecutionStatus string

const (
	ExecutionPending   ExecutionStatus = "pending"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionCancelled ExecutionStatus = "cancelled"
)

// TaskExecution is one attempt chain of running a schedule's task.
// Retries reuse the same record.
type TaskExecution struct {
	ID         string
	ScheduleID string
	TaskType   TaskType
	TaskConfig map[string]any

	Status            ExecutionStatus
	RetryCount        int
	MaxRetries        int
	RetryDelaySeconds int

	CreatedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	DurationSeconds *float64

	Result       map[string]any
	ErrorMessage *string

	CollectionTaskID *string
	ETLTaskID        *string
}

// Clone returns a snapshot safe to hand to callers outside the dispatcher.
func (e *TaskExecution) Clone() TaskExecution {
	c := *e
	c.TaskConfig = maps.Clone(e.TaskConfig)
	c.Result = maps.Clone(e.Result)
	c.StartedAt = clonePtr(e.StartedAt)
	c.CompletedAt = clonePtr(e.CompletedAt)
	c.DurationSeconds = clonePtr(e.DurationSeconds)
	c.ErrorMessage = clonePtr(e.ErrorMessage)
	c.CollectionTaskID = clonePtr(e.CollectionTaskID)
	c.ETLTaskID = clonePtr(e.ETLTaskID)
	return c
}
