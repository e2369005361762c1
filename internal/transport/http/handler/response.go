package handler

import (
	"time"

	"github.com/ErlanBelekov/pipeline-scheduler/internal/domain"
)

type scheduleResponse struct {
	ID              string                `json:"schedule_id"`
	Name            string                `json:"name"`
	Description     string                `json:"description,omitempty"`
	Type            domain.ScheduleType   `json:"schedule_type"`
	CronExpression  string                `json:"cron_expression,omitempty"`
	IntervalSeconds int                   `json:"interval_seconds,omitempty"`
	ScheduledTime   *time.Time            `json:"scheduled_time,omitempty"`
	TaskType        domain.TaskType       `json:"task_type"`
	TaskConfig      map[string]any        `json:"task_config"`
	Status          domain.ScheduleStatus `json:"status"`
	MaxRetries      int                   `json:"max_retries"`
	RetryDelay      int                   `json:"retry_delay"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
	LastRunAt       *time.Time            `json:"last_run_at"`
	NextRunAt       *time.Time            `json:"next_run_at"`
}

func toScheduleResponse(s *domain.Schedule) scheduleResponse {
	return scheduleResponse{
		ID:              s.ID,
		Name:            s.Name,
		Description:     s.Description,
		Type:            s.Type,
		CronExpression:  s.CronExpression,
		IntervalSeconds: s.IntervalSeconds,
		ScheduledTime:   s.ScheduledTime,
		TaskType:        s.TaskType,
		TaskConfig:      s.TaskConfig,
		Status:          s.Status,
		MaxRetries:      s.MaxRetries,
		RetryDelay:      s.RetryDelaySeconds,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
		LastRunAt:       s.LastRunAt,
		NextRunAt:       s.NextRunAt,
	}
}

type executionResponse struct {
	ID               string                 `json:"execution_id"`
	ScheduleID       string                 `json:"schedule_id"`
	TaskType         domain.TaskType        `json:"task_type"`
	TaskConfig       map[string]any         `json:"task_config"`
	Status           domain.ExecutionStatus `json:"status"`
	StartedAt        *time.Time             `json:"started_at"`
	CompletedAt      *time.Time             `json:"completed_at"`
	DurationSeconds  *float64               `json:"duration_seconds"`
	RetryCount       int                    `json:"retry_count"`
	MaxRetries       int                    `json:"max_retries"`
	Result           map[string]any         `json:"result"`
	ErrorMessage     *string                `json:"error_message"`
	CollectionTaskID *string                `json:"collection_task_id"`
	ETLTaskID        *string                `json:"etl_task_id"`
	CreatedAt        time.Time              `json:"created_at"`
}

func toExecutionResponse(e domain.TaskExecution) executionResponse {
	return executionResponse{
		ID:               e.ID,
		ScheduleID:       e.ScheduleID,
		TaskType:         e.TaskType,
		TaskConfig:       e.TaskConfig,
		Status:           e.Status,
		StartedAt:        e.StartedAt,
		CompletedAt:      e.CompletedAt,
		DurationSeconds:  e.DurationSeconds,
		RetryCount:       e.RetryCount,
		MaxRetries:       e.MaxRetries,
		Result:           e.Result,
		ErrorMessage:     e.ErrorMessage,
		CollectionTaskID: e.CollectionTaskID,
		ETLTaskID:        e.ETLTaskID,
		CreatedAt:        e.CreatedAt,
	}
}

func toExecutionResponses(execs []domain.TaskExecution) []executionResponse {
	out := make([]executionResponse, len(execs))
	for i, e := range execs {
		out[i] = toExecutionResponse(e)
	}
	return out
}
