package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ErlanBelekov/pipeline-scheduler/internal/domain"
	"github.com/ErlanBelekov/pipeline-scheduler/internal/usecase"
	"github.com/gin-gonic/gin"
)

// scheduleUsecaser is the subset of ScheduleUsecase the handler needs.
type scheduleUsecaser interface {
	CreateSchedule(ctx context.Context, input usecase.CreateScheduleInput) (*domain.Schedule, error)
	GetSchedule(ctx context.Context, id string) (*domain.Schedule, error)
	ListSchedules(ctx context.Context, status domain.ScheduleStatus) (*usecase.ListSchedulesResult, error)
	UpdateSchedule(ctx context.Context, id string, input usecase.UpdateScheduleInput) (*domain.Schedule, error)
	DeleteSchedule(ctx context.Context, id string) error
	PauseSchedule(ctx context.Context, id string) error
	ResumeSchedule(ctx context.Context, id string) error
	TriggerSchedule(ctx context.Context, id string) (domain.TaskExecution, error)
	Stats(ctx context.Context) (*usecase.Stats, error)
}

type ScheduleHandler struct {
	uc     scheduleUsecaser
	logger *slog.Logger
}

func NewScheduleHandler(uc scheduleUsecaser, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{uc: uc, logger: logger.With("component", "schedule_handler")}
}

type createScheduleRequest struct {
	Name            string              `json:"name"             binding:"required,max=256"`
	Description     string              `json:"description"      binding:"max=2048"`
	ScheduleType    domain.ScheduleType `json:"schedule_type"    binding:"required,oneof=cron interval one_time"`
	CronExpression  string              `json:"cron_expression"`
	IntervalSeconds int                 `json:"interval_seconds"`
	ScheduledTime   *time.Time          `json:"scheduled_time"`
	TaskType        domain.TaskType     `json:"task_type"        binding:"required,oneof=data_collection etl_processing pipeline"`
	TaskConfig      map[string]any      `json:"task_config"`
	MaxRetries      *int                `json:"max_retries"      binding:"omitempty,min=0,max=100"`
	RetryDelay      *int                `json:"retry_delay"      binding:"omitempty,min=0,max=86400"`
}

type updateScheduleRequest struct {
	Name            *string                `json:"name"             binding:"omitempty,max=256"`
	Description     *string                `json:"description"      binding:"omitempty,max=2048"`
	CronExpression  *string                `json:"cron_expression"`
	IntervalSeconds *int                   `json:"interval_seconds"`
	ScheduledTime   *time.Time             `json:"scheduled_time"`
	TaskConfig      map[string]any         `json:"task_config"`
	Status          *domain.ScheduleStatus `json:"status"           binding:"omitempty,oneof=active paused disabled"`
	MaxRetries      *int                   `json:"max_retries"      binding:"omitempty,min=0,max=100"`
	RetryDelay      *int                   `json:"retry_delay"      binding:"omitempty,min=0,max=86400"`
}

func (h *ScheduleHandler) Create(ctx *gin.Context) {
	var req createScheduleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s, err := h.uc.CreateSchedule(ctx.Request.Context(), usecase.CreateScheduleInput{
		Name:              req.Name,
		Description:       req.Description,
		Type:              req.ScheduleType,
		CronExpression:    req.CronExpression,
		IntervalSeconds:   req.IntervalSeconds,
		ScheduledTime:     req.ScheduledTime,
		TaskType:          req.TaskType,
		TaskConfig:        req.TaskConfig,
		MaxRetries:        req.MaxRetries,
		RetryDelaySeconds: req.RetryDelay,
	})
	if err != nil {
		if errors.Is(err, domain.ErrTriggerRefused) {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": errTriggerRegistration})
			return
		}
		h.fail(ctx, "create schedule", err)
		return
	}

	next := "None"
	if s.NextRunAt != nil {
		next = s.NextRunAt.Format(time.RFC3339)
	}
	ctx.JSON(http.StatusOK, gin.H{
		"schedule": toScheduleResponse(s),
		"message":  fmt.Sprintf("Schedule created successfully. Next run: %s", next),
	})
}

func (h *ScheduleHandler) GetByID(ctx *gin.Context) {
	s, err := h.uc.GetSchedule(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		h.fail(ctx, "get schedule", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"schedule": toScheduleResponse(s), "message": "Success"})
}

func (h *ScheduleHandler) List(ctx *gin.Context) {
	status := domain.ScheduleStatus(ctx.Query("status"))
	switch status {
	case "", domain.ScheduleStatusActive, domain.ScheduleStatusPaused, domain.ScheduleStatusDisabled:
	default:
		ctx.JSON(http.StatusBadRequest, gin.H{"error": errInvalidStatus})
		return
	}

	result, err := h.uc.ListSchedules(ctx.Request.Context(), status)
	if err != nil {
		h.fail(ctx, "list schedules", err)
		return
	}

	items := make([]scheduleResponse, len(result.Schedules))
	for i, s := range result.Schedules {
		items[i] = toScheduleResponse(s)
	}
	ctx.JSON(http.StatusOK, gin.H{
		"schedules": items,
		"total":     result.Total,
		"active":    result.Active,
		"paused":    result.Paused,
		"disabled":  result.Disabled,
	})
}

func (h *ScheduleHandler) Update(ctx *gin.Context) {
	var req updateScheduleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s, err := h.uc.UpdateSchedule(ctx.Request.Context(), ctx.Param("id"), usecase.UpdateScheduleInput{
		Name:              req.Name,
		Description:       req.Description,
		CronExpression:    req.CronExpression,
		IntervalSeconds:   req.IntervalSeconds,
		ScheduledTime:     req.ScheduledTime,
		TaskConfig:        req.TaskConfig,
		Status:            req.Status,
		MaxRetries:        req.MaxRetries,
		RetryDelaySeconds: req.RetryDelay,
	})
	if err != nil {
		if errors.Is(err, domain.ErrTriggerRefused) {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": errUpdateFailed})
			return
		}
		h.fail(ctx, "update schedule", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"schedule": toScheduleResponse(s), "message": "Schedule updated successfully"})
}

func (h *ScheduleHandler) Delete(ctx *gin.Context) {
	id := ctx.Param("id")
	if err := h.uc.DeleteSchedule(ctx.Request.Context(), id); err != nil {
		h.fail(ctx, "delete schedule", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Schedule deleted successfully", "schedule_id": id})
}

func (h *ScheduleHandler) Pause(ctx *gin.Context) {
	id := ctx.Param("id")
	if err := h.uc.PauseSchedule(ctx.Request.Context(), id); err != nil {
		if errors.Is(err, domain.ErrTriggerRefused) {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": errPauseFailed})
			return
		}
		h.fail(ctx, "pause schedule", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Schedule paused successfully", "schedule_id": id})
}

func (h *ScheduleHandler) Resume(ctx *gin.Context) {
	id := ctx.Param("id")
	if err := h.uc.ResumeSchedule(ctx.Request.Context(), id); err != nil {
		if errors.Is(err, domain.ErrTriggerRefused) {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": errResumeFailed})
			return
		}
		h.fail(ctx, "resume schedule", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Schedule resumed successfully", "schedule_id": id})
}

func (h *ScheduleHandler) Trigger(ctx *gin.Context) {
	exec, err := h.uc.TriggerSchedule(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		h.fail(ctx, "trigger schedule", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"execution": toExecutionResponse(exec), "message": "Task execution triggered manually"})
}

func (h *ScheduleHandler) Stats(ctx *gin.Context) {
	stats, err := h.uc.Stats(ctx.Request.Context())
	if err != nil {
		h.fail(ctx, "stats", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"scheduler": gin.H{
			"running":        stats.Engine.Running,
			"total_jobs":     stats.Engine.TotalJobs,
			"job_ids":        stats.Engine.JobIDs,
			"next_run_times": stats.Engine.NextRunTimes,
		},
		"queue": gin.H{
			"queue_size":        stats.Dispatcher.QueueSize,
			"running_tasks":     stats.Dispatcher.RunningTasks,
			"pending_retries":   stats.Dispatcher.PendingRetries,
			"history_total":     stats.Dispatcher.HistoryTotal,
			"history_pending":   stats.Dispatcher.HistoryPending,
			"history_running":   stats.Dispatcher.HistoryRunning,
			"history_completed": stats.Dispatcher.HistoryCompleted,
			"history_failed":    stats.Dispatcher.HistoryFailed,
			"history_cancelled": stats.Dispatcher.HistoryCancelled,
		},
		"schedules_total": stats.SchedulesTotal,
	})
}

func (h *ScheduleHandler) fail(ctx *gin.Context, op string, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
	case errors.Is(err, domain.ErrScheduleNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": errScheduleNotFound})
	default:
		h.logger.ErrorContext(ctx.Request.Context(), op, "schedule_id", ctx.Param("id"), "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
	}
}
