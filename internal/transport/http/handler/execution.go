package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ErlanBelekov/pipeline-scheduler/internal/domain"
	"github.com/ErlanBelekov/pipeline-scheduler/internal/usecase"
	"github.com/gin-gonic/gin"
)

type executionUsecaser interface {
	GetExecution(id string) (domain.TaskExecution, error)
	ListExecutions(scheduleID string, limit int) (*usecase.ListExecutionsResult, error)
}

type ExecutionHandler struct {
	uc     executionUsecaser
	logger *slog.Logger
}

func NewExecutionHandler(uc executionUsecaser, logger *slog.Logger) *ExecutionHandler {
	return &ExecutionHandler{uc: uc, logger: logger.With("component", "execution_handler")}
}

func (h *ExecutionHandler) GetByID(ctx *gin.Context) {
	id := ctx.Param("id")

	exec, err := h.uc.GetExecution(id)
	if err != nil {
		if errors.Is(err, domain.ErrExecutionNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": errExecutionNotFound})
			return
		}
		h.logger.ErrorContext(ctx.Request.Context(), "get execution", "execution_id", id, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	ctx.JSON(http.StatusOK, toExecutionResponse(exec))
}

func (h *ExecutionHandler) List(ctx *gin.Context) {
	limit := usecase.DefaultHistoryLimit
	if raw := ctx.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > usecase.MaxHistoryLimit {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": errInvalidLimit})
			return
		}
		limit = n
	}

	result, err := h.uc.ListExecutions(ctx.Query("schedule_id"), limit)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
			return
		}
		h.logger.ErrorContext(ctx.Request.Context(), "list executions", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"executions": toExecutionResponses(result.Executions),
		"total":      result.Total,
		"completed":  result.Completed,
		"failed":     result.Failed,
		"running":    result.Running,
	})
}
