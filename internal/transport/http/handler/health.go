package handler

import (
	"context"
	"net/http"

	"github.com/ErlanBelekov/pipeline-scheduler/internal/health"
	"github.com/ErlanBelekov/pipeline-scheduler/internal/scheduler"
	"github.com/ErlanBelekov/pipeline-scheduler/internal/trigger"
	"github.com/gin-gonic/gin"
)

type healthChecker interface {
	Liveness(ctx context.Context) health.HealthResult
	Readiness(ctx context.Context) health.HealthResult
}

type engineStatus interface {
	Info() trigger.Info
}

type queueStatus interface {
	Stats() scheduler.Stats
}

type HealthHandler struct {
	checker  healthChecker
	engine   engineStatus
	queue    queueStatus
	services map[string]string
}

// NewHealthHandler reports liveness along with the engine and queue summary.
// services maps collaborator names to their base URLs.
func NewHealthHandler(checker healthChecker, engine engineStatus, queue queueStatus, services map[string]string) *HealthHandler {
	return &HealthHandler{checker: checker, engine: engine, queue: queue, services: services}
}

// GET /health
func (h *HealthHandler) Health(ctx *gin.Context) {
	result := h.checker.Liveness(ctx.Request.Context())
	info := h.engine.Info()
	q := h.queue.Stats()
	ctx.JSON(http.StatusOK, gin.H{
		"status":            result.Status,
		"service":           "scheduler",
		"scheduler_running": info.Running,
		"scheduled_jobs":    info.TotalJobs,
		"queue_size":        q.QueueSize,
		"running_tasks":     q.RunningTasks,
		"services":          h.services,
	})
}

// GET /ready
func (h *HealthHandler) Ready(ctx *gin.Context) {
	result := h.checker.Readiness(ctx.Request.Context())
	status := http.StatusOK
	if result.Status != "up" {
		status = http.StatusServiceUnavailable
	}
	ctx.JSON(status, result)
}
