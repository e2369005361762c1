package httptransport

import (
	"log/slog"

	"github.com/ErlanBelekov/pipeline-scheduler/internal/transport/http/handler"
	"github.com/ErlanBelekov/pipeline-scheduler/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"

	sloggin "github.com/samber/slog-gin"
)

// BasePath prefixes every management route.
const BasePath = "/api/v1/scheduler"

func NewRouter(logger *slog.Logger, scheduleHandler *handler.ScheduleHandler, executionHandler *handler.ExecutionHandler, healthHandler *handler.HealthHandler, hmacKey []byte) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security())
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics())

	r.GET("/health", healthHandler.Health)
	r.GET("/ready", healthHandler.Ready)

	api := r.Group(BasePath, middleware.Auth(hmacKey))

	schedules := api.Group("/schedules")
	schedules.POST("", scheduleHandler.Create)
	schedules.GET("", scheduleHandler.List)
	schedules.GET("/:id", scheduleHandler.GetByID)
	schedules.PUT("/:id", scheduleHandler.Update)
	schedules.DELETE("/:id", scheduleHandler.Delete)
	schedules.POST("/:id/pause", scheduleHandler.Pause)
	schedules.POST("/:id/resume", scheduleHandler.Resume)
	schedules.POST("/:id/trigger", scheduleHandler.Trigger)

	executions := api.Group("/executions")
	executions.GET("", executionHandler.List)
	executions.GET("/:id", executionHandler.GetByID)

	api.GET("/stats", scheduleHandler.Stats)

	return r
}
