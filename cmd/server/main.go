package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ErlanBelekov/pipeline-scheduler/config"
	"github.com/ErlanBelekov/pipeline-scheduler/internal/collaborator"
	"github.com/ErlanBelekov/pipeline-scheduler/internal/health"
	"github.com/ErlanBelekov/pipeline-scheduler/internal/infrastructure/memory"
	ctxlog "github.com/ErlanBelekov/pipeline-scheduler/internal/log"
	"github.com/ErlanBelekov/pipeline-scheduler/internal/metrics"
	"github.com/ErlanBelekov/pipeline-scheduler/internal/notify"
	"github.com/ErlanBelekov/pipeline-scheduler/internal/scheduler"
	httptransport "github.com/ErlanBelekov/pipeline-scheduler/internal/transport/http"
	"github.com/ErlanBelekov/pipeline-scheduler/internal/transport/http/handler"
	"github.com/ErlanBelekov/pipeline-scheduler/internal/trigger"
	"github.com/ErlanBelekov/pipeline-scheduler/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	metrics.Register()

	// Collaborators
	clientOpts := []collaborator.Option{
		collaborator.WithTimeout(cfg.CollaboratorTimeout()),
		collaborator.WithRate(cfg.CollaboratorRPS),
	}
	collection := collaborator.NewCollection(cfg.DataCollectionURL, clientOpts...)
	etl := collaborator.NewETL(cfg.ETLProcessingURL, clientOpts...)

	checker := health.NewChecker(map[string]health.Pinger{
		collection.Name(): collection,
		etl.Name():        etl,
	}, logger, prometheus.DefaultRegisterer)

	// Executions
	notifier := notify.New(cfg.ResendAPIKey, cfg.AlertFrom, cfg.AlertTo, logger)
	dispatcher := scheduler.NewDispatcher(collection, etl, notifier, scheduler.Config{
		QueueSize:    cfg.QueueMaxSize,
		HistorySize:  cfg.TaskHistoryLimit,
		PollInterval: cfg.PollInterval(),
	}, logger)
	executionUsecase := usecase.NewExecutionUsecase(dispatcher)
	executionHandler := handler.NewExecutionHandler(executionUsecase, logger)

	watchdog := scheduler.NewWatchdog(dispatcher, time.Minute, cfg.StallThreshold(), logger)
	go watchdog.Start(ctx)

	// Schedules
	engine := trigger.NewEngine(trigger.Config{
		Location:     cfg.Location(),
		MisfireGrace: cfg.MisfireGrace(),
	}, logger)
	engine.Start()

	scheduleRepo := memory.NewScheduleRepository(logger)
	scheduleUsecase := usecase.NewScheduleUsecase(scheduleRepo, engine, dispatcher, usecase.RetryDefaults{
		MaxRetries:        cfg.MaxRetryAttempts,
		RetryDelaySeconds: cfg.RetryDelaySeconds,
	}, logger)
	scheduleHandler := handler.NewScheduleHandler(scheduleUsecase, logger)

	healthHandler := handler.NewHealthHandler(checker, engine, dispatcher, map[string]string{
		collection.Name(): cfg.DataCollectionURL,
		etl.Name():        cfg.ETLProcessingURL,
	})

	srv := http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httptransport.NewRouter(logger, scheduleHandler, executionHandler, healthHandler, []byte(cfg.JWTSecret)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)

	go func() {
		logger.Info("server started", "port", cfg.Port, "timezone", cfg.Timezone)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	// Stop firing first so no new executions start, then abandon the in-flight ones.
	engine.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		logger.Error("dispatcher shutdown", "error", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}
