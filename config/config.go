package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Env      string `env:"ENV"       envDefault:"local" validate:"required,oneof=local staging production"`
	Port     string `env:"PORT"      envDefault:"8005"  validate:"required"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"  validate:"oneof=debug info warn error"`

	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`

	DataCollectionURL string `env:"DATA_COLLECTION_URL" envDefault:"http://localhost:8003" validate:"required,url"`
	ETLProcessingURL  string `env:"ETL_PROCESSING_URL"  envDefault:"http://localhost:8004" validate:"required,url"`

	Timezone          string `env:"SCHEDULER_TIMEZONE"  envDefault:"UTC" validate:"required"`
	MaxRetryAttempts  int    `env:"MAX_RETRY_ATTEMPTS"  envDefault:"3"   validate:"min=0,max=100"`
	RetryDelaySeconds int    `env:"RETRY_DELAY_SECONDS" envDefault:"60"  validate:"min=0"`
	MisfireGraceSec   int    `env:"MISFIRE_GRACE_SEC"   envDefault:"300" validate:"min=1"`

	QueueMaxSize      int `env:"QUEUE_MAX_SIZE"     envDefault:"100"  validate:"min=1"`
	TaskHistoryLimit  int `env:"TASK_HISTORY_LIMIT" envDefault:"1000" validate:"min=1"`
	PollIntervalSec   int `env:"POLL_INTERVAL_SEC"  envDefault:"5"    validate:"min=1,max=300"`
	StallThresholdMin int `env:"STALL_THRESHOLD_MIN" envDefault:"30"  validate:"min=1"`

	CollaboratorTimeoutSec int     `env:"COLLABORATOR_TIMEOUT_SEC" envDefault:"120" validate:"min=1"`
	CollaboratorRPS        float64 `env:"COLLABORATOR_RPS"         envDefault:"0"   validate:"min=0"`

	// Empty leaves the management API unauthenticated.
	JWTSecret string `env:"JWT_SECRET" validate:"omitempty,min=32"`

	ResendAPIKey string `env:"RESEND_API_KEY"`
	AlertFrom    string `env:"ALERT_FROM" validate:"omitempty,email"`
	AlertTo      string `env:"ALERT_TO"`
}

// Load reads an optional .env file, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse builds a Config from the process environment only.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("invalid config: SCHEDULER_TIMEZONE: %w", err)
	}

	if cfg.AlertTo != "" && cfg.Env != "local" && (cfg.ResendAPIKey == "" || cfg.AlertFrom == "") {
		return nil, errors.New("invalid config: ALERT_TO requires RESEND_API_KEY and ALERT_FROM outside local")
	}

	return cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Location is the zone cron expressions are evaluated in. Parse has already
// checked that it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}

func (c *Config) CollaboratorTimeout() time.Duration {
	return time.Duration(c.CollaboratorTimeoutSec) * time.Second
}

func (c *Config) MisfireGrace() time.Duration {
	return time.Duration(c.MisfireGraceSec) * time.Second
}

func (c *Config) StallThreshold() time.Duration {
	return time.Duration(c.StallThresholdMin) * time.Minute
}
