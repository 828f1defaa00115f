// Package config provides executor configuration loaded from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/morezero/usecase-executor/pkg/usecase"
)

const logPrefix = "config:LoadConfig"

// Config holds usecase-executor configuration.
type Config struct {
	// COMMS: connect to standalone NATS at COMMSURL.
	COMMSURL  string `envconfig:"COMMS_URL" default:"nats://127.0.0.1:4222"`
	COMMSName string `envconfig:"SERVICE_NAME" default:"usecase-executor"`

	// Subjects (empty event subject = per-use-case subjects only)
	ExecuteSubject string `envconfig:"EXECUTOR_SUBJECT" default:"usecase.execute"`
	QueueGroup     string `envconfig:"EXECUTOR_QUEUE"`
	EventSubject   string `envconfig:"EXECUTOR_EVENT_SUBJECT"`
	DisableEvents  bool   `envconfig:"EXECUTOR_DISABLE_EVENTS" default:"false"`

	// Timeouts
	RequestTimeout time.Duration `envconfig:"EXECUTOR_REQUEST_TIMEOUT" default:"25s"`

	// Definitions
	DefinitionsFile   string `envconfig:"USECASE_DEFINITIONS_FILE"`
	DefinitionsFromDB bool   `envconfig:"DEFINITIONS_FROM_DB" default:"false"`
	// TemplateGlob enables the "template" response processor (e.g. "templates/*.html")
	TemplateGlob string `envconfig:"TEMPLATE_GLOB"`

	// Request types: "strict" fails on unresolved request types, "permissive"
	// falls back to usecase.Request. The convention guess is opt-in.
	RequestResolutionMode string `envconfig:"REQUEST_RESOLUTION_MODE" default:"strict"`
	RequestTypeConvention bool   `envconfig:"REQUEST_TYPE_CONVENTION" default:"false"`

	// Database (optional for serve; required when DEFINITIONS_FROM_DB is set)
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	RunMigrations bool   `envconfig:"RUN_MIGRATIONS" default:"false"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"migrations"`

	// HTTP (EXECUTOR_HTTP_ADDR preferred, e.g. "0.0.0.0:8080")
	HTTPAddr           string        `envconfig:"EXECUTOR_HTTP_ADDR"`
	HTTPPort           int           `envconfig:"HTTP_PORT" default:"8080"`
	HTTPContext        string        `envconfig:"HTTP_CONTEXT" default:"http"`
	HealthCheckTimeout time.Duration `envconfig:"HEALTH_CHECK_TIMEOUT" default:"5s"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ValidateForServe checks required config when running the executor server.
func (c *Config) ValidateForServe() error {
	if c.COMMSURL == "" {
		return fmt.Errorf("%s - COMMS_URL is required for serve", logPrefix)
	}
	if c.ExecuteSubject == "" {
		return fmt.Errorf("%s - EXECUTOR_SUBJECT must not be empty", logPrefix)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%s - EXECUTOR_REQUEST_TIMEOUT must be positive", logPrefix)
	}
	if c.HealthCheckTimeout <= 0 {
		return fmt.Errorf("%s - HEALTH_CHECK_TIMEOUT must be positive", logPrefix)
	}
	if _, err := c.ResolutionMode(); err != nil {
		return err
	}
	if (c.DefinitionsFromDB || c.RunMigrations) && c.DatabaseURL == "" {
		return fmt.Errorf("%s - DATABASE_URL is required when DEFINITIONS_FROM_DB or RUN_MIGRATIONS is set", logPrefix)
	}
	return nil
}

// ValidateForDB checks required config when running DB-dependent commands (migrate, clear, seed).
func (c *Config) ValidateForDB() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%s - DATABASE_URL is required", logPrefix)
	}
	return nil
}

// ResolutionMode parses RequestResolutionMode.
func (c *Config) ResolutionMode() (usecase.Mode, error) {
	mode, err := usecase.ParseMode(c.RequestResolutionMode)
	if err != nil {
		return usecase.Strict, fmt.Errorf("%s - REQUEST_RESOLUTION_MODE: %w", logPrefix, err)
	}
	return mode, nil
}

// UsesDatabase reports whether serve needs a database connection.
func (c *Config) UsesDatabase() bool {
	return c.DatabaseURL != "" && (c.DefinitionsFromDB || c.RunMigrations)
}

// ListenAddr returns the HTTP listen address.
func (c *Config) ListenAddr() string {
	if c.HTTPAddr != "" {
		return c.HTTPAddr
	}
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// SlogLevel maps LogLevel to a slog level; unknown values are info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
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
