// Package logger configures the process-wide zerolog logger and carries a
// run ID through context.Context so every line of one pipeline run can be
// correlated.
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

type ctxKey string

const runIDKey ctxKey = "run_id"

// Config holds logger configuration.
type Config struct {
	Level         string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error"`
	Format        string `yaml:"format" default:"pretty" validate:"oneof=json pretty"`
	FileEnabled   bool   `yaml:"file_enabled"`
	FilePath      string `yaml:"file_path" default:"logs"`
	RotationSize  int    `yaml:"rotation_size_mb" default:"50" validate:"gt=0"`
	RetentionDays int    `yaml:"retention_days" default:"14" validate:"gt=0"`
	ServiceName   string `yaml:"service" default:"insight"`
}

// Init sets the global zerolog logger. Console output goes to stderr; when
// FileEnabled is set a rotated insight.log is written under FilePath as well.
func Init(cfg Config) error {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var writers []io.Writer
	if cfg.Format == "pretty" {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	} else {
		writers = append(writers, os.Stderr)
	}

	if cfg.FileEnabled {
		if err := os.MkdirAll(cfg.FilePath, 0o755); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   filepath.Join(cfg.FilePath, "insight.log"),
			MaxSize:    cfg.RotationSize,
			MaxAge:     cfg.RetentionDays,
			MaxBackups: 5,
			Compress:   true,
		})
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().
		Timestamp().
		Str("service", cfg.ServiceName).
		Logger()

	log.Debug().
		Str("level", cfg.Level).
		Str("format", cfg.Format).
		Bool("file_enabled", cfg.FileEnabled).
		Msg("logger initialized")
	return nil
}

// NewRunID returns a fresh identifier for one pipeline or monitor run.
func NewRunID() string {
	return uuid.NewString()
}

// WithRunID stores a run ID in the context for downstream propagation.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunID extracts the run ID from context. Returns "" if not set.
func RunID(ctx context.Context) string {
	if v, ok := ctx.Value(runIDKey).(string); ok {
		return v
	}
	return ""
}

// Ctx returns the global logger annotated with the context's run ID.
// Usage: logger.Ctx(ctx).Info().Str("symbol", s).Msg("trained")
func Ctx(ctx context.Context) *zerolog.Logger {
	l := log.Logger
	if id := RunID(ctx); id != "" {
		l = l.With().Str("run_id", id).Logger()
	}
	return &l
}
