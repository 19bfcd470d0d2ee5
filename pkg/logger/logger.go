// Package logger wraps log/slog with JSON output, context-aware helpers and
// size-based rotation via lumberjack.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

var globalLogger *slog.Logger

// Config controls level, format, destination and rotation.
type Config struct {
	// Level: debug, info, warn, error.
	Level string `mapstructure:"level"`
	// Format: json or text.
	Format string `mapstructure:"format"`
	// Output: stdout, file, both.
	Output string `mapstructure:"output"`
	// FilePath is used when Output is file or both.
	FilePath string `mapstructure:"file_path"`
	// MaxSize is the rotation threshold in MB.
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
	WithCaller bool `mapstructure:"with_caller"`
}

// Init builds the global logger and installs it as slog's default.
func Init(cfg Config) error {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	fileWriter := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	var output io.Writer
	switch cfg.Output {
	case "file":
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
			return err
		}
		output = fileWriter
	case "both":
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
			return err
		}
		output = io.MultiWriter(os.Stdout, fileWriter)
	default:
		output = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.WithCaller,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(a.Value.Time().Format(time.RFC3339))
			}
			return a
		},
	}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(output, opts)
	} else {
		handler = slog.NewJSONHandler(output, opts)
	}

	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)
	return nil
}

// Get returns the global logger, falling back to slog's default before Init.
func Get() *slog.Logger {
	if globalLogger == nil {
		return slog.Default()
	}
	return globalLogger
}

// WithContext attaches the request's trace_id, when present, to the logger.
func WithContext(ctx context.Context) *slog.Logger {
	l := Get()
	if ctx == nil {
		return l
	}
	if traceID, ok := ctx.Value("trace_id").(string); ok && traceID != "" {
		return l.With(slog.String("trace_id", traceID))
	}
	return l
}

func Debug(ctx context.Context, msg string, args ...any) { WithContext(ctx).Debug(msg, args...) }
func Info(ctx context.Context, msg string, args ...any)  { WithContext(ctx).Info(msg, args...) }
func Warn(ctx context.Context, msg string, args ...any)  { WithContext(ctx).Warn(msg, args...) }
func Error(ctx context.Context, msg string, args ...any) { WithContext(ctx).Error(msg, args...) }

// Fatal logs at error level and exits.
func Fatal(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Error(msg, args...)
	os.Exit(1)
}

// LogDuration returns a func for defer that logs how long the enclosing
// operation took.
func LogDuration(ctx context.Context, msg string, args ...any) func() {
	start := time.Now()
	return func() {
		args = append(args, slog.Duration("duration", time.Since(start)))
		Info(ctx, msg, args...)
	}
}
