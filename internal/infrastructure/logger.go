// Package infrastructure wires process-wide concerns: structured
// logging, trace propagation and OpenTelemetry providers.
package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"contentpipe/internal/config"
)

var (
	loggerOnce sync.Once
	logger     *slog.Logger

	logFileMu sync.Mutex
	logFile   *os.File
)

type contextKey string

// TraceIDContextKey carries the request trace id through contexts.
const TraceIDContextKey contextKey = "trace_id"

// InitializeLogger builds the process logger and installs it as the
// slog default. Subsequent calls return the logger from the first.
func InitializeLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	var err error
	loggerOnce.Do(func() {
		var out io.Writer
		out, err = logWriter(cfg)
		if err != nil {
			return
		}
		handler := slog.NewJSONHandler(out, &slog.HandlerOptions{
			AddSource: true,
			Level:     levelFromString(cfg.Level),
		})
		logger = slog.New(&traceHandler{Handler: handler})
		slog.SetDefault(logger)
	})
	return logger, err
}

// GetLogger returns the process logger, or slog's default before
// InitializeLogger has run.
func GetLogger() *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

func logWriter(cfg config.LoggingConfig) (io.Writer, error) {
	switch strings.ToLower(cfg.Output) {
	case "file":
		f, err := openLogFile(cfg.FilePath)
		if err != nil {
			return nil, err
		}
		logFile = f
		return f, nil
	case "both":
		f, err := openLogFile(cfg.FilePath)
		if err != nil {
			return nil, err
		}
		logFile = f
		return io.MultiWriter(os.Stdout, f), nil
	default:
		return os.Stdout, nil
	}
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return f, nil
}

// traceHandler stamps every record with the trace id found in the
// context, so log lines correlate with spans.
type traceHandler struct {
	slog.Handler
}

func (h *traceHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := GetTraceID(ctx); id != "" {
		r.AddAttrs(slog.String("trace_id", id))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *traceHandler) WithGroup(name string) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithGroup(name)}
}

func levelFromString(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithTraceID returns a context carrying the given trace id.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDContextKey, traceID)
}

// GetTraceID returns the trace id stored in the context, if any.
func GetTraceID(ctx context.Context) string {
	if id, ok := ctx.Value(TraceIDContextKey).(string); ok {
		return id
	}
	return ""
}

// CloseLogFile flushes the file sink on shutdown.
func CloseLogFile() error {
	logFileMu.Lock()
	defer logFileMu.Unlock()
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}

// ResetLoggerForTesting clears logger state between tests.
func ResetLoggerForTesting() {
	_ = CloseLogFile()
	logger = nil
	loggerOnce = sync.Once{}
}
