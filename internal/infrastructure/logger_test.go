package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentpipe/internal/config"
)

func TestInitializeLogger_FileOutput(t *testing.T) {
	t.Cleanup(ResetLoggerForTesting)
	ResetLoggerForTesting()

	path := filepath.Join(t.TempDir(), "logs", "out.log")
	logger, err := InitializeLogger(config.LoggingConfig{
		Level:    "debug",
		Output:   "file",
		FilePath: path,
	})
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.Same(t, logger, GetLogger())

	// Repeated initialization returns the first logger.
	again, err := InitializeLogger(config.LoggingConfig{Level: "error"})
	require.NoError(t, err)
	assert.Same(t, logger, again)

	require.NoError(t, CloseLogFile())
}

func TestTraceHandler_InjectsTraceID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(&traceHandler{Handler: slog.NewJSONHandler(&buf, nil)})

	ctx := WithTraceID(context.Background(), "trace-abc")
	logger.InfoContext(ctx, "hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "trace-abc", line["trace_id"])
}

func TestTraceHandler_NoTraceID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(&traceHandler{Handler: slog.NewJSONHandler(&buf, nil)})
	logger.Info("hello")
	assert.False(t, strings.Contains(buf.String(), "trace_id"))
}

func TestLevelFromString(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, levelFromString("debug"))
	assert.Equal(t, slog.LevelWarn, levelFromString("WARN"))
	assert.Equal(t, slog.LevelWarn, levelFromString("warning"))
	assert.Equal(t, slog.LevelError, levelFromString("error"))
	assert.Equal(t, slog.LevelInfo, levelFromString(""))
	assert.Equal(t, slog.LevelInfo, levelFromString("verbose"))
}

func TestEnsureTraceID(t *testing.T) {
	ctx := EnsureTraceID(context.Background())
	id := GetTraceID(ctx)
	assert.NotEmpty(t, id)

	// An existing trace id is preserved.
	again := EnsureTraceID(ctx)
	assert.Equal(t, id, GetTraceID(again))
}

func TestLoggerWithContext(t *testing.T) {
	ctx := WithTraceID(context.Background(), "trace-xyz")
	assert.NotNil(t, LoggerWithContext(ctx))
	assert.NotNil(t, LoggerWithContext(context.Background()))
}
