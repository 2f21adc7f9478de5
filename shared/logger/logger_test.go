package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(t *testing.T, level string) (*Logger, *bytes.Buffer) {
	t.Helper()

	output := &bytes.Buffer{}
	logger, err := New(&Config{
		Level:      level,
		Format:     "json",
		TimeFormat: time.RFC3339,
		writer:     output,
	})
	require.NoError(t, err)

	return logger, output
}

func decodeEntry(t *testing.T, line string) map[string]interface{} {
	t.Helper()

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	return entry
}

func TestNew_JSONFormat(t *testing.T) {
	logger, output := newBufferLogger(t, "debug")

	logger.Debug("run accepted", slog.String("run_id", "abc-123"))

	entry := decodeEntry(t, output.String())
	assert.Equal(t, "DEBUG", entry["level"])
	assert.Equal(t, "run accepted", entry["msg"])
	assert.Equal(t, "abc-123", entry["run_id"])
	assert.Contains(t, entry, "time")
}

func TestNew_LevelFiltering(t *testing.T) {
	tests := []struct {
		name       string
		level      string
		suppressed func(l *Logger)
		emitted    func(l *Logger)
		wantLevel  string
	}{
		{
			name:       "info drops debug",
			level:      "info",
			suppressed: func(l *Logger) { l.Debug("debug message") },
			emitted:    func(l *Logger) { l.Info("info message") },
			wantLevel:  "INFO",
		},
		{
			name:       "warn drops info",
			level:      "warn",
			suppressed: func(l *Logger) { l.Info("info message") },
			emitted:    func(l *Logger) { l.Warn("warn message") },
			wantLevel:  "WARN",
		},
		{
			name:       "error drops warn",
			level:      "error",
			suppressed: func(l *Logger) { l.Warn("warn message") },
			emitted:    func(l *Logger) { l.Error("error message") },
			wantLevel:  "ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, output := newBufferLogger(t, tt.level)

			tt.suppressed(logger)
			tt.emitted(logger)

			lines := strings.Split(strings.TrimSpace(output.String()), "\n")
			require.Len(t, lines, 1)

			entry := decodeEntry(t, lines[0])
			assert.Equal(t, tt.wantLevel, entry["level"])
		})
	}
}

func TestNew_ConsoleFormat(t *testing.T) {
	output := &bytes.Buffer{}
	logger, err := New(&Config{
		Level:  "info",
		Format: "console",
		writer: output,
	})
	require.NoError(t, err)

	logger.Info("resolver responded")

	// tint renders levels as three-letter tags
	assert.Contains(t, output.String(), "INF")
	assert.Contains(t, output.String(), "resolver responded")
}

func TestNew_SourceLocation(t *testing.T) {
	output := &bytes.Buffer{}
	logger, err := New(&Config{
		Level:        "info",
		Format:       "json",
		EnableSource: true,
		writer:       output,
	})
	require.NoError(t, err)

	logger.Info("message with source")

	entry := decodeEntry(t, output.String())
	require.Contains(t, entry, "source")
	source := entry["source"].(map[string]interface{})
	assert.Contains(t, source, "file")
	assert.Contains(t, source, "line")
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "screener.log")

	logger, err := New(&Config{
		Level:  "info",
		Format: "json",
		Output: path,
	})
	require.NoError(t, err)

	logger.Info("run complete", slog.Int64("property_id", 7))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	entry := decodeEntry(t, strings.TrimSpace(string(data)))
	assert.Equal(t, "run complete", entry["msg"])
	assert.Equal(t, float64(7), entry["property_id"])
}

func TestNew_FileOutputAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "screener.log")
	require.NoError(t, os.WriteFile(path, []byte("{\"msg\":\"earlier\"}\n"), 0o644))

	logger, err := New(&Config{
		Level:  "info",
		Format: "json",
		Output: path,
	})
	require.NoError(t, err)

	logger.Info("later")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "earlier")
	assert.Contains(t, lines[1], "later")
}

func TestNew_FileOutputOpenFailure(t *testing.T) {
	// Parent directory does not exist, so the open must fail
	path := filepath.Join(t.TempDir(), "missing", "screener.log")

	logger, err := New(&Config{
		Level:  "info",
		Format: "json",
		Output: path,
	})
	require.Error(t, err)
	assert.Nil(t, logger)
	assert.Contains(t, err.Error(), "failed to open log file")
}

func TestNewDefault(t *testing.T) {
	logger := NewDefault()
	require.NotNil(t, logger)
	assert.NotNil(t, logger.Logger)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected slog.Level
	}{
		{level: "debug", expected: slog.LevelDebug},
		{level: "info", expected: slog.LevelInfo},
		{level: "warn", expected: slog.LevelWarn},
		{level: "warning", expected: slog.LevelWarn},
		{level: "error", expected: slog.LevelError},
		{level: "DEBUG", expected: slog.LevelInfo}, // case-sensitive, unknown defaults to info
		{level: "", expected: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run("level "+tt.level, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLevel(tt.level))
		})
	}
}

func TestLogger_WithGroup(t *testing.T) {
	logger, output := newBufferLogger(t, "info")

	logger.WithGroup("resolver").Info("queried endpoint", slog.String("state", "MO"))

	entry := decodeEntry(t, output.String())
	require.Contains(t, entry, "resolver")
	group := entry["resolver"].(map[string]interface{})
	assert.Equal(t, "MO", group["state"])
}

func TestLogger_WithAttrs(t *testing.T) {
	logger, output := newBufferLogger(t, "info")

	logger.WithAttrs(
		slog.String("request_id", "req-42"),
		slog.Int64("property_id", 9),
	).Info("parcel stored")

	entry := decodeEntry(t, output.String())
	assert.Equal(t, "req-42", entry["request_id"])
	assert.Equal(t, float64(9), entry["property_id"])
	assert.Equal(t, "parcel stored", entry["msg"])
}

func TestLogger_With(t *testing.T) {
	logger, output := newBufferLogger(t, "info")

	logger.With(
		slog.String("service", "screener"),
		slog.Int("version", 1),
	).Info("startup complete")

	entry := decodeEntry(t, output.String())
	assert.Equal(t, "screener", entry["service"])
	assert.Equal(t, float64(1), entry["version"])
}
