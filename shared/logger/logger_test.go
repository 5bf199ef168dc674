package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferedLogger(t *testing.T, cfg Config) (*Logger, *bytes.Buffer) {
	t.Helper()
	output := &bytes.Buffer{}
	cfg.writer = output

	logger, err := New(&cfg)
	require.NoError(t, err)
	require.NotNil(t, logger)
	return logger, output
}

func decodeLines(t *testing.T, output *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(output.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestNew_LevelFiltering(t *testing.T) {
	tests := []struct {
		level      string
		wantLevels []string
	}{
		{"debug", []string{"DEBUG", "INFO", "WARN", "ERROR"}},
		{"info", []string{"INFO", "WARN", "ERROR"}},
		{"warn", []string{"WARN", "ERROR"}},
		{"error", []string{"ERROR"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger, output := newBufferedLogger(t, Config{Level: tt.level, Format: "json"})

			logger.Debug("polling queue")
			logger.Info("thumbnail saved", slog.String("key", "images/photo_small.jpg"))
			logger.Warn("failed to remove scratch file")
			logger.Error("thumbnail job failed")

			var got []string
			for _, entry := range decodeLines(t, output) {
				got = append(got, entry["level"].(string))
				assert.Contains(t, entry, "time")
			}
			assert.Equal(t, tt.wantLevels, got)
		})
	}
}

func TestNew_JSONAttributes(t *testing.T) {
	logger, output := newBufferedLogger(t, Config{Level: "info", Format: "json"})

	logger.Info("thumbnail saved",
		slog.String("key", "images/photo_small.jpg"),
		slog.Int("width", 100),
		slog.Bool("derived", true),
	)

	entries := decodeLines(t, output)
	require.Len(t, entries, 1)
	assert.Equal(t, "thumbnail saved", entries[0]["msg"])
	assert.Equal(t, "images/photo_small.jpg", entries[0]["key"])
	assert.Equal(t, float64(100), entries[0]["width"])
	assert.Equal(t, true, entries[0]["derived"])
}

func TestNew_Console(t *testing.T) {
	logger, output := newBufferedLogger(t, Config{Level: "info", Format: "console"})

	logger.Info("worker started")

	// tint abbreviates levels
	assert.Contains(t, output.String(), "INF")
	assert.Contains(t, output.String(), "worker started")
}

func TestNew_Source(t *testing.T) {
	logger, output := newBufferedLogger(t, Config{Level: "info", Format: "json", EnableSource: true})

	logger.Info("message with source")

	entries := decodeLines(t, output)
	require.Len(t, entries, 1)
	source, ok := entries[0]["source"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, source, "file")
	assert.Contains(t, source, "line")
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.log")

	logger, err := New(&Config{
		Level:  "info",
		Format: "console",
		Output: path,
	})
	require.NoError(t, err)

	logger.Info("written to file")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
	assert.NotContains(t, string(data), "\x1b[", "file output must not be colorized")
}

func TestNew_FileOutputError(t *testing.T) {
	logger, err := New(&Config{
		Output: filepath.Join(t.TempDir(), "missing", "dir", "worker.log"),
	})
	require.Error(t, err)
	assert.Nil(t, logger)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"Info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}

	for level, want := range tests {
		t.Run(level, func(t *testing.T) {
			assert.Equal(t, want, parseLevel(level))
		})
	}
}

func TestLogger_WithComponent(t *testing.T) {
	logger, output := newBufferedLogger(t, Config{Level: "info", Format: "json"})

	logger.WithComponent("pipeline").Info("original downloaded", slog.String("original", "images/photo.jpg"))

	entries := decodeLines(t, output)
	require.Len(t, entries, 1)
	assert.Equal(t, "pipeline", entries[0]["component"])
	assert.Equal(t, "images/photo.jpg", entries[0]["original"])
}

func TestLogger_WithAttrs(t *testing.T) {
	logger, output := newBufferedLogger(t, Config{Level: "info", Format: "json"})

	scoped := logger.WithAttrs(
		slog.String("worker_id", "w-1"),
		slog.String("handle", "receipt-1"),
	)
	scoped.Info("deleted thumbnail job")

	entries := decodeLines(t, output)
	require.Len(t, entries, 1)
	assert.Equal(t, "w-1", entries[0]["worker_id"])
	assert.Equal(t, "receipt-1", entries[0]["handle"])
}
