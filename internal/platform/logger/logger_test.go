package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/phrazzld/folio-api/internal/config"
	"github.com/phrazzld/folio-api/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		want  slog.Level
		valid bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{"Warn", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"verbose", slog.LevelInfo, false},
	}
	for _, tt := range tests {
		got, ok := logger.ParseLevel(tt.name)
		assert.Equal(t, tt.want, got, tt.name)
		assert.Equal(t, tt.valid, ok, tt.name)
	}
}

func TestNew_WritesJSONAtLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := logger.New(&buf, "warn")
	l.Info("dropped")
	l.Warn("kept", slog.String("component", "test"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "test", entry["component"])
}

func TestNew_InvalidLevelWarns(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := logger.New(&buf, "chatty")
	assert.Contains(t, buf.String(), "invalid log level configured")
	assert.True(t, l.Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, l.Enabled(context.Background(), slog.LevelDebug))
}

func TestSetup(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	l, err := logger.Setup(config.ServerConfig{LogLevel: "debug"})
	require.NoError(t, err)
	require.NotNil(t, l)
	assert.Same(t, l, slog.Default())
}

func TestContextLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	own := logger.New(&buf, "info")
	fallback := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))

	ctx := logger.WithLogger(context.Background(), own)
	assert.Same(t, own, logger.FromContext(ctx))
	assert.Same(t, own, logger.FromContextOrDefault(ctx, fallback))
	assert.Same(t, fallback, logger.FromContextOrDefault(context.Background(), fallback))
	assert.NotNil(t, logger.FromContextOrDefault(context.Background(), nil))
}
