package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/phrazzld/folio-api/internal/config"
)

// ParseLevel converts a configured level name (case-insensitive) into a
// slog.Level. Unknown names fall back to info and report false.
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// New creates a JSON logger writing to w at the given level.
func New(w io.Writer, level string) *slog.Logger {
	lvl, ok := ParseLevel(level)
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
	if !ok {
		logger.Warn("invalid log level configured, using default level",
			slog.String("configured_level", level),
			slog.String("default_level", "info"))
	}
	return logger
}

// Setup initializes the application's logging system from configuration.
// It creates a structured JSON logger on stdout and sets it as the default
// logger, so the slog package functions use it too.
func Setup(cfg config.ServerConfig) (*slog.Logger, error) {
	logger := New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)
	return logger, nil
}
