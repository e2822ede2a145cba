// Package logger builds the predictor's slog logger from configuration.
package logger

import (
	"log/slog"
	"os"

	"github.com/calibrant/payband/cmd/predictor/config"
)

// New builds a logger honoring the configured level and format.
// Unrecognized values fall back to info-level text logging.
func New(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
