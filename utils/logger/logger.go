// Package logger provides structured logging for the trailer-engine service.
package logger

import (
	"log/slog"
	"os"
	"strings"
)

// Init initializes a JSON logger reading the level from LOG_LEVEL and installs
// it as the process default.
func Init() *slog.Logger {
	level := parseLevel(os.Getenv("LOG_LEVEL"))

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})

	log := slog.New(handler)
	slog.SetDefault(log)

	log.Info("logger initialized", "level", level.String())

	return log
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
