package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"mindradix-similarity/internal/config"
)

var Logger *slog.Logger

// InitLogger initializes structured logging based on configuration
func InitLogger(cfg *config.Config) {
	Logger = New(os.Stdout, cfg)
	Logger.Debug("Structured logging initialized", "level", levelFor(cfg).String())
}

// New builds a JSON logger writing to w. LOG_LEVEL wins over the gin mode default.
func New(w io.Writer, cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     levelFor(cfg),
		AddSource: cfg.GinMode == "debug",
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func levelFor(cfg *config.Config) slog.Level {
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	if cfg.GinMode == "debug" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// Helper functions for common log operations
func Info(msg string, args ...any) {
	if Logger != nil {
		Logger.Info(msg, args...)
	}
}

func Error(msg string, args ...any) {
	if Logger != nil {
		Logger.Error(msg, args...)
	}
}

func Debug(msg string, args ...any) {
	if Logger != nil {
		Logger.Debug(msg, args...)
	}
}

func Warn(msg string, args ...any) {
	if Logger != nil {
		Logger.Warn(msg, args...)
	}
}
