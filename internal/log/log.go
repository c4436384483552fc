// Package log configures structured logging for voicebridge.
//
// Init selects the handler once at startup: JSON when GO_ENV=production,
// text otherwise. Components receive their logger by injection; the
// package-level helpers exist for the bootstrap path before wiring is done.
package log

import (
	"log/slog"
	"os"
	"sync"
)

var (
	logger *slog.Logger
	once   sync.Once
)

// Init initializes the global logger at the given level.
// Valid levels: "debug", "info", "warn", "error". Unknown levels fall back
// to info. Only the first call takes effect.
func Init(level string) {
	once.Do(func() {
		var lvl slog.Level
		switch level {
		case "debug":
			lvl = slog.LevelDebug
		case "warn":
			lvl = slog.LevelWarn
		case "error":
			lvl = slog.LevelError
		default:
			lvl = slog.LevelInfo
		}

		opts := &slog.HandlerOptions{Level: lvl}
		if os.Getenv("GO_ENV") == "production" {
			logger = slog.New(slog.NewJSONHandler(os.Stdout, opts))
		} else {
			logger = slog.New(slog.NewTextHandler(os.Stdout, opts))
		}
		slog.SetDefault(logger)
	})
}

// L returns the global logger, initializing at info level if needed.
func L() *slog.Logger {
	if logger == nil {
		Init("info")
	}
	return logger
}

// Error logs at error level with the global logger.
func Error(msg string, args ...any) {
	L().Error(msg, args...)
}
