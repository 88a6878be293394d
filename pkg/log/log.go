// Package log configures the process-wide slog logger.
package log

import (
	"log/slog"
	"os"
	"strings"
)

// Setup installs a text handler on stderr at the given level as the default
// logger. Unknown level names fall back to info.
func Setup(logLevel string) {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(logLevel),
	})

	slog.SetDefault(slog.New(handler))
}

// WithModule returns a logger tagged with the owning module name.
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}

func parseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
