package logging

import (
	"io"
	"log/slog"
	"os"
)

// Init installs the default logger, writing text to stderr at the level
// named by LOG_LEVEL.
func Init() {
	slog.SetDefault(New(os.Stderr, os.Getenv("LOG_LEVEL")))
}

// New builds a text logger for the given level name.
func New(w io.Writer, level string) *slog.Logger {
	return slog.New(
		slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: ParseLevel(level),
		}),
	)
}

// ParseLevel maps a level name to a slog level. Production only shows
// errors, which is also the default for unknown names.
func ParseLevel(name string) slog.Level {
	switch name {
	case "dev", "development", "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
