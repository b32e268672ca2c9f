package telemetry

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel maps a configured level name to a slog.Level; defaults to info.
func ParseLevel(level string) slog.Level {
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

// NewHandler builds the slog handler for format ("json", anything else is text) writing to w.
func NewHandler(w io.Writer, format, level string) slog.Handler {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug, // include file:line only when debugging
	}
	if strings.ToLower(format) == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// SetupLogger configures the global slog default logger based on the supplied format and level
// strings read from application configuration.
//
// The configured logger is installed as the default so all slog.Info/Warn/Error calls elsewhere
// in the application use it without needing to carry a *slog.Logger in context.
func SetupLogger(format, level string) {
	slog.SetDefault(slog.New(NewHandler(os.Stdout, format, level)))
	slog.Info("logger initialised", "format", format, "level", ParseLevel(level).String())
}
