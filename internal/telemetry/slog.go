package telemetry

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel maps a configured level name to a slog.Level; unknown names are info.
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

// NewLogger builds a logger writing to w. format "json" selects the JSON
// handler, anything else the text handler. Source locations are included only
// at debug level.
func NewLogger(w io.Writer, format, level string) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler.WithAttrs([]slog.Attr{slog.String("service", "client-portal")}))
}

// SetupLogger installs the configured logger as the slog default. output is
// "stdout" or "stderr"; anything else falls back to stdout. format is "json"
// or "text"; level is one of debug, info, warn or error.
//
// Call it once at startup, before anything logs:
//
//	cfg, err := config.Load("")
//	if err != nil {
//		return fmt.Errorf("failed to load config: %w", err)
//	}
//	telemetry.SetupLogger(cfg.Logging.Format, cfg.Logging.Level, cfg.Logging.Output)
func SetupLogger(format, level, output string) {
	var w io.Writer = os.Stdout
	if strings.ToLower(output) == "stderr" {
		w = os.Stderr
	}

	slog.SetDefault(NewLogger(w, format, level))
	slog.Info("logger initialised", "format", format, "level", ParseLevel(level).String())
}
