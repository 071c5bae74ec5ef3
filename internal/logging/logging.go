// Package logging configures the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"time"
)

// Config controls the logger built by Setup
type Config struct {
	// Debug lowers the level to debug and adds source locations
	Debug bool
	// Quiet raises the level to warn; Debug wins when both are set
	Quiet bool
}

// Setup builds a text logger writing to w and installs it as the slog default
func Setup(w io.Writer, cfg Config) *slog.Logger {
	level := slog.LevelInfo
	addSource := false
	switch {
	case cfg.Debug:
		level = slog.LevelDebug
		addSource = true
	case cfg.Quiet:
		level = slog.LevelWarn
	}

	h := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: addSource,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
				a.Value = slog.StringValue(a.Value.Time().UTC().Format(time.RFC3339Nano))
			}
			return a
		},
	})

	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}
