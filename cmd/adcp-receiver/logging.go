package main

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/c360/adcpstream/tracker"
)

func setupLogger(w io.Writer, level, format string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: logLevel == slog.LevelDebug,
	}

	var handler slog.Handler
	if strings.ToLower(format) == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler).With(
		"service", appName,
		"version", Version,
		"pid", os.Getpid(),
	)
}

// echo prints state transitions to a terminal.
type echo struct {
	out  io.Writer
	name string
}

func newEcho(out io.Writer, name string) *echo {
	return &echo{out: out, name: name}
}

func (e *echo) transition(t tracker.Transition) {
	c := stateColor(t.To)
	_, _ = c.Fprintf(e.out, "[%s] %s -> %s", e.name, t.From, t.To)
	if t.Line != "" {
		_, _ = color.New(color.Faint).Fprintf(e.out, "  %q", t.Line)
	}
	_, _ = e.out.Write([]byte("\n"))
}

func stateColor(s tracker.State) *color.Color {
	switch s {
	case tracker.StatePrompt:
		return color.New(color.FgGreen)
	case tracker.StateCollectingData:
		return color.New(color.FgCyan)
	case tracker.StateUnknown, tracker.StateUnset:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}
