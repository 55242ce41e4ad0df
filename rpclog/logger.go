// Package rpclog provides the structured logging handle threaded through a
// Connection and every component that logs underneath it (spec.md §9's
// "Global logger" design note: replace a process-wide static logger with an
// injected handle, no hidden state).
//
// Logger wraps log/slog with one TTY-aware default: when writing to a
// terminal and no explicit format was requested, output is human-readable
// text; otherwise it's JSON, suitable for ingestion by a log pipeline.
package rpclog

import (
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
)

// Format selects the slog.Handler used when none is supplied directly.
type Format int

const (
	// FormatAuto picks Text for a TTY destination and JSON otherwise.
	FormatAuto Format = iota
	FormatText
	FormatJSON
)

// Config configures a Logger. The zero value is valid: Info level, FormatAuto
// writing to os.Stderr.
type Config struct {
	Level  slog.Level
	Format Format
	Output io.Writer

	// Service is attached to every record as the "service" attribute. Empty
	// means omit the attribute.
	Service string
}

// Logger wraps *slog.Logger. The zero value is not usable; construct with
// New or Default.
type Logger struct {
	slog *slog.Logger
}

// New builds a Logger from cfg.
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	format := cfg.Format
	if format == FormatAuto {
		format = FormatText
		if f, ok := out.(*os.File); !ok || !isatty.IsTerminal(f.Fd()) {
			format = FormatJSON
		}
	}

	opts := &slog.HandlerOptions{Level: cfg.Level}
	var handler slog.Handler
	if format == FormatJSON {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	if cfg.Service != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("service", cfg.Service)})
	}
	return &Logger{slog: slog.New(handler)}
}

// Default returns an Info-level Logger writing to os.Stderr in FormatAuto.
func Default() *Logger {
	return New(Config{Level: slog.LevelInfo})
}

// Discard returns a Logger that drops every record — the Router/Connection
// default when no Logger is supplied.
func Discard() *Logger {
	return &Logger{slog: slog.New(slog.DiscardHandler)}
}

func (l *Logger) Debug(msg string, args ...any) { l.slog.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.slog.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.slog.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.slog.Error(msg, args...) }

// With returns a child Logger carrying additional attributes on every record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{slog: l.slog.With(args...)}
}

// Slog exposes the underlying *slog.Logger for callers that need direct
// access (e.g. slog.LogAttrs, or handing it to a third-party library that
// accepts one).
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}
