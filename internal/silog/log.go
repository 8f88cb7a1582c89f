// Package silog is the logger used by git-cl.
// It wraps the slog handler from go.abhg.dev/log/silog with:
//
//   - printf-style functions in addition to structured logging
//   - a level that can be changed after construction
//   - message prefixing
package silog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	silogh "go.abhg.dev/log/silog"
)

// Options defines options for the logger.
type Options struct {
	// Level is the minimum log level to log.
	// The default is LevelInfo.
	Level Level

	// Style is the style to use for the logger.
	// If unset, colors are used only when
	// the output is a terminal.
	Style *silogh.Style // optional
}

// Logger provides structured and printf-style logging.
// For each level, the logger provides a structured logging method (e.g. Info)
// and a printf-style method (e.g. Infof).
//
// A nil Logger discards all messages.
type Logger struct {
	h   *silogh.Handler // required
	lvl *slog.LevelVar  // required
}

// Nop returns a logger that discards all messages.
func Nop() *Logger {
	return New(io.Discard, nil)
}

// New creates a new logger that writes to the given writer.
func New(w io.Writer, opts *Options) *Logger {
	if opts == nil {
		opts = &Options{Level: LevelInfo}
	}

	style := opts.Style
	if style == nil {
		renderer := lipgloss.NewRenderer(w)
		if isTerminal(w) {
			style = silogh.DefaultStyle(renderer)
		} else {
			style = silogh.PlainStyle(renderer)
		}
	}

	lvl := new(slog.LevelVar)
	lvl.Set(opts.Level.Level())
	return &Logger{
		h: silogh.NewHandler(w, &silogh.HandlerOptions{
			Level: lvl,
			Style: style,
		}),
		lvl: lvl,
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	return ok && isatty.IsTerminal(f.Fd())
}

// Level returns the current log level of the logger.
func (l *Logger) Level() Level {
	if l == nil {
		return LevelError + 1
	}
	return Level(l.lvl.Level())
}

// SetLevel changes the log level of the logger
// and all loggers derived from it.
func (l *Logger) SetLevel(lvl Level) {
	if l != nil {
		l.lvl.Set(lvl.Level())
	}
}

// WithPrefix returns a copy of the logger that adds the given prefix
// to all messages, replacing any existing prefix.
// An empty prefix removes the existing one.
func (l *Logger) WithPrefix(prefix string) *Logger {
	if l == nil {
		return l
	}
	return &Logger{h: l.h.WithPrefix(prefix), lvl: l.lvl}
}

// With returns a copy of the logger with the given attributes added.
func (l *Logger) With(kvs ...any) *Logger {
	if l == nil || len(kvs) == 0 {
		return l
	}
	var rec slog.Record
	rec.Add(kvs...)
	attrs := make([]slog.Attr, 0, rec.NumAttrs())
	rec.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})
	return &Logger{h: l.h.WithAttrs(attrs).(*silogh.Handler), lvl: l.lvl}
}

// Log logs a message at the given level with the given key-value pairs.
func (l *Logger) Log(lvl Level, msg string, kvs ...any) {
	if l == nil {
		return
	}
	ctx := context.Background()
	if !l.h.Enabled(ctx, lvl.Level()) {
		return
	}

	var pcs [1]uintptr
	runtime.Callers(2, pcs[:])
	// Zero time: messages are for people at a terminal.
	rec := slog.NewRecord(time.Time{}, lvl.Level(), msg, pcs[0])
	rec.Add(kvs...)
	_ = l.h.Handle(ctx, rec)
}

// Logf logs a message at the given level with the given format and arguments.
func (l *Logger) Logf(lvl Level, format string, args ...any) {
	if l.Level() > lvl {
		return
	}
	l.Log(lvl, fmt.Sprintf(format, args...))
}

// Debug posts a structured log message with the level [LevelDebug].
func (l *Logger) Debug(msg string, kvs ...any) { l.Log(LevelDebug, msg, kvs...) }

// Info posts a structured log message with the level [LevelInfo].
func (l *Logger) Info(msg string, kvs ...any) { l.Log(LevelInfo, msg, kvs...) }

// Warn posts a structured log message with the level [LevelWarn].
func (l *Logger) Warn(msg string, kvs ...any) { l.Log(LevelWarn, msg, kvs...) }

// Error posts a structured log message with the level [LevelError].
func (l *Logger) Error(msg string, kvs ...any) { l.Log(LevelError, msg, kvs...) }

// Debugf posts a printf-style log message with the level [LevelDebug].
func (l *Logger) Debugf(format string, args ...any) { l.Logf(LevelDebug, format, args...) }

// Infof posts a printf-style log message with the level [LevelInfo].
func (l *Logger) Infof(format string, args ...any) { l.Logf(LevelInfo, format, args...) }

// Warnf posts a printf-style log message with the level [LevelWarn].
func (l *Logger) Warnf(format string, args ...any) { l.Logf(LevelWarn, format, args...) }

// Errorf posts a printf-style log message with the level [LevelError].
func (l *Logger) Errorf(format string, args ...any) { l.Logf(LevelError, format, args...) }
