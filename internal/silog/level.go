package silog

import "log/slog"

// Level is a log level.
type Level slog.Level

var _ slog.Leveler = (Level)(0)

// Supported log levels.
const (
	LevelDebug = Level(slog.LevelDebug)
	LevelInfo  = Level(slog.LevelInfo)
	LevelWarn  = Level(slog.LevelWarn)
	LevelError = Level(slog.LevelError)
)

// String returns the name of the level, e.g. "info".
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return slog.Level(l).String()
	}
}

// Level returns the level as a slog.Level.
func (l Level) Level() slog.Level {
	return slog.Level(l)
}
