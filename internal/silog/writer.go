package silog

import (
	"io"

	"go.abhg.dev/io/ioutil"
)

// LeveledLogger is any logger that can log at a specific level.
type LeveledLogger interface {
	Log(lvl Level, msg string, kvs ...any)
}

var _ LeveledLogger = (*Logger)(nil)

// Writer returns an io.Writer that posts each line written to it
// as a message to the given logger.
// If the logger is nil, writes are discarded.
//
// The done function flushes a trailing partial line
// and must be called when the writer is no longer needed.
func Writer(log LeveledLogger, lvl Level) (w io.Writer, done func()) {
	if log == nil {
		return io.Discard, func() {}
	}

	return ioutil.LineWriter(func(bs []byte) {
		log.Log(lvl, string(bs))
	})
}
