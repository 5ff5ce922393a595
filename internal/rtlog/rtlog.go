// Package rtlog builds the process-wide structured logger.
package rtlog

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New returns a console-friendly logger at level, writing to w (os.Stderr
// if nil). Per-volume and per-request loggers are derived from this one
// via .With().Str(...), never constructed from scratch.
func New(levelName string, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	level, err := zerolog.ParseLevel(levelName)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}).
		Level(level).
		With().
		Timestamp().
		Logger()
}
