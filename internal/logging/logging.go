// Package logging configures the process logger.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds a console logger at the named level. Unknown level names fall
// back to info.
func New(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}
