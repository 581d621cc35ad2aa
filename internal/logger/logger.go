package logger

import (
	"os"

	"github.com/rs/zerolog"
)

// New returns the process logger: JSON to stdout with timestamp and caller.
func New() zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	return zerolog.New(os.Stdout).
		With().
		Timestamp().
		Caller().
		Logger().
		Level(zerolog.DebugLevel)
}
