package logging

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NewZerolog returns the zerolog logger handed to the database and influx
// managers. Output uses the console writer with RFC3339 UTC timestamps.
func NewZerolog(level string, w io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	console := zerolog.ConsoleWriter{
		Out:          w,
		TimeFormat:   time.RFC3339,
		TimeLocation: time.UTC,
		NoColor:      true,
	}

	return zerolog.New(console).Level(lvl).With().Timestamp().Logger()
}

// Component returns a child logger tagged with a component name.
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}
