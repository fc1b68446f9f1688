// Package logging builds the zerolog logger shared by the CLI and the
// sequencer.
//
// Collaborators own stdout and stderr for their own output, so webstart
// logs to stderr only and keeps each record to a single line.
package logging

import (
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options control the logger format and verbosity.
type Options struct {
	// JSON switches from the human console format to JSON lines.
	JSON bool

	// Level is the minimum level written.
	Level zerolog.Level
}

// LevelFor maps the CLI verbosity flags to a zerolog level.
// Verbose wins when both flags are set.
func LevelFor(verbose, quiet bool) zerolog.Level {
	switch {
	case verbose:
		return zerolog.DebugLevel
	case quiet:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}

// New returns a logger writing to w and installs it as the zerolog global.
func New(app string, w io.Writer, opts Options) zerolog.Logger {
	out := w
	if !opts.JSON {
		out = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}
	}
	logger := zerolog.New(out).Level(opts.Level).With().Timestamp().Str("app", app).Logger()
	log.Logger = logger
	return logger
}
