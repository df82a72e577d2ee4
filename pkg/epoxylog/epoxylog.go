// Package epoxylog configures the zerolog.Logger instances used across the
// connection engine and its tooling.
package epoxylog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Options controls the logger New builds.
type Options struct {
	// App is attached to every log line as the "app" field.
	App string
	// Development selects a human-readable console writer. Production
	// builds want structured JSON on stdout instead.
	Development bool
	// Level is the minimum level that will be logged. The zero value is
	// zerolog.DebugLevel, so an unset Level logs Debug and above.
	Level zerolog.Level
	// Output overrides the destination writer; defaults to os.Stdout.
	Output io.Writer
}

// New returns a configured zerolog.Logger. Callers that want no logging at
// all should use zerolog.Nop() directly rather than calling New.
func New(opts Options) zerolog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	var w io.Writer = out
	if opts.Development {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	logger := zerolog.New(w).Level(opts.Level).With().Timestamp().Str("app", opts.App).Logger()
	return logger
}
