// Package logging provides the structured logger shared across this
// module's components: one zerolog.Logger per component, console-formatted
// for interactive use, each tagged with a "component" field. Grounded on
// BbangMxn-worker's bootstrap logger construction
// (zerolog.New(zerolog.ConsoleWriter{...}).With().Timestamp().Str(...)).
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Output is the writer every component logger writes to. Tests may swap
// this before calling New to capture output.
var Output io.Writer = os.Stderr

// New returns a logger tagged with component, writing to Output in
// zerolog's human-readable console format.
func New(component string) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: Output, NoColor: true}).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}

// SetLevel adjusts the global zerolog level (e.g. for a verbose CLI flag).
// Affects every logger returned by New going forward.
func SetLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}
