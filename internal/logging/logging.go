// Package logging builds the zerolog logger used across the CLI.
package logging

import (
	"io"

	"github.com/rs/zerolog"
)

// New returns a console logger writing to w.
// Debug enables debug-level output; otherwise only warnings and errors are shown.
func New(w io.Writer, debug bool) zerolog.Logger {
	level := zerolog.WarnLevel
	if debug {
		level = zerolog.DebugLevel
	}
	console := zerolog.ConsoleWriter{
		Out:     w,
		NoColor: true,
		// Remove the timestamp from the output
		FormatTimestamp: func(i interface{}) string {
			return ""
		},
	}
	return zerolog.New(console).Level(level)
}
