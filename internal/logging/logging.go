// Package logging configures the process-wide zerolog writer once at
// start-up. Subsystems receive a *zerolog.Logger by injection (via New) —
// there is no package-level logger singleton, per the "explicit
// construction at process start-up" design note.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds a console-formatted zerolog.Logger at the given level. Level
// strings follow zerolog's own names (debug, info, warn, error); unknown or
// empty values default to info.
func New(level string, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stdout
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	writer := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	return zerolog.New(writer).Level(lvl).With().Timestamp().Logger()
}
