// Package logging builds the process logger and holds the shared field names.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	FieldJobID     = "job_id"
	FieldURL       = "url"
	FieldFormat    = "format"
	FieldStage     = "stage"
	FieldComponent = "component"
	FieldRequestID = "req_id"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// New returns a logger writing to stdout. Unknown levels fall back to info.
func New(level, format string) zerolog.Logger {
	var out io.Writer = os.Stdout
	if strings.EqualFold(format, FormatConsole) {
		out = zerolog.ConsoleWriter{Out: colorable.NewColorableStdout(), TimeFormat: time.TimeOnly}
	}
	return newLogger(out, level)
}

func newLogger(out io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

// SetGlobal makes logger the package-level logger used by zerolog/log.
func SetGlobal(logger zerolog.Logger) {
	log.Logger = logger
}
