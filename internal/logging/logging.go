// Package logging builds the zerolog logger every component receives.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options choose where logs go and how much is logged
type Options struct {
	// Path of the log file; logs go to it when set
	Path string
	// Stdout also writes to stdout, console formatted
	Stdout bool
	// Level is TRACE, DEBUG, INFO, WARN or ERROR; anything else is INFO
	Level string
}

// ParseLevel maps a level name to zerolog, defaulting to info
func ParseLevel(level string) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Configure returns a logger for opts along with a close function for
// the log file. With neither a path nor stdout the logger discards.
func Configure(opts Options) (zerolog.Logger, func() error, error) {
	var writers []io.Writer
	closer := func() error { return nil }

	if opts.Path != "" {
		logfile, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return zerolog.Nop(), closer, fmt.Errorf("opening log file: %w", err)
		}
		writers = append(writers, logfile)
		closer = logfile.Close
	}
	if opts.Stdout {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.TimeOnly})
	}

	if len(writers) == 0 {
		return zerolog.Nop(), closer, nil
	}

	var w io.Writer = writers[0]
	if len(writers) > 1 {
		w = zerolog.MultiLevelWriter(writers...)
	}
	logger := zerolog.New(w).
		Level(ParseLevel(opts.Level)).
		With().
		Timestamp().
		Str("app", "logdex").
		Logger()
	return logger, closer, nil
}

// New writes JSON lines to w at level, used by tests and embedders
func New(w io.Writer, level string) zerolog.Logger {
	return zerolog.New(w).Level(ParseLevel(level)).With().Timestamp().Logger()
}
