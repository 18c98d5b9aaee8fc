// Package log provides the process-wide zerolog logger.
package log

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func init() {
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &log.Logger
}

// Logger returns the global logger.
func Logger() *zerolog.Logger {
	return &log.Logger
}

// SetOutput replaces the writer of the global logger. A console writer is
// used when pretty is set.
func SetOutput(w io.Writer, pretty bool) {
	if pretty {
		w = zerolog.ConsoleWriter{Out: w}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
}

// SetLevel parses and applies the minimum global log level.
func SetLevel(level string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}

// Debug starts a new message with debug level.
func Debug() *zerolog.Event {
	return log.Logger.Debug()
}

// Info starts a new message with info level.
func Info() *zerolog.Event {
	return log.Logger.Info()
}

// Warn starts a new message with warn level.
func Warn() *zerolog.Event {
	return log.Logger.Warn()
}

// Error starts a new message with error level.
func Error() *zerolog.Event {
	return log.Logger.Error()
}
