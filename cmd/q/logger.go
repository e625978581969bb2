package main

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// newLogger writes console logs to w. stdout is reserved for answers, so
// callers pass stderr. LOG_LEVEL replaces defaultLevel; --verbose raises the
// level to info and --debug to debug.
func newLogger(w io.Writer, defaultLevel zerolog.Level, debug, verbose bool) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
	}

	level := parseLevel(os.Getenv("LOG_LEVEL"), defaultLevel)
	if verbose && level > zerolog.InfoLevel {
		level = zerolog.InfoLevel
	}
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	return zerolog.New(output).
		With().
		Timestamp().
		Logger()
}

func parseLevel(s string, fallback zerolog.Level) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return fallback
	}
}
