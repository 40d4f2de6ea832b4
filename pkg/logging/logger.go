// Package logging provides the structured logger used across the
// subscription engine.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New creates a zerolog logger tagged with the service name and version.
func New(service, version string) zerolog.Logger {
	return zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Logger()
}

// NewWithLevel creates a logger honoring a configured level and output format.
// format "console" or "pretty" produces human-readable output; anything else
// is JSON.
func NewWithLevel(service, version, level, format string) zerolog.Logger {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	var base zerolog.Logger
	if format == "console" || format == "pretty" {
		base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		base = zerolog.New(os.Stdout)
	}

	return base.With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Logger()
}

// WithComponent returns a child logger tagged with a component name, the
// pattern every package in this module uses to identify its log lines.
func WithComponent(logger zerolog.Logger, component string) zerolog.Logger {
	return logger.With().Str("component", component).Logger()
}
