// Package logpkg builds the application logger.
package logpkg

import (
	"io"
	"os"
	"time"

	"github.com/go-petr/pet-ledger/pkg/configpkg"
	"github.com/rs/zerolog"
)

// New returns a JSON logger, or a human readable one in development.
func New(config configpkg.Config) zerolog.Logger {
	var (
		output   io.Writer = os.Stderr
		logLevel           = zerolog.InfoLevel // default to INFO
	)

	log := zerolog.New(output).
		Level(logLevel).
		With().
		Timestamp().
		Logger()

	if config.Environment == "development" {
		log = log.
			Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			Level(zerolog.TraceLevel).
			With().
			Caller().
			Logger()
	}

	return log
}
