// Package logger configures the global zerolog logger used across the service.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup sets the global level and output. Pretty console output is used
// unless the service runs in production, where JSON lines are written.
func Setup(level string, production bool) {
	SetupWriter(os.Stderr, level, production)
}

func SetupWriter(out io.Writer, level string, production bool) {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	if production {
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	}

	if err != nil {
		log.Warn().Str("level", level).Msg("unknown log level, defaulting to info")
	}
}
