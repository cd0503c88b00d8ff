package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var output io.Writer = os.Stderr

// Init configures the global zerolog logger. format is "json" or
// "console"; unknown levels fall back to info.
func Init(level, format, service string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339

	w := output
	if format == "console" {
		w = zerolog.ConsoleWriter{Out: output, TimeFormat: time.Kitchen}
	}

	logger := zerolog.New(w).With().Timestamp().Str("service", service).Logger()
	log.Logger = logger
	return logger
}
