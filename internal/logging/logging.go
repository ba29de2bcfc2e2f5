// Package logging builds the zerolog logger shared by the CLI and the bot.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config controls the log level and output format.
type Config struct {
	Level  string    `koanf:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic disabled"`
	Format string    `koanf:"format" validate:"omitempty,oneof=json console"`
	Output io.Writer `koanf:"-"`
}

// New builds a logger. Empty fields fall back to info level, json output and
// stderr.
func New(cfg Config) zerolog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	zerolog.TimeFieldFormat = time.RFC3339

	output := cfg.Output
	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: "15:04:05"}
	}

	return zerolog.New(output).
		Level(ParseLevel(cfg.Level)).
		With().Timestamp().
		Logger()
}

// ParseLevel converts a level name to a zerolog.Level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	case "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
