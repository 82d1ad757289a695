package infra

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger aliases zerolog.Logger so packages depend on infra rather than on
// the logging module directly.
type Logger = zerolog.Logger

// NewLogger builds the process logger. Development gets a console writer at
// debug level; everything else writes JSON at info. LOG_LEVEL overrides the
// level in any environment.
func NewLogger(appEnv string) zerolog.Logger {
	zerolog.DurationFieldUnit = time.Millisecond
	zerolog.DurationFieldInteger = true

	level := zerolog.InfoLevel
	if appEnv == "development" {
		level = zerolog.DebugLevel
	}
	if raw := strings.TrimSpace(os.Getenv("LOG_LEVEL")); raw != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(raw)); err == nil {
			level = parsed
		}
	}

	var out io.Writer = os.Stdout
	if appEnv == "development" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", "image-orchestrator").
		Logger()
}

// Component derives a logger tagged with the emitting component, e.g.
// "guard" or "billing".
func Component(l *Logger, name string) *Logger {
	child := LoggerOrDiscard(l).With().Str("component", name).Logger()
	return &child
}

// LoggerOrDiscard returns l, or a logger writing nowhere when l is nil.
func LoggerOrDiscard(l *Logger) *Logger {
	if l != nil {
		return l
	}
	discard := zerolog.New(io.Discard)
	return &discard
}
