// Package logging wraps zerolog to provide structured, component-scoped
// logging for every long-lived piece of the control plane. Call sites read
// the way the teacher's own log monitor reads (Infof/Warnf/Errorf) rather
// than as raw zerolog event chains.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Level controls the minimum severity written by a Logger.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config controls how the root logger is built.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Logger is a component-scoped logger. Zero value is not usable; build one
// with Init or With.
type Logger struct {
	z zerolog.Logger
}

var root zerolog.Logger

// Init configures the process-wide root logger. Call once at startup.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		root = zerolog.New(output).With().Timestamp().Logger()
	} else {
		root = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

// With returns a child logger scoped to a named component, e.g.
// logging.With("jobclient"). Safe to call before Init; the zero-value root
// logger falls back to zerolog's default (stderr, info level).
func With(component string) *Logger {
	return &Logger{z: root.With().Str("component", component).Logger()}
}

// WithFields returns a child logger carrying additional structured fields,
// e.g. service/job/group identifiers.
func (l *Logger) WithFields(fields map[string]string) *Logger {
	ctx := l.z.With()
	for k, v := range fields {
		ctx = ctx.Str(k, v)
	}
	return &Logger{z: ctx.Logger()}
}

func (l *Logger) Debugf(format string, args ...any) { l.z.Debug().Msgf(format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.z.Info().Msgf(format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.z.Warn().Msgf(format, args...) }

func (l *Logger) Errorf(format string, args ...any) { l.z.Error().Msgf(format, args...) }

// ErrorErr logs an error alongside a message, preserving the cause for
// structured consumers while keeping call sites terse.
func (l *Logger) ErrorErr(err error, format string, args ...any) {
	l.z.Error().Err(err).Msgf(format, args...)
}
