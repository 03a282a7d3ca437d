// Package logging provides the leveled logger used across gitplane. It is
// a thin wrapper around zerolog so that packages depend on a small local
// surface instead of the logging library directly.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Log levels, from most to least verbose.
const (
	LogLevelDebug = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

// Output formats.
const (
	FormatJSON   = "json"
	FormatPretty = "pretty"
)

type Config struct {
	Level  int
	Format string
}

type Logger struct {
	logger zerolog.Logger
	level  int
}

// NewLogger returns a logger writing to stderr with the configured level
// and format.
func NewLogger(c Config) *Logger {
	return newLogger(c, os.Stderr)
}

func newLogger(c Config, w io.Writer) *Logger {
	if c.Format == FormatPretty {
		w = zerolog.ConsoleWriter{Out: w}
	}

	return &Logger{
		logger: zerolog.New(w).Level(zerologLevel(c.Level)).With().Timestamp().Logger(),
		level:  c.Level,
	}
}

func zerologLevel(level int) zerolog.Level {
	switch level {
	case LogLevelDebug:
		return zerolog.DebugLevel
	case LogLevelInfo:
		return zerolog.InfoLevel
	case LogLevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

// WithField returns a logger that attaches the given field to every line.
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{
		logger: l.logger.With().Interface(key, value).Logger(),
		level:  l.level,
	}
}

func (l *Logger) Level() int {
	return l.level
}

func (l *Logger) Debugf(format string, args ...any) {
	l.logger.Debug().Msgf(format, args...)
}

func (l *Logger) Infof(format string, args ...any) {
	l.logger.Info().Msgf(format, args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	l.logger.Warn().Msgf(format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	l.logger.Error().Msgf(format, args...)
}
