package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger provides structured logging with redaction support
type Logger struct {
	zl    zerolog.Logger
	debug bool
}

// New creates a new logger instance writing human-readable output to stderr
func New(debug, noColor bool) *Logger {
	out := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		NoColor:    noColor,
		TimeFormat: time.RFC3339,
	}
	return newLogger(out, debug)
}

// NewWithWriter creates a logger emitting JSON lines to w.
// Used by workers writing to a shared log folder and by tests capturing output.
func NewWithWriter(w io.Writer, debug bool) *Logger {
	return newLogger(w, debug)
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

func newLogger(w io.Writer, debug bool) *Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	return &Logger{
		zl:    zerolog.New(w).Level(level).With().Timestamp().Logger(),
		debug: debug,
	}
}

// With returns a child logger carrying an extra field on every line
func (l *Logger) With(key, value string) *Logger {
	return &Logger{
		zl:    l.zl.With().Str(key, value).Logger(),
		debug: l.debug,
	}
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	l.zl.Info().Msg(fmt.Sprintf(format, args...))
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.zl.Warn().Msg(fmt.Sprintf(format, args...))
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.zl.Error().Msg(fmt.Sprintf(format, args...))
}

// Debug logs a debug message if debug mode is enabled
func (l *Logger) Debug(format string, args ...interface{}) {
	if !l.debug {
		return
	}
	l.zl.Debug().Msg(fmt.Sprintf(format, args...))
}

// IsDebug reports whether debug output is enabled
func (l *Logger) IsDebug() bool {
	return l.debug
}

// Secret represents a value that should be redacted in logs
type Secret string

// String implements the Stringer interface, always returning a redacted value
func (s Secret) String() string {
	return "[REDACTED]"
}

// GoString implements the GoStringer interface for %#v formatting
func (s Secret) GoString() string {
	return "[REDACTED]"
}

// Redact replaces sensitive values in a string with [REDACTED]
func Redact(s string, secrets []string) string {
	result := s
	for _, secret := range secrets {
		if secret != "" && len(secret) > 3 { // Only redact non-trivial secrets
			result = strings.ReplaceAll(result, secret, "[REDACTED]")
		}
	}
	return result
}
