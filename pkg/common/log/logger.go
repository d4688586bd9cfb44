// Package log provides the logging interface used across dsstore
// components. A Store owns its logger; there is no process-wide
// verbosity state.
package log

import (
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"
)

// Level represents the logging level
type Level int

const (
	// LevelDebug level for detailed troubleshooting information
	LevelDebug Level = iota
	// LevelInfo level for general operational information
	LevelInfo
	// LevelWarn level for potentially harmful situations
	LevelWarn
	// LevelError level for error events
	LevelError
)

// String returns the string representation of the log level
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return fmt.Sprintf("LEVEL(%d)", l)
	}
}

// Logger is the interface dsstore components log through.
type Logger interface {
	// Debug logs a debug-level message
	Debug(msg string, args ...interface{})
	// Info logs an info-level message
	Info(msg string, args ...interface{})
	// Warn logs a warning-level message
	Warn(msg string, args ...interface{})
	// Error logs an error-level message
	Error(msg string, args ...interface{})
	// WithField returns a new logger with the given field added to the context
	WithField(key string, value interface{}) Logger
}

// StandardLogger implements Logger with a timestamped key=value format.
type StandardLogger struct {
	mu     sync.Mutex
	level  Level
	out    io.Writer
	fields map[string]interface{}
}

// Option configures a StandardLogger.
type Option func(*StandardLogger)

// WithLevel sets the minimum level emitted.
func WithLevel(level Level) Option {
	return func(l *StandardLogger) { l.level = level }
}

// WithOutput sets the destination writer.
func WithOutput(w io.Writer) Option {
	return func(l *StandardLogger) { l.out = w }
}

// NewStandardLogger creates a StandardLogger writing to stderr at
// LevelInfo unless configured otherwise.
func NewStandardLogger(options ...Option) *StandardLogger {
	logger := &StandardLogger{
		level:  LevelInfo,
		out:    os.Stderr,
		fields: make(map[string]interface{}),
	}
	for _, option := range options {
		option(logger)
	}
	return logger
}

func (l *StandardLogger) log(level Level, msg string, args ...interface{}) {
	if level < l.level {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}

	// Fields are emitted sorted so output is stable.
	keys := make([]string, 0, len(l.fields))
	for k := range l.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fieldsStr := ""
	for _, k := range keys {
		fieldsStr += fmt.Sprintf(" %s=%v", k, l.fields[k])
	}

	fmt.Fprintf(l.out, "[%s] [%s] %s%s\n",
		time.Now().Format("2006-01-02 15:04:05.000"), level, msg, fieldsStr)
}

// Debug logs a debug-level message
func (l *StandardLogger) Debug(msg string, args ...interface{}) {
	l.log(LevelDebug, msg, args...)
}

// Info logs an info-level message
func (l *StandardLogger) Info(msg string, args ...interface{}) {
	l.log(LevelInfo, msg, args...)
}

// Warn logs a warning-level message
func (l *StandardLogger) Warn(msg string, args ...interface{}) {
	l.log(LevelWarn, msg, args...)
}

// Error logs an error-level message
func (l *StandardLogger) Error(msg string, args ...interface{}) {
	l.log(LevelError, msg, args...)
}

// WithField returns a new logger with the given field added to the context
func (l *StandardLogger) WithField(key string, value interface{}) Logger {
	l.mu.Lock()
	defer l.mu.Unlock()

	fields := make(map[string]interface{}, len(l.fields)+1)
	for k, v := range l.fields {
		fields[k] = v
	}
	fields[key] = value

	return &StandardLogger{
		level:  l.level,
		out:    l.out,
		fields: fields,
	}
}

// nopLogger discards everything.
type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{})           {}
func (nopLogger) Info(string, ...interface{})            {}
func (nopLogger) Warn(string, ...interface{})            {}
func (nopLogger) Error(string, ...interface{})           {}
func (n nopLogger) WithField(string, interface{}) Logger { return n }

// NewNop returns a logger that discards all output. It is the default
// for library consumers that do not configure logging.
func NewNop() Logger { return nopLogger{} }
