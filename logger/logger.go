package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/tarkah/mirror-caddy/config"
)

// Logger defines the logging interface
type Logger interface {
	// Error logs an error message
	Error(msg string, args ...interface{})
	// Warn logs a warning message
	Warn(msg string, args ...interface{})
	// Info logs an informational message
	Info(msg string, args ...interface{})
	// Debug logs a debug message
	Debug(msg string, args ...interface{})
	// Verbose logs a verbose/trace message
	Verbose(msg string, args ...interface{})

	// With returns a new logger with an additional context field
	With(key string, value interface{}) Logger
}

// ANSI color codes for level tags when color output is enabled.
const (
	colorReset   = "\x1b[0m"
	colorGreen   = "\x1b[0;32m"
	colorRed     = "\x1b[0;31m"
	colorYellow  = "\x1b[0;33m"
	colorMagenta = "\x1b[0;35m"
	colorCyan    = "\x1b[0;96m"
)

func levelTag(level config.LogLevel, color bool) string {
	tag := fmt.Sprintf("[%s]", level)
	if !color {
		return tag
	}
	switch level {
	case config.LogLevelError:
		return colorRed + tag + colorReset
	case config.LogLevelInfo:
		return colorGreen + tag + colorReset
	case config.LogLevelDebug:
		return colorMagenta + tag + colorReset
	case config.LogLevelVerbose:
		return colorCyan + tag + colorReset
	default:
		return colorYellow + tag + colorReset
	}
}

// DefaultLogger is the default logger implementation
type DefaultLogger struct {
	mu     *sync.Mutex
	cfg    *config.LoggerConfig
	writer io.Writer
	fields []field
}

type field struct {
	key   string
	value interface{}
}

// NewLogger creates a new logger writing to stderr, keeping stdout clean for
// any downstream tooling.
func NewLogger(cfg *config.LoggerConfig) Logger {
	return NewLoggerWithWriter(cfg, os.Stderr)
}

// NewLoggerWithWriter creates a logger with a custom writer (useful for testing)
func NewLoggerWithWriter(cfg *config.LoggerConfig, writer io.Writer) Logger {
	if cfg == nil {
		cfg = &config.LoggerConfig{}
	}
	cfg.ApplyDefaults()

	return &DefaultLogger{
		mu:     &sync.Mutex{},
		cfg:    cfg,
		writer: writer,
	}
}

var levelRank = map[config.LogLevel]int{
	config.LogLevelSilent:  0,
	config.LogLevelError:   1,
	config.LogLevelInfo:    2,
	config.LogLevelDebug:   3,
	config.LogLevelVerbose: 4,
}

// shouldLog checks if a message at the given level should be logged
func (l *DefaultLogger) shouldLog(level config.LogLevel) bool {
	if l.cfg.Level == config.LogLevelSilent {
		return false
	}
	return levelRank[level] <= levelRank[l.cfg.Level]
}

// log is the internal logging method
func (l *DefaultLogger) log(level config.LogLevel, msg string, args ...interface{}) {
	if !l.shouldLog(level) {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var output string

	if l.cfg.TimeFormat != "" {
		output += time.Now().Format(l.cfg.TimeFormat) + " "
	}

	output += levelTag(level, l.cfg.Color) + " "

	for _, f := range l.fields {
		output += fmt.Sprintf("%s=%v ", f.key, f.value)
	}

	if len(args) > 0 {
		output += fmt.Sprintf(msg, args...)
	} else {
		output += msg
	}

	fmt.Fprintln(l.writer, output)
}

// Error logs an error message
func (l *DefaultLogger) Error(msg string, args ...interface{}) {
	l.log(config.LogLevelError, msg, args...)
}

// Warn logs a warning message. Warnings share the info verbosity rank but
// keep a distinct tag.
func (l *DefaultLogger) Warn(msg string, args ...interface{}) {
	l.log(config.LogLevelInfo, "WARN: "+msg, args...)
}

// Info logs an informational message
func (l *DefaultLogger) Info(msg string, args ...interface{}) {
	l.log(config.LogLevelInfo, msg, args...)
}

// Debug logs a debug message
func (l *DefaultLogger) Debug(msg string, args ...interface{}) {
	l.log(config.LogLevelDebug, msg, args...)
}

// Verbose logs a verbose/trace message
func (l *DefaultLogger) Verbose(msg string, args ...interface{}) {
	l.log(config.LogLevelVerbose, msg, args...)
}

// With returns a new logger with an additional context field
func (l *DefaultLogger) With(key string, value interface{}) Logger {
	newFields := make([]field, 0, len(l.fields)+1)
	newFields = append(newFields, l.fields...)
	newFields = append(newFields, field{key: key, value: value})

	return &DefaultLogger{
		mu:     l.mu,
		cfg:    l.cfg,
		writer: l.writer,
		fields: newFields,
	}
}

// NoOpLogger is a logger that does nothing (useful for testing or when logging is disabled)
type NoOpLogger struct{}

// NewNoOpLogger creates a no-op logger
func NewNoOpLogger() Logger {
	return &NoOpLogger{}
}

func (n *NoOpLogger) Error(msg string, args ...interface{})     {}
func (n *NoOpLogger) Warn(msg string, args ...interface{})      {}
func (n *NoOpLogger) Info(msg string, args ...interface{})      {}
func (n *NoOpLogger) Debug(msg string, args ...interface{})     {}
func (n *NoOpLogger) Verbose(msg string, args ...interface{})   {}
func (n *NoOpLogger) With(key string, value interface{}) Logger { return n }
