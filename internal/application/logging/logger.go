// Package logging carries the per-operation trace logger through
// context. Command handlers never hold a logger; they pull it from the
// context so the same handler logs to the event store in production and
// to a capture buffer in tests.
package logging

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
)

// Log levels used across the controller
const (
	LevelDebug   = "DEBUG"
	LevelInfo    = "INFO"
	LevelWarning = "WARNING"
	LevelError   = "ERROR"
)

// TraceLogger records operational events with structured metadata
type TraceLogger interface {
	Log(level, message string, metadata map[string]interface{})
}

// Context keys for passing logger through context
type contextKey int

const (
	loggerKey contextKey = iota
)

// WithLogger adds a logger to the context
func WithLogger(ctx context.Context, logger TraceLogger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// LoggerFromContext extracts the logger from context, or returns a no-op logger if not found
func LoggerFromContext(ctx context.Context) TraceLogger {
	if logger, ok := ctx.Value(loggerKey).(TraceLogger); ok {
		return logger
	}
	return &noOpLogger{}
}

// noOpLogger is a logger that does nothing (fallback when no logger in context)
type noOpLogger struct{}

func (l *noOpLogger) Log(level, message string, metadata map[string]interface{}) {
	// Do nothing
}

// StdLogger writes trace events to the process log with a component
// prefix. Metadata renders as sorted key=value pairs.
type StdLogger struct {
	Component string
}

func NewStdLogger(component string) *StdLogger {
	return &StdLogger{Component: component}
}

func (l *StdLogger) Log(level, message string, metadata map[string]interface{}) {
	if len(metadata) == 0 {
		log.Printf("[%s] %s: %s", level, l.Component, message)
		return
	}
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, metadata[k]))
	}
	log.Printf("[%s] %s: %s (%s)", level, l.Component, message, strings.Join(parts, " "))
}

// MultiLogger fans one trace event out to several sinks, typically the
// process log plus the persistent event store.
type MultiLogger struct {
	Sinks []TraceLogger
}

func NewMultiLogger(sinks ...TraceLogger) *MultiLogger {
	return &MultiLogger{Sinks: sinks}
}

func (l *MultiLogger) Log(level, message string, metadata map[string]interface{}) {
	for _, s := range l.Sinks {
		s.Log(level, message, metadata)
	}
}

// severity orders levels for threshold filtering. Unknown levels rank
// as info so a typo never silences errors.
func severity(level string) int {
	switch strings.ToUpper(level) {
	case LevelDebug:
		return 0
	case LevelWarning:
		return 2
	case LevelError:
		return 3
	default:
		return 1
	}
}

// LevelFilter drops trace events below a configured threshold before
// they reach the wrapped sink.
type LevelFilter struct {
	min  int
	next TraceLogger
}

// NewLevelFilter wraps next with a minimum level. min accepts the
// config spellings (debug, info, warn, error).
func NewLevelFilter(min string, next TraceLogger) *LevelFilter {
	if strings.EqualFold(min, "warn") {
		min = LevelWarning
	}
	return &LevelFilter{min: severity(min), next: next}
}

func (l *LevelFilter) Log(level, message string, metadata map[string]interface{}) {
	if severity(level) < l.min {
		return
	}
	l.next.Log(level, message, metadata)
}
