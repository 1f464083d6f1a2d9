// Package logging provides structured, leveled logging with trace support.
package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Logger is the structured logging interface used across the server.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})

	// Context-aware variants pick up the trace ID from the context.
	DebugContext(ctx context.Context, msg string, fields ...interface{})
	InfoContext(ctx context.Context, msg string, fields ...interface{})
	WarnContext(ctx context.Context, msg string, fields ...interface{})
	ErrorContext(ctx context.Context, msg string, fields ...interface{})

	WithComponent(component string) Logger
}

// LogLevel represents logging levels.
type LogLevel int

// Levels in increasing severity.
const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// ParseLogLevel converts a level name to a LogLevel, defaulting to INFO.
func ParseLogLevel(level string) LogLevel {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

type contextKey string

// TraceIDKey is the context key carrying the request trace ID.
const TraceIDKey contextKey = "trace_id"

// WithTraceID attaches a trace ID to the context, generating one when blank.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	if traceID == "" {
		traceID = uuid.New().String()
	}
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID extracts the trace ID from a context, if any.
func GetTraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

type logEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	TraceID   string                 `json:"trace_id,omitempty"`
	Component string                 `json:"component,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// StructuredLogger writes JSON or text log lines to a writer.
type StructuredLogger struct {
	level     LogLevel
	component string
	useJSON   bool
	out       io.Writer
	mu        *sync.Mutex
}

// NewLogger creates a logger writing to stderr.
func NewLogger(level LogLevel, format string) *StructuredLogger {
	return &StructuredLogger{
		level:   level,
		useJSON: format != "text",
		out:     os.Stderr,
		mu:      &sync.Mutex{},
	}
}

// NewTestLogger creates a logger writing to the given writer, for tests.
func NewTestLogger(out io.Writer) *StructuredLogger {
	return &StructuredLogger{level: DEBUG, useJSON: true, out: out, mu: &sync.Mutex{}}
}

// WithComponent returns a logger tagged with a component name.
func (l *StructuredLogger) WithComponent(component string) Logger {
	return &StructuredLogger{
		level:     l.level,
		component: component,
		useJSON:   l.useJSON,
		out:       l.out,
		mu:        l.mu,
	}
}

// Debug logs a debug message.
func (l *StructuredLogger) Debug(msg string, fields ...interface{}) { l.log(DEBUG, "", msg, fields) }

// Info logs an info message.
func (l *StructuredLogger) Info(msg string, fields ...interface{}) { l.log(INFO, "", msg, fields) }

// Warn logs a warning message.
func (l *StructuredLogger) Warn(msg string, fields ...interface{}) { l.log(WARN, "", msg, fields) }

// Error logs an error message.
func (l *StructuredLogger) Error(msg string, fields ...interface{}) { l.log(ERROR, "", msg, fields) }

// DebugContext logs a debug message with the context's trace ID.
func (l *StructuredLogger) DebugContext(ctx context.Context, msg string, fields ...interface{}) {
	l.log(DEBUG, GetTraceID(ctx), msg, fields)
}

// InfoContext logs an info message with the context's trace ID.
func (l *StructuredLogger) InfoContext(ctx context.Context, msg string, fields ...interface{}) {
	l.log(INFO, GetTraceID(ctx), msg, fields)
}

// WarnContext logs a warning message with the context's trace ID.
func (l *StructuredLogger) WarnContext(ctx context.Context, msg string, fields ...interface{}) {
	l.log(WARN, GetTraceID(ctx), msg, fields)
}

// ErrorContext logs an error message with the context's trace ID.
func (l *StructuredLogger) ErrorContext(ctx context.Context, msg string, fields ...interface{}) {
	l.log(ERROR, GetTraceID(ctx), msg, fields)
}

func (l *StructuredLogger) log(level LogLevel, traceID, msg string, fields []interface{}) {
	if level < l.level {
		return
	}

	fieldMap := make(map[string]interface{}, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		fieldMap[key] = fields[i+1]
	}

	entry := logEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     levelName(level),
		Message:   msg,
		TraceID:   traceID,
		Component: l.component,
		Fields:    fieldMap,
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.useJSON {
		data, err := json.Marshal(entry)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to marshal log entry: %v\n", err)
			return
		}
		fmt.Fprintln(l.out, string(data))
		return
	}

	parts := []string{entry.Timestamp, "[" + entry.Level + "]"}
	if entry.Component != "" {
		parts = append(parts, "component:"+entry.Component)
	}
	if entry.TraceID != "" && len(entry.TraceID) >= 8 {
		parts = append(parts, "trace:"+entry.TraceID[:8])
	}
	parts = append(parts, entry.Message)
	for k, v := range fieldMap {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	fmt.Fprintln(l.out, strings.Join(parts, " "))
}

func levelName(level LogLevel) string {
	switch level {
	case DEBUG:
		return "DEBUG"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "INFO"
	}
}

var (
	defaultLogger   Logger = NewLogger(INFO, "json")
	defaultLoggerMu sync.RWMutex
)

// SetDefaultLogger replaces the package-level logger.
func SetDefaultLogger(logger Logger) {
	defaultLoggerMu.Lock()
	defer defaultLoggerMu.Unlock()
	defaultLogger = logger
}

// Default returns the package-level logger.
func Default() Logger {
	defaultLoggerMu.RLock()
	defer defaultLoggerMu.RUnlock()
	return defaultLogger
}

// Debug logs a debug message on the default logger.
func Debug(msg string, fields ...interface{}) { Default().Debug(msg, fields...) }

// Info logs an info message on the default logger.
func Info(msg string, fields ...interface{}) { Default().Info(msg, fields...) }

// Warn logs a warning message on the default logger.
func Warn(msg string, fields ...interface{}) { Default().Warn(msg, fields...) }

// Error logs an error message on the default logger.
func Error(msg string, fields ...interface{}) { Default().Error(msg, fields...) }

// WithComponent returns a component-tagged logger from the default logger.
func WithComponent(component string) Logger { return Default().WithComponent(component) }
