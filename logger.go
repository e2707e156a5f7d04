package lingolive

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
)

// LogLevel is the minimum severity a Logger will emit.
type LogLevel int

const (
	// LogLevelDebug logs everything including per-frame details.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo logs informational messages and above.
	LogLevelInfo
	// LogLevelWarn logs warnings and above.
	LogLevelWarn
	// LogLevelError logs only errors.
	LogLevelError
	// LogLevelOff disables all logging.
	LogLevelOff
)

var levelNames = map[LogLevel]string{
	LogLevelDebug: "DEBUG",
	LogLevelInfo:  "INFO",
	LogLevelWarn:  "WARN",
	LogLevelError: "ERROR",
	LogLevelOff:   "OFF",
}

func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseLogLevel converts a level name to a LogLevel. Unrecognized names fall
// back to Info.
func ParseLogLevel(level string) LogLevel {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return LogLevelDebug
	case "INFO":
		return LogLevelInfo
	case "WARN", "WARNING":
		return LogLevelWarn
	case "ERROR":
		return LogLevelError
	case "OFF":
		return LogLevelOff
	}
	return LogLevelInfo
}

// Logger provides leveled event logging with structured fields. Events are
// short snake_case names; fields carry the variable detail.
type Logger struct {
	level  LogLevel
	prefix string
	logger *log.Logger
}

// NewLogger creates a logger writing to stderr at the given minimum level.
func NewLogger(level LogLevel) *Logger {
	return &Logger{
		level:  level,
		prefix: "[lingolive]",
		logger: log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds),
	}
}

// NewLoggerFromEnv creates a logger whose level comes from the
// LINGOLIVE_LOG_LEVEL environment variable.
func NewLoggerFromEnv() *Logger {
	return NewLogger(ParseLogLevel(os.Getenv("LINGOLIVE_LOG_LEVEL")))
}

// SetLevel updates the logger's minimum level.
func (l *Logger) SetLevel(level LogLevel) { l.level = level }

// SetPrefix updates the logger's prefix.
func (l *Logger) SetPrefix(prefix string) { l.prefix = prefix }

// Debug logs debug-level events.
func (l *Logger) Debug(event string, fields map[string]any) {
	l.log(LogLevelDebug, event, fields)
}

// Info logs info-level events.
func (l *Logger) Info(event string, fields map[string]any) {
	l.log(LogLevelInfo, event, fields)
}

// Warn logs warning-level events.
func (l *Logger) Warn(event string, fields map[string]any) {
	l.log(LogLevelWarn, event, fields)
}

// Error logs error-level events.
func (l *Logger) Error(event string, fields map[string]any) {
	l.log(LogLevelError, event, fields)
}

func (l *Logger) log(level LogLevel, event string, fields map[string]any) {
	if level < l.level {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] %s", l.prefix, level, event)

	// Sorted keys keep log lines diffable across runs.
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, fields[k])
	}

	l.logger.Print(b.String())
}

// LoggerFunc adapts the logger to the Config.Logger field.
func (l *Logger) LoggerFunc() func(string, map[string]any) {
	return func(event string, fields map[string]any) {
		l.Info(event, fields)
	}
}

// contextualLogger carries a fixed set of fields into every event, e.g. a
// session ID.
type contextualLogger struct {
	*Logger
	context map[string]any
}

// WithContext returns a logger that includes the given fields in every event.
func (l *Logger) WithContext(context map[string]any) *contextualLogger {
	return &contextualLogger{Logger: l, context: context}
}

// mergeFields overlays event fields on the contextual ones; event fields win
// on key collision.
func (cl *contextualLogger) mergeFields(fields map[string]any) map[string]any {
	merged := make(map[string]any, len(cl.context)+len(fields))
	for k, v := range cl.context {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return merged
}

func (cl *contextualLogger) Debug(event string, fields map[string]any) {
	cl.Logger.Debug(event, cl.mergeFields(fields))
}

func (cl *contextualLogger) Info(event string, fields map[string]any) {
	cl.Logger.Info(event, cl.mergeFields(fields))
}

func (cl *contextualLogger) Warn(event string, fields map[string]any) {
	cl.Logger.Warn(event, cl.mergeFields(fields))
}

func (cl *contextualLogger) Error(event string, fields map[string]any) {
	cl.Logger.Error(event, cl.mergeFields(fields))
}
