package log

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync/atomic"
	"time"
)

// BaseLogger implements the Logger interface.
type BaseLogger struct {
	// shared with derived loggers, SetLevel applies to all of them
	level     *atomic.Int32
	fields    []Field
	formatter Formatter
	outputs   []Output
	caller    bool
}

func (l *BaseLogger) enabled(level Level) bool {
	return level >= Level(l.level.Load())
}

// Debug logs a message at the debug level with fields.
func (l *BaseLogger) Debug(msg string, fields ...Field) {
	if l.enabled(DebugLevel) {
		l.write(DebugLevel, msg, fields)
	}
}

// Info logs a message at the info level with fields.
func (l *BaseLogger) Info(msg string, fields ...Field) {
	if l.enabled(InfoLevel) {
		l.write(InfoLevel, msg, fields)
	}
}

// Warn logs a message at the warn level with fields.
func (l *BaseLogger) Warn(msg string, fields ...Field) {
	if l.enabled(WarnLevel) {
		l.write(WarnLevel, msg, fields)
	}
}

// Error logs a message at the error level with fields.
func (l *BaseLogger) Error(msg string, fields ...Field) {
	if l.enabled(ErrorLevel) {
		l.write(ErrorLevel, msg, fields)
	}
}

// Debugf logs a formatted message at the debug level.
func (l *BaseLogger) Debugf(format string, args ...interface{}) {
	if l.enabled(DebugLevel) {
		l.write(DebugLevel, fmt.Sprintf(format, args...), nil)
	}
}

// Infof logs a formatted message at the info level.
func (l *BaseLogger) Infof(format string, args ...interface{}) {
	if l.enabled(InfoLevel) {
		l.write(InfoLevel, fmt.Sprintf(format, args...), nil)
	}
}

// Warnf logs a formatted message at the warn level.
func (l *BaseLogger) Warnf(format string, args ...interface{}) {
	if l.enabled(WarnLevel) {
		l.write(WarnLevel, fmt.Sprintf(format, args...), nil)
	}
}

// Errorf logs a formatted message at the error level.
func (l *BaseLogger) Errorf(format string, args ...interface{}) {
	if l.enabled(ErrorLevel) {
		l.write(ErrorLevel, fmt.Sprintf(format, args...), nil)
	}
}

// With returns a new logger with the fields added to it.
func (l *BaseLogger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	merged := make([]Field, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	merged = append(merged, fields...)
	return &BaseLogger{
		level:     l.level,
		fields:    merged,
		formatter: l.formatter,
		outputs:   l.outputs,
		caller:    l.caller,
	}
}

// WithContext returns a new logger with fields carried by the context.
func (l *BaseLogger) WithContext(ctx context.Context) Logger {
	return l.With(fieldsFromContext(ctx)...)
}

// WithComponent returns a new logger with the component field added.
func (l *BaseLogger) WithComponent(component string) Logger {
	return l.With(Component(component))
}

// SetLevel sets the minimum log level.
func (l *BaseLogger) SetLevel(level Level) {
	l.level.Store(int32(level))
}

// GetLevel returns the current minimum log level.
func (l *BaseLogger) GetLevel() Level {
	return Level(l.level.Load())
}

// Close closes every output of the logger.
func (l *BaseLogger) Close() error {
	var first error
	for _, out := range l.outputs {
		if err := out.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (l *BaseLogger) write(level Level, msg string, fields []Field) {
	entryFields := make(Fields, len(l.fields)+len(fields))
	for _, f := range l.fields {
		entryFields[f.Key] = f.Value
	}
	for _, f := range fields {
		entryFields[f.Key] = f.Value
	}

	entry := &Entry{
		Level:     level,
		Message:   msg,
		Fields:    entryFields,
		Timestamp: time.Now(),
	}
	if l.caller {
		if _, file, line, ok := runtime.Caller(2); ok {
			parts := strings.Split(file, "/")
			if len(parts) > 2 {
				file = strings.Join(parts[len(parts)-2:], "/")
			}
			entry.Caller = fmt.Sprintf("%s:%d", file, line)
		}
	}

	formatted, err := l.formatter.Format(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting log entry: %v\n", err)
		return
	}

	for _, output := range l.outputs {
		if err := output.Write(entry, formatted); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing to log output: %v\n", err)
		}
	}
}
