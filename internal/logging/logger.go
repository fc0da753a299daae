package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Field keys shared by every component so log lines can be joined on them
const (
	DatasetKey   = "dataset"
	ModelKey     = "model"
	RequestIDKey = "request_id"
)

// Logger wraps zerolog.Logger with key-value convenience methods
type Logger struct {
	zl zerolog.Logger
	// fields are key-value pairs attached by With, in insertion order
	fields []interface{}
}

var global = NewDevelopment()

// NewDevelopment creates a development logger with pretty console output
func NewDevelopment() *Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	return &Logger{zl: zerolog.New(output).Level(zerolog.DebugLevel).With().Timestamp().Logger()}
}

// NewWithWriter creates a JSON logger writing to w
func NewWithWriter(w io.Writer, level zerolog.Level) *Logger {
	return &Logger{zl: zerolog.New(w).Level(level).With().Timestamp().Logger()}
}

// SetGlobal sets the global logger instance
func SetGlobal(logger *Logger) {
	global = logger
}

// Global returns the global logger instance
func Global() *Logger {
	return global
}

func (l *Logger) Debug(msg string, fields ...interface{}) { l.write(l.zl.Debug(), msg, fields) }
func (l *Logger) Info(msg string, fields ...interface{})  { l.write(l.zl.Info(), msg, fields) }
func (l *Logger) Warn(msg string, fields ...interface{})  { l.write(l.zl.Warn(), msg, fields) }
func (l *Logger) Error(msg string, fields ...interface{}) { l.write(l.zl.Error(), msg, fields) }

// Fatal logs and exits the process
func (l *Logger) Fatal(msg string, fields ...interface{}) { l.write(l.zl.Fatal(), msg, fields) }

// write emits stored fields followed by call fields. A call field replaces a
// stored field with the same key. Errors are logged by their message.
func (l *Logger) write(e *zerolog.Event, msg string, fields []interface{}) {
	if e == nil {
		return
	}
	call := pairs(fields)
	for i := 0; i+1 < len(l.fields); i += 2 {
		key := l.fields[i].(string)
		if _, overridden := call[key]; !overridden {
			addField(e, key, l.fields[i+1])
		}
	}
	for i := 0; i+1 < len(fields); i += 2 {
		addField(e, fieldKey(fields[i]), fields[i+1])
	}
	e.Msg(msg)
}

func addField(e *zerolog.Event, key string, value interface{}) {
	if err, ok := value.(error); ok {
		e.Str(key, err.Error())
		return
	}
	e.Interface(key, value)
}

func fieldKey(k interface{}) string {
	if s, ok := k.(string); ok {
		return s
	}
	return fmt.Sprint(k)
}

func pairs(fields []interface{}) map[string]struct{} {
	if len(fields) < 2 {
		return nil
	}
	keys := make(map[string]struct{}, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		keys[fieldKey(fields[i])] = struct{}{}
	}
	return keys
}

// With creates a child logger with additional fields. Keys already present
// take the new value.
func (l *Logger) With(fields ...interface{}) *Logger {
	merged := make([]interface{}, 0, len(l.fields)+len(fields))
	added := pairs(fields)
	for i := 0; i+1 < len(l.fields); i += 2 {
		if _, replaced := added[l.fields[i].(string)]; !replaced {
			merged = append(merged, l.fields[i], l.fields[i+1])
		}
	}
	for i := 0; i+1 < len(fields); i += 2 {
		merged = append(merged, fieldKey(fields[i]), fields[i+1])
	}
	return &Logger{zl: l.zl, fields: merged}
}

// ForDataset returns a child logger tagged with a dataset name
func (l *Logger) ForDataset(name string) *Logger {
	return l.With(DatasetKey, name)
}

// ForFit returns a child logger tagged with a dataset and regression model
func (l *Logger) ForFit(dataset, model string) *Logger {
	return l.With(DatasetKey, dataset, ModelKey, model)
}

// Info logs an info message using the global logger
func Info(msg string, fields ...interface{}) {
	global.Info(msg, fields...)
}

// Warn logs a warning message using the global logger
func Warn(msg string, fields ...interface{}) {
	global.Warn(msg, fields...)
}
