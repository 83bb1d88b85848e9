package common

import (
	"fmt"

	"github.com/turtacn/CureAnalytics/internal/infrastructure/monitoring/logging"
)

// ---------------------------------------------------------------------------
// Logger interface
// ---------------------------------------------------------------------------

// Logger is the key/value logging contract used by the intelligence packages.
// Keys and values alternate, as in zap's sugared logger.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type noopLogger struct{}

func (n *noopLogger) Info(string, ...interface{})  {}
func (n *noopLogger) Warn(string, ...interface{})  {}
func (n *noopLogger) Debug(string, ...interface{}) {}
func (n *noopLogger) Error(string, ...interface{}) {}

// NewNoopLogger returns a Logger that discards all logs.
func NewNoopLogger() Logger {
	return &noopLogger{}
}

// ---------------------------------------------------------------------------
// Adapter to the platform logger
// ---------------------------------------------------------------------------

type loggerAdapter struct {
	l logging.Logger
}

// NewLoggerAdapter exposes a logging.Logger through the key/value interface.
// A nil logger yields a no-op Logger.
func NewLoggerAdapter(l logging.Logger) Logger {
	if l == nil {
		return NewNoopLogger()
	}
	return &loggerAdapter{l: l}
}

func (a *loggerAdapter) Info(msg string, kv ...interface{})  { a.l.Info(msg, toFields(kv)...) }
func (a *loggerAdapter) Warn(msg string, kv ...interface{})  { a.l.Warn(msg, toFields(kv)...) }
func (a *loggerAdapter) Debug(msg string, kv ...interface{}) { a.l.Debug(msg, toFields(kv)...) }
func (a *loggerAdapter) Error(msg string, kv ...interface{}) { a.l.Error(msg, toFields(kv)...) }

// toFields pairs up alternating keys and values.  A non-string key is
// stringified; a trailing key without a value is logged under "!BADKEY".
func toFields(kv []interface{}) []logging.Field {
	fields := make([]logging.Field, 0, (len(kv)+1)/2)
	for i := 0; i < len(kv); i += 2 {
		if i+1 >= len(kv) {
			fields = append(fields, logging.Any("!BADKEY", kv[i]))
			break
		}
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		if err, isErr := kv[i+1].(error); isErr {
			fields = append(fields, logging.Field{Key: key, Value: err})
			continue
		}
		fields = append(fields, logging.Any(key, kv[i+1]))
	}
	return fields
}
