package telemetry

import (
	"context"

	"github.com/rs/zerolog"
)

// ZerologLogger wraps a zerolog.Logger to satisfy Logger.
type ZerologLogger struct {
	logger zerolog.Logger
}

// NewZerologLogger constructs a Logger backed by the given zerolog.Logger.
func NewZerologLogger(logger zerolog.Logger) Logger {
	return ZerologLogger{logger: logger}
}

// Debug emits a debug-level log message with structured key-value pairs.
func (l ZerologLogger) Debug(_ context.Context, msg string, keyvals ...any) {
	l.event(l.logger.Debug(), msg, keyvals)
}

// Info emits an info-level log message with structured key-value pairs.
func (l ZerologLogger) Info(_ context.Context, msg string, keyvals ...any) {
	l.event(l.logger.Info(), msg, keyvals)
}

// Warn emits a warning-level log message with structured key-value pairs.
func (l ZerologLogger) Warn(_ context.Context, msg string, keyvals ...any) {
	l.event(l.logger.Warn(), msg, keyvals)
}

// Error emits an error-level log message with structured key-value pairs.
func (l ZerologLogger) Error(_ context.Context, msg string, keyvals ...any) {
	l.event(l.logger.Error(), msg, keyvals)
}

func (ZerologLogger) event(evt *zerolog.Event, msg string, keyvals []any) {
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		evt = evt.Interface(key, keyvals[i+1])
	}
	evt.Msg(msg)
}
