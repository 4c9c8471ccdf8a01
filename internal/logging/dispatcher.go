package logging

import "github.com/rs/zerolog"

// DispatcherLogger feeds dispatcher key/value logging into zerolog.
type DispatcherLogger struct {
	zl zerolog.Logger
}

// NewDispatcherLogger tags every record with component=dispatcher.
func NewDispatcherLogger(logger zerolog.Logger) *DispatcherLogger {
	return &DispatcherLogger{zl: logger.With().Str("component", "dispatcher").Logger()}
}

func (l *DispatcherLogger) Debug(msg string, keysAndValues ...any) {
	emit(l.zl.Debug(), msg, keysAndValues)
}

func (l *DispatcherLogger) Info(msg string, keysAndValues ...any) {
	emit(l.zl.Info(), msg, keysAndValues)
}

func (l *DispatcherLogger) Error(msg string, keysAndValues ...any) {
	emit(l.zl.Error(), msg, keysAndValues)
}

// emit appends the pairs to ev. Error values go through AnErr so they render
// as strings rather than empty objects. Non-string keys and a trailing odd
// value are dropped.
func emit(ev *zerolog.Event, msg string, keysAndValues []any) {
	if ev == nil {
		return
	}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		switch v := keysAndValues[i+1].(type) {
		case error:
			ev.AnErr(key, v)
		case string:
			ev.Str(key, v)
		default:
			ev.Interface(key, v)
		}
	}
	ev.Msg(msg)
}
