package diag

import "go.uber.org/zap"

// zapSink adapts a *zap.Logger to Sink, grounded on the constructor-returns-
// small-interface pattern used by dropDatabas3-hellojohn's observability
// logger package rather than exposing a package-level global.
type zapSink struct {
	logger *zap.Logger
}

// NewZapSink wraps logger as a Sink. Passing nil uses zap.NewNop().
func NewZapSink(logger *zap.Logger) Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &zapSink{logger: logger}
}

// NewProductionSink builds a Sink backed by a production zap configuration,
// falling back to a no-op sink if the logger cannot be built (mirrors the
// defensive fallback in dropDatabas3-hellojohn's singleton initializer).
func NewProductionSink() Sink {
	l, err := zap.NewProduction()
	if err != nil {
		return Discard
	}
	return NewZapSink(l)
}

func (s *zapSink) Event(level Level, msg string, fields ...Field) {
	zf := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		zf = append(zf, zap.Any(f.Key, f.Value))
	}
	switch level {
	case LevelWarn:
		s.logger.Warn(msg, zf...)
	case LevelError:
		s.logger.Error(msg, zf...)
	default:
		s.logger.Info(msg, zf...)
	}
}
