package logging

import (
	"go.uber.org/zap"
)

// zapLogger adapts a zap.SugaredLogger to the Logger interface
type zapLogger struct {
	sugar *zap.SugaredLogger
}

// New creates a production logger backed by zap.
// name is attached to every entry so multiple components can share one sink
func New(name string) Logger {
	base, err := zap.NewProduction(zap.AddCallerSkip(1))
	if err != nil {
		// zap.NewProduction only fails on invalid sink configuration,
		// which cannot happen with the defaults
		panic(err)
	}
	return &zapLogger{sugar: base.Sugar().Named(name)}
}

// NewDevelopment creates a human-readable console logger backed by zap
func NewDevelopment(name string) Logger {
	base, err := zap.NewDevelopment(zap.AddCallerSkip(1))
	if err != nil {
		panic(err)
	}
	return &zapLogger{sugar: base.Sugar().Named(name)}
}

// FromZap wraps an existing zap logger
func FromZap(l *zap.Logger) Logger {
	return &zapLogger{sugar: l.Sugar()}
}

func (l *zapLogger) Debugf(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

func (l *zapLogger) Infof(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

func (l *zapLogger) Warnf(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

func (l *zapLogger) Errorf(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}
