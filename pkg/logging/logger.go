package logging

// Logger provides leveled logging for dbflux components.
// This abstraction allows swapping logging implementations
type Logger interface {
	// Debugf logs a formatted debug message
	Debugf(format string, args ...interface{})

	// Infof logs a formatted informational message
	Infof(format string, args ...interface{})

	// Warnf logs a formatted warning message
	Warnf(format string, args ...interface{})

	// Errorf logs a formatted error message
	Errorf(format string, args ...interface{})
}

// noopLogger discards everything. Used when a component is constructed
// without a logger.
type noopLogger struct{}

func (noopLogger) Debugf(string, ...interface{}) {}
func (noopLogger) Infof(string, ...interface{})  {}
func (noopLogger) Warnf(string, ...interface{})  {}
func (noopLogger) Errorf(string, ...interface{}) {}

// NewNop returns a logger that discards all output
func NewNop() Logger {
	return noopLogger{}
}

// OrNop returns l if non-nil, otherwise the no-op logger.
// Lets components accept an optional logger without nil checks at call sites
func OrNop(l Logger) Logger {
	if l == nil {
		return noopLogger{}
	}
	return l
}
