package logger

// NoOpLogger discards all messages. Used by tests and as a safe default.
type NoOpLogger struct{}

// NewNoOp creates a no-op logger.
func NewNoOp() Interface {
	return &NoOpLogger{}
}

func (l *NoOpLogger) Debug(msg string, fields ...any) {}
func (l *NoOpLogger) Info(msg string, fields ...any)  {}
func (l *NoOpLogger) Warn(msg string, fields ...any)  {}
func (l *NoOpLogger) Error(msg string, fields ...any) {}
func (l *NoOpLogger) Fatal(msg string, fields ...any) {}

func (l *NoOpLogger) With(fields ...any) Interface             { return l }
func (l *NoOpLogger) WithComponent(component string) Interface { return l }
func (l *NoOpLogger) WithError(err error) Interface            { return l }
