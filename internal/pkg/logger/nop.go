package logger

import "go.uber.org/zap"

// NewNopLogger returns an ILogger that discards everything. For tests and
// optional dependencies.
func NewNopLogger() *ZapLogger {
	return &ZapLogger{logger: zap.NewNop()}
}
