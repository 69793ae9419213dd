package logger

import "context"

// Logger is the structured logging interface used across the service.
// Fields maps may be nil when a call has nothing beyond its message.
type Logger interface {
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	Info(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
	Error(ctx context.Context, msg string, fields map[string]interface{})

	// WithFields returns a derived logger that attaches the given fields
	// to every subsequent entry.
	WithFields(fields map[string]interface{}) Logger
}

// NopLogger discards everything. Useful as a default in constructors that
// allow a nil logger.
type NopLogger struct{}

func NewNopLogger() *NopLogger { return &NopLogger{} }

func (NopLogger) Debug(ctx context.Context, msg string, fields map[string]interface{}) {}
func (NopLogger) Info(ctx context.Context, msg string, fields map[string]interface{})  {}
func (NopLogger) Warn(ctx context.Context, msg string, fields map[string]interface{})  {}
func (NopLogger) Error(ctx context.Context, msg string, fields map[string]interface{}) {}
func (n NopLogger) WithFields(fields map[string]interface{}) Logger                    { return n }
