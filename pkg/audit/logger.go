package audit

import (
	"context"

	"github.com/platinummonkey/snaplock/pkg/contextkeys"
)

// Logger is the interface for audit logging backends.
type Logger interface {
	// Log persists one audit event.
	Log(ctx context.Context, event *AuditEvent) error

	// Close closes the logger and flushes any buffered entries.
	Close() error
}

// WithLogger adds an audit logger to the context
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return contextkeys.WithAuditLogger(ctx, logger)
}

// FromContext retrieves the audit logger from context. A no-op logger
// is returned when none is set, so call sites never nil-check.
func FromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(contextkeys.AuditLoggerKey).(Logger); ok {
		return logger
	}
	return &noOpLogger{}
}

// noOpLogger discards everything.
type noOpLogger struct{}

func (l *noOpLogger) Log(ctx context.Context, event *AuditEvent) error { return nil }

func (l *noOpLogger) Close() error { return nil }
