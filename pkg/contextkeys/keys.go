// Package contextkeys holds the context keys shared across the
// subsystem so every package agrees on where request identity lives.
//
// Values planted here flow through the engine into logging and audit:
//
//	ctx = contextkeys.WithRequestID(ctx, uuid.NewString())
//	ctx = contextkeys.WithUserID(ctx, "alice")
//
// pkg/observability reads the same keys when annotating log lines and
// pkg/audit when stamping events, so an ID set once is visible
// everywhere without those packages importing each other.
package contextkeys

import "context"

// Key is a distinct string type so values planted here cannot collide
// with context values keyed by plain strings elsewhere.
type Key string

const (
	// RequestIDKey carries the request correlation ID (a UUID string).
	// Set by the ops HTTP middleware and the CLI entry points; read by
	// the logger and the audit trail.
	RequestIDKey Key = "request_id"

	// UserIDKey carries the acting user. Set by callers embedding the
	// engine; read by the logger and the audit trail.
	UserIDKey Key = "user_id"

	// LoggerKey carries a *observability.Logger enriched with request
	// fields. Stored untyped; observability.GetLogger asserts it back.
	LoggerKey Key = "logger"

	// AuditLoggerKey carries an audit.Logger for applications that
	// record their own events. audit.FromContext asserts it back.
	AuditLoggerKey Key = "audit_logger"
)

// WithRequestID returns a context carrying the request correlation ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithUserID returns a context carrying the acting user.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// WithLogger returns a context carrying a request-scoped logger. The
// value is untyped here; the reading package asserts it.
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// WithAuditLogger returns a context carrying an audit logger. The
// value is untyped here; the reading package asserts it.
func WithAuditLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, AuditLoggerKey, logger)
}

// GetRequestID returns the request correlation ID, or "" when the
// context carries none.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetUserID returns the acting user, or "" when the context carries
// none.
func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(UserIDKey).(string); ok {
		return userID
	}
	return ""
}
