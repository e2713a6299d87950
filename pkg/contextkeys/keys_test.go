package contextkeys

// Tests for keys.go covering:
// - Request ID and user ID round trips
// - Zero values for absent keys
// - Key type isolation from plain string keys

import (
	"context"
	"testing"
)

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-123")

	if got := GetRequestID(ctx); got != "req-123" {
		t.Fatalf("GetRequestID = %q, want %q", got, "req-123")
	}
}

func TestUserIDRoundTrip(t *testing.T) {
	ctx := WithUserID(context.Background(), "alice")

	if got := GetUserID(ctx); got != "alice" {
		t.Fatalf("GetUserID = %q, want %q", got, "alice")
	}
}

func TestAbsentKeysReturnEmpty(t *testing.T) {
	ctx := context.Background()

	if got := GetRequestID(ctx); got != "" {
		t.Errorf("GetRequestID on empty context = %q, want empty", got)
	}
	if got := GetUserID(ctx); got != "" {
		t.Errorf("GetUserID on empty context = %q, want empty", got)
	}
}

func TestKeyTypeDoesNotCollideWithStrings(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-123")

	// A plain string key with the same spelling must not see the value.
	if v := ctx.Value("request_id"); v != nil {
		t.Fatalf("plain string key resolved to %v, want nil", v)
	}
	if got := GetRequestID(ctx); got != "req-123" {
		t.Fatalf("typed key lost its value, got %q", got)
	}
}

func TestLoggerValuesRoundTrip(t *testing.T) {
	type fakeLogger struct{ name string }

	ctx := WithLogger(context.Background(), &fakeLogger{name: "request"})
	ctx = WithAuditLogger(ctx, &fakeLogger{name: "audit"})

	if l, ok := ctx.Value(LoggerKey).(*fakeLogger); !ok || l.name != "request" {
		t.Fatalf("LoggerKey = %#v, want request logger", ctx.Value(LoggerKey))
	}
	if l, ok := ctx.Value(AuditLoggerKey).(*fakeLogger); !ok || l.name != "audit" {
		t.Fatalf("AuditLoggerKey = %#v, want audit logger", ctx.Value(AuditLoggerKey))
	}
}
