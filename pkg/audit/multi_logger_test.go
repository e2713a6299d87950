package audit

// Tests for multi_logger.go covering:
// - Sync fan-out delivering to every backend
// - Sync first-error reporting without skipping backends
// - Async fan-out with per-backend event copies
// - Async error collection via GetErrors
// - Close waiting for pending writes and closing backends

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger records events in memory. Shared by the multi-logger and
// recorder tests.
type mockLogger struct {
	mu     sync.Mutex
	events []*AuditEvent
	logErr error
	closed bool
}

func (m *mockLogger) Log(ctx context.Context, event *AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.logErr != nil {
		return m.logErr
	}
	m.events = append(m.events, event)
	return nil
}

func (m *mockLogger) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockLogger) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func (m *mockLogger) last() *AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) == 0 {
		return nil
	}
	return m.events[len(m.events)-1]
}

func newDeniedEvent() *AuditEvent {
	event := NewEvent(EventTypeLockDenied, EventStatusDenied)
	event.User = "mallory"
	event.Path = "/secrets/keys"
	event.Action = "write"
	event.Reason = "denied by rule deny-secrets"
	event.RuleID = "deny-secrets"
	return event
}

func TestMultiLogger_Log_Sync(t *testing.T) {
	logger1 := &mockLogger{}
	logger2 := &mockLogger{}

	multiLogger := NewMultiLogger(logger1, logger2)
	multiLogger.SetAsync(false)

	err := multiLogger.Log(context.Background(), newDeniedEvent())
	require.NoError(t, err)

	assert.Equal(t, 1, logger1.count())
	assert.Equal(t, 1, logger2.count())
	assert.Equal(t, "deny-secrets", logger1.last().RuleID)
}

func TestMultiLogger_Log_Sync_FirstError(t *testing.T) {
	failing := &mockLogger{logErr: assert.AnError}
	healthy := &mockLogger{}

	multiLogger := NewMultiLogger(failing, healthy)
	multiLogger.SetAsync(false)

	err := multiLogger.Log(context.Background(), newDeniedEvent())
	assert.ErrorIs(t, err, assert.AnError)

	// The healthy backend still gets the event.
	assert.Equal(t, 1, healthy.count())
}

func TestMultiLogger_Log_Async(t *testing.T) {
	logger1 := &mockLogger{}
	logger2 := &mockLogger{}

	multiLogger := NewMultiLogger(logger1, logger2)

	event := newDeniedEvent()
	err := multiLogger.Log(context.Background(), event)
	require.NoError(t, err)

	multiLogger.Wait()

	require.Equal(t, 1, logger1.count())
	require.Equal(t, 1, logger2.count())

	// Backends get independent copies, not the caller's pointer.
	assert.NotSame(t, event, logger1.last())
	assert.Equal(t, event.Reason, logger1.last().Reason)
}

func TestMultiLogger_Async_CollectsErrors(t *testing.T) {
	failing := &mockLogger{logErr: assert.AnError}

	multiLogger := NewMultiLogger(failing)

	require.NoError(t, multiLogger.Log(context.Background(), newDeniedEvent()))
	multiLogger.Wait()

	errs := multiLogger.GetErrors()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], assert.AnError)

	// Draining empties the channel.
	assert.Empty(t, multiLogger.GetErrors())
}

func TestMultiLogger_Wait(t *testing.T) {
	logger1 := &mockLogger{}

	multiLogger := NewMultiLogger(logger1)

	for i := 0; i < 5; i++ {
		require.NoError(t, multiLogger.Log(context.Background(), newDeniedEvent()))
	}

	multiLogger.Wait()

	assert.Equal(t, 5, logger1.count())
}

func TestMultiLogger_Close(t *testing.T) {
	logger1 := &mockLogger{}
	logger2 := &mockLogger{}

	multiLogger := NewMultiLogger(logger1, logger2)

	require.NoError(t, multiLogger.Log(context.Background(), newDeniedEvent()))
	require.NoError(t, multiLogger.Close())

	// Close waits for in-flight writes before closing backends.
	assert.Equal(t, 1, logger1.count())
	assert.True(t, logger1.closed)
	assert.True(t, logger2.closed)
}

func TestMultiLogger_Empty(t *testing.T) {
	multiLogger := NewMultiLogger()

	err := multiLogger.Log(context.Background(), newDeniedEvent())
	require.NoError(t, err)
	assert.Empty(t, multiLogger.GetErrors())
}
