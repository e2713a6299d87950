package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/platinummonkey/snaplock/pkg/async"
)

// asyncLogTimeout bounds each backend write in async mode.
const asyncLogTimeout = 5 * time.Second

// MultiLogger fans audit events out to multiple backends, so the same
// trail can land in a file for operators and a database for search.
type MultiLogger struct {
	loggers []Logger
	async   bool
	wg      sync.WaitGroup
	errChan chan error
}

// NewMultiLogger creates a logger that writes to all given backends.
// Logging is asynchronous by default: Log never blocks on a slow
// backend, and failures are collected via GetErrors.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{
		loggers: loggers,
		async:   true,
		errChan: make(chan error, len(loggers)*4),
	}
}

// SetAsync switches between asynchronous and blocking writes. Sync
// mode is for tests and short-lived tools that exit right after
// logging.
func (m *MultiLogger) SetAsync(async bool) {
	m.async = async
}

// Log delivers one event to every backend. In async mode it returns
// immediately; failures surface later through GetErrors.
func (m *MultiLogger) Log(ctx context.Context, event *AuditEvent) error {
	if len(m.loggers) == 0 {
		return nil
	}

	if m.async {
		return m.logAsync(ctx, event)
	}

	return m.logSync(ctx, event)
}

// logSync writes to each backend in turn, returning the first error
// after every backend has seen the event.
func (m *MultiLogger) logSync(ctx context.Context, event *AuditEvent) error {
	var firstErr error

	for _, logger := range m.loggers {
		if err := logger.Log(ctx, event); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

// logAsync logs asynchronously to all backends. Each backend gets a
// copy of the event so concurrent ID assignment cannot race, and the
// write outlives the caller's context.
func (m *MultiLogger) logAsync(ctx context.Context, event *AuditEvent) error {
	detached := context.WithoutCancel(ctx)

	for _, logger := range m.loggers {
		logger := logger
		copied := *event

		m.wg.Add(1)
		async.SafeGo(detached, asyncLogTimeout, "audit fan-out", nil, func(ctx context.Context) error {
			defer m.wg.Done()
			if err := logger.Log(ctx, &copied); err != nil {
				select {
				case m.errChan <- err:
				default:
					// Channel full, drop error
				}
				return err
			}
			return nil
		})
	}

	return nil
}

// Wait blocks until every in-flight async write has finished.
func (m *MultiLogger) Wait() {
	m.wg.Wait()
}

// GetErrors drains and returns the async write failures collected so
// far.
func (m *MultiLogger) GetErrors() []error {
	var errors []error
	for {
		select {
		case err := <-m.errChan:
			errors = append(errors, err)
		default:
			return errors
		}
	}
}

// Close waits for pending writes and closes all backends, returning
// the first close error.
func (m *MultiLogger) Close() error {
	m.wg.Wait()

	var firstErr error
	for _, logger := range m.loggers {
		if err := logger.Close(); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to close audit logger: %w", err)
			}
		}
	}

	return firstErr
}
