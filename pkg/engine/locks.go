package engine

import (
	"context"
	"time"

	"github.com/platinummonkey/snaplock/pkg/events"
	"github.com/platinummonkey/snaplock/pkg/lock"
)

// RequestLock admits one lock acquisition attempt. A policy denial or
// holder conflict is not an error: the returned lock carries status
// denied and the deciding reason. Errors are reserved for malformed
// input and internal failures.
func (e *Engine) RequestLock(ctx context.Context, path, user, action string, metadata map[string]string) (*lock.Lock, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}

	e.publish(events.NewLockRequested(path, user, action))

	start := time.Now()
	l, err := e.table.Request(ctx, lock.Request{
		Path:     path,
		Owner:    user,
		Action:   action,
		Metadata: metadata,
	})
	took := time.Since(start)

	if err != nil {
		e.recordLockRequest(ctx, "error", took)
		return nil, err
	}

	if l.Status == lock.StatusDenied {
		e.recordLockRequest(ctx, "denied", took)
		e.publish(events.NewLockDenied(l.Path, l.Owner, l.Action, l.Reason, l.RuleID))
		return l, nil
	}

	e.recordLockRequest(ctx, "granted", took)
	e.syncLockMetrics(ctx)
	e.publish(events.NewLockGranted(l.ID, l.Path, l.Owner, l.Action, l.RuleID, l.Shared))
	return l, nil
}

// ReleaseLock ends a held lock. The caller must be the owner or hold
// the administrative release permission. It reports true exactly when
// the lock was released by this call.
func (e *Engine) ReleaseLock(ctx context.Context, lockID, user string) (bool, error) {
	if err := e.checkOpen(); err != nil {
		return false, err
	}

	l, err := e.table.Release(ctx, lockID, user)
	if err != nil {
		return false, err
	}

	e.recordLockEnd(ctx, "released", l)
	e.syncLockMetrics(ctx)
	e.publish(events.NewLockReleased(l.ID, l.Path, l.Owner, user))
	return true, nil
}

// RevokeLock forcibly ends a held lock. Unlike ReleaseLock it always
// requires the administrative release permission, owner included.
func (e *Engine) RevokeLock(ctx context.Context, lockID, user string) (bool, error) {
	if err := e.checkOpen(); err != nil {
		return false, err
	}

	l, err := e.table.Revoke(ctx, lockID, user)
	if err != nil {
		return false, err
	}

	e.recordLockEnd(ctx, "revoked", l)
	e.syncLockMetrics(ctx)
	e.publish(events.NewLockRevoked(l.ID, l.Path, l.Owner, user))
	return true, nil
}

// onExpired runs once per lazily expired lock, outside the table's
// critical sections.
func (e *Engine) onExpired(l lock.Lock) {
	ctx := context.Background()

	if e.metrics != nil {
		e.metrics.LocksExpiredTotal.Inc()
	}
	e.recordLockEnd(ctx, "expired", &l)
	e.syncLockMetrics(ctx)
	e.publish(events.NewLockExpired(l.ID, l.Path, l.Owner))
}

func (e *Engine) recordLockRequest(ctx context.Context, decision string, took time.Duration) {
	if e.metrics != nil {
		e.metrics.LockRequestsTotal.WithLabelValues(decision).Inc()
		e.metrics.LockRequestDuration.Observe(took.Seconds())
	}
	if e.otel != nil {
		e.otel.RecordLockRequest(ctx, decision, took)
	}
}

func (e *Engine) recordLockEnd(ctx context.Context, outcome string, l *lock.Lock) {
	var heldFor time.Duration
	if l.CompletedAt != nil && !l.AcquiredAt.IsZero() {
		heldFor = l.CompletedAt.Sub(l.AcquiredAt)
	}

	if e.metrics != nil {
		e.metrics.LockReleasesTotal.WithLabelValues(outcome).Inc()
		e.metrics.LockHoldDuration.Observe(heldFor.Seconds())
	}
	if e.otel != nil {
		e.otel.RecordLockRelease(ctx, outcome, heldFor)
	}
}
