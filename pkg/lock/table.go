package lock

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/snaplock/pkg/errdefs"
	"github.com/platinummonkey/snaplock/pkg/observability"
	"github.com/platinummonkey/snaplock/pkg/permissions"
	"github.com/platinummonkey/snaplock/pkg/rules"
)

// Decider produces the policy decision for one request. The engine's
// cached evaluator satisfies it.
type Decider interface {
	Decide(ctx context.Context, req rules.Request) (rules.Decision, error)
}

// PermissionChecker answers administrative override checks.
// *permissions.Store satisfies it.
type PermissionChecker interface {
	Has(user, permission string) bool
}

// pathState serializes all operations touching one path. Lock structs
// that belong to the path are mutated only under this mutex.
type pathState struct {
	mu      sync.Mutex
	dead    bool
	holders []*Lock
}

// Table is the authoritative path-to-lock map.
//
// Locking discipline: mu guards the paths and locks maps; each
// pathState's mutex guards that path's lock transitions. When both are
// held (purge only), mu is acquired first.
type Table struct {
	config  *Config
	decider Decider
	perms   PermissionChecker
	logger  *observability.Logger

	mu    sync.RWMutex
	paths map[string]*pathState
	locks map[string]*Lock

	onExpired func(Lock)

	now func() time.Time
}

// NewTable creates a lock table. decider and perms must not be nil;
// logger may be nil.
func NewTable(config *Config, decider Decider, perms PermissionChecker, logger *observability.Logger) *Table {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, os.Stdout)
	}
	return &Table{
		config:  config,
		decider: decider,
		perms:   perms,
		logger:  logger,
		paths:   make(map[string]*pathState),
		locks:   make(map[string]*Lock),
		now:     time.Now,
	}
}

// OnExpired registers a callback invoked once per lazily expired lock,
// outside any critical section. Set it before the table serves
// requests.
func (t *Table) OnExpired(fn func(Lock)) {
	t.onExpired = fn
}

// Request admits one lock acquisition. Policy decides first; the
// decision is then applied inside the path's critical section. A
// refused request (policy deny or holder conflict) returns a lock in
// status denied carrying the reason, with a nil error. Errors are
// reserved for malformed input and internal failures.
func (t *Table) Request(ctx context.Context, req Request) (*Lock, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	decision, err := t.decider.Decide(ctx, rules.Request{
		Path:     req.Path,
		User:     req.Owner,
		Action:   req.Action,
		Metadata: req.Metadata,
	})
	if err != nil {
		return nil, errdefs.Internal("rule evaluation failed", err)
	}

	now := t.now()

	if !decision.Allowed {
		denied := t.newDenied(req, decision.Reason, decision.RuleID, now)
		t.remember(denied)
		return denied.clone(), nil
	}

	ttl := t.effectiveTTL(req.TTL)

	ps := t.lockPath(req.Path)
	stale := t.expireLocked(ps, now)

	// Re-request by a current holder renews its lease instead of
	// conflicting with itself.
	for _, h := range ps.holders {
		if h.Owner == req.Owner && h.Action == req.Action {
			if ttl > 0 {
				deadline := now.Add(ttl)
				h.ExpiresAt = &deadline
			}
			out := h.clone()
			ps.mu.Unlock()
			t.notifyExpired(stale)
			return out, nil
		}
	}

	if conflict := findConflict(ps.holders, decision.Shareable); conflict != nil {
		reason := fmt.Sprintf("path locked by %s (lock %s)", conflict.Owner, conflict.ID)
		ps.mu.Unlock()
		denied := t.newDenied(req, reason, "", now)
		t.remember(denied)
		t.notifyExpired(stale)
		return denied.clone(), nil
	}

	l := &Lock{
		ID:       uuid.New().String(),
		Path:     req.Path,
		Owner:    req.Owner,
		Action:   req.Action,
		Status:   StatusRequested,
		Created:  now,
		Metadata: copyMetadata(req.Metadata),
		Reason:   decision.Reason,
		RuleID:   decision.RuleID,
		Shared:   decision.Shareable,
	}
	if err := t.transitionLocked(l, StatusHeld, now); err != nil {
		ps.mu.Unlock()
		t.notifyExpired(stale)
		return nil, err
	}
	if ttl > 0 {
		deadline := now.Add(ttl)
		l.ExpiresAt = &deadline
	}
	ps.holders = append(ps.holders, l)
	out := l.clone()
	ps.mu.Unlock()

	t.remember(l)
	t.notifyExpired(stale)
	return out, nil
}

// Release ends a held lock. The caller must be the owner or hold the
// administrative release permission. The released lock is returned so
// callers can publish its final state.
func (t *Table) Release(ctx context.Context, lockID, requestedBy string) (*Lock, error) {
	return t.end(lockID, requestedBy, StatusReleased)
}

// Revoke forcibly ends a held lock. Unlike Release it always requires
// the administrative release permission, owner included.
func (t *Table) Revoke(ctx context.Context, lockID, revokedBy string) (*Lock, error) {
	if !t.perms.Has(revokedBy, permissions.ReleaseAny) {
		return nil, errdefs.Permission(fmt.Sprintf("user %s cannot revoke locks", revokedBy)).
			WithDetail("required_permission", permissions.ReleaseAny)
	}
	return t.end(lockID, revokedBy, StatusRevoked)
}

func (t *Table) end(lockID, requestedBy string, next Status) (*Lock, error) {
	if lockID == "" {
		return nil, errdefs.Validation("lock ID is required").WithDetail("field", "lock_id")
	}
	if requestedBy == "" {
		return nil, errdefs.Validation("user is required").WithDetail("field", "user")
	}

	t.mu.RLock()
	known := t.locks[lockID]
	t.mu.RUnlock()
	if known == nil {
		return nil, errdefs.NotFound(fmt.Sprintf("lock %s not found", lockID)).
			WithDetail("lock_id", lockID)
	}

	now := t.now()
	ps := t.lockPath(known.Path)
	stale := t.expireLocked(ps, now)

	if known.Status != StatusHeld {
		status := known.Status
		ps.mu.Unlock()
		t.notifyExpired(stale)
		return nil, errdefs.Conflict(fmt.Sprintf("lock %s is not held", lockID)).
			WithDetail("lock_id", lockID).
			WithDetail("status", status.String())
	}

	if next == StatusReleased && requestedBy != known.Owner && !t.perms.Has(requestedBy, permissions.ReleaseAny) {
		owner := known.Owner
		ps.mu.Unlock()
		t.notifyExpired(stale)
		return nil, errdefs.Permission(fmt.Sprintf("user %s cannot release lock owned by %s", requestedBy, owner)).
			WithDetail("owner", owner).
			WithDetail("required_permission", permissions.ReleaseAny)
	}

	if err := t.transitionLocked(known, next, now); err != nil {
		ps.mu.Unlock()
		t.notifyExpired(stale)
		return nil, err
	}
	ps.holders = removeHolder(ps.holders, known.ID)
	out := known.clone()
	ps.mu.Unlock()

	t.notifyExpired(stale)
	return out, nil
}

// Get returns a copy of a lock by ID, held or retained.
func (t *Table) Get(lockID string) (*Lock, error) {
	t.mu.RLock()
	known := t.locks[lockID]
	t.mu.RUnlock()
	if known == nil {
		return nil, errdefs.NotFound(fmt.Sprintf("lock %s not found", lockID)).
			WithDetail("lock_id", lockID)
	}

	ps := t.lockPath(known.Path)
	stale := t.expireLocked(ps, t.now())
	out := known.clone()
	ps.mu.Unlock()

	t.notifyExpired(stale)
	return out, nil
}

// Status returns copies of the locks currently held on a path. The
// result is empty when the path is free.
func (t *Table) Status(path string) []Lock {
	if path == "" {
		return nil
	}

	ps := t.lockPath(path)
	stale := t.expireLocked(ps, t.now())
	out := make([]Lock, 0, len(ps.holders))
	for _, h := range ps.holders {
		out = append(out, *h.clone())
	}
	ps.mu.Unlock()

	t.notifyExpired(stale)
	return out
}

// ExpireStale walks every path and expires overdue holders. It returns
// copies of the locks it expired. The sweeper calls this periodically;
// correctness does not depend on it because every access expires
// lazily first.
func (t *Table) ExpireStale() []Lock {
	t.mu.RLock()
	paths := make([]string, 0, len(t.paths))
	for p := range t.paths {
		paths = append(paths, p)
	}
	t.mu.RUnlock()

	now := t.now()
	var all []Lock
	for _, path := range paths {
		ps := t.lockPath(path)
		expired := t.expireLocked(ps, now)
		ps.mu.Unlock()
		all = append(all, expired...)
	}

	t.notifyExpired(all)
	return all
}

// Purge removes terminal locks older than the retention window and
// compacts path states with no holders. It returns the number of
// locks removed.
func (t *Table) Purge() int {
	now := t.now()
	cutoff := now.Add(-t.config.Retention)

	// Group locks by path so terminal timestamps are read under the
	// owning path's mutex. Path and ID are immutable, so capturing
	// the pointers here is safe.
	t.mu.RLock()
	byPath := make(map[string][]*Lock)
	for _, l := range t.locks {
		byPath[l.Path] = append(byPath[l.Path], l)
	}
	t.mu.RUnlock()

	var purgeable []string
	for path, candidates := range byPath {
		ps := t.lockPath(path)
		for _, l := range candidates {
			if l.Status.Terminal() && l.CompletedAt != nil && l.CompletedAt.Before(cutoff) {
				purgeable = append(purgeable, l.ID)
			}
		}
		ps.mu.Unlock()
	}

	t.mu.Lock()
	for _, id := range purgeable {
		delete(t.locks, id)
	}
	for path, ps := range t.paths {
		ps.mu.Lock()
		if len(ps.holders) == 0 {
			ps.dead = true
			delete(t.paths, path)
		}
		ps.mu.Unlock()
	}
	t.mu.Unlock()

	if len(purgeable) > 0 {
		t.logger.WithField("purged", len(purgeable)).Debug("purged retained locks")
	}
	return len(purgeable)
}

// TableStats returns a point-in-time summary.
func (t *Table) TableStats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := Stats{Paths: len(t.paths)}
	held := 0
	for _, ps := range t.paths {
		ps.mu.Lock()
		held += len(ps.holders)
		ps.mu.Unlock()
	}
	s.Held = held
	s.Retained = len(t.locks) - held
	return s
}

// lockPath returns the path's state with its mutex held. Callers must
// unlock it. States marked dead by Purge are retried so two goroutines
// can never serialize on different states for one path.
func (t *Table) lockPath(path string) *pathState {
	for {
		t.mu.RLock()
		ps := t.paths[path]
		t.mu.RUnlock()

		if ps == nil {
			t.mu.Lock()
			ps = t.paths[path]
			if ps == nil {
				ps = &pathState{}
				t.paths[path] = ps
			}
			t.mu.Unlock()
		}

		ps.mu.Lock()
		if !ps.dead {
			return ps
		}
		ps.mu.Unlock()
	}
}

// expireLocked transitions overdue holders to expired and returns
// copies. Callers hold ps.mu.
func (t *Table) expireLocked(ps *pathState, now time.Time) []Lock {
	if len(ps.holders) == 0 {
		return nil
	}

	var expired []Lock
	kept := ps.holders[:0]
	for _, h := range ps.holders {
		if h.ExpiresAt != nil && !now.Before(*h.ExpiresAt) {
			if err := t.transitionLocked(h, StatusExpired, now); err == nil {
				expired = append(expired, *h.clone())
				continue
			}
		}
		kept = append(kept, h)
	}
	ps.holders = kept
	return expired
}

// transitionLocked applies one status transition, enforcing
// monotonicity. Callers hold the owning path's mutex.
func (t *Table) transitionLocked(l *Lock, next Status, now time.Time) error {
	if !l.Status.CanTransitionTo(next) {
		err := errdefs.Internal(fmt.Sprintf("illegal lock transition %s -> %s", l.Status, next), nil).
			WithDetail("lock_id", l.ID)
		t.logger.WithFields(map[string]interface{}{
			"lock_id": l.ID,
			"from":    l.Status.String(),
			"to":      next.String(),
		}).Error("illegal lock transition")
		return err
	}

	l.Status = next
	switch {
	case next == StatusHeld:
		l.AcquiredAt = now
	case next.Terminal():
		at := now
		l.CompletedAt = &at
	}
	return nil
}

func (t *Table) newDenied(req Request, reason, ruleID string, now time.Time) *Lock {
	at := now
	return &Lock{
		ID:          uuid.New().String(),
		Path:        req.Path,
		Owner:       req.Owner,
		Action:      req.Action,
		Status:      StatusDenied,
		Created:     now,
		CompletedAt: &at,
		Metadata:    copyMetadata(req.Metadata),
		Reason:      reason,
		RuleID:      ruleID,
	}
}

func (t *Table) remember(l *Lock) {
	t.mu.Lock()
	t.locks[l.ID] = l
	t.mu.Unlock()
}

func (t *Table) notifyExpired(expired []Lock) {
	if len(expired) == 0 {
		return
	}
	for _, l := range expired {
		t.logger.WithFields(map[string]interface{}{
			"lock_id": l.ID,
			"path":    l.Path,
			"owner":   l.Owner,
		}).Debug("lock expired")
		if t.onExpired != nil {
			t.onExpired(l)
		}
	}
}

func (t *Table) effectiveTTL(requested time.Duration) time.Duration {
	ttl := requested
	if ttl == 0 {
		ttl = t.config.DefaultTTL
	}
	if t.config.MaxTTL > 0 && ttl > t.config.MaxTTL {
		ttl = t.config.MaxTTL
	}
	return ttl
}

func validateRequest(req Request) error {
	if req.Path == "" {
		return errdefs.Validation("path is required").WithDetail("field", "path")
	}
	if req.Owner == "" {
		return errdefs.Validation("owner is required").WithDetail("field", "owner")
	}
	if req.Action == "" {
		return errdefs.Validation("action is required").WithDetail("field", "action")
	}
	if req.TTL < 0 {
		return errdefs.Validation("ttl must not be negative").
			WithDetail("field", "ttl").
			WithDetail("value", req.TTL.String())
	}
	return nil
}

// findConflict returns a holder that blocks a new grant, or nil when
// the path is free for it. A shareable grant coexists only with
// holders that are themselves shared.
func findConflict(holders []*Lock, shareable bool) *Lock {
	if len(holders) == 0 {
		return nil
	}
	if !shareable {
		return holders[0]
	}
	for _, h := range holders {
		if !h.Shared {
			return h
		}
	}
	return nil
}

func removeHolder(holders []*Lock, id string) []*Lock {
	for i, h := range holders {
		if h.ID == id {
			return append(holders[:i], holders[i+1:]...)
		}
	}
	return holders
}

func copyMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
