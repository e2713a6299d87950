// Package lock implements the authoritative lock table: the map from
// file path to current lock state.
//
// # Overview
//
// Every acquisition passes through Table.Request, which asks the
// configured Decider whether policy allows the lock, then applies the
// decision inside the path's critical section: stale holders are
// expired lazily, an identical re-request by the current owner renews
// its lease, and a conflicting holder turns the request into a denied
// record. Only one request per path is processed at a time; requests
// for different paths never block each other.
//
// Granted and denied locks are both kept: a denied request produces a
// lock in status denied so callers get the deciding reason in the same
// shape as a grant. Terminal locks stay queryable for the configured
// retention window and are then purged by the sweeper.
//
// # Usage Example
//
//	table := lock.NewTable(lock.DefaultConfig(), decider, perms, logger)
//	table.OnExpired(func(l lock.Lock) { bus.Publish(events.NewLockExpired(l.ID, l.Path, l.Owner)) })
//
//	held, err := table.Request(ctx, lock.Request{
//		Path:   "/data/report.csv",
//		Owner:  "alice",
//		Action: "write",
//		TTL:    5 * time.Minute,
//	})
//	if err != nil {
//		return err
//	}
//	if held.Status == lock.StatusDenied {
//		return fmt.Errorf("lock denied: %s", held.Reason)
//	}
//	defer table.Release(ctx, held.ID, "alice")
//
// # Related Packages
//
//   - pkg/rules: produces the decisions the table applies
//   - pkg/engine: wires the table to cache, events, and audit
//   - pkg/events: lifecycle notifications published by the engine
package lock
