// Package engine assembles the lock table, rule engine, decision
// cache, permission store, plugin registry, and event bus into the
// single facade an embedding process talks to.
//
// # Overview
//
// Engine.New builds every component and wires them together: the lock
// table consults the engine's cached decision path, the cache is keyed
// by a generation counter the engine owns, and every lifecycle
// transition is published on the event bus. Callers never touch the
// components directly; the facade is the administrative and request
// boundary, and every failure it returns is an *errdefs.ErrorResult.
//
// # Generation Counter
//
// Rule, plugin, and permission mutations run under one administrative
// lock as validate, swap, bump: the change is validated first, swapped
// into the owning component, and then the generation counter advances.
// Cache keys embed the generation, so a bump strands every previously
// cached decision without touching the cache itself.
//
// # Usage Example
//
//	eng, err := engine.New(engine.DefaultConfig(), engine.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	defer eng.Close()
//
//	if err := eng.RegisterRule(ctx, rules.Rule{
//		ID:        "allow-data",
//		Priority:  100,
//		Condition: rules.Condition{PathPrefix: "/data"},
//		Action:    rules.ActionAllow,
//		Enabled:   true,
//	}); err != nil {
//		return err
//	}
//
//	held, err := eng.RequestLock(ctx, "/data/report.csv", "alice", "write", nil)
//	if err != nil {
//		return err
//	}
//	if held.Status == lock.StatusDenied {
//		return fmt.Errorf("lock denied: %s", held.Reason)
//	}
//	defer eng.ReleaseLock(ctx, held.ID, "alice")
//
// # Related Packages
//
//   - pkg/lock: the authoritative path-to-lock table
//   - pkg/rules: the prioritized decision logic
//   - pkg/cache: generation-keyed decision memoization
//   - pkg/events: lifecycle notifications for subscribers
//   - pkg/audit: persistent journal fed from the event bus
package engine
