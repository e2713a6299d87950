package performance

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/platinummonkey/snaplock/pkg/engine"
	"github.com/platinummonkey/snaplock/pkg/lock"
	"github.com/platinummonkey/snaplock/pkg/observability"
	"github.com/platinummonkey/snaplock/pkg/rules"
)

// BenchmarkRequestRelease benchmarks a full grant and release cycle
func BenchmarkRequestRelease(b *testing.B) {
	eng := newBenchEngine(b)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		held, err := eng.RequestLock(ctx, "/data/bench.dat", "alice", "write", nil)
		if err != nil {
			b.Fatalf("Failed to request lock: %v", err)
		}
		if held.Status != lock.StatusHeld {
			b.Fatalf("Expected held lock, got %s: %s", held.Status, held.Reason)
		}
		ok, err := eng.ReleaseLock(ctx, held.ID, "alice")
		if err != nil || !ok {
			b.Fatalf("Failed to release lock: ok=%v err=%v", ok, err)
		}
	}
}

// BenchmarkRequestDenied benchmarks repeated denials on the cached
// decision path
func BenchmarkRequestDenied(b *testing.B) {
	eng := newBenchEngine(b)
	ctx := context.Background()

	// Prime the decision cache
	denied, err := eng.RequestLock(ctx, "/secrets/api.key", "mallory", "write", nil)
	if err != nil {
		b.Fatalf("Failed to prime cache: %v", err)
	}
	if denied.Status != lock.StatusDenied {
		b.Fatalf("Expected denial, got %s", denied.Status)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		l, err := eng.RequestLock(ctx, "/secrets/api.key", "mallory", "write", nil)
		if err != nil {
			b.Fatalf("Failed to request lock: %v", err)
		}
		if l.Status != lock.StatusDenied {
			b.Fatal("Expected cached denial")
		}
	}
}

// BenchmarkRequestLockParallel benchmarks concurrent grant and
// release cycles on distinct paths
func BenchmarkRequestLockParallel(b *testing.B) {
	eng := newBenchEngine(b)
	ctx := context.Background()

	var seq atomic.Int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			path := fmt.Sprintf("/data/p%d.dat", seq.Add(1))
			held, err := eng.RequestLock(ctx, path, "alice", "write", nil)
			if err != nil {
				b.Errorf("Failed to request lock: %v", err)
				continue
			}
			if held.Status != lock.StatusHeld {
				b.Errorf("Expected held lock, got %s: %s", held.Status, held.Reason)
				continue
			}
			if _, err := eng.ReleaseLock(ctx, held.ID, "alice"); err != nil {
				b.Errorf("Failed to release lock: %v", err)
			}
		}
	})
}

// BenchmarkExplain benchmarks a traced policy evaluation
func BenchmarkExplain(b *testing.B) {
	eng := newBenchEngine(b)
	ctx := context.Background()
	req := rules.Request{Path: "/releases/v2.bin", User: "bob", Action: "write"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := eng.Explain(ctx, req); err != nil {
			b.Fatalf("Explain failed: %v", err)
		}
	}
}

// BenchmarkApplyPolicy benchmarks a full policy swap with a
// hundred-rule set
func BenchmarkApplyPolicy(b *testing.B) {
	eng, err := engine.New(nil, engine.WithLogger(observability.NewNopLogger()))
	if err != nil {
		b.Fatalf("Failed to create engine: %v", err)
	}
	defer eng.Close()

	defs := make([]rules.Rule, 0, 100)
	for i := 0; i < 100; i++ {
		defs = append(defs, rules.Rule{
			ID:        fmt.Sprintf("rule-%03d", i),
			Priority:  i,
			Condition: rules.Condition{PathPrefix: fmt.Sprintf("/area-%03d/", i)},
			Action:    rules.ActionAllow,
			Enabled:   true,
		})
	}
	perms := map[string][]string{"alice": {"releases.cut"}}

	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := eng.ApplyPolicy(ctx, defs, perms); err != nil {
			b.Fatalf("Failed to apply policy: %v", err)
		}
	}
}

// Helper functions

func newBenchEngine(b *testing.B) *engine.Engine {
	b.Helper()

	eng, err := engine.New(nil, engine.WithLogger(observability.NewNopLogger()))
	if err != nil {
		b.Fatalf("Failed to create engine: %v", err)
	}
	b.Cleanup(func() { eng.Close() })

	defs := []rules.Rule{
		{
			ID:        "deny-secrets",
			Priority:  5,
			Condition: rules.Condition{PathPrefix: "/secrets/"},
			Action:    rules.ActionDeny,
			Enabled:   true,
		},
		{
			ID:                 "guard-releases",
			Priority:           10,
			Condition:          rules.Condition{PathPrefix: "/releases/"},
			Action:             rules.ActionRequirePermission,
			RequiredPermission: "releases.cut",
			Enabled:            true,
		},
		{
			ID:        "allow-data",
			Priority:  20,
			Condition: rules.Condition{PathPrefix: "/data/"},
			Action:    rules.ActionAllow,
			Enabled:   true,
		},
	}
	perms := map[string][]string{"alice": {"releases.cut"}}
	if err := eng.ApplyPolicy(context.Background(), defs, perms); err != nil {
		b.Fatalf("Failed to apply policy: %v", err)
	}
	return eng
}
