package engine

import (
	"context"
	"errors"
	"time"

	"github.com/platinummonkey/snaplock/pkg/cache"
	"github.com/platinummonkey/snaplock/pkg/rules"
)

// decider adapts the engine's cached evaluation path onto the lock
// table's Decider interface without widening the facade API.
type decider struct {
	engine *Engine
}

func (d *decider) Decide(ctx context.Context, req rules.Request) (rules.Decision, error) {
	return d.engine.decide(ctx, req)
}

// decide answers one policy question, consulting the cache first. The
// generation is read once per call; a concurrent bump strands this
// call's key, and the decision reflects the rule set that was live
// when the call started.
func (e *Engine) decide(ctx context.Context, req rules.Request) (rules.Decision, error) {
	key := cache.NewKey(req.Path, req.User, req.Action, e.generation.Load(), req.Metadata)
	start := time.Now()

	decision, err := e.cache.Get(ctx, key)
	if err == nil {
		if e.metrics != nil {
			e.metrics.CacheHitsTotal.Inc()
		}
		if e.otel != nil {
			e.otel.RecordCacheHit(ctx)
		}
		e.recordEvaluation(ctx, "cache", decision, time.Since(start))
		return decision, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		// Unkeyable request; evaluate without memoization.
		decision = e.rules.Evaluate(req)
		e.recordEvaluation(ctx, "engine", decision, time.Since(start))
		return decision, nil
	}

	if e.metrics != nil {
		e.metrics.CacheMissesTotal.Inc()
	}
	if e.otel != nil {
		e.otel.RecordCacheMiss(ctx)
	}

	// Concurrent misses for one key collapse into a single evaluation.
	v, _, _ := e.flight.Do(key.String(), func() (interface{}, error) {
		d := e.rules.Evaluate(req)
		if putErr := e.cache.Put(ctx, key, d); putErr != nil {
			e.ctxLogger(ctx).WithError(putErr).Debug("decision cache store failed")
		}
		return d, nil
	})
	decision = v.(rules.Decision)

	e.recordEvaluation(ctx, "engine", decision, time.Since(start))
	e.syncCacheMetrics(ctx)
	return decision, nil
}

func (e *Engine) recordEvaluation(ctx context.Context, source string, decision rules.Decision, took time.Duration) {
	if e.metrics != nil {
		e.metrics.EvaluationsTotal.WithLabelValues(source).Inc()
		e.metrics.EvaluationDuration.Observe(took.Seconds())
	}
	if e.otel != nil {
		e.otel.RecordEvaluation(ctx, source, decision.Allowed, took)
	}
}
