package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics holds OpenTelemetry metric instruments
type OTelMetrics struct {
	// Lock metrics
	lockRequestsTotal   metric.Int64Counter
	lockRequestDuration metric.Float64Histogram
	lockReleasesTotal   metric.Int64Counter
	lockHoldDuration    metric.Float64Histogram
	locksHeld           metric.Int64UpDownCounter

	// Policy evaluation metrics
	evaluationsTotal   metric.Int64Counter
	evaluationDuration metric.Float64Histogram

	// Cache metrics
	cacheHitsTotal      metric.Int64Counter
	cacheMissesTotal    metric.Int64Counter
	cacheEvictionsTotal metric.Int64Counter
	cacheEntries        metric.Int64UpDownCounter

	// Audit journal metrics
	auditEventsTotal    metric.Int64Counter
	auditWriteDuration  metric.Float64Histogram
}

// NewOTelMetrics creates a new OTel metrics instance
func NewOTelMetrics() (*OTelMetrics, error) {
	meter := otel.Meter("github.com/platinummonkey/snaplock")

	m := &OTelMetrics{}
	var err error

	// Lock metrics
	m.lockRequestsTotal, err = meter.Int64Counter(
		"lock.requests",
		metric.WithDescription("Total number of lock requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create lock_requests counter: %w", err)
	}

	m.lockRequestDuration, err = meter.Float64Histogram(
		"lock.request.duration",
		metric.WithDescription("Lock request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create lock_request_duration histogram: %w", err)
	}

	m.lockReleasesTotal, err = meter.Int64Counter(
		"lock.releases",
		metric.WithDescription("Total number of lock releases"),
		metric.WithUnit("{release}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create lock_releases counter: %w", err)
	}

	m.lockHoldDuration, err = meter.Float64Histogram(
		"lock.hold.duration",
		metric.WithDescription("Time locks were held before reaching a terminal state"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create lock_hold_duration histogram: %w", err)
	}

	m.locksHeld, err = meter.Int64UpDownCounter(
		"lock.held",
		metric.WithDescription("Number of locks currently held"),
		metric.WithUnit("{lock}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create locks_held gauge: %w", err)
	}

	// Policy evaluation metrics
	m.evaluationsTotal, err = meter.Int64Counter(
		"policy.evaluations",
		metric.WithDescription("Total number of policy evaluations"),
		metric.WithUnit("{evaluation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create policy_evaluations counter: %w", err)
	}

	m.evaluationDuration, err = meter.Float64Histogram(
		"policy.evaluation.duration",
		metric.WithDescription("Policy evaluation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create policy_evaluation_duration histogram: %w", err)
	}

	// Cache metrics
	m.cacheHitsTotal, err = meter.Int64Counter(
		"cache.hits.total",
		metric.WithDescription("Total number of decision cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache_hits_total counter: %w", err)
	}

	m.cacheMissesTotal, err = meter.Int64Counter(
		"cache.misses.total",
		metric.WithDescription("Total number of decision cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache_misses_total counter: %w", err)
	}

	m.cacheEvictionsTotal, err = meter.Int64Counter(
		"cache.evictions.total",
		metric.WithDescription("Total number of decision cache evictions"),
		metric.WithUnit("{eviction}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache_evictions_total counter: %w", err)
	}

	m.cacheEntries, err = meter.Int64UpDownCounter(
		"cache.entries",
		metric.WithDescription("Number of entries currently in the decision cache"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache_entries gauge: %w", err)
	}

	// Audit journal metrics
	m.auditEventsTotal, err = meter.Int64Counter(
		"audit.events",
		metric.WithDescription("Total number of audit events written"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit_events counter: %w", err)
	}

	m.auditWriteDuration, err = meter.Float64Histogram(
		"audit.write.duration",
		metric.WithDescription("Audit write duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit_write_duration histogram: %w", err)
	}

	return m, nil
}

// RecordLockRequest records a lock request metric
func (m *OTelMetrics) RecordLockRequest(ctx context.Context, decision string, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("lock.decision", decision),
	}

	m.lockRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.lockRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordLockRelease records a lock reaching a terminal state
func (m *OTelMetrics) RecordLockRelease(ctx context.Context, outcome string, heldFor time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("lock.outcome", outcome),
	}

	m.lockReleasesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.lockHoldDuration.Record(ctx, heldFor.Seconds(), metric.WithAttributes(attrs...))
}

// UpdateLocksHeld adjusts the held-locks gauge by delta
func (m *OTelMetrics) UpdateLocksHeld(ctx context.Context, delta int64) {
	m.locksHeld.Add(ctx, delta)
}

// RecordEvaluation records a policy evaluation metric
func (m *OTelMetrics) RecordEvaluation(ctx context.Context, source string, allowed bool, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("policy.source", source),
		attribute.Bool("policy.allowed", allowed),
	}

	m.evaluationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.evaluationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordCacheHit records a decision cache hit
func (m *OTelMetrics) RecordCacheHit(ctx context.Context) {
	m.cacheHitsTotal.Add(ctx, 1)
}

// RecordCacheMiss records a decision cache miss
func (m *OTelMetrics) RecordCacheMiss(ctx context.Context) {
	m.cacheMissesTotal.Add(ctx, 1)
}

// RecordCacheEvictions adds count decision cache evictions. A policy
// generation bump can drop thousands of entries at once, so the
// counter takes a delta rather than one call per entry.
func (m *OTelMetrics) RecordCacheEvictions(ctx context.Context, count int64) {
	m.cacheEvictionsTotal.Add(ctx, count)
}

// UpdateCacheEntries adjusts the cache entry gauge by delta
func (m *OTelMetrics) UpdateCacheEntries(ctx context.Context, delta int64) {
	m.cacheEntries.Add(ctx, delta)
}

// RecordAuditEvent records an audit journal write
func (m *OTelMetrics) RecordAuditEvent(ctx context.Context, backend string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("audit.backend", backend),
		attribute.Bool("error", err != nil),
	}

	m.auditEventsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.auditWriteDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}
