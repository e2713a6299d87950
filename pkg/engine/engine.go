package engine

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/platinummonkey/snaplock/pkg/cache"
	"github.com/platinummonkey/snaplock/pkg/errdefs"
	"github.com/platinummonkey/snaplock/pkg/events"
	"github.com/platinummonkey/snaplock/pkg/lock"
	"github.com/platinummonkey/snaplock/pkg/observability"
	"github.com/platinummonkey/snaplock/pkg/permissions"
	"github.com/platinummonkey/snaplock/pkg/plugins"
	"github.com/platinummonkey/snaplock/pkg/rules"
	"github.com/platinummonkey/snaplock/pkg/validation"
)

// Config holds engine construction settings.
type Config struct {
	// Lock configures the lock table (lease defaults, retention).
	Lock *lock.Config

	// Cache configures the decision cache.
	Cache *cache.Config

	// SweepSchedule is the cron expression for background lock
	// maintenance, for example "@every 1m". Empty disables the
	// sweeper; expiry is still enforced lazily on access.
	SweepSchedule string
}

// DefaultConfig returns engine defaults suitable for an embedded
// deployment.
func DefaultConfig() *Config {
	return &Config{
		Lock:          lock.DefaultConfig(),
		Cache:         cache.DefaultConfig(),
		SweepSchedule: "@every 1m",
	}
}

// Option customizes engine construction.
type Option func(*Engine)

// WithLogger sets the structured logger. The default logs at info
// level to stdout.
func WithLogger(logger *observability.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics wires the Prometheus metric set.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithOTelMetrics wires the OpenTelemetry instrument set.
func WithOTelMetrics(m *observability.OTelMetrics) Option {
	return func(e *Engine) {
		e.otel = m
	}
}

// WithPluginLogger sets the logger handed to the plugin validator and
// registry. The default discards plugin admission logging.
func WithPluginLogger(log *logrus.Logger) Option {
	return func(e *Engine) {
		e.pluginLog = log
	}
}

// Engine is the process-scoped lock authority. It owns every
// component for its lifetime: construct once, administer through the
// validated registration API, Close on shutdown.
type Engine struct {
	cfg *Config

	logger    *observability.Logger
	metrics   *observability.Metrics
	otel      *observability.OTelMetrics
	pluginLog *logrus.Logger

	rules     *rules.Engine
	table     *lock.Table
	cache     *cache.DecisionCache
	bus       *events.Bus
	registry  *plugins.Registry
	perms     *permissions.Store
	validator *validation.Validator
	sweeper   *lock.Sweeper

	generation atomic.Uint64
	flight     singleflight.Group

	// admin serializes rule, plugin, and permission mutations so every
	// validate-swap-bump sequence is atomic relative to the others.
	admin sync.Mutex

	// Last values bridged into the exported metric sinks.
	locksHeld      atomic.Int64
	cacheEntries   atomic.Int64
	cacheEvictions atomic.Int64
	handlerErrors  atomic.Int64

	closed atomic.Bool
}

// Stats is a point-in-time summary across every engine component.
type Stats struct {
	Generation uint64
	Rules      int
	Plugins    int
	Users      int
	Locks      lock.Stats
	Cache      cache.Stats
	Events     events.BusStats
}

// New builds the engine and wires its components together. The
// returned engine is ready to serve requests; the sweeper starts
// separately via StartSweeper.
func New(cfg *Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	e := &Engine{cfg: cfg}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = observability.NewLogger(observability.InfoLevel, os.Stdout)
	}

	decisions, err := cache.NewCache(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("failed to build decision cache: %w", err)
	}
	e.cache = decisions

	e.perms = permissions.NewStore()
	e.validator = validation.NewValidator()
	e.rules = rules.NewEngine(e.perms)
	e.bus = events.NewBus(e.logger)
	e.registry = plugins.NewRegistry(plugins.NewValidator(e.pluginLog), e.pluginLog)

	e.table = lock.NewTable(cfg.Lock, &decider{engine: e}, e.perms, e.logger)
	e.table.OnExpired(e.onExpired)

	e.sweeper = lock.NewSweeper(e.table, cfg.SweepSchedule, e.logger)
	e.sweeper.OnSweep(func(expired, purged int) {
		if e.metrics != nil {
			e.metrics.SweepsTotal.Inc()
		}
	})

	return e, nil
}

// StartSweeper begins scheduled lock maintenance. It is a no-op when
// no schedule is configured. The sweeper stops when ctx is cancelled
// or the engine is closed.
func (e *Engine) StartSweeper(ctx context.Context) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	return e.sweeper.Start(ctx)
}

// Subscribe registers a handler for one event type, or
// events.TypeWildcard for all, and returns the subscription handle.
func (e *Engine) Subscribe(eventType events.EventType, handler events.Handler) (string, error) {
	if err := e.checkOpen(); err != nil {
		return "", err
	}

	id, err := e.bus.Subscribe(eventType, handler)
	if err != nil {
		return "", errdefs.Validation(err.Error()).WithCause(err)
	}
	if e.metrics != nil {
		e.metrics.SubscribersActive.Set(float64(e.bus.SubscriberCount()))
	}
	return id, nil
}

// Unsubscribe removes a subscription by handle. It reports whether a
// subscription was removed.
func (e *Engine) Unsubscribe(id string) bool {
	removed := e.bus.Unsubscribe(id)
	if removed && e.metrics != nil {
		e.metrics.SubscribersActive.Set(float64(e.bus.SubscriberCount()))
	}
	return removed
}

// Status returns copies of the locks currently held on a path.
func (e *Engine) Status(path string) []lock.Lock {
	return e.table.Status(path)
}

// GetLock returns a copy of a lock by ID, held or retained.
func (e *Engine) GetLock(id string) (*lock.Lock, error) {
	return e.table.Get(id)
}

// Explain evaluates a request directly against the rule set and
// returns the decision together with a step-by-step record of every
// rule visited. It bypasses the decision cache and takes no lock, so
// operators can probe policy without side effects.
func (e *Engine) Explain(ctx context.Context, req rules.Request) (rules.Decision, []rules.TraceStep, error) {
	if err := e.checkOpen(); err != nil {
		return rules.Decision{}, nil, err
	}
	if req.Path == "" {
		return rules.Decision{}, nil, errdefs.Validation("path is required").WithDetail("field", "path")
	}
	if req.User == "" {
		return rules.Decision{}, nil, errdefs.Validation("user is required").WithDetail("field", "user")
	}
	if req.Action == "" {
		return rules.Decision{}, nil, errdefs.Validation("action is required").WithDetail("field", "action")
	}

	decision, trace := e.rules.EvaluateTrace(req)
	return decision, trace, nil
}

// Rules returns the active rule set in evaluation order, static and
// plugin-contributed alike.
func (e *Engine) Rules() []rules.Rule {
	return e.rules.List()
}

// Generation returns the current policy generation.
func (e *Engine) Generation() uint64 {
	return e.generation.Load()
}

// Stats returns a snapshot across all components.
func (e *Engine) Stats() Stats {
	return Stats{
		Generation: e.generation.Load(),
		Rules:      e.rules.Count(),
		Plugins:    e.registry.Count(),
		Users:      e.perms.Count(),
		Locks:      e.table.TableStats(),
		Cache:      e.cache.Stats(),
		Events:     e.bus.Stats(),
	}
}

// Close tears the engine down: the sweeper stops, plugins unload, and
// the decision cache is released. Held locks are abandoned; the
// process owns them and is going away. Operations on a closed engine
// fail with ErrClosed.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}

	e.sweeper.Stop()
	e.registry.Clear()
	err := e.cache.Close()
	e.logger.Info("engine closed")
	return err
}

func (e *Engine) checkOpen() error {
	if e.closed.Load() {
		return errdefs.Internal("engine is closed", ErrClosed)
	}
	return nil
}

// ctxLogger returns the engine logger annotated with the caller's
// active trace span, when the context carries one.
func (e *Engine) ctxLogger(ctx context.Context) *observability.Logger {
	return observability.UpdateLoggerWithTraceContext(ctx, e.logger)
}

// publish sends an event and bridges bus counters into the exported
// metrics. Handler-error attribution is best-effort under concurrent
// publishes; totals are exact.
func (e *Engine) publish(event events.Event) {
	e.bus.Publish(event)

	if e.metrics == nil {
		return
	}
	e.metrics.EventsPublishedTotal.WithLabelValues(string(event.Type)).Inc()
	cur := e.bus.Stats().HandlerErrors
	prev := e.handlerErrors.Swap(cur)
	if d := cur - prev; d > 0 {
		e.metrics.EventHandlerErrorsTotal.WithLabelValues(string(event.Type)).Add(float64(d))
	}
}

// syncLockMetrics rebridges the held-lock gauge from table stats. Set
// semantics self-correct any drift from renewals or racing expiry.
func (e *Engine) syncLockMetrics(ctx context.Context) {
	if e.metrics == nil && e.otel == nil {
		return
	}

	held := int64(e.table.TableStats().Held)
	prev := e.locksHeld.Swap(held)

	if e.metrics != nil {
		e.metrics.LocksHeld.Set(float64(held))
	}
	if e.otel != nil {
		if d := held - prev; d != 0 {
			e.otel.UpdateLocksHeld(ctx, d)
		}
	}
}

// syncCacheMetrics bridges the cache's internal counters into the
// exported sinks after a cache mutation.
func (e *Engine) syncCacheMetrics(ctx context.Context) {
	if e.metrics == nil && e.otel == nil {
		return
	}

	stats := e.cache.Stats()
	prevEntries := e.cacheEntries.Swap(stats.ItemCount)
	prevEvictions := e.cacheEvictions.Swap(stats.Evictions)

	if e.metrics != nil {
		e.metrics.CacheEntries.Set(float64(stats.ItemCount))
		if d := stats.Evictions - prevEvictions; d > 0 {
			e.metrics.CacheEvictionsTotal.Add(float64(d))
		}
	}
	if e.otel != nil {
		if d := stats.ItemCount - prevEntries; d != 0 {
			e.otel.UpdateCacheEntries(ctx, d)
		}
		if d := stats.Evictions - prevEvictions; d > 0 {
			e.otel.RecordCacheEvictions(ctx, d)
		}
	}
}

// syncPolicyMetrics updates the rule and plugin count gauges. Callers
// hold the admin lock.
func (e *Engine) syncPolicyMetrics() {
	if e.metrics == nil {
		return
	}
	e.metrics.RulesRegistered.Set(float64(e.rules.Count()))
	e.metrics.PluginsRegistered.Set(float64(e.registry.Count()))
}

// bumpGeneration advances the policy generation and eagerly drops the
// now-unreachable cache entries. Callers hold the admin lock.
func (e *Engine) bumpGeneration(ctx context.Context) uint64 {
	gen := e.generation.Add(1)
	e.cache.Purge()
	e.syncCacheMetrics(ctx)
	if e.metrics != nil {
		e.metrics.PolicyGeneration.Set(float64(gen))
	}
	return gen
}
