package cache

import (
	"context"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/snaplock/pkg/rules"
)

// DecisionCache is a bounded in-memory LRU cache of rule decisions.
// Entries are keyed by request identity plus the rule generation, so a
// generation bump invalidates everything without a sweep.
type DecisionCache struct {
	config  *Config
	cache   *lru.LRU[string, rules.Decision]
	metrics *metrics
}

// NewCache creates a new decision cache.
func NewCache(config *Config) (*DecisionCache, error) {
	if config == nil {
		config = DefaultConfig()
	}

	maxEntries := config.MaxEntries
	if maxEntries < 10 {
		maxEntries = 10 // Minimum 10 entries
	}

	m := newMetrics()

	cache := lru.NewLRU[string, rules.Decision](
		maxEntries,
		func(string, rules.Decision) { m.recordEviction() },
		config.TTL,
	)

	return &DecisionCache{
		config:  config,
		cache:   cache,
		metrics: m,
	}, nil
}

// Get retrieves a cached decision.
func (c *DecisionCache) Get(ctx context.Context, key Key) (rules.Decision, error) {
	if err := key.Validate(); err != nil {
		return rules.Decision{}, ErrInvalidCacheKey
	}

	decision, ok := c.cache.Get(key.String())
	if !ok {
		c.metrics.recordMiss()
		return rules.Decision{}, ErrCacheMiss
	}

	c.metrics.recordHit()
	return decision, nil
}

// Put stores a decision in the cache.
func (c *DecisionCache) Put(ctx context.Context, key Key, decision rules.Decision) error {
	if err := key.Validate(); err != nil {
		return ErrInvalidCacheKey
	}

	c.cache.Add(key.String(), decision)
	return nil
}

// Purge drops every cached decision. Generation bumps make old entries
// unreachable on their own; Purge releases the memory eagerly.
func (c *DecisionCache) Purge() {
	c.cache.Purge()
}

// Len returns the number of live entries.
func (c *DecisionCache) Len() int {
	return c.cache.Len()
}

// Stats returns cache statistics.
func (c *DecisionCache) Stats() Stats {
	stats := Stats{
		Hits:      c.metrics.getHits(),
		Misses:    c.metrics.getMisses(),
		Evictions: c.metrics.getEvictions(),
		ItemCount: int64(c.cache.Len()),
	}

	total := stats.Hits + stats.Misses
	if total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}

	return stats
}

// Close releases resources.
func (c *DecisionCache) Close() error {
	c.cache.Purge()
	return nil
}

// metrics tracks cache metrics
type metrics struct {
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

func newMetrics() *metrics {
	return &metrics{}
}

func (m *metrics) recordHit() {
	m.hits.Add(1)
}

func (m *metrics) recordMiss() {
	m.misses.Add(1)
}

func (m *metrics) recordEviction() {
	m.evictions.Add(1)
}

func (m *metrics) getHits() int64 {
	return m.hits.Load()
}

func (m *metrics) getMisses() int64 {
	return m.misses.Load()
}

func (m *metrics) getEvictions() int64 {
	return m.evictions.Load()
}
