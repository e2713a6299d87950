package cache

import "time"

// Stats represents cache statistics
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	HitRate   float64
	ItemCount int64
}

// Config holds cache configuration
type Config struct {
	MaxEntries int           // Max cached decisions (default: 4096)
	TTL        time.Duration // TTL for cache entries; 0 disables expiry
}

// DefaultConfig returns default cache configuration. The TTL default
// is zero: generation bumps already shadow stale entries, so age-based
// expiry is an opt-in backstop rather than the invalidation mechanism.
func DefaultConfig() *Config {
	return &Config{
		MaxEntries: 4096,
		TTL:        0,
	}
}
