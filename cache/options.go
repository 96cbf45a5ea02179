package cache

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/chaptercache/chunking"
)

// Eviction selects what a quota-driven eviction removes.
type Eviction string

const (
	// EvictBook removes the manifest and every chapter of the least
	// recently used book together.
	EvictBook Eviction = "book"
	// EvictRecord removes least recently used physical records one by one,
	// which can leave a book partially available.
	EvictRecord Eviction = "record"
)

// ParseEviction converts a configuration value into an Eviction.
func ParseEviction(s string) (Eviction, error) {
	switch e := Eviction(s); e {
	case EvictBook, EvictRecord:
		return e, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidEviction, s)
	}
}

// Option configures a Cache.
type Option func(*Cache) error

// WithRegistry sets the resource families the cache splits.
// Default is chunking.DefaultRegistry().
func WithRegistry(registry *chunking.Registry) Option {
	return func(c *Cache) error {
		if registry != nil {
			c.registry = registry
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// WithDefaultTTL sets the lifetime given to entries written without an expiry.
// Zero (the default) means such entries never expire.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *Cache) error {
		if ttl < 0 {
			return fmt.Errorf("default TTL cannot be negative: %s", ttl)
		}
		c.defaultTTL = ttl
		return nil
	}
}

// WithQuota bounds the bytes held by the store. Writes that push the
// store over the quota trigger eviction. Zero (the default) is unbounded.
func WithQuota(bytes int64) Option {
	return func(c *Cache) error {
		if bytes < 0 {
			return fmt.Errorf("quota cannot be negative: %d", bytes)
		}
		c.quota = bytes
		return nil
	}
}

// WithEviction sets the eviction granularity. Default is EvictBook.
func WithEviction(e Eviction) Option {
	return func(c *Cache) error {
		e, err := ParseEviction(string(e))
		if err != nil {
			return err
		}
		c.eviction = e
		return nil
	}
}

// WithCascadeDelete controls whether deleting or rewriting a logical key
// removes its chapter records. Default is true.
func WithCascadeDelete(enabled bool) Option {
	return func(c *Cache) error {
		c.cascade = enabled
		return nil
	}
}

// WithPoolSize sets the worker pool size for bulk operations.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(c *Cache) error {
		if size < 1 {
			size = 1
		}
		c.poolSize = size
		return nil
	}
}

// WithMonitor installs hooks observing cache activity.
func WithMonitor(m Monitor) Option {
	return func(c *Cache) error {
		if m == nil {
			m = NoopMonitor()
		}
		c.monitor = m
		return nil
	}
}

// WithClock overrides the time source used for default expiries.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) error {
		if now != nil {
			c.now = now
		}
		return nil
	}
}
