// Package cache holds recently fetched read results so repeated identical
// reads are served without spending upstream quota.
package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"concord/internal/logging"
	"concord/internal/observability"
)

const defaultMaxEntries = 512

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Loader fetches a value on a cache miss.
type Loader func(ctx context.Context) (any, error)

type entry struct {
	value     any
	expiresAt time.Time
	resources []string
}

// Cache is a bounded TTL cache with single-flight loading. Concurrent
// identical reads share one upstream fetch; write tools invalidate by the
// resource ids they touch.
type Cache struct {
	mu      sync.Mutex
	entries *lru.Cache[string, entry]
	// byResource maps a resource id to the keys whose cached value was
	// derived from it, so a write against the resource can evict them.
	byResource map[string]map[string]struct{}

	group   singleflight.Group
	clock   Clock
	logger  logging.Logger
	metrics *observability.MetricsCollector
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock injects an alternative clock.
func WithClock(clock Clock) Option {
	return func(c *Cache) { c.clock = clock }
}

// WithMetrics injects the metrics collector.
func WithMetrics(metrics *observability.MetricsCollector) Option {
	return func(c *Cache) { c.metrics = metrics }
}

// WithMaxEntries bounds the number of resident entries.
func WithMaxEntries(n int) Option {
	return func(c *Cache) { c.resize(n) }
}

// New creates a cache with the given logger.
func New(logger logging.Logger, opts ...Option) *Cache {
	c := &Cache{
		byResource: make(map[string]map[string]struct{}),
		clock:      systemClock{},
		logger:     logging.OrNop(logger),
		metrics:    &observability.MetricsCollector{},
	}
	c.resize(defaultMaxEntries)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// resize rebuilds the LRU. The evict callback runs while c.mu is held by the
// mutating call, so it must not lock.
func (c *Cache) resize(n int) {
	if n <= 0 {
		return
	}
	entries, err := lru.NewWithEvict[string, entry](n, func(key string, e entry) {
		c.unindex(key, e.resources)
	})
	if err == nil {
		c.entries = entries
	}
}

// Key builds the canonical cache key for a tool invocation. Map keys
// marshal in sorted order, so argument order never splits the cache.
func Key(tool string, args map[string]any) string {
	data, err := json.Marshal(args)
	if err != nil {
		return tool + "|" + time.Now().String() // unkeyable args never collide
	}
	return tool + "|" + string(data)
}

// GetOrLoad returns the cached value for key, or runs load to produce it.
// Concurrent callers with the same key share a single load. Failed loads
// are never cached. A ttl of zero disables caching for the call and load
// runs uncoalesced.
func (c *Cache) GetOrLoad(ctx context.Context, key, tool string, ttl time.Duration, resources []string, load Loader) (value any, hit bool, err error) {
	if ttl <= 0 {
		v, err := load(ctx)
		return v, false, err
	}

	if v, ok := c.lookup(key); ok {
		c.metrics.RecordCacheHit(ctx, tool)
		return v, true, nil
	}

	// Our closure only runs if this caller leads the flight; a follower
	// coalesced onto another caller's fetch counts as a hit, so only the
	// leader records the miss.
	led := false
	v, err, _ := c.group.Do(key, func() (any, error) {
		led = true
		c.metrics.RecordCacheMiss(ctx, tool)
		if v, ok := c.lookup(key); ok {
			return v, nil
		}
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.store(key, v, ttl, resources)
		return v, nil
	})
	if err != nil {
		return nil, false, err
	}
	if !led {
		c.metrics.RecordCacheHit(ctx, tool)
	}
	return v, !led, nil
}

// lookup returns a live entry, dropping it lazily when expired.
func (c *Cache) lookup(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	if !c.clock.Now().Before(e.expiresAt) {
		c.entries.Remove(key)
		return nil, false
	}
	return e.value, true
}

func (c *Cache) store(key string, value any, ttl time.Duration, resources []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Add(key, entry{
		value:     value,
		expiresAt: c.clock.Now().Add(ttl),
		resources: resources,
	})
	for _, id := range resources {
		keys, ok := c.byResource[id]
		if !ok {
			keys = make(map[string]struct{})
			c.byResource[id] = keys
		}
		keys[key] = struct{}{}
	}
}

func (c *Cache) unindex(key string, resources []string) {
	for _, id := range resources {
		if keys, ok := c.byResource[id]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(c.byResource, id)
			}
		}
	}
}

// Invalidate evicts every entry derived from any of the given resource ids
// and returns the number of entries removed. A successful write calls this
// so the next read observes its own effect.
func (c *Cache) Invalidate(resourceIDs ...string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for _, id := range resourceIDs {
		for key := range c.byResource[id] {
			if c.entries.Remove(key) {
				removed++
			}
		}
	}
	if removed > 0 {
		c.logger.Debug("Invalidated %d cache entries for %d resources", removed, len(resourceIDs))
	}
	return removed
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Purge()
}

// Len reports the number of resident entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Sweep removes expired entries eagerly and returns how many it dropped.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()
	removed := 0
	for _, key := range c.entries.Keys() {
		if e, ok := c.entries.Peek(key); ok && !now.Before(e.expiresAt) {
			c.entries.Remove(key)
			removed++
		}
	}
	return removed
}

// StartSweeper sweeps on interval until ctx is cancelled.
func (c *Cache) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := c.Sweep(); n > 0 {
					c.logger.Debug("Cache sweep removed %d expired entries", n)
				}
			}
		}
	}()
}
