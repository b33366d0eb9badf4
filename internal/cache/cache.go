// Package cache provides named, bounded TTL caches with hit/miss
// accounting. Each cache tracks its own statistics and registers with a
// Registry so admin endpoints can report and evict across all of them.
package cache

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// Options bound a cache's size and entry lifetime.
type Options struct {
	MaxEntries int
	TTL        time.Duration
}

// DefaultOptions returns the standard cache bounds used across the
// service: 500 entries per cache, entries expiring an hour after write.
func DefaultOptions() Options {
	return Options{
		MaxEntries: 500,
		TTL:        time.Hour,
	}
}

// Stats is a point-in-time snapshot of a cache's counters.
type Stats struct {
	Name          string `json:"cacheName"`
	Hits          int64  `json:"hitCount"`
	Misses        int64  `json:"missCount"`
	HitRate       string `json:"hitRate"`
	Evictions     int64  `json:"evictionCount"`
	Size          int    `json:"estimatedSize"`
	Loads         int64  `json:"loadCount"`
	TotalLoadTime string `json:"totalLoadTime"`
	AvgLoadTime   string `json:"averageLoadTime"`
}

// Cache is a bounded TTL cache over string keys. Concurrent loads of
// the same key are collapsed so a cold key is fetched once.
type Cache[V any] struct {
	name      string
	lru       *expirable.LRU[string, V]
	group     singleflight.Group
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
	loads     atomic.Int64
	loadNanos atomic.Int64
}

// New creates a named cache with the given bounds.
func New[V any](name string, opts Options) *Cache[V] {
	c := &Cache[V]{name: name}
	c.lru = expirable.NewLRU[string, V](opts.MaxEntries, func(string, V) {
		c.evictions.Add(1)
	}, opts.TTL)
	return c
}

// Name returns the cache's registered name.
func (c *Cache[V]) Name() string { return c.name }

// Get returns the cached value for key, counting the lookup as a hit
// or miss.
func (c *Cache[V]) Get(key string) (V, bool) {
	v, ok := c.lru.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

// Put stores a value under key.
func (c *Cache[V]) Put(key string, v V) {
	c.lru.Add(key, v)
}

// GetOrLoad returns the cached value for key, or invokes load to
// produce it. Only one load runs per key at a time; concurrent callers
// share the result. Load errors are not cached.
func (c *Cache[V]) GetOrLoad(key string, load func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	res, err, _ := c.group.Do(key, func() (any, error) {
		// Recheck under the flight: another caller may have stored it.
		if v, ok := c.lru.Get(key); ok {
			return v, nil
		}
		start := time.Now()
		v, err := load()
		c.loads.Add(1)
		c.loadNanos.Add(int64(time.Since(start)))
		if err != nil {
			return nil, err
		}
		c.lru.Add(key, v)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return res.(V), nil
}

// Evict removes a single key, reporting whether it was present.
func (c *Cache[V]) Evict(key string) bool {
	return c.lru.Remove(key)
}

// Clear drops every entry.
func (c *Cache[V]) Clear() {
	c.lru.Purge()
}

// Stats snapshots the cache's counters.
func (c *Cache[V]) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	rate := 0.0
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total) * 100
	}
	loads := c.loads.Load()
	totalLoad := time.Duration(c.loadNanos.Load())
	avgLoad := time.Duration(0)
	if loads > 0 {
		avgLoad = totalLoad / time.Duration(loads)
	}
	return Stats{
		Name:          c.name,
		Hits:          hits,
		Misses:        misses,
		HitRate:       fmt.Sprintf("%.2f%%", rate),
		Evictions:     c.evictions.Load(),
		Size:          c.lru.Len(),
		Loads:         loads,
		TotalLoadTime: totalLoad.String(),
		AvgLoadTime:   avgLoad.String(),
	}
}
