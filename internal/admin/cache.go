package admin

import (
	"sync"
	"time"
)

// StatsCache keeps the last statistics snapshot for a fixed time. A zero TTL disables caching.
type StatsCache struct {
	ttl time.Duration

	mu    sync.Mutex
	value *Statistics
	at    time.Time
	gen   uint64
}

func NewStatsCache(ttl time.Duration) *StatsCache {
	return &StatsCache{ttl: ttl}
}

// Get returns the cached snapshot if it is younger than the TTL at now, together
// with the generation a freshly computed snapshot must be stored under.
func (c *StatsCache) Get(now time.Time) (Statistics, uint64, bool) {
	if c == nil {
		return Statistics{}, 0, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ttl <= 0 || c.value == nil || now.Sub(c.at) >= c.ttl {
		return Statistics{}, c.gen, false
	}
	return *c.value, c.gen, true
}

// Generation reports the current invalidation counter.
func (c *StatsCache) Generation() uint64 {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// Set stores stats unless Invalidate ran after gen was read.
func (c *StatsCache) Set(stats Statistics, now time.Time, gen uint64) {
	if c == nil || c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.value = &stats
	c.at = now
}

// Invalidate drops the snapshot; mutations call it so the next read is fresh.
func (c *StatsCache) Invalidate() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = nil
	c.gen++
}
