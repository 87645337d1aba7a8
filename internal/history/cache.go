// ================================
// File: internal/history/cache.go
// ================================
package history

import (
	"sync"
	"time"
)

// seriesCache holds assembled price series per window key, expiring
// after ttl. Entries are copied on read and write so cached series are
// never aliased by callers.
type seriesCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]seriesEntry
}

type seriesEntry struct {
	points   []PriceDataPoint
	storedAt time.Time
}

func newSeriesCache(ttl time.Duration) *seriesCache {
	return &seriesCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]seriesEntry),
	}
}

func (c *seriesCache) Get(key string) ([]PriceDataPoint, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || c.now().Sub(entry.storedAt) > c.ttl {
		return nil, false
	}
	out := make([]PriceDataPoint, len(entry.points))
	copy(out, entry.points)
	return out, true
}

func (c *seriesCache) Set(key string, points []PriceDataPoint) {
	stored := make([]PriceDataPoint, len(points))
	copy(stored, points)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = seriesEntry{points: stored, storedAt: c.now()}
}
