package store

import (
	"sync"
	"time"
)

// CapabilityCache remembers which optional columns the live schema rejected
// so the store does not fail the same way on every write. Entries expire
// after a TTL so schema upgrades are picked up without a restart. The cache
// is advisory and safe to lose.
//
// It is injected into each store rather than held as a process global so
// tests can reset it deterministically.
type CapabilityCache struct {
	mu          sync.Mutex
	ttl         time.Duration
	now         func() time.Time
	unsupported map[string]time.Time
}

// NewCapabilityCache creates a cache with the given TTL.
func NewCapabilityCache(ttl time.Duration) *CapabilityCache {
	return newCapabilityCache(ttl, time.Now)
}

func newCapabilityCache(ttl time.Duration, now func() time.Time) *CapabilityCache {
	return &CapabilityCache{
		ttl:         ttl,
		now:         now,
		unsupported: make(map[string]time.Time),
	}
}

// Unsupported reports whether a column was recently rejected by the schema.
// Expired entries are pruned on read.
func (c *CapabilityCache) Unsupported(column string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	at, ok := c.unsupported[column]
	if !ok {
		return false
	}
	if c.now().Sub(at) >= c.ttl {
		delete(c.unsupported, column)
		return false
	}
	return true
}

// MarkUnsupported records that the schema rejected a column.
func (c *CapabilityCache) MarkUnsupported(column string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unsupported[column] = c.now()
}

// Reset clears all entries.
func (c *CapabilityCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unsupported = make(map[string]time.Time)
}
