package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCapabilityCacheMarkAndExpire(t *testing.T) {
	clock := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	cache := newCapabilityCache(10*time.Minute, func() time.Time { return clock })

	assert.False(t, cache.Unsupported("market_confidence"))

	cache.MarkUnsupported("market_confidence")
	assert.True(t, cache.Unsupported("market_confidence"))
	assert.False(t, cache.Unsupported("detection"))

	// One second before the TTL the entry still holds.
	clock = clock.Add(10*time.Minute - time.Second)
	assert.True(t, cache.Unsupported("market_confidence"))

	// At the TTL boundary the entry expires and is pruned.
	clock = clock.Add(time.Second)
	assert.False(t, cache.Unsupported("market_confidence"))
	assert.False(t, cache.Unsupported("market_confidence"))
}

func TestCapabilityCacheRemarkRefreshesTTL(t *testing.T) {
	clock := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	cache := newCapabilityCache(10*time.Minute, func() time.Time { return clock })

	cache.MarkUnsupported("detection")
	clock = clock.Add(9 * time.Minute)
	cache.MarkUnsupported("detection")

	clock = clock.Add(9 * time.Minute)
	assert.True(t, cache.Unsupported("detection"))
}

func TestCapabilityCacheReset(t *testing.T) {
	cache := NewCapabilityCache(10 * time.Minute)
	cache.MarkUnsupported("market_confidence")
	cache.MarkUnsupported("detection")

	cache.Reset()

	assert.False(t, cache.Unsupported("market_confidence"))
	assert.False(t, cache.Unsupported("detection"))
}
