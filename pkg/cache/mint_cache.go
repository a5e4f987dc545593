package cache

import (
	"hash/fnv"
	"sync"
	"time"
)

const numShards = 16

// MintCache is a sharded cache for per-mint data: the latest curve price
// and the mint's decimals. Decimals are immutable once known; prices carry
// an age so stale reads can be rejected.
type MintCache struct {
	shards [numShards]*mintShard
}

type mintShard struct {
	mu    sync.RWMutex
	items map[string]mintEntry
}

type mintEntry struct {
	price       float64
	priceAt     time.Time
	decimals    int
	hasDecimals bool
}

// NewMintCache creates a new sharded mint cache.
func NewMintCache() *MintCache {
	c := &MintCache{}
	for i := 0; i < numShards; i++ {
		c.shards[i] = &mintShard{
			items: make(map[string]mintEntry),
		}
	}
	return c
}

// getShard returns the shard for the given mint.
func (c *MintCache) getShard(mint string) *mintShard {
	h := fnv.New32a()
	h.Write([]byte(mint))
	return c.shards[h.Sum32()%numShards]
}

// SetPrice stores the latest price for a mint.
func (c *MintCache) SetPrice(mint string, price float64) {
	shard := c.getShard(mint)
	shard.mu.Lock()
	entry := shard.items[mint]
	entry.price = price
	entry.priceAt = time.Now()
	shard.items[mint] = entry
	shard.mu.Unlock()
}

// PriceWithAge retrieves a price and how long ago it was set.
func (c *MintCache) PriceWithAge(mint string) (float64, time.Duration, bool) {
	shard := c.getShard(mint)
	shard.mu.RLock()
	entry, ok := shard.items[mint]
	shard.mu.RUnlock()
	if !ok || entry.priceAt.IsZero() {
		return 0, 0, false
	}
	return entry.price, time.Since(entry.priceAt), true
}

// SetDecimals records the mint's decimals. Decimals never change, so the
// first write sticks.
func (c *MintCache) SetDecimals(mint string, decimals int) {
	shard := c.getShard(mint)
	shard.mu.Lock()
	entry := shard.items[mint]
	if !entry.hasDecimals {
		entry.decimals = decimals
		entry.hasDecimals = true
		shard.items[mint] = entry
	}
	shard.mu.Unlock()
}

// Decimals returns the mint's decimals if known.
func (c *MintCache) Decimals(mint string) (int, bool) {
	shard := c.getShard(mint)
	shard.mu.RLock()
	entry, ok := shard.items[mint]
	shard.mu.RUnlock()
	if !ok || !entry.hasDecimals {
		return 0, false
	}
	return entry.decimals, true
}

// Len returns total mints across all shards.
func (c *MintCache) Len() int {
	total := 0
	for _, shard := range c.shards {
		shard.mu.RLock()
		total += len(shard.items)
		shard.mu.RUnlock()
	}
	return total
}

// Cleanup removes entries whose price is older than maxAge. Entries with
// known decimals but no price survive; decimals are cheap to keep.
func (c *MintCache) Cleanup(maxAge time.Duration) int {
	removed := 0
	cutoff := time.Now().Add(-maxAge)

	for _, shard := range c.shards {
		shard.mu.Lock()
		for mint, entry := range shard.items {
			if !entry.priceAt.IsZero() && entry.priceAt.Before(cutoff) && !entry.hasDecimals {
				delete(shard.items, mint)
				removed++
			}
		}
		shard.mu.Unlock()
	}
	return removed
}
