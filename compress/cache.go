package compress

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// CacheKey derives the content-addressed cache key for a turn. The hash
// covers the content and the active instructions, so a prompt change is a
// fresh key rather than a stale hit.
func CacheKey(content, instructions string) string {
	h := sha256.New()
	h.Write([]byte(content))
	h.Write([]byte{0})
	h.Write([]byte(instructions))
	return hex.EncodeToString(h.Sum(nil))
}

// Cache memoizes compression results by content hash. It is bounded:
// once capacity is exceeded, the oldest-inserted entry is evicted. Safe
// for concurrent callers; it is the only synchronization point between
// compression workers.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]string
	order    []string // insertion order, oldest first

	hits   uint64
	misses uint64
}

// NewCache creates a cache holding at most capacity entries.
func NewCache(capacity int) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[string]string, capacity),
	}
}

// Get returns the cached value for key, if present.
func (c *Cache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return v, ok
}

// Put stores a value. Re-putting an existing key keeps its original
// insertion position, so the mapping stays stable (idempotent).
func (c *Cache) Put(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; ok {
		return // first write wins; identical input yields identical output
	}
	c.entries[key] = value
	c.order = append(c.order, key)
	for len(c.entries) > c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

// GetOrCompute returns the cached value for key, or computes, stores, and
// returns it. The compute function runs outside the lock: concurrent
// callers with the same key may duplicate work, but writes to the same key
// cannot corrupt the entry.
func (c *Cache) GetOrCompute(key string, compute func() (string, error)) (string, bool, error) {
	if v, ok := c.Get(key); ok {
		return v, true, nil
	}
	v, err := compute()
	if err != nil {
		return "", false, err
	}
	c.Put(key, v)
	// A concurrent computation may have won the Put; return the stored
	// value so every caller observes the same final entry.
	if stored, ok := c.Get(key); ok {
		return stored, false, nil
	}
	return v, false, nil
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns cumulative hit and miss counts.
func (c *Cache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
