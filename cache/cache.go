// Package cache is a small in-memory byte cache for fetched assets.
// Advertiser logos and posters repeat across cards and batches; serving
// repeats from memory keeps the fetch rate against the asset host down.
package cache

import (
	"sync"
	"time"
)

// entry holds cached bytes with their creation timestamp.
type entry struct {
	data      []byte
	createdAt time.Time
}

// Cache is a simple in-memory cache for asset bytes keyed by URL.
// It is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	maxAge     time.Duration
}

// New creates a Cache with the given capacity and entry lifetime.
// A background goroutine runs every 5 minutes to evict expired entries.
func New(maxEntries int, maxAge time.Duration) *Cache {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	c := &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		maxAge:     maxAge,
	}

	go c.cleanupLoop()
	return c
}

// Get retrieves cached bytes if present and younger than the lifetime.
func (c *Cache) Get(url string) ([]byte, bool) {
	c.mu.RLock()
	e, ok := c.store[url]
	c.mu.RUnlock()

	if !ok || time.Since(e.createdAt) > c.maxAge {
		return nil, false
	}
	return e.data, true
}

// Set stores bytes for a URL. If the cache is at capacity, a random
// entry is evicted to make room.
func (c *Cache) Set(url string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Evict one random entry if at capacity (map iteration is random in Go).
	if len(c.store) >= c.maxEntries {
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}

	c.store[url] = &entry{
		data:      data,
		createdAt: time.Now(),
	}
}

// cleanupLoop evicts expired entries every 5 minutes.
func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-c.maxAge)
		c.mu.Lock()
		for k, e := range c.store {
			if e.createdAt.Before(cutoff) {
				delete(c.store, k)
			}
		}
		c.mu.Unlock()
	}
}
