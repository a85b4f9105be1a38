package adapter

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	defaultCacheSize = 1000
	sweepInterval    = 60 * time.Second
)

type cacheEntry struct {
	value      any
	expiresAt  time.Time
}

// CacheStats mirrors Cache.Stats()'s return shape.
type CacheStats struct {
	TotalRequests int64   `json:"totalRequests"`
	Hits          int64   `json:"hits"`
	Misses        int64   `json:"misses"`
	HitRate       float64 `json:"hitRate"`
	CurrentSize   int     `json:"currentSize"`
	MaxSize       int     `json:"maxSize"`
}

// cacheBackend is the interface seat a response cache tier fills. Cache is
// its only implementation; no L2 (remote) tier exists.
type cacheBackend interface {
	Get(key string) (any, bool)
	Set(key string, value any, ttl time.Duration)
	Delete(key string)
	Clear()
}

var _ cacheBackend = (*Cache)(nil)

// Cache is the adapter's L1 response cache: an LRU of bounded size with
// per-entry TTL, lazily expiring on Get and swept periodically.
type Cache struct {
	mu      sync.Mutex
	lru     *lru.Cache[string, *cacheEntry]
	maxSize int

	requests int64
	hits     int64
	misses   int64

	stop chan struct{}
}

// NewCache builds a Cache holding at most maxSize entries (default 1000).
func NewCache(maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = defaultCacheSize
	}
	l, _ := lru.New[string, *cacheEntry](maxSize)
	c := &Cache{lru: l, maxSize: maxSize, stop: make(chan struct{})}
	go c.sweepLoop()
	return c
}

func (c *Cache) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *Cache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for _, key := range c.lru.Keys() {
		if entry, ok := c.lru.Peek(key); ok && now.After(entry.expiresAt) {
			c.lru.Remove(key)
		}
	}
}

// Close stops the periodic sweeper.
func (c *Cache) Close() { close(c.stop) }

// Get returns the cached value for key, if present and unexpired.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests++

	entry, ok := c.lru.Get(key)
	if !ok || time.Now().After(entry.expiresAt) {
		if ok {
			c.lru.Remove(key)
		}
		c.misses++
		return nil, false
	}
	c.hits++
	return entry.value, true
}

// Set stores value under key with the given ttl. The underlying LRU evicts
// the least-recently-used entry itself once maxSize is exceeded.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, &cacheEntry{value: value, expiresAt: time.Now().Add(ttl)})
}

func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(key)
}

func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	var hitRate float64
	if c.requests > 0 {
		hitRate = float64(c.hits) / float64(c.requests)
	}
	return CacheStats{
		TotalRequests: c.requests,
		Hits:          c.hits,
		Misses:        c.misses,
		HitRate:       hitRate,
		CurrentSize:   c.lru.Len(),
		MaxSize:       c.maxSize,
	}
}
