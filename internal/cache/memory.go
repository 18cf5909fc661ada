package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache implements Cache in process memory, for tests and local
// development where no Redis is running. Expired entries are reported
// as absent on read and removed by a background cleanup loop.
type MemoryCache struct {
	mu   sync.RWMutex
	data map[string]*cacheEntry
	stop chan struct{}
}

type cacheEntry struct {
	value      []byte
	expiration time.Time
}

// NewMemoryCache creates a new in-memory cache.
func NewMemoryCache() *MemoryCache {
	mc := &MemoryCache{
		data: make(map[string]*cacheEntry),
		stop: make(chan struct{}),
	}
	go mc.cleanupLoop()
	return mc
}

// Get retrieves a value, returning (nil, nil) for absent or expired keys.
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.data[key]
	if !ok || time.Now().After(entry.expiration) {
		return nil, nil
	}
	return entry.value, nil
}

// Set stores a value with a TTL.
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = &cacheEntry{
		value:      value,
		expiration: time.Now().Add(ttl),
	}
	return nil
}

// Delete removes a value.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.data, key)
	return nil
}

// CleanupExpired removes expired entries.
func (c *MemoryCache) CleanupExpired(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.data {
		if now.After(entry.expiration) {
			delete(c.data, key)
		}
	}
	return nil
}

// Ping always succeeds for the in-memory cache.
func (c *MemoryCache) Ping(ctx context.Context) error {
	return nil
}

// Close stops the cleanup loop and drops all entries.
func (c *MemoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.stop:
	default:
		close(c.stop)
	}
	c.data = make(map[string]*cacheEntry)
	return nil
}

func (c *MemoryCache) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.CleanupExpired(context.Background())
		case <-c.stop:
			return
		}
	}
}

var _ Cache = (*MemoryCache)(nil)
