// Package entitycache provides the coalescing entity cache: a
// ristretto-backed cache with a singleflight guard so concurrent misses
// for the same key trigger at most one build.
package entitycache

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto"
	"golang.org/x/sync/singleflight"

	"cedarguard/internal/entity"
	"cedarguard/internal/logger"
)

// Config configures the cache per the tunables a deployment exposes:
// maximum size, write/access TTLs, whether negative lookups are cached,
// and whether hit-rate statistics are tracked.
type Config struct {
	MaxSize        int64
	TTLAfterWrite  time.Duration
	TTLAfterAccess time.Duration
	CacheNegatives bool
	RecordStats    bool
}

// DefaultConfig matches the configuration surface's documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxSize:        10000,
		TTLAfterWrite:  5 * time.Minute,
		TTLAfterAccess: 0,
		CacheNegatives: false,
		RecordStats:    false,
	}
}

// BuildFunc resolves a cache miss for key into an entity (nil if the
// entity does not exist).
type BuildFunc func(ctx context.Context, key entity.UID) (*entity.Entity, error)

// Cache is the coalescing entity cache: a bounded, TTL-evicted cache in
// front of a BuildFunc, with an at-most-one-build-per-key invariant
// enforced via singleflight.
type Cache struct {
	cfg    Config
	ristr  *ristretto.Cache[string, entry]
	flight singleflight.Group
	log    *slog.Logger

	hits   atomic.Uint64
	misses atomic.Uint64
}

type entry struct {
	entity   *entity.Entity
	negative bool
}

// New builds a Cache with the given configuration.
func New(cfg Config) (*Cache, error) {
	numCounters := cfg.MaxSize * 10
	if numCounters < 1000 {
		numCounters = 1000
	}
	ristr, err := ristretto.NewCache(&ristretto.Config[string, entry]{
		NumCounters: numCounters,
		MaxCost:     cfg.MaxSize,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}

	return &Cache{
		cfg:   cfg,
		ristr: ristr,
		log:   logger.WithComponent("entitycache"),
	}, nil
}

// GetOrBuild returns the cached entity for key, building it with build on
// a miss. Concurrent GetOrBuild calls for the same key share a single
// in-flight build via singleflight, satisfying the at-most-one-build
// invariant regardless of how many goroutines miss at once.
func (c *Cache) GetOrBuild(ctx context.Context, key entity.UID, build BuildFunc) (*entity.Entity, error) {
	cacheKey := key.String()

	if e, ok := c.ristr.Get(cacheKey); ok {
		c.recordHit()
		if c.cfg.TTLAfterAccess > 0 {
			// Ristretto has no native sliding TTL; re-inserting on read
			// pushes the expiry out by the access TTL.
			c.ristr.SetWithTTL(cacheKey, e, 1, c.cfg.TTLAfterAccess)
		}
		if e.negative {
			return nil, nil
		}
		return e.entity, nil
	}
	c.recordMiss()

	v, err, _ := c.flight.Do(cacheKey, func() (interface{}, error) {
		e, err := build(ctx, key)
		if err != nil {
			return nil, err
		}
		c.store(cacheKey, e)
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	return v.(*entity.Entity), nil
}

// Invalidate evicts key from the cache so the next lookup rebuilds it.
func (c *Cache) Invalidate(key entity.UID) {
	c.ristr.Del(key.String())
}

// Close releases cache resources.
func (c *Cache) Close() {
	c.ristr.Close()
}

func (c *Cache) store(cacheKey string, e *entity.Entity) {
	if e == nil && !c.cfg.CacheNegatives {
		return
	}
	ttl := c.cfg.TTLAfterWrite
	if ttl <= 0 {
		c.ristr.Set(cacheKey, entry{entity: e, negative: e == nil}, 1)
		return
	}
	c.ristr.SetWithTTL(cacheKey, entry{entity: e, negative: e == nil}, 1, ttl)
}

func (c *Cache) recordHit() {
	if c.cfg.RecordStats {
		c.hits.Add(1)
	}
}

func (c *Cache) recordMiss() {
	if c.cfg.RecordStats {
		c.misses.Add(1)
	}
}

// Stats returns (hits, misses) recorded so far. Both are always zero
// unless Config.RecordStats is set.
func (c *Cache) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}
