// Package cache provides the byte-value cache behind the Redis
// read-through entity fetcher: a narrow Get/Set/Delete interface with a
// go-redis implementation for deployments that publish entity records
// into Redis, and an in-memory implementation for tests and local
// development.
package cache

import (
	"context"
	"time"
)

// Cache is the store the read-through fetcher loads entity records from.
type Cache interface {
	// Get retrieves a value, returning (nil, nil) when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores a value with a TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes a value.
	Delete(ctx context.Context, key string) error
	// Ping checks the backing store is reachable.
	Ping(ctx context.Context) error
	// Close releases the connection.
	Close() error
}
