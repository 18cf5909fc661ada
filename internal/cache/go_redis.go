package cache

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// GoRedisCache implements Cache over a go-redis client. Every key is
// namespaced with the configured prefix so one Redis database can serve
// several entity types (the read-through fetcher adds its own
// per-entity-type segment on top).
type GoRedisCache struct {
	client    *redis.Client
	keyPrefix string
}

// GoRedisConfig holds the go-redis connection settings. Zero values fall
// back to the client library's own defaults.
type GoRedisConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolTimeout  time.Duration
	KeyPrefix    string
	UseTLS       bool
}

// NewGoRedis connects to Redis and verifies the connection before
// returning.
func NewGoRedis(config *GoRedisConfig) (*GoRedisCache, error) {
	if config == nil || config.Addr == "" {
		return nil, fmt.Errorf("cache: redis address is required")
	}

	opts := &redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		MaxRetries:   config.MaxRetries,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		PoolTimeout:  config.PoolTimeout,
	}

	if config.UseTLS {
		opts.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	client := redis.NewClient(opts)

	dialTimeout := config.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cache: failed to connect to redis: %w", err)
	}

	return &GoRedisCache{
		client:    client,
		keyPrefix: config.KeyPrefix,
	}, nil
}

func (c *GoRedisCache) prefixKey(key string) string {
	return c.keyPrefix + key
}

// Get retrieves a value; a missing key is (nil, nil), not an error.
func (c *GoRedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := c.client.Get(ctx, c.prefixKey(key)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache: get failed: %w", err)
	}
	return []byte(result), nil
}

// Set stores a value with a TTL.
func (c *GoRedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefixKey(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("cache: set failed: %w", err)
	}
	return nil
}

// Delete removes a key.
func (c *GoRedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.prefixKey(key)).Err(); err != nil {
		return fmt.Errorf("cache: delete failed: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (c *GoRedisCache) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cache: ping failed: %w", err)
	}
	return nil
}

// Close shuts down the connection pool.
func (c *GoRedisCache) Close() error {
	if err := c.client.Close(); err != nil {
		return fmt.Errorf("cache: close failed: %w", err)
	}
	return nil
}

var _ Cache = (*GoRedisCache)(nil)
