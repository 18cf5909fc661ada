// Package secrets provides centralized secret loading from Infisical for
// the demo cmd's own operationally-sensitive config (database DSN, Redis
// password). The core runtime has no credentials of its own to load.
package secrets

import (
	"context"
	"os"
)

// Loader provides centralized secret loading with Infisical fallback.
type Loader struct {
	client *Client
	ctx    context.Context
}

// NewLoader creates a new secrets loader.
func NewLoader() (*Loader, error) {
	cfg := LoadConfig()

	// If Infisical not configured, return loader with nil client
	if cfg.Token == "" {
		return &Loader{ctx: context.Background()}, nil
	}

	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}

	return &Loader{
		client: client,
		ctx:    context.Background(),
	}, nil
}

// LoadDatabaseDSN loads the database connection string.
// Priority: 1. Infisical secret, 2. CEDARGUARD_DB_DSN env, 3. fallback.
func (l *Loader) LoadDatabaseDSN(fallback string) string {
	if l.client != nil {
		value, err := l.client.GetSecret(l.ctx, "database_url")
		if err == nil && value != "" {
			return value
		}
	}

	if val := os.Getenv("CEDARGUARD_DB_DSN"); val != "" {
		return val
	}

	return fallback
}

// LoadRedisPassword loads the Redis password, if any, for the Redis
// read-through fetcher.
func (l *Loader) LoadRedisPassword() string {
	if l.client != nil {
		value, err := l.client.GetSecret(l.ctx, "redis_password")
		if err == nil && value != "" {
			return value
		}
	}

	return os.Getenv("CEDARGUARD_REDIS_PASSWORD")
}

// Close closes the loader and its client.
func (l *Loader) Close() error {
	if l.client != nil {
		return l.client.Health(l.ctx) // Just check health, no close needed
	}
	return nil
}

// IsInfisicalEnabled returns true if Infisical is configured.
func (l *Loader) IsInfisicalEnabled() bool {
	return l.client != nil
}
