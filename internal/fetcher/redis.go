package fetcher

import (
	"context"
	"encoding/json"
	"fmt"

	"cedarguard/internal/cache"
	"cedarguard/internal/entity"
)

// redisEntity is the JSON wire shape stored under each cache key.
type redisEntity struct {
	Attrs   map[string]any `json:"attrs"`
	Parents []string       `json:"parents,omitempty"`
}

// RedisFetcher is a read-through fetcher over a pre-populated Redis
// namespace, used when entities are published into Redis by an upstream
// system rather than queried from a relational store. It implements
// Fetcher directly against cache.Cache so it works with either the real
// go-redis client or the in-memory cache used in tests.
type RedisFetcher struct {
	entityType string
	cache      cache.Cache
}

// NewRedisFetcher builds a fetcher for entityType reading JSON-encoded
// entities from c under keys "entity:<type>:<id>".
func NewRedisFetcher(entityType string, c cache.Cache) *RedisFetcher {
	return &RedisFetcher{entityType: entityType, cache: c}
}

func (f *RedisFetcher) key(id string) string {
	return fmt.Sprintf("entity:%s:%s", f.entityType, id)
}

// Fetch implements Fetcher.
func (f *RedisFetcher) Fetch(ctx context.Context, id string) (*entity.Entity, error) {
	raw, err := f.cache.Get(ctx, f.key(id))
	if err != nil {
		return nil, fmt.Errorf("fetcher: redis fetch %s::%q: %w", f.entityType, id, err)
	}
	if raw == nil {
		return nil, nil
	}

	var wire redisEntity
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("fetcher: decoding redis entity %s::%q: %w", f.entityType, id, err)
	}

	e := entity.NewEntity(entity.NewUID(f.entityType, id))
	e.Attrs = jsonToRecord(wire.Attrs)
	for _, ref := range wire.Parents {
		uid, err := entity.ParseUID(ref)
		if err != nil {
			return nil, err
		}
		e.Parents = append(e.Parents, uid)
	}
	return e, nil
}

// FetchBatch implements Fetcher using the shared concurrent default; Redis
// GETs don't benefit from the repository-native batching SQLFetcher gets,
// so fanning out individual Fetch calls is the idiomatic choice here.
func (f *RedisFetcher) FetchBatch(ctx context.Context, ids []string) (map[string]*entity.Entity, error) {
	return DefaultFetchBatch(ctx, f, ids)
}
