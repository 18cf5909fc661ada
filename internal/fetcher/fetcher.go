// Package fetcher loads individual entities from their system of record
// (a database, cache, or in-memory table) on behalf of the entity store.
package fetcher

import (
	"context"

	"cedarguard/internal/entity"
)

// Fetcher loads entities of a single Cedar entity type.
type Fetcher interface {
	// Fetch loads a single entity by id. It returns (nil, nil) if no such
	// entity exists; a non-nil error indicates the lookup itself failed.
	Fetch(ctx context.Context, id string) (*entity.Entity, error)

	// FetchBatch loads many entities by id in one call. The returned map
	// may omit ids that don't exist; it must never contain an id that was
	// not requested.
	FetchBatch(ctx context.Context, ids []string) (map[string]*entity.Entity, error)
}

// Func adapts a plain Fetch function into a Fetcher whose FetchBatch runs
// Fetch concurrently for each id, the behavior every fetcher gets for free
// unless it implements a native batch path.
type Func func(ctx context.Context, id string) (*entity.Entity, error)

// Fetch implements Fetcher.
func (f Func) Fetch(ctx context.Context, id string) (*entity.Entity, error) {
	return f(ctx, id)
}

// FetchBatch implements Fetcher using the shared concurrent default.
func (f Func) FetchBatch(ctx context.Context, ids []string) (map[string]*entity.Entity, error) {
	return DefaultFetchBatch(ctx, f, ids)
}
