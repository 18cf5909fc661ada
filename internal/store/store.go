// Package store provides the entity store: the façade that resolves
// entity identifiers to fully-loaded entity graphs (including parents) by
// delegating to the fetcher registry and guarding against unbounded or
// cyclic parent chains.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"cedarguard/internal/entity"
	"cedarguard/internal/fetcher"
	"cedarguard/internal/logger"
)

// DefaultMaxParentChainDepth is the default bound on how many parent hops
// the store will walk before giving up on an entity's ancestry.
const DefaultMaxParentChainDepth = 32

// Result is the outcome of a load operation: the entities that were
// resolved, plus diagnostics about anything that didn't fully resolve.
type Result struct {
	Entities  *entity.Entities
	Truncated []entity.UID // entities whose parent chain hit MaxParentChainDepth
	Missing   []entity.UID // requested UIDs that no fetcher could resolve
}

// Store loads entities (with their transitive parents) on demand from the
// fetcher registry.
type Store struct {
	registry            *fetcher.Registry
	maxParentChainDepth int
	log                 *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithMaxParentChainDepth overrides DefaultMaxParentChainDepth.
func WithMaxParentChainDepth(depth int) Option {
	return func(s *Store) {
		if depth > 0 {
			s.maxParentChainDepth = depth
		}
	}
}

// New builds a Store backed by registry.
func New(registry *fetcher.Registry, opts ...Option) *Store {
	s := &Store{
		registry:            registry,
		maxParentChainDepth: DefaultMaxParentChainDepth,
		log:                 logger.WithComponent("store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadEntity loads a single entity and its transitive parent chain.
func (s *Store) LoadEntity(ctx context.Context, uid entity.UID) (*Result, error) {
	return s.LoadEntities(ctx, []entity.UID{uid})
}

// LoadEntities loads each of uids and their transitive parent chains,
// merging the results into a single entity collection.
func (s *Store) LoadEntities(ctx context.Context, uids []entity.UID) (*Result, error) {
	w := &walker{
		store:     s,
		entities:  entity.NewEntities(),
		depth:     make(map[entity.UID]int),
		resolving: make(map[entity.UID]bool),
	}

	for _, uid := range uids {
		if err := w.resolve(ctx, uid, 0); err != nil {
			return nil, err
		}
	}

	return &Result{
		Entities:  w.entities,
		Truncated: w.truncated,
		Missing:   w.missing,
	}, nil
}

// LoadEntityWithParents loads a single entity, returning it directly along
// with the full Result for its ancestry.
func (s *Store) LoadEntityWithParents(ctx context.Context, uid entity.UID) (*entity.Entity, *Result, error) {
	result, err := s.LoadEntity(ctx, uid)
	if err != nil {
		return nil, nil, err
	}
	e, _ := result.Entities.Find(uid)
	return e, result, nil
}

// LoadForRequest loads the principal and resource entities (and their
// ancestries) needed to evaluate a single authorization request. Action
// entities are not loaded: Cedar actions are referenced by the policy
// set itself and do not carry the attribute/parent data a fetcher would
// resolve.
func (s *Store) LoadForRequest(ctx context.Context, principal, resource entity.UID) (*Result, error) {
	return s.LoadEntities(ctx, []entity.UID{principal, resource})
}

// LoadForBatch loads the union of entities required by many requests in
// one pass, so shared principals/resources are fetched only once.
func (s *Store) LoadForBatch(ctx context.Context, uids []entity.UID) (*Result, error) {
	seen := make(map[entity.UID]bool, len(uids))
	dedup := make([]entity.UID, 0, len(uids))
	for _, uid := range uids {
		if !seen[uid] {
			seen[uid] = true
			dedup = append(dedup, uid)
		}
	}
	return s.LoadEntities(ctx, dedup)
}

// fetch resolves uid through the registry. An entity type with no
// registered fetcher is treated the same as a fetcher that found
// nothing: the caller records it as missing rather than failing the
// whole load.
func (s *Store) fetch(ctx context.Context, uid entity.UID) (*entity.Entity, error) {
	f, ok := s.registry.Lookup(uid.Type)
	if !ok {
		return nil, nil
	}
	return f.Fetch(ctx, uid.ID)
}

// walker carries the per-call mutable state for a single LoadEntities
// traversal: the entities collected so far, the depth at which each UID
// was first visited, and the set of UIDs currently being resolved so
// cycles are detected rather than recursed into forever.
type walker struct {
	store     *Store
	entities  *entity.Entities
	depth     map[entity.UID]int
	resolving map[entity.UID]bool
	truncated []entity.UID
	missing   []entity.UID
}

func (w *walker) resolve(ctx context.Context, uid entity.UID, depth int) error {
	if _, ok := w.entities.Find(uid); ok {
		return nil
	}
	if w.resolving[uid] {
		// Cycle: the entity currently being resolved appears in its own
		// ancestry. Stop here; it will still be present in the result
		// with whatever parents were already attached.
		return nil
	}
	if depth >= w.store.maxParentChainDepth {
		w.truncated = append(w.truncated, uid)
		return nil
	}

	w.resolving[uid] = true
	defer delete(w.resolving, uid)

	e, err := w.store.fetch(ctx, uid)
	if err != nil {
		return fmt.Errorf("store: loading %s: %w", uid, err)
	}
	if e == nil {
		w.missing = append(w.missing, uid)
		return nil
	}

	w.entities.Add(e)
	w.depth[uid] = depth

	for _, parent := range e.Parents {
		if err := w.resolve(ctx, parent, depth+1); err != nil {
			return err
		}
	}
	return nil
}
