// Package batcher implements the request batcher: it coalesces concurrent
// single-entity loads into per-type batch fetches, bounded by a flush
// window, a maximum batch size, and a cap on concurrent in-flight
// fetches.
package batcher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"cedarguard/internal/entity"
	"cedarguard/internal/fetcher"
	"cedarguard/internal/logger"
)

// Config configures the batcher per the configuration surface's batch
// tunables.
type Config struct {
	WindowMS      time.Duration
	MaxBatchSize  int
	MaxConcurrent int
}

// DefaultConfig matches the documented defaults: a 5ms coalescing window,
// batches of up to 100 ids, and 4 concurrent per-type flushes.
func DefaultConfig() Config {
	return Config{
		WindowMS:      5 * time.Millisecond,
		MaxBatchSize:  100,
		MaxConcurrent: 4,
	}
}

// ErrShutdown is returned by Load for requests that were pending when
// Shutdown was called, and for any submission after it.
var ErrShutdown = errors.New("batcher: shutting down")

type fetchResult struct {
	entity *entity.Entity
	err    error
}

// inflight is one uid's outstanding fetch: pending waiters attach to it
// rather than requesting the uid a second time, and read the result once
// done is closed.
type inflight struct {
	done   chan struct{}
	entity *entity.Entity
	err    error
}

// Batcher coalesces Load calls for the same entity type into a single
// fetcher.FetchBatch call, with at most one outstanding request per uid:
// concurrent loads for the same uid attach to one pending promise, so
// the underlying fetcher observes each id exactly once per batch.
type Batcher struct {
	registry *fetcher.Registry
	cfg      Config
	log      *slog.Logger

	mu       sync.Mutex
	pending  map[string]map[string][]chan fetchResult // type → id → waiters
	inflight map[entity.UID]*inflight
	timer    *time.Timer
	sem      chan struct{}

	closeOnce sync.Once
	closed    chan struct{}
}

// New builds a Batcher backed by registry.
func New(registry *fetcher.Registry, cfg Config) *Batcher {
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = DefaultConfig().MaxBatchSize
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultConfig().MaxConcurrent
	}
	return &Batcher{
		registry: registry,
		cfg:      cfg,
		log:      logger.WithComponent("batcher"),
		pending:  make(map[string]map[string][]chan fetchResult),
		inflight: make(map[entity.UID]*inflight),
		sem:      make(chan struct{}, cfg.MaxConcurrent),
		closed:   make(chan struct{}),
	}
}

// Load enqueues a single entity load and blocks until it has been
// resolved as part of some batch for its entity type. If the uid is
// already pending or in flight the caller attaches to the existing
// request instead of creating another.
func (b *Batcher) Load(ctx context.Context, uid entity.UID) (*entity.Entity, error) {
	select {
	case <-b.closed:
		return nil, ErrShutdown
	default:
	}

	b.mu.Lock()
	if fl, ok := b.inflight[uid]; ok {
		b.mu.Unlock()
		select {
		case <-fl.done:
			return fl.entity, fl.err
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-b.closed:
			return nil, ErrShutdown
		}
	}

	resultCh := make(chan fetchResult, 1)
	byID := b.pending[uid.Type]
	if byID == nil {
		byID = make(map[string][]chan fetchResult)
		b.pending[uid.Type] = byID
	}
	waiters, existed := byID[uid.ID]
	byID[uid.ID] = append(waiters, resultCh)
	shouldFlushNow := !existed && len(byID) >= b.cfg.MaxBatchSize
	if b.timer == nil && !shouldFlushNow {
		b.timer = time.AfterFunc(b.cfg.WindowMS, b.flushAll)
	}
	b.mu.Unlock()

	if shouldFlushNow {
		go b.flushType(uid.Type)
	}

	select {
	case res := <-resultCh:
		return res.entity, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-b.closed:
		return nil, ErrShutdown
	}
}

// LoadBatch loads many entities, returning a map of the ones that
// resolved. Each id still flows through the same per-uid coalescing as
// an individual Load call.
func (b *Batcher) LoadBatch(ctx context.Context, uids []entity.UID) (map[entity.UID]*entity.Entity, error) {
	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	out := make(map[entity.UID]*entity.Entity, len(uids))

	for _, uid := range uids {
		uid := uid
		g.Go(func() error {
			e, err := b.Load(gctx, uid)
			if err != nil {
				return err
			}
			if e != nil {
				mu.Lock()
				out[uid] = e
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *Batcher) flushAll() {
	b.mu.Lock()
	types := make([]string, 0, len(b.pending))
	for t := range b.pending {
		types = append(types, t)
	}
	b.timer = nil
	b.mu.Unlock()

	for _, t := range types {
		go b.flushType(t)
	}
}

// flushType drains one entity type's pending map into a single
// FetchBatch call. The drained ids are published to the in-flight map
// under the same lock, so loads arriving mid-fetch attach to the
// outstanding request instead of re-requesting the uid.
func (b *Batcher) flushType(entityType string) {
	b.mu.Lock()
	byID := b.pending[entityType]
	delete(b.pending, entityType)
	flights := make(map[string]*inflight, len(byID))
	for id := range byID {
		fl := &inflight{done: make(chan struct{})}
		flights[id] = fl
		b.inflight[entity.NewUID(entityType, id)] = fl
	}
	b.mu.Unlock()

	if len(byID) == 0 {
		return
	}

	b.sem <- struct{}{}
	defer func() { <-b.sem }()

	resolve := func(resultFor func(id string) fetchResult) {
		for id, waiters := range byID {
			res := resultFor(id)
			fl := flights[id]
			fl.entity, fl.err = res.entity, res.err
			close(fl.done)
			for _, ch := range waiters {
				ch <- res
			}
		}
		b.mu.Lock()
		for id := range byID {
			delete(b.inflight, entity.NewUID(entityType, id))
		}
		b.mu.Unlock()
	}

	f, ok := b.registry.Lookup(entityType)
	if !ok {
		resolve(func(string) fetchResult {
			return fetchResult{err: errUnregisteredType(entityType)}
		})
		return
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	entities, err := f.FetchBatch(ctx, ids)
	resolve(func(id string) fetchResult {
		if err != nil {
			return fetchResult{err: err}
		}
		return fetchResult{entity: entities[id]}
	})
}

// Shutdown fails every pending request with ErrShutdown and rejects
// subsequent submissions. In-flight FetchBatch calls are left to finish;
// their waiters have already been unblocked by the closed channel.
func (b *Batcher) Shutdown() {
	b.closeOnce.Do(func() {
		close(b.closed)

		b.mu.Lock()
		pending := b.pending
		b.pending = make(map[string]map[string][]chan fetchResult)
		if b.timer != nil {
			b.timer.Stop()
			b.timer = nil
		}
		b.mu.Unlock()

		for _, byID := range pending {
			for _, waiters := range byID {
				for _, ch := range waiters {
					ch <- fetchResult{err: ErrShutdown}
				}
			}
		}
	})
}

type errUnregisteredType string

func (e errUnregisteredType) Error() string {
	return "batcher: no fetcher registered for entity type " + string(e)
}
