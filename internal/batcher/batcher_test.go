package batcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cedarguard/internal/entity"
	"cedarguard/internal/fetcher"
)

// countingFetcher records every FetchBatch call's ids so tests can assert
// on coalescing behavior.
type countingFetcher struct {
	mu    sync.Mutex
	calls [][]string
	batch int64
}

func (f *countingFetcher) Fetch(ctx context.Context, id string) (*entity.Entity, error) {
	m, err := f.FetchBatch(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	return m[id], nil
}

func (f *countingFetcher) FetchBatch(ctx context.Context, ids []string) (map[string]*entity.Entity, error) {
	atomic.AddInt64(&f.batch, 1)
	f.mu.Lock()
	cp := append([]string(nil), ids...)
	f.calls = append(f.calls, cp)
	f.mu.Unlock()

	out := make(map[string]*entity.Entity, len(ids))
	for _, id := range ids {
		out[id] = entity.NewEntity(entity.NewUID("User", id))
	}
	return out, nil
}

func (f *countingFetcher) callCount() int64 { return atomic.LoadInt64(&f.batch) }

func TestBatcher_Load_CoalescesWithinWindow(t *testing.T) {
	f := &countingFetcher{}
	registry := fetcher.NewRegistry()
	registry.Register("User", f)

	b := New(registry, Config{WindowMS: 20 * time.Millisecond, MaxBatchSize: 100, MaxConcurrent: 4})
	defer b.Shutdown()

	const n = 10
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			uid := entity.NewUID("User", string(rune('a'+i)))
			if _, err := b.Load(context.Background(), uid); err != nil {
				t.Errorf("Load: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := f.callCount(); got != 1 {
		t.Errorf("FetchBatch calls = %d, want 1 (concurrent loads within the window must coalesce)", got)
	}
}

func TestBatcher_Load_SameUIDObservesOneFetch(t *testing.T) {
	var fetches int64
	f := fetcher.Func(func(ctx context.Context, id string) (*entity.Entity, error) {
		atomic.AddInt64(&fetches, 1)
		return entity.NewEntity(entity.NewUID("User", id)), nil
	})
	registry := fetcher.NewRegistry()
	registry.Register("User", f)

	b := New(registry, Config{WindowMS: 20 * time.Millisecond, MaxBatchSize: 100, MaxConcurrent: 4})
	defer b.Shutdown()

	uid := entity.NewUID("User", "alice")
	const k = 16
	var wg sync.WaitGroup
	wg.Add(k)
	for i := 0; i < k; i++ {
		go func() {
			defer wg.Done()
			e, err := b.Load(context.Background(), uid)
			if err != nil {
				t.Errorf("Load: %v", err)
				return
			}
			if e == nil || e.UID != uid {
				t.Errorf("Load = %v, want %s", e, uid)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt64(&fetches); got != 1 {
		t.Errorf("underlying Fetch calls = %d, want 1 (same-uid loads must share one pending request)", got)
	}
}

func TestBatcher_Load_FlushesAtMaxBatchSize(t *testing.T) {
	f := &countingFetcher{}
	registry := fetcher.NewRegistry()
	registry.Register("User", f)

	b := New(registry, Config{WindowMS: time.Hour, MaxBatchSize: 4, MaxConcurrent: 4})
	defer b.Shutdown()

	const n = 4
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			uid := entity.NewUID("User", string(rune('a'+i)))
			if _, err := b.Load(context.Background(), uid); err != nil {
				t.Errorf("Load: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := f.callCount(); got != 1 {
		t.Errorf("FetchBatch calls = %d, want 1 (hitting MaxBatchSize must flush immediately, without waiting for the window)", got)
	}
}

func TestBatcher_Load_UnregisteredTypeErrors(t *testing.T) {
	registry := fetcher.NewRegistry()
	b := New(registry, Config{WindowMS: 5 * time.Millisecond})
	defer b.Shutdown()

	_, err := b.Load(context.Background(), entity.NewUID("Ghost", "1"))
	if err == nil {
		t.Fatal("Load: want error for unregistered entity type, got nil")
	}
}

func TestBatcher_LoadBatch_DedupesPerType(t *testing.T) {
	f := &countingFetcher{}
	registry := fetcher.NewRegistry()
	registry.Register("User", f)

	b := New(registry, Config{WindowMS: 20 * time.Millisecond, MaxBatchSize: 100, MaxConcurrent: 4})
	defer b.Shutdown()

	uids := []entity.UID{
		entity.NewUID("User", "alice"),
		entity.NewUID("User", "bob"),
		entity.NewUID("User", "alice"),
	}
	out, err := b.LoadBatch(context.Background(), uids)
	if err != nil {
		t.Fatalf("LoadBatch: %v", err)
	}
	if len(out) != 2 {
		t.Errorf("LoadBatch returned %d entities, want 2", len(out))
	}
	f.mu.Lock()
	requested := 0
	for _, call := range f.calls {
		requested += len(call)
	}
	f.mu.Unlock()
	if requested != 2 {
		t.Errorf("ids requested from the fetcher = %d, want 2 (the duplicate alice must be fetched once)", requested)
	}
}

func TestBatcher_Shutdown_UnblocksPendingLoads(t *testing.T) {
	registry := fetcher.NewRegistry()
	b := New(registry, Config{WindowMS: time.Hour, MaxBatchSize: 100, MaxConcurrent: 4})

	done := make(chan error, 1)
	go func() {
		_, err := b.Load(context.Background(), entity.NewUID("User", "alice"))
		done <- err
	}()

	// Give Load a moment to enqueue before shutting down.
	time.Sleep(10 * time.Millisecond)
	b.Shutdown()

	select {
	case err := <-done:
		if !errors.Is(err, ErrShutdown) {
			t.Errorf("Load error = %v, want ErrShutdown", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Load did not return after Shutdown")
	}

	if _, err := b.Load(context.Background(), entity.NewUID("User", "bob")); !errors.Is(err, ErrShutdown) {
		t.Errorf("Load after Shutdown error = %v, want ErrShutdown", err)
	}
}
