package fetcher

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"cedarguard/internal/entity"
)

// DefaultFetchBatch implements FetchBatch for fetchers that only know how
// to load one entity at a time, by running Fetch concurrently across ids
// and collecting the results. It is exported so custom Fetcher
// implementations can embed it instead of reimplementing the fan-out.
func DefaultFetchBatch(ctx context.Context, f Fetcher, ids []string) (map[string]*entity.Entity, error) {
	var (
		mu  sync.Mutex
		out = make(map[string]*entity.Entity, len(ids))
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			e, err := f.Fetch(gctx, id)
			if err != nil {
				return err
			}
			if e == nil {
				return nil
			}
			mu.Lock()
			out[id] = e
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
