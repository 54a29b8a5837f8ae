package batch

import (
	"context"
	"errors"
	"time"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/hunttickets/backoffice_backend/utils"
	"golang.org/x/sync/semaphore"
)

var errNotLoaded = errors.New("id not found")

// LoadByID resolves ids to records keyed by id, sending at most opts.ChunkSize ids
// per fetch and running at most opts.Parallelism fetches at once. Ids the store
// does not return are absent from the map; a fetch error fails the whole lookup.
func LoadByID[K comparable, V any](ctx context.Context, ids []K, opts Options, fetch func(ctx context.Context, ids []K) ([]V, error), keyOf func(V) K) (map[K]V, error) {
	opts = opts.normalized()
	unique := utils.UniqueSlice(ids)
	out := make(map[K]V, len(unique))
	if len(unique) == 0 {
		return out, nil
	}

	sem := semaphore.NewWeighted(int64(opts.Parallelism))
	reader := func(ctx context.Context, keys []K) []*dataloader.Result[V] {
		if err := sem.Acquire(ctx, 1); err != nil {
			return handleError[V](len(keys), err)
		}
		defer sem.Release(1)

		records, err := fetch(ctx, keys)
		if err != nil {
			return handleError[V](len(keys), err)
		}
		return generateLoaderResults(records, keys, keyOf)
	}

	loader := dataloader.NewBatchedLoader(reader,
		dataloader.WithBatchCapacity[K, V](opts.ChunkSize),
		dataloader.WithWait[K, V](time.Millisecond),
	)
	values, errs := loader.LoadMany(ctx, unique)()

	for i, id := range unique {
		if i < len(errs) && errs[i] != nil {
			if errors.Is(errs[i], errNotLoaded) {
				continue
			}
			return nil, errs[i]
		}
		out[id] = values[i]
	}
	return out, nil
}

// handleError creates array of result with the same error repeated for as many items requested
func handleError[T any](itemsLength int, err error) []*dataloader.Result[T] {
	result := make([]*dataloader.Result[T], itemsLength)
	for i := 0; i < itemsLength; i++ {
		result[i] = &dataloader.Result[T]{Error: err}
	}
	return result
}

// generateLoaderResults lines store rows back up with the requested keys.
func generateLoaderResults[K comparable, V any](records []V, keys []K, keyOf func(V) K) []*dataloader.Result[V] {
	resultMap := make(map[K]V, len(records))
	for _, r := range records {
		resultMap[keyOf(r)] = r
	}

	loaderResults := make([]*dataloader.Result[V], 0, len(keys))
	for _, k := range keys {
		data, ok := resultMap[k]
		if !ok {
			loaderResults = append(loaderResults, &dataloader.Result[V]{Error: errNotLoaded})
			continue
		}
		loaderResults = append(loaderResults, &dataloader.Result[V]{Data: data})
	}
	return loaderResults
}
