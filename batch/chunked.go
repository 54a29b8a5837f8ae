// Package batch holds the two primitives every cross-store read goes through:
// chunked id-set queries under a request-size ceiling, and id -> record lookups
// for application-side joins.
package batch

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultChunkSize   = 500
	DefaultParallelism = 4
)

type Options struct {
	// ChunkSize is the maximum number of ids sent in one request.
	ChunkSize int
	// Parallelism bounds concurrent chunk requests.
	Parallelism int
}

func (o Options) normalized() Options {
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.Parallelism <= 0 {
		o.Parallelism = DefaultParallelism
	}
	return o
}

// ChunkError records one failed chunk. The chunk covered ids[Offset:Offset+Size].
type ChunkError struct {
	Index  int
	Offset int
	Size   int
	Err    error
}

// Result is the concatenation of every successful chunk.
// A non-zero FailedChunks means Items is an undercount.
type Result[T any] struct {
	Items        []T
	Chunks       int
	FailedChunks int
	Errors       []ChunkError
}

func (r *Result[T]) Partial() bool {
	return r != nil && r.FailedChunks > 0
}

// Chunk splits ids into consecutive slices of at most size elements.
// size <= 0 yields a single chunk.
func Chunk[T any](ids []T, size int) [][]T {
	if len(ids) == 0 {
		return nil
	}
	if size <= 0 || size >= len(ids) {
		return [][]T{ids}
	}
	chunks := make([][]T, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

// ChunkedFetch issues fetch once per chunk, at most opts.Parallelism at a time,
// and concatenates results in chunk order. A failing chunk does not stop the others;
// it is reported through Result.FailedChunks. The only returned error is the
// context's, when the caller abandons the request.
func ChunkedFetch[ID any, T any](ctx context.Context, ids []ID, opts Options, fetch func(ctx context.Context, chunk []ID) ([]T, error)) (*Result[T], error) {
	opts = opts.normalized()
	chunks := Chunk(ids, opts.ChunkSize)
	result := &Result[T]{Chunks: len(chunks)}
	if len(chunks) == 0 {
		return result, nil
	}

	perChunk := make([][]T, len(chunks))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(opts.Parallelism)
	for i, chunk := range chunks {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			items, err := fetch(ctx, chunk)
			if err != nil {
				mu.Lock()
				result.FailedChunks++
				result.Errors = append(result.Errors, ChunkError{Index: i, Offset: i * opts.ChunkSize, Size: len(chunk), Err: err})
				mu.Unlock()
				return nil
			}
			perChunk[i] = items
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	total := 0
	for _, items := range perChunk {
		total += len(items)
	}
	result.Items = make([]T, 0, total)
	for _, items := range perChunk {
		result.Items = append(result.Items, items...)
	}
	return result, nil
}
