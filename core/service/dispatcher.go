package service

import (
	"context"
	"encoding/json"
	"log"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"dtgate/core/cache"
)

const (
	// DefaultChunkSize bounds the number of in-flight upstream queries
	// per batch chunk.
	DefaultChunkSize = 15

	chunkPause = 500 * time.Millisecond
	lotPause   = 1 * time.Second

	// Batches beyond this many queries use the longer inter-chunk pause.
	largeLotThreshold = 60
)

// Query is one logical upstream query in a batch.
type Query struct {
	Path     string
	Params   url.Values
	UseCache bool
	CacheKey string
}

// QueryResult is the outcome of one Query. Exactly one of Value and Err
// is meaningful.
type QueryResult struct {
	Value json.RawMessage
	Err   error
}

// Dispatcher executes batches of upstream queries with a bounded
// in-flight count, chunked pacing, and per-query cache consultation.
// Result order matches input order; individual failures never abort
// sibling queries.
type Dispatcher struct {
	upstream  Upstream
	cache     *cache.Cache
	chunkSize int
	sem       *semaphore.Weighted
	sleep     func(time.Duration)
}

// NewDispatcher creates a dispatcher bounded at chunkSize concurrent
// upstream queries. A non-positive chunkSize falls back to
// DefaultChunkSize.
func NewDispatcher(upstream Upstream, c *cache.Cache, chunkSize int) *Dispatcher {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Dispatcher{
		upstream:  upstream,
		cache:     c,
		chunkSize: chunkSize,
		sem:       semaphore.NewWeighted(int64(chunkSize)),
		sleep:     time.Sleep,
	}
}

// Batch executes the queries and returns one result per query, at the
// same index. Oversized batches are split into consecutive chunks with a
// pause in between to bound upstream pressure.
func (d *Dispatcher) Batch(ctx context.Context, queries []Query) []QueryResult {
	results := make([]QueryResult, len(queries))
	if len(queries) == 0 {
		return results
	}

	pause := chunkPause
	if len(queries) >= largeLotThreshold {
		pause = lotPause
	}

	started := time.Now()
	for start := 0; start < len(queries); start += d.chunkSize {
		if start > 0 {
			d.sleep(pause)
		}
		end := start + d.chunkSize
		if end > len(queries) {
			end = len(queries)
		}
		d.runChunk(ctx, queries[start:end], results[start:end])
	}
	log.Printf("Dispatched batch of %d queries in %v", len(queries), time.Since(started))

	return results
}

func (d *Dispatcher) runChunk(ctx context.Context, queries []Query, results []QueryResult) {
	var wg sync.WaitGroup
	for i, q := range queries {
		if q.UseCache && q.CacheKey != "" {
			if v, ok := d.cache.Get(q.CacheKey); ok {
				if raw, ok := v.(json.RawMessage); ok {
					results[i] = QueryResult{Value: raw}
					continue
				}
			}
		}

		wg.Add(1)
		go func(i int, q Query) {
			defer wg.Done()
			results[i] = d.run(ctx, q)
		}(i, q)
	}
	wg.Wait()
}

func (d *Dispatcher) run(ctx context.Context, q Query) QueryResult {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return QueryResult{Err: err}
	}
	defer d.sem.Release(1)

	raw, err := d.upstream.Get(ctx, q.Path, q.Params)
	if err != nil {
		return QueryResult{Err: err}
	}
	if q.UseCache && q.CacheKey != "" {
		d.cache.Set(q.CacheKey, raw)
	}
	return QueryResult{Value: raw}
}
