// Package pool provides a bounded worker pool used to parallelize the
// batched, embarrassingly-parallel work around the protocol state machines
// (cmd/mpcd bench's batch simulation runs).
package pool

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Pool bounds concurrency to a fixed number of workers, shared across many
// call sites so the module never oversubscribes the machine regardless of
// how many compute sessions are running concurrently (sessions are
// otherwise independent, but CPU-bound batch work inside a single round
// should still be capped).
type Pool struct {
	sem *semaphore.Weighted
	n   int64
}

// NewPool returns a Pool with the given worker count. A count <= 0 uses
// runtime.GOMAXPROCS(0).
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Pool{sem: semaphore.NewWeighted(int64(workers)), n: int64(workers)}
}

// Parallelize runs fn(i) for every i in [0, count) across the pool's
// workers, using an errgroup so the first error cancels the rest and is
// returned to the caller.
func (p *Pool) Parallelize(ctx context.Context, count int, fn func(ctx context.Context, i int) error) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < count; i++ {
		i := i
		if err := p.sem.Acquire(ctx, 1); err != nil {
			return err
		}
		g.Go(func() error {
			defer p.sem.Release(1)
			return fn(ctx, i)
		})
	}
	return g.Wait()
}

// Workers returns the pool's configured concurrency.
func (p *Pool) Workers() int { return int(p.n) }
