package main

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// fanOut runs fn once per item concurrently and collects the results in
// input order, regardless of completion order. Every call is allowed to
// settle - there is no early return - because downstream stages need
// one result per item. Per-item failures must be encoded in R by fn;
// fanOut itself never fails.
func fanOut[T, R any](ctx context.Context, items []T, fn func(context.Context, T) R) []R {
	results := make([]R, len(items))

	var g errgroup.Group
	for i, item := range items {
		g.Go(func() error {
			results[i] = fn(ctx, item)
			return nil
		})
	}

	// Workers only ever return nil; Wait is just the join barrier.
	g.Wait()

	return results
}
