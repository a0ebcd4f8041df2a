// Package asyncx holds small generic fan-out helpers.
package asyncx

import (
	"context"
	"sync"
)

// Result holds the outcome of a single settled operation.
type Result[T any] struct {
	Value T
	Err   error
}

// OK reports whether the result carries no error.
func (r Result[T]) OK() bool { return r.Err == nil }

// MapSettled applies fn to every item with at most limit goroutines in flight
// and returns one Result per item in input order. It never short-circuits.
// A limit <= 0 means one goroutine per item. Items not started before ctx is
// done settle with ctx.Err().
func MapSettled[T, R any](ctx context.Context, items []T, limit int, fn func(context.Context, T) (R, error)) []Result[R] {
	results := make([]Result[R], len(items))
	if limit <= 0 || limit > len(items) {
		limit = len(items)
	}

	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup

	for i, item := range items {
		select {
		case <-ctx.Done():
			results[i] = Result[R]{Err: ctx.Err()}
			continue
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			v, err := fn(ctx, item)
			results[i] = Result[R]{Value: v, Err: err}
		}()
	}

	wg.Wait()
	return results
}

// ForEach runs fn for every item concurrently and returns the first error
// in input order once all calls have finished.
func ForEach[T any](ctx context.Context, items []T, fn func(context.Context, T) error) error {
	settled := MapSettled(ctx, items, 0, func(ctx context.Context, item T) (struct{}, error) {
		return struct{}{}, fn(ctx, item)
	})
	for _, r := range settled {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}
