// Package settle runs independent branches concurrently and reports every outcome.
//
// Unlike errgroup, a failing branch never cancels or short-circuits its siblings:
// All returns only after every branch has finished.
package settle

import (
	"context"
	"sync"
	"time"
)

// Result is the outcome of one branch. Exactly one of Value and Err is meaningful.
type Result[T any] struct {
	Index int
	Value T
	Err   error
}

// OK reports whether the branch succeeded.
func (r Result[T]) OK() bool { return r.Err == nil }

// All runs fn for every index in [0, n) concurrently and waits for all of them.
// Results are returned in index order.
func All[T any](ctx context.Context, n int, fn func(ctx context.Context, i int) (T, error)) []Result[T] {
	results := make([]Result[T], n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			v, err := fn(ctx, i)
			results[i] = Result[T]{Index: i, Value: v, Err: err}
		}(i)
	}
	wg.Wait()
	return results
}

// Values returns the successful values in index order.
func Values[T any](results []Result[T]) []T {
	out := make([]T, 0, len(results))
	for _, r := range results {
		if r.Err == nil {
			out = append(out, r.Value)
		}
	}
	return out
}

// Errors returns the failed branches in index order.
func Errors[T any](results []Result[T]) []Result[T] {
	var out []Result[T]
	for _, r := range results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

// Sleep waits for d or until ctx is done, whichever comes first.
// It returns ctx.Err() when the context ended the wait.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
