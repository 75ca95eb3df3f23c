// Package worker provides a generic fan-out/fan-in pool for per-file
// work. The secrecy corpus scan uses it to fingerprint files across
// available CPUs; each worker produces a local result and the caller
// merges them once at the end, so no shared state needs locking.
package worker

import (
	"runtime"
	"sync"
)

// Result pairs a processed value with its original index to preserve
// input ordering across the fan-out.
type Result[T any] struct {
	Index int
	Value T
	Err   error
}

// Pool fans out items to a fixed number of goroutine workers and collects
// results in input order.
type Pool[T any] struct {
	concurrency int
}

// NewPool creates a worker pool with the given concurrency.
// If concurrency <= 0, defaults to runtime.NumCPU().
func NewPool[T any](concurrency int) *Pool[T] {
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	return &Pool[T]{concurrency: concurrency}
}

// Process applies fn to every item and returns results in input order.
// Errors from individual items are captured per-result rather than
// aborting the batch; a failed file must not end a corpus scan.
func (p *Pool[T]) Process(items []string, fn func(string) (T, error)) []Result[T] {
	if len(items) == 0 {
		return nil
	}

	workers := p.concurrency
	if workers > len(items) {
		workers = len(items)
	}

	type job struct {
		index int
		item  string
	}

	jobs := make(chan job, len(items))
	results := make([]Result[T], len(items))
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				val, err := fn(j.item)
				results[j.index] = Result[T]{Index: j.index, Value: val, Err: err}
			}
		}()
	}

	for i, item := range items {
		jobs <- job{index: i, item: item}
	}
	close(jobs)
	wg.Wait()

	return results
}
