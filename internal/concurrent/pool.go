// Package concurrent provides a bounded parallel map for CPU-heavy
// passes over slices, like pricing every portfolio holding against the
// full sales history.
package concurrent

import (
	"runtime"
	"sync"
)

// maxDefaultWorkers caps the automatic worker count.
const maxDefaultWorkers = 8

// Map applies fn to every item using at most workers goroutines and
// returns the outputs in input order. workers <= 0 picks a default from
// the CPU count. fn must be safe to call from multiple goroutines.
func Map[T, R any](items []T, workers int, fn func(T) R) []R {
	if len(items) == 0 {
		return nil
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
		if workers > maxDefaultWorkers {
			workers = maxDefaultWorkers
		}
	}
	if workers > len(items) {
		workers = len(items)
	}

	out := make([]R, len(items))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				out[i] = fn(items[i])
			}
		}()
	}

	for i := range items {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return out
}
