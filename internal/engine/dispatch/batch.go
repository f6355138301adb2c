package dispatch

import (
	"context"
	"sync"

	"github.com/aishacrm/braid/internal/engine/core"
)

// BatchMode selects how Batch runs its calls.
type BatchMode string

const (
	// BatchSequential runs calls one at a time, in order.
	BatchSequential BatchMode = "sequential"
	// BatchParallel runs calls concurrently, each under its own
	// executionTimeout-bounded context.
	BatchParallel BatchMode = "parallel"
)

// maxParallelWorkers bounds how many goroutines Batch spawns at once in
// parallel mode, regardless of how many calls are queued.
const maxParallelWorkers = 8

// Call is one request within a batch dispatch.
type Call struct {
	Request Request
}

// Batch runs every call in calls through Execute and returns results in
// the same order as calls. In BatchParallel mode, work is spread across a
// small fixed worker pool; a context cancellation still lets already
// in-flight calls finish.
func (d *Dispatcher) Batch(ctx context.Context, calls []Call, mode BatchMode) []core.Result {
	results := make([]core.Result, len(calls))

	if mode != BatchParallel {
		for i, c := range calls {
			results[i] = d.Execute(ctx, c.Request)
		}
		return results
	}

	workers := maxParallelWorkers
	if len(calls) < workers {
		workers = len(calls)
	}
	if workers == 0 {
		return results
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = d.Execute(ctx, calls[i].Request)
			}
		}()
	}
	for i := range calls {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}
