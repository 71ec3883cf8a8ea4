package pipeline

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Batch runs jobs concurrently with at most workers in flight (NumCPU when
// workers <= 0). A failing job never affects its siblings: every job gets
// its own Result, and results are returned in submission order.
func (r *Runner) Batch(ctx context.Context, jobs []Job, workers int) []*Result {
	return r.BatchFunc(ctx, jobs, workers, nil)
}

// BatchFunc is Batch with a callback invoked as each job finishes.
// onResult is called from worker goroutines and must be safe for
// concurrent use.
func (r *Runner) BatchFunc(ctx context.Context, jobs []Job, workers int, onResult func(index int, res *Result)) []*Result {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	results := make([]*Result, len(jobs))

	var g errgroup.Group
	g.SetLimit(workers)
	for i := range jobs {
		g.Go(func() error {
			res, _ := r.Execute(ctx, jobs[i])
			results[i] = res
			if onResult != nil {
				onResult(i, res)
			}
			return nil
		})
	}
	_ = g.Wait()

	r.Logger.Debug("batch finished", "jobs", len(jobs), "failed", countFailed(results))
	return results
}

func countFailed(results []*Result) int {
	n := 0
	for _, res := range results {
		if res != nil && !res.OK() {
			n++
		}
	}
	return n
}
