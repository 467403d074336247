package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/namelens/relay/internal/core"
	"github.com/namelens/relay/internal/metrics"
)

// CallFunc performs a single batch call.
type CallFunc func(ctx context.Context, call core.Call) (*core.Response, error)

type batchJob struct {
	index int
	call  core.Call
}

// RunBatch executes calls with a bounded worker pool. Failed calls are
// recorded in their result; only cancellation of ctx aborts the run.
// Calls sharing a bucket are still serialized by the dispatcher.
func RunBatch(ctx context.Context, calls []core.Call, workers int, do CallFunc) (*core.BatchResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if do == nil {
		return nil, errors.New("call function is required")
	}
	if workers < 1 {
		return nil, errors.New("workers must be at least 1")
	}

	startedAt := time.Now()
	results := make([]*core.CallResult, len(calls))
	jobs := make(chan batchJob)

	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for job := range jobs {
			if ctx.Err() != nil {
				return
			}
			result := &core.CallResult{
				Index:     job.index,
				Request:   job.call.Route.String(),
				Bucket:    job.call.Route.Bucket(),
				StartedAt: time.Now().UTC(),
			}
			resp, err := do(ctx, job.call)
			result.Duration = time.Since(result.StartedAt)
			result.Response = resp
			if err != nil {
				result.Err = err
				result.Error = err.Error()
			}
			metrics.RecordBatchCall(err == nil)
			results[job.index] = result
		}
	}

	if workers > len(calls) {
		workers = len(calls)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go worker()
	}

sendLoop:
	for i, call := range calls {
		select {
		case <-ctx.Done():
			break sendLoop
		case jobs <- batchJob{index: i, call: call}:
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	summary := &core.BatchResult{
		Results:     results,
		CompletedAt: time.Now().UTC(),
		Elapsed:     time.Since(startedAt),
	}
	for _, result := range results {
		if result == nil {
			continue
		}
		if result.Err != nil {
			summary.Failed++
		} else {
			summary.Succeeded++
		}
	}
	return summary, nil
}
