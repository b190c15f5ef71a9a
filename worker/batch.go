package worker

import (
	"context"
	"runtime"
	"sync"
)

// CorrectBatch corrects multiple messages in parallel using the given
// runner and returns the results in job order. If workers <= 0, it
// defaults to runtime.NumCPU(). Cancelling the context leaves unstarted
// jobs with a nil result entry.
func CorrectBatch(ctx context.Context, runner Runner, jobs []Job, workers int) *BatchResult {
	if len(jobs) == 0 {
		return &BatchResult{Results: make([]*JobResult, 0)}
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	type indexedJob struct {
		index int
		job   Job
	}
	type indexedResult struct {
		index  int
		result *JobResult
	}

	jobsChan := make(chan indexedJob, len(jobs))
	resultsChan := make(chan indexedResult, len(jobs))

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for ij := range jobsChan {
				select {
				case <-ctx.Done():
					return
				default:
				}

				id := ij.job.ID
				if id == "" {
					id = ij.job.Filename
				}
				result := &JobResult{ID: id}
				if runner == nil {
					result.Error = ErrNoRunner
				} else {
					result.Session, result.Error = runner.Run(ctx, ij.job.Filename, ij.job.Message)
				}
				resultsChan <- indexedResult{index: ij.index, result: result}
			}
		}()
	}

	for i, job := range jobs {
		jobsChan <- indexedJob{index: i, job: job}
	}
	close(jobsChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	results := make([]*JobResult, len(jobs))
	completed := 0
	failed := 0
	for ir := range resultsChan {
		results[ir.index] = ir.result
		completed++
		if ir.result.Error != nil {
			failed++
		}
	}

	return &BatchResult{
		Results:       results,
		TotalJobs:     len(jobs),
		CompletedJobs: completed,
		FailedJobs:    failed,
	}
}
