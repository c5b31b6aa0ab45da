package sync

import (
	"context"
	"log"
	"sync"
)

// Scheduler fans experiment ids out to a fixed pool of fetch workers and
// streams their results through a bounded channel. The bound is the
// pipeline's backpressure: when the writer falls behind, workers block on
// send instead of piling results up in memory.
type Scheduler struct {
	fetcher   *Fetcher
	workers   int
	queueSize int
	logger    *log.Logger
}

// NewScheduler creates a scheduler with the given pool and queue sizes.
func NewScheduler(fetcher *Fetcher, workers, queueSize int, logger *log.Logger) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Scheduler{fetcher: fetcher, workers: workers, queueSize: queueSize, logger: logger}
}

// Run fetches all ids and returns the result stream. The channel is closed
// once every worker has finished, so the consumer can simply range over it.
// Cancelling ctx stops dispatching new ids; in-flight fetches finish and
// their results are still delivered.
func (s *Scheduler) Run(ctx context.Context, ids []string) <-chan Result {
	work := make(chan string)
	results := make(chan Result, s.queueSize)

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range work {
				result := s.fetcher.Fetch(ctx, id)
				if result.Failed() {
					s.logger.Printf("fetch failed for %s after %d attempts: %v",
						id, result.Attempts, result.Err)
				}
				results <- result
			}
		}()
	}

	go func() {
		defer close(work)
		for _, id := range ids {
			select {
			case <-ctx.Done():
				return
			case work <- id:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}
