package sync

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/slaclab/elogfetch/internal/elog"
)

// Retry policy for transient fetch failures.
const (
	backoffBase = 500 * time.Millisecond
	backoffCap  = 8 * time.Second
)

// Result is the outcome of fetching one experiment. Exactly one of Bundle
// or Err is set.
type Result struct {
	ExperimentID string
	Bundle       *elog.Bundle
	Err          error
	Attempts     int
}

// Failed reports whether the fetch ultimately failed.
func (r *Result) Failed() bool {
	return r.Err != nil
}

// Fetcher assembles complete experiment bundles, retrying transient
// failures with exponential backoff and jitter.
type Fetcher struct {
	client      *elog.Client
	maxAttempts int
	// sleep is replaced in tests to avoid real delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewFetcher creates a fetcher with the given retry budget.
func NewFetcher(client *elog.Client, maxAttempts int) *Fetcher {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Fetcher{
		client:      client,
		maxAttempts: maxAttempts,
		sleep:       sleepCtx,
	}
}

// Fetch retrieves the full bundle for one experiment. Transient failures
// are retried up to the attempt budget; permanent failures and context
// cancellation stop immediately. The returned Result always carries the
// experiment id and the attempt count.
func (f *Fetcher) Fetch(ctx context.Context, experimentID string) Result {
	var lastErr error
	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		bundle, err := f.fetchOnce(ctx, experimentID)
		if err == nil {
			return Result{ExperimentID: experimentID, Bundle: bundle, Attempts: attempt}
		}
		lastErr = err

		if !elog.IsTransient(err) || ctx.Err() != nil {
			return Result{ExperimentID: experimentID, Err: err, Attempts: attempt}
		}
		if attempt == f.maxAttempts {
			break
		}
		if err := f.sleep(ctx, backoffDelay(attempt)); err != nil {
			return Result{ExperimentID: experimentID, Err: lastErr, Attempts: attempt}
		}
	}
	return Result{
		ExperimentID: experimentID,
		Err:          fmt.Errorf("failed after %d attempts: %w", f.maxAttempts, lastErr),
		Attempts:     f.maxAttempts,
	}
}

func (f *Fetcher) fetchOnce(ctx context.Context, experimentID string) (*elog.Bundle, error) {
	info, err := elog.FetchExperimentInfo(ctx, f.client, experimentID)
	if err != nil {
		return nil, err
	}
	logbook, err := elog.FetchLogbook(ctx, f.client, experimentID)
	if err != nil {
		return nil, err
	}
	runTable, err := elog.FetchRunTable(ctx, f.client, experimentID)
	if err != nil {
		return nil, err
	}
	files, err := elog.FetchFileManager(ctx, f.client, experimentID)
	if err != nil {
		return nil, err
	}
	questionnaire, err := elog.FetchQuestionnaire(ctx, f.client, experimentID)
	if err != nil {
		return nil, err
	}
	workflows, err := elog.FetchWorkflow(ctx, f.client, experimentID)
	if err != nil {
		return nil, err
	}

	return &elog.Bundle{
		ExperimentID:  experimentID,
		Info:          info,
		Logbook:       logbook,
		RunTable:      runTable,
		FileManager:   files,
		Questionnaire: questionnaire,
		Workflows:     workflows,
	}, nil
}

// backoffDelay returns the sleep before the next attempt: base doubling per
// attempt, capped, with up to 25% random jitter added.
func backoffDelay(attempt int) time.Duration {
	d := backoffBase << (attempt - 1)
	if d > backoffCap || d <= 0 {
		d = backoffCap
	}
	jitter := time.Duration(rand.Int63n(int64(d)/4 + 1))
	return d + jitter
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
