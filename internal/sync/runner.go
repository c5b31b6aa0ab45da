package sync

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/slaclab/elogfetch/internal/elog"
	"github.com/slaclab/elogfetch/internal/ledger"
	"github.com/slaclab/elogfetch/internal/lock"
	"github.com/slaclab/elogfetch/internal/store"
)

// Options configures one sync run.
type Options struct {
	Client        *elog.Client
	DatabaseDir   string
	HoursLookback int
	Exclude       []string
	ParallelJobs  int
	QueueSize     int
	BatchSize     int
	MaxAttempts   int

	// Incremental seeds the new database from the newest existing one so
	// experiments outside the lookback window are carried forward.
	Incremental bool
	// BasePath, when set, names the existing database to seed from instead
	// of the newest one. Implies Incremental.
	BasePath string
	// Experiments, when non-empty, bypasses change-set resolution and syncs
	// exactly these ids (the retry path).
	Experiments []string
	// DryRun resolves the change set and reports it without fetching.
	DryRun bool
	// LedgerPath overrides the default failure-ledger location for retry
	// runs.
	LedgerPath string

	Logger *log.Logger
}

// Summary reports the outcome of a run.
type Summary struct {
	Planned    []string
	Committed  int
	Failed     []ledger.Entry
	StorePath  string
	LedgerPath string
	Duration   time.Duration
}

// Run executes a full sync: acquire the run lock, resolve the change set,
// prepare the target database, stream bundles from the worker pool into
// the batch writer, persist the failure ledger and convert the journal
// back to DELETE mode.
//
// Per-experiment failures do not fail the run; they land in the Summary
// and the ledger. Run returns an error only for run-level aborts: a held
// lock, an unreachable listing, authentication failure or a broken store.
func Run(ctx context.Context, opts Options) (*Summary, error) {
	start := time.Now()
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[sync] ", log.LstdFlags)
	}

	// Dry runs only resolve; they take no lock and touch no database.
	var guard *lock.Guard
	if !opts.DryRun {
		var err error
		guard, err = lock.Acquire(opts.DatabaseDir)
		if err != nil {
			return nil, err
		}
		defer guard.Release()
	}

	ids := opts.Experiments
	if len(ids) == 0 {
		var err error
		ids, err = Resolve(ctx, opts.Client, opts.HoursLookback, opts.Exclude)
		if err != nil {
			return nil, err
		}
		logger.Printf("resolved %d experiments updated in the last %dh", len(ids), opts.HoursLookback)
	} else {
		// Explicitly named experiments (fetch args, ledger retries) are
		// never exclude-filtered: a retry must attempt every ledger entry
		// or the entry would vanish without a fetch. Dedup and sort only.
		var err error
		ids, err = filterExperiments(ids, nil)
		if err != nil {
			return nil, err
		}
	}

	summary := &Summary{Planned: ids}
	if opts.DryRun {
		summary.Duration = time.Since(start)
		return summary, nil
	}

	db, err := prepareStore(opts, logger)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	summary.StorePath = db.Path()
	summary.LedgerPath = opts.LedgerPath
	if summary.LedgerPath == "" {
		summary.LedgerPath = filepath.Join(opts.DatabaseDir, ledger.FileName)
	}

	led := ledger.New()
	if len(ids) == 0 {
		logger.Printf("nothing to sync")
		if err := led.Flush(summary.LedgerPath); err != nil {
			return nil, err
		}
		summary.Duration = time.Since(start)
		return summary, nil
	}

	fetcher := NewFetcher(opts.Client, opts.MaxAttempts)
	scheduler := NewScheduler(fetcher, opts.ParallelJobs, opts.QueueSize, logger)
	writer := NewWriter(db, led, opts.BatchSize, logger)

	g, gctx := errgroup.WithContext(ctx)
	results := scheduler.Run(gctx, ids)
	g.Go(func() error {
		committed, err := writer.Drain(gctx, results)
		summary.Committed = committed
		return err
	})
	runErr := g.Wait()

	if opts.HoursLookback > 0 {
		if err := db.SetMetadata(ctx, MetaHoursLookback, strconv.Itoa(opts.HoursLookback)); err != nil {
			logger.Printf("failed to record lookback window: %v", err)
		}
	}

	summary.Failed = led.Entries()
	if err := led.Flush(summary.LedgerPath); err != nil {
		return nil, err
	}
	if err := db.Close(); err != nil {
		return nil, err
	}

	summary.Duration = time.Since(start)
	logger.Printf("sync finished: %d committed, %d failed in %s",
		summary.Committed, len(summary.Failed), summary.Duration.Round(time.Millisecond))

	if runErr != nil {
		return summary, runErr
	}
	return summary, nil
}

// RetryFailed re-syncs exactly the experiments in the persisted ledger.
// Successes are removed from the ledger; remaining failures are written
// back, so retry runs converge.
func RetryFailed(ctx context.Context, opts Options) (*Summary, error) {
	ledgerPath := opts.LedgerPath
	if ledgerPath == "" {
		ledgerPath = filepath.Join(opts.DatabaseDir, ledger.FileName)
	}
	led, err := ledger.Load(ledgerPath)
	if err != nil {
		return nil, err
	}
	if led.Len() == 0 {
		return &Summary{LedgerPath: ledgerPath}, nil
	}

	opts.Experiments = led.ExperimentIDs()
	opts.LedgerPath = ledgerPath
	// Retries always extend the newest database rather than starting fresh.
	opts.Incremental = true
	return Run(ctx, opts)
}

// prepareStore opens the target database for this run. A fresh run creates
// a new timestamped file; an incremental run first copies the newest
// existing database (or BasePath) to the new name so history files stay
// untouched.
func prepareStore(opts Options, logger *log.Logger) (*store.DB, error) {
	target := filepath.Join(opts.DatabaseDir, store.GenerateName(time.Now()))

	base := opts.BasePath
	if base == "" && opts.Incremental {
		latest, err := store.LatestPath(opts.DatabaseDir)
		if err != nil {
			return nil, err
		}
		base = latest
	}

	if base != "" && base != target {
		if err := store.CopyFile(base, target); err != nil {
			return nil, fmt.Errorf("failed to seed database from %s: %w", base, err)
		}
		logger.Printf("seeded %s from %s", filepath.Base(target), filepath.Base(base))
	}

	db, err := store.Open(target)
	if err != nil {
		return nil, err
	}
	if err := db.InitSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
