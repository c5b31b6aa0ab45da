package sync

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/slaclab/elogfetch/internal/ledger"
	"github.com/slaclab/elogfetch/internal/store"
)

// Metadata keys maintained by the pipeline. MetaLastUpdate is written
// inside every batch transaction, so it can never get ahead of the data it
// describes; MetaHoursLookback records the window the run was resolved
// with.
const (
	MetaLastUpdate    = "last_update"
	MetaHoursLookback = "hours_lookback"
)

// Writer is the single consumer of the result stream. It groups successful
// bundles into batches and commits each batch in one transaction; failed
// fetches and failed batches go to the ledger instead.
type Writer struct {
	db        *store.DB
	led       *ledger.Ledger
	batchSize int
	logger    *log.Logger

	// now is replaced in tests for a stable metadata timestamp.
	now func() time.Time
}

// NewWriter creates a batch writer.
func NewWriter(db *store.DB, led *ledger.Ledger, batchSize int, logger *log.Logger) *Writer {
	if batchSize < 1 {
		batchSize = 1
	}
	return &Writer{db: db, led: led, batchSize: batchSize, logger: logger, now: time.Now}
}

// Drain consumes the stream until it closes, committing full batches as
// they accumulate and a final partial batch at the end. It returns the
// number of committed experiments. A failed batch is recorded in the
// ledger and the run continues; only context cancellation stops early,
// and even then the ids already buffered are flushed first.
func (w *Writer) Drain(ctx context.Context, results <-chan Result) (int, error) {
	committed := 0
	batch := make([]Result, 0, w.batchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := w.commitBatch(ctx, batch); err != nil {
			w.logger.Printf("batch of %d experiments rolled back: %v", len(batch), err)
			w.db.InvalidateCache()
			for _, r := range batch {
				w.led.Record(r.ExperimentID, fmt.Errorf("batch commit failed: %w", err), r.Attempts)
			}
		} else {
			committed += len(batch)
			for _, r := range batch {
				w.led.Remove(r.ExperimentID)
			}
		}
		batch = batch[:0]
	}

	for result := range results {
		if result.Failed() {
			w.led.Record(result.ExperimentID, result.Err, result.Attempts)
			continue
		}
		batch = append(batch, result)
		if len(batch) >= w.batchSize {
			flush()
		}
	}
	flush()

	if err := ctx.Err(); err != nil {
		return committed, err
	}
	return committed, nil
}

// commitBatch writes a batch in exactly one transaction: for each bundle a
// delete of the experiment's old rows followed by the insert of the fresh
// ones, then the last-update metadata. Any error rolls the whole batch
// back; the store is never left with a partially-written experiment.
func (w *Writer) commitBatch(ctx context.Context, batch []Result) error {
	tx, err := w.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, r := range batch {
		if err := w.db.DeleteExperimentTx(ctx, tx, r.ExperimentID); err != nil {
			return err
		}
		if err := w.db.InsertBundleTx(ctx, tx, r.Bundle); err != nil {
			return err
		}
	}

	if err := w.db.SetMetadataTx(ctx, tx, MetaLastUpdate, store.Timestamp(w.now())); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	w.logger.Printf("committed batch of %d experiments", len(batch))
	return nil
}
