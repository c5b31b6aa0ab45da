// Package ledger persists the set of experiments that failed during a sync
// run so a later retry invocation can target exactly those.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"
)

// FileName is the ledger file kept next to the databases.
const FileName = "failed_experiments.json"

// ErrCorrupt means the ledger file exists but cannot be parsed.
var ErrCorrupt = errors.New("failure ledger is corrupt")

// Entry records one failed experiment.
type Entry struct {
	ExperimentID string `json:"experiment_id"`
	Error        string `json:"error"`
	Attempts     int    `json:"attempts"`
	Timestamp    string `json:"timestamp"`
}

// Ledger accumulates failures during a run. Not safe for concurrent use;
// the batch writer is the only producer.
type Ledger struct {
	entries map[string]Entry
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{entries: make(map[string]Entry)}
}

// Record adds or replaces the failure for an experiment.
func (l *Ledger) Record(experimentID string, err error, attempts int) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	l.entries[experimentID] = Entry{
		ExperimentID: experimentID,
		Error:        msg,
		Attempts:     attempts,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	}
}

// Remove drops an experiment from the ledger, used when a retry succeeds.
func (l *Ledger) Remove(experimentID string) {
	delete(l.entries, experimentID)
}

// Len returns the number of recorded failures.
func (l *Ledger) Len() int {
	return len(l.entries)
}

// Entries returns the recorded failures sorted by experiment id.
func (l *Ledger) Entries() []Entry {
	out := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExperimentID < out[j].ExperimentID })
	return out
}

// ExperimentIDs returns the failed experiment ids sorted.
func (l *Ledger) ExperimentIDs() []string {
	ids := make([]string, 0, len(l.entries))
	for id := range l.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Flush writes the ledger to path. An empty ledger removes any existing
// file instead, so the presence of the file always means there is work for
// a retry run.
func (l *Ledger) Flush(path string) error {
	if len(l.entries) == 0 {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove ledger: %w", err)
		}
		return nil
	}

	data, err := json.MarshalIndent(l.Entries(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode ledger: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	return nil
}

// Load reads a ledger from path. A missing file yields an empty ledger; an
// unparseable file yields ErrCorrupt.
func Load(path string) (*Ledger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	l := New()
	for _, e := range entries {
		if e.ExperimentID == "" {
			return nil, fmt.Errorf("%w: entry missing experiment_id", ErrCorrupt)
		}
		l.entries[e.ExperimentID] = e
	}
	return l, nil
}
