// Package sync implements the fetch-and-persist pipeline: resolving the
// change set, fetching experiment bundles with a bounded worker pool, and
// committing them to the local store in atomic batches.
package sync

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/slaclab/elogfetch/internal/elog"
)

// ErrSourceUnavailable means the change-set listing itself could not be
// fetched. Without it there is no work to plan, so the run aborts.
var ErrSourceUnavailable = errors.New("experiment listing unavailable")

// Resolve returns the deduplicated, sorted set of experiment ids updated
// within the lookback window, minus those matching an exclude pattern.
// Patterns use shell globs and match case-insensitively.
func Resolve(ctx context.Context, client *elog.Client, hoursLookback int, excludePatterns []string) ([]string, error) {
	windowSecs := int64(hoursLookback) * 3600
	ids, err := elog.FetchUpdatedExperiments(ctx, client, windowSecs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	return filterExperiments(ids, excludePatterns)
}

func filterExperiments(ids []string, excludePatterns []string) ([]string, error) {
	// Validate patterns up front so a typo fails the run instead of
	// silently matching nothing.
	for _, pattern := range excludePatterns {
		if _, err := path.Match(pattern, ""); err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
	}

	seen := make(map[string]struct{}, len(ids))
	var out []string
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if matchesAny(id, excludePatterns) {
			continue
		}
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func matchesAny(id string, patterns []string) bool {
	lower := strings.ToLower(id)
	for _, pattern := range patterns {
		if ok, _ := path.Match(strings.ToLower(pattern), lower); ok {
			return true
		}
	}
	return false
}
