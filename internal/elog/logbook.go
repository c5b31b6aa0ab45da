package elog

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

type rawLogEntry struct {
	ID         string   `json:"_id"`
	RunNum     *int     `json:"run_num"`
	InsertTime string   `json:"insert_time"`
	Content    string   `json:"content"`
	Tags       []string `json:"tags"`
	Author     string   `json:"author"`
}

// FetchLogbook fetches all elog entries for an experiment.
//
// Entries that carry no explicit run number get one inferred from the
// nearest preceding run-boundary entry, so shift notes written between
// "run started" posts land on the right run.
func FetchLogbook(ctx context.Context, c *Client, experimentID string) ([]LogbookEntry, error) {
	endpoint := fmt.Sprintf("/ws-kerb/lgbk/lgbk/%s/ws/elog", experimentID)

	var env apiEnvelope
	if err := c.Get(ctx, endpoint, nil, &env); err != nil {
		return nil, fmt.Errorf("failed to fetch logbook for %s: %w", experimentID, err)
	}
	if !env.Success {
		return nil, fmt.Errorf("logbook response for %s reported success=false", experimentID)
	}

	var raw []rawLogEntry
	if len(env.Value) > 0 {
		if err := json.Unmarshal(env.Value, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse logbook for %s: %w", experimentID, err)
		}
	}

	return transformLogEntries(experimentID, raw), nil
}

func transformLogEntries(experimentID string, raw []rawLogEntry) []LogbookEntry {
	sorted := make([]rawLogEntry, len(raw))
	copy(sorted, raw)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].InsertTime < sorted[j].InsertTime
	})

	boundaries := runBoundaries(sorted)
	inferred := inferRunNumbers(sorted, boundaries)

	entries := make([]LogbookEntry, 0, len(sorted))
	for _, e := range sorted {
		run := e.RunNum
		if run == nil {
			if n, ok := inferred[e.ID]; ok {
				run = n
			}
		}
		entries = append(entries, LogbookEntry{
			ExperimentID: experimentID,
			RunNumber:    run,
			Timestamp:    e.InsertTime,
			Content:      e.Content,
			Tags:         strings.Join(e.Tags, ","),
			Author:       e.Author,
		})
	}
	return entries
}

// runBoundaries maps entry timestamps to the run that started at them.
// Boundaries come from entries with an explicit run_num and from DAQ
// "Run number NN is running" posts.
func runBoundaries(sorted []rawLogEntry) map[string]int {
	boundaries := make(map[string]int)
	for _, e := range sorted {
		if e.RunNum != nil {
			boundaries[e.InsertTime] = *e.RunNum
			continue
		}
		content := strings.ToLower(e.Content)
		if strings.Contains(content, "run number") && strings.Contains(content, "running") {
			if n, ok := parseRunNumber(content); ok {
				boundaries[e.InsertTime] = n
			}
		}
	}
	return boundaries
}

func parseRunNumber(content string) (int, bool) {
	head := strings.SplitN(content, ":", 2)[0]
	parts := strings.Fields(head)
	for i, p := range parts {
		if p == "number" && i+1 < len(parts) {
			n, err := strconv.Atoi(parts[i+1])
			if err != nil {
				return 0, false
			}
			return n, true
		}
	}
	return 0, false
}

// inferRunNumbers assigns each untagged entry the run of the latest
// boundary at or before its timestamp. Entries before the first boundary
// stay unassigned.
func inferRunNumbers(sorted []rawLogEntry, boundaries map[string]int) map[string]*int {
	times := make([]string, 0, len(boundaries))
	for t := range boundaries {
		times = append(times, t)
	}
	sort.Strings(times)

	inferred := make(map[string]*int)
	for _, e := range sorted {
		if e.RunNum != nil {
			continue
		}
		var run *int
		for _, bt := range times {
			if e.InsertTime < bt {
				break
			}
			n := boundaries[bt]
			run = &n
		}
		inferred[e.ID] = run
	}
	return inferred
}
