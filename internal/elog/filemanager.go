package elog

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

type rawFile struct {
	RunNum *int  `json:"run_num"`
	Size   int64 `json:"size"`
}

// FetchFileManager fetches the file manager listing and aggregates it into
// per-run file counts and total sizes.
func FetchFileManager(ctx context.Context, c *Client, experimentID string) (*FileManager, error) {
	endpoint := fmt.Sprintf("/ws-kerb/lgbk/lgbk/%s/ws/files", experimentID)

	var env apiEnvelope
	if err := c.Get(ctx, endpoint, nil, &env); err != nil {
		return nil, fmt.Errorf("failed to fetch files for %s: %w", experimentID, err)
	}
	if !env.Success {
		return nil, fmt.Errorf("files response for %s reported success=false", experimentID)
	}

	var files []rawFile
	if len(env.Value) > 0 {
		if err := json.Unmarshal(env.Value, &files); err != nil {
			return nil, fmt.Errorf("failed to parse files for %s: %w", experimentID, err)
		}
	}

	return &FileManager{
		ExperimentID: experimentID,
		Records:      aggregateByRun(files),
	}, nil
}

func aggregateByRun(files []rawFile) []FileManagerRecord {
	type agg struct {
		count int64
		bytes int64
	}
	byRun := make(map[int]*agg)
	for _, f := range files {
		if f.RunNum == nil {
			continue
		}
		a := byRun[*f.RunNum]
		if a == nil {
			a = &agg{}
			byRun[*f.RunNum] = a
		}
		a.count++
		a.bytes += f.Size
	}

	runs := make([]int, 0, len(byRun))
	for run := range byRun {
		runs = append(runs, run)
	}
	sort.Ints(runs)

	records := make([]FileManagerRecord, 0, len(runs))
	for _, run := range runs {
		a := byRun[run]
		records = append(records, FileManagerRecord{
			RunNumber:      run,
			NumberOfFiles:  a.count,
			TotalSizeBytes: a.bytes,
		})
	}
	return records
}
