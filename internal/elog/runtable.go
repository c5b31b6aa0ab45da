package elog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// detectorPrefix marks detector checkbox parameters in run params.
const detectorPrefix = "DAQ Detectors/"

type rawRun struct {
	Num int `json:"num"`
}

type rawRunDetail struct {
	Num       int                        `json:"num"`
	BeginTime string                     `json:"begin_time"`
	EndTime   string                     `json:"end_time"`
	Params    map[string]json.RawMessage `json:"params"`
}

// FetchRunTable fetches the run table: one production row and one detector
// row per run. Runs whose detail call fails are skipped; the run table as a
// whole fails only if the run listing itself cannot be fetched.
func FetchRunTable(ctx context.Context, c *Client, experimentID string) (*RunTable, error) {
	base := fmt.Sprintf("/ws-kerb/lgbk/lgbk/%s/ws", experimentID)

	var listEnv apiEnvelope
	params := url.Values{"includeParams": []string{"false"}}
	if err := c.Get(ctx, base+"/runs", params, &listEnv); err != nil {
		return nil, fmt.Errorf("failed to fetch runs for %s: %w", experimentID, err)
	}

	var runs []rawRun
	if len(listEnv.Value) > 0 {
		if err := json.Unmarshal(listEnv.Value, &runs); err != nil {
			return nil, fmt.Errorf("failed to parse runs for %s: %w", experimentID, err)
		}
	}
	if len(runs) == 0 {
		return &RunTable{ExperimentID: experimentID}, nil
	}

	details := make([]rawRunDetail, 0, len(runs))
	detectorKeys := make(map[string]struct{})

	for _, run := range runs {
		var detEnv apiEnvelope
		p := url.Values{"includeParams": []string{"true"}}
		endpoint := fmt.Sprintf("%s/runs/%d", base, run.Num)
		if err := c.Get(ctx, endpoint, p, &detEnv); err != nil {
			// A single broken run must not sink the whole table.
			continue
		}
		var detail rawRunDetail
		if len(detEnv.Value) == 0 {
			continue
		}
		if err := json.Unmarshal(detEnv.Value, &detail); err != nil {
			continue
		}
		detail.Num = run.Num
		details = append(details, detail)

		for key := range detail.Params {
			if strings.HasPrefix(key, detectorPrefix) {
				detectorKeys[key] = struct{}{}
			}
		}
	}

	keys := make([]string, 0, len(detectorKeys))
	for k := range detectorKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	table := &RunTable{ExperimentID: experimentID}
	for _, detail := range details {
		table.DataProduction = append(table.DataProduction, RunProduction{
			RunNumber: detail.Num,
			NEvents:   paramInt(detail.Params, "DAQ Detector Totals/Events"),
			NDamaged:  paramInt(detail.Params, "DAQ Detector Totals/Damaged"),
			NDropped:  paramInt(detail.Params, "N dropped Shots"),
			StartTime: FormatAPITime(detail.BeginTime),
			EndTime:   FormatAPITime(detail.EndTime),
			ProdStart: paramString(detail.Params, "Prod_start"),
			ProdEnd:   paramString(detail.Params, "Prod_end"),
		})

		statuses := make(map[string]string, len(keys))
		for _, k := range keys {
			if isTruthy(detail.Params[k]) {
				statuses[k] = "Checked"
			} else {
				statuses[k] = "Unchecked"
			}
		}
		table.Detectors = append(table.Detectors, RunDetectors{
			RunNumber: detail.Num,
			Statuses:  statuses,
		})
	}

	return table, nil
}

// FormatAPITime normalizes an ISO timestamp from the API: the T separator
// becomes a space and any UTC offset suffix is dropped.
func FormatAPITime(ts string) string {
	if ts == "" {
		return ""
	}
	ts = strings.Replace(ts, "T", " ", 1)
	return strings.SplitN(ts, "+", 2)[0]
}

// paramInt reads a numeric run parameter. The API is loose about types, so
// both JSON numbers and numeric strings are accepted.
func paramInt(params map[string]json.RawMessage, key string) *int64 {
	raw, ok := params[key]
	if !ok || len(raw) == 0 {
		return nil
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return &n
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		n = int64(f)
		return &n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return &v
		}
	}
	return nil
}

func paramString(params map[string]json.RawMessage, key string) string {
	raw, ok := params[key]
	if !ok || len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.Trim(string(raw), `"`)
}

// isTruthy mirrors the checkbox semantics of detector params: present and
// non-false, non-null, non-empty means checked.
func isTruthy(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	switch strings.TrimSpace(string(raw)) {
	case "false", "null", `""`, "0":
		return false
	}
	return true
}
