package elog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// FetchUpdatedExperiments returns the names of experiments with activity in
// the last window seconds. The listing endpoint is public.
func FetchUpdatedExperiments(ctx context.Context, c *Client, windowSecs int64) ([]string, error) {
	endpoint := "/ws/lgbk/lgbk/ws/experiment_names_updated_within"
	params := url.Values{"offset_secs": []string{strconv.FormatInt(windowSecs, 10)}}

	var raw json.RawMessage
	if err := c.GetPublic(ctx, endpoint, params, &raw); err != nil {
		return nil, fmt.Errorf("failed to list updated experiments: %w", err)
	}

	// The service has returned both a bare array and a {value: [...]}
	// envelope over time; accept either.
	var names []string
	if err := json.Unmarshal(raw, &names); err == nil {
		return names, nil
	}
	var env struct {
		Value []string `json:"value"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to parse experiment listing: %w", err)
	}
	return env.Value, nil
}
