package elog

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var contactPattern = regexp.MustCompile(`(.*?)\s*\((.*?)\)`)

type rawInfo struct {
	ID            string            `json:"_id"`
	Name          string            `json:"name"`
	Instrument    string            `json:"instrument"`
	StartTime     string            `json:"start_time"`
	EndTime       string            `json:"end_time"`
	ContactInfo   string            `json:"contact_info"`
	LeaderAccount string            `json:"leader_account"`
	Description   string            `json:"description"`
	Params        map[string]string `json:"params"`
}

// FetchExperimentInfo fetches the experiment-level record.
func FetchExperimentInfo(ctx context.Context, c *Client, experimentID string) (*ExperimentInfo, error) {
	endpoint := fmt.Sprintf("/ws-kerb/lgbk/lgbk/%s/ws/info", experimentID)

	var env apiEnvelope
	if err := c.Get(ctx, endpoint, nil, &env); err != nil {
		return nil, fmt.Errorf("failed to fetch info for %s: %w", experimentID, err)
	}
	if !env.Success || len(env.Value) == 0 {
		return nil, fmt.Errorf("info response for %s reported no value", experimentID)
	}

	var raw rawInfo
	if err := json.Unmarshal(env.Value, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse info for %s: %w", experimentID, err)
	}

	return infoToRecord(experimentID, &raw), nil
}

func infoToRecord(experimentID string, raw *rawInfo) *ExperimentInfo {
	pi, email := ParseContactInfo(raw.ContactInfo)

	id := raw.ID
	if id == "" {
		id = experimentID
	}

	return &ExperimentInfo{
		ExperimentID:   id,
		Name:           raw.Name,
		Instrument:     raw.Instrument,
		StartTime:      raw.StartTime,
		EndTime:        raw.EndTime,
		PI:             pi,
		PIEmail:        email,
		LeaderAccount:  raw.LeaderAccount,
		Description:    raw.Description,
		SlackChannels:  raw.Params["slack_channels"],
		AnalysisQueues: raw.Params["analysis_queues"],
		URAWIProposal:  raw.Params["PNR"],
	}
}

// ParseContactInfo splits a "Name (email)" contact string into its parts.
// A string without a parenthesized email yields the whole string as the
// name and an empty email.
func ParseContactInfo(contact string) (name, email string) {
	if contact == "" {
		return "", ""
	}
	if m := contactPattern.FindStringSubmatch(contact); m != nil {
		return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	}
	return strings.TrimSpace(contact), ""
}
