package elog

import (
	"context"
	"encoding/json"
	"fmt"
)

type rawWorkflow struct {
	ID            string          `json:"_id"`
	Name          string          `json:"name"`
	Executable    string          `json:"executable"`
	Trigger       string          `json:"trigger"`
	Location      string          `json:"location"`
	Parameters    json.RawMessage `json:"parameters"`
	RunParamName  string          `json:"run_param_name"`
	RunParamValue string          `json:"run_param_value"`
	RunAsUser     string          `json:"run_as_user"`
}

// FetchWorkflow fetches the workflow (ARP) definitions for an experiment.
func FetchWorkflow(ctx context.Context, c *Client, experimentID string) (*Workflows, error) {
	endpoint := fmt.Sprintf("/ws-kerb/lgbk/lgbk/%s/ws/workflow_definitions", experimentID)

	var env apiEnvelope
	if err := c.Get(ctx, endpoint, nil, &env); err != nil {
		return nil, fmt.Errorf("failed to fetch workflows for %s: %w", experimentID, err)
	}
	if !env.Success {
		return nil, fmt.Errorf("workflow response for %s reported success=false", experimentID)
	}

	var raw []rawWorkflow
	if len(env.Value) > 0 {
		if err := json.Unmarshal(env.Value, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse workflows for %s: %w", experimentID, err)
		}
	}

	defs := make([]Workflow, 0, len(raw))
	for _, w := range raw {
		params := ""
		if len(w.Parameters) > 0 {
			params = string(w.Parameters)
		}
		defs = append(defs, Workflow{
			MongoID:       w.ID,
			Name:          w.Name,
			Executable:    w.Executable,
			Trigger:       w.Trigger,
			Location:      w.Location,
			Parameters:    params,
			RunParamName:  w.RunParamName,
			RunParamValue: w.RunParamValue,
			RunAsUser:     w.RunAsUser,
		})
	}

	return &Workflows{ExperimentID: experimentID, Definitions: defs}, nil
}
