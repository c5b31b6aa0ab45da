package elog

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var lclsRunPattern = regexp.MustCompile(`(\d{2})$`)

type rawQuestionnaireField struct {
	ID           string `json:"id"`
	Val          string `json:"val"`
	ModifiedTime string `json:"modified_time"`
	ModifiedUID  string `json:"modified_uid"`
}

// FetchQuestionnaire fetches the proposal questionnaire for an experiment.
//
// The questionnaire is keyed by proposal number (the PNR experiment param)
// and LCLS run period, which by convention is the last two digits of the
// experiment id. Experiments without a PNR have no questionnaire; that is
// returned as an empty Questionnaire rather than an error.
func FetchQuestionnaire(ctx context.Context, c *Client, experimentID string) (*Questionnaire, error) {
	info, err := FetchExperimentInfo(ctx, c, experimentID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch questionnaire info for %s: %w", experimentID, err)
	}

	if info.URAWIProposal == "" {
		return &Questionnaire{ExperimentID: experimentID}, nil
	}

	lclsRun := ExtractLCLSRun(experimentID)
	if lclsRun == "" {
		return &Questionnaire{ExperimentID: experimentID, ProposalNumber: info.URAWIProposal}, nil
	}

	endpoint := fmt.Sprintf("/ws-kerb/questionnaire/ws/proposal/attribute/run%s/%s", lclsRun, info.URAWIProposal)

	var raw map[string]json.RawMessage
	if err := c.Get(ctx, endpoint, nil, &raw); err != nil {
		return nil, fmt.Errorf("failed to fetch questionnaire for %s: %w", experimentID, err)
	}

	return &Questionnaire{
		ExperimentID:   experimentID,
		ProposalNumber: info.URAWIProposal,
		Fields:         parseQuestionnaireFields(raw),
	}, nil
}

// ExtractLCLSRun returns the LCLS run period encoded in the last two digits
// of an experiment id, or "" when the id does not end in two digits.
func ExtractLCLSRun(experimentID string) string {
	if m := lclsRunPattern.FindStringSubmatch(experimentID); m != nil {
		return m[1]
	}
	return ""
}

// parseQuestionnaireFields flattens the category -> field-list response
// into individual records. Non-list categories (metadata blobs) are
// skipped. The field name is the field id with the category prefix removed.
func parseQuestionnaireFields(raw map[string]json.RawMessage) []QuestionnaireField {
	categories := make([]string, 0, len(raw))
	for cat := range raw {
		categories = append(categories, cat)
	}
	sort.Strings(categories)

	var fields []QuestionnaireField
	for _, cat := range categories {
		var catFields []rawQuestionnaireField
		if err := json.Unmarshal(raw[cat], &catFields); err != nil {
			continue
		}
		for _, f := range catFields {
			if f.ID == "" {
				continue
			}
			fields = append(fields, QuestionnaireField{
				Category:     cat,
				FieldID:      f.ID,
				FieldName:    strings.TrimPrefix(f.ID, cat+"-"),
				FieldValue:   f.Val,
				ModifiedTime: f.ModifiedTime,
				ModifiedUID:  f.ModifiedUID,
			})
		}
	}
	return fields
}
