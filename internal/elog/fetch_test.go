package elog

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

// newTestClient wires a client to a handler-backed server.
func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, StaticCredential("tok"))
}

// TestFetchUpdatedExperiments_BareArray tests the bare-array response shape
func TestFetchUpdatedExperiments_BareArray(t *testing.T) {
	var gotOffset string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotOffset = r.URL.Query().Get("offset_secs")
		fmt.Fprint(w, `["mfxl1033223", "cxi0001"]`)
	}))

	ids, err := FetchUpdatedExperiments(context.Background(), c, 604800)
	if err != nil {
		t.Fatalf("FetchUpdatedExperiments() failed: %v", err)
	}
	if gotOffset != "604800" {
		t.Errorf("offset_secs = %q, want 604800", gotOffset)
	}
	if len(ids) != 2 || ids[0] != "mfxl1033223" {
		t.Errorf("ids = %v", ids)
	}
}

// TestFetchUpdatedExperiments_Envelope tests the {value: [...]} shape
func TestFetchUpdatedExperiments_Envelope(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success": true, "value": ["txi9999"]}`)
	}))

	ids, err := FetchUpdatedExperiments(context.Background(), c, 3600)
	if err != nil {
		t.Fatalf("FetchUpdatedExperiments() failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != "txi9999" {
		t.Errorf("ids = %v", ids)
	}
}

// TestFetchExperimentInfo_ParsesParams tests info parsing including the
// contact string and experiment params
func TestFetchExperimentInfo_ParsesParams(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success": true, "value": {
			"_id": "mfxl1033223",
			"name": "Protein dynamics",
			"instrument": "MFX",
			"start_time": "2026-01-01T08:00:00",
			"contact_info": "Ada Lovelace (ada@example.org)",
			"leader_account": "adal",
			"params": {"slack_channels": "#mfx", "PNR": "LX42"}
		}}`)
	}))

	info, err := FetchExperimentInfo(context.Background(), c, "mfxl1033223")
	if err != nil {
		t.Fatalf("FetchExperimentInfo() failed: %v", err)
	}
	if info.PI != "Ada Lovelace" {
		t.Errorf("PI = %q", info.PI)
	}
	if info.PIEmail != "ada@example.org" {
		t.Errorf("PIEmail = %q", info.PIEmail)
	}
	if info.SlackChannels != "#mfx" {
		t.Errorf("SlackChannels = %q", info.SlackChannels)
	}
	if info.URAWIProposal != "LX42" {
		t.Errorf("URAWIProposal = %q", info.URAWIProposal)
	}
}

// TestParseContactInfo tests the contact string split
func TestParseContactInfo(t *testing.T) {
	tests := []struct {
		in    string
		name  string
		email string
	}{
		{"Ada Lovelace (ada@example.org)", "Ada Lovelace", "ada@example.org"},
		{"Ada Lovelace", "Ada Lovelace", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		name, email := ParseContactInfo(tt.in)
		if name != tt.name || email != tt.email {
			t.Errorf("ParseContactInfo(%q) = %q, %q", tt.in, name, email)
		}
	}
}

// TestFetchLogbook_InfersRunNumbers tests run inference from boundary posts
func TestFetchLogbook_InfersRunNumbers(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success": true, "value": [
			{"_id": "e1", "insert_time": "2026-01-01 09:00:00", "content": "prep", "author": "ops"},
			{"_id": "e2", "insert_time": "2026-01-01 10:00:00", "content": "Run number 5 is now running", "author": "daq"},
			{"_id": "e3", "insert_time": "2026-01-01 10:30:00", "content": "good signal", "author": "ops", "tags": ["shift", "good"]},
			{"_id": "e4", "run_num": 6, "insert_time": "2026-01-01 11:00:00", "content": "next run", "author": "daq"},
			{"_id": "e5", "insert_time": "2026-01-01 11:15:00", "content": "still good", "author": "ops"}
		]}`)
	}))

	entries, err := FetchLogbook(context.Background(), c, "mfxl1033223")
	if err != nil {
		t.Fatalf("FetchLogbook() failed: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("len(entries) = %d, want 5", len(entries))
	}

	// Before any boundary: no run.
	if entries[0].RunNumber != nil {
		t.Errorf("entry 0 run = %v, want nil", *entries[0].RunNumber)
	}
	// Between the run-5 boundary post and run 6.
	if entries[2].RunNumber == nil || *entries[2].RunNumber != 5 {
		t.Errorf("entry 2 run = %v, want 5", entries[2].RunNumber)
	}
	// After the explicit run-6 entry.
	if entries[4].RunNumber == nil || *entries[4].RunNumber != 6 {
		t.Errorf("entry 4 run = %v, want 6", entries[4].RunNumber)
	}
	// Tags joined with commas.
	if entries[2].Tags != "shift,good" {
		t.Errorf("entry 2 tags = %q", entries[2].Tags)
	}
}

// TestFetchRunTable_SkipsBrokenRun tests that one failing run detail does
// not sink the table
func TestFetchRunTable_SkipsBrokenRun(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ws-kerb/lgbk/lgbk/mfxl1033223/ws/runs":
			fmt.Fprint(w, `{"success": true, "value": [{"num": 1}, {"num": 2}]}`)
		case "/ws-kerb/lgbk/lgbk/mfxl1033223/ws/runs/1":
			fmt.Fprint(w, `{"success": true, "value": {
				"begin_time": "2026-01-01T10:00:00+00:00",
				"end_time": "2026-01-01T10:30:00+00:00",
				"params": {
					"DAQ Detector Totals/Events": 1200,
					"DAQ Detector Totals/Damaged": "7",
					"DAQ Detectors/epix100": true,
					"DAQ Detectors/jungfrau": false
				}
			}}`)
		case "/ws-kerb/lgbk/lgbk/mfxl1033223/ws/runs/2":
			http.Error(w, "boom", http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))

	table, err := FetchRunTable(context.Background(), c, "mfxl1033223")
	if err != nil {
		t.Fatalf("FetchRunTable() failed: %v", err)
	}
	if len(table.DataProduction) != 1 {
		t.Fatalf("len(DataProduction) = %d, want 1", len(table.DataProduction))
	}

	prod := table.DataProduction[0]
	if prod.RunNumber != 1 {
		t.Errorf("RunNumber = %d, want 1", prod.RunNumber)
	}
	if prod.NEvents == nil || *prod.NEvents != 1200 {
		t.Errorf("NEvents = %v, want 1200", prod.NEvents)
	}
	if prod.NDamaged == nil || *prod.NDamaged != 7 {
		t.Errorf("NDamaged = %v, want 7 (numeric string)", prod.NDamaged)
	}
	if prod.StartTime != "2026-01-01 10:00:00" {
		t.Errorf("StartTime = %q", prod.StartTime)
	}

	det := table.Detectors[0]
	if det.Statuses["DAQ Detectors/epix100"] != "Checked" {
		t.Errorf("epix100 = %q, want Checked", det.Statuses["DAQ Detectors/epix100"])
	}
	if det.Statuses["DAQ Detectors/jungfrau"] != "Unchecked" {
		t.Errorf("jungfrau = %q, want Unchecked", det.Statuses["DAQ Detectors/jungfrau"])
	}
}

// TestFetchFileManager_AggregatesByRun tests per-run file aggregation
func TestFetchFileManager_AggregatesByRun(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success": true, "value": [
			{"run_num": 2, "size": 100},
			{"run_num": 1, "size": 300},
			{"run_num": 2, "size": 50},
			{"size": 999}
		]}`)
	}))

	fm, err := FetchFileManager(context.Background(), c, "mfxl1033223")
	if err != nil {
		t.Fatalf("FetchFileManager() failed: %v", err)
	}
	if len(fm.Records) != 2 {
		t.Fatalf("len(Records) = %d, want 2", len(fm.Records))
	}
	if fm.Records[0].RunNumber != 1 || fm.Records[0].NumberOfFiles != 1 || fm.Records[0].TotalSizeBytes != 300 {
		t.Errorf("run 1 record = %+v", fm.Records[0])
	}
	if fm.Records[1].RunNumber != 2 || fm.Records[1].NumberOfFiles != 2 || fm.Records[1].TotalSizeBytes != 150 {
		t.Errorf("run 2 record = %+v", fm.Records[1])
	}
}

// TestFetchQuestionnaire_NoProposal tests that a missing PNR yields an
// empty questionnaire rather than an error
func TestFetchQuestionnaire_NoProposal(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success": true, "value": {"_id": "mfxl1033223", "params": {}}}`)
	}))

	q, err := FetchQuestionnaire(context.Background(), c, "mfxl1033223")
	if err != nil {
		t.Fatalf("FetchQuestionnaire() failed: %v", err)
	}
	if q.ProposalNumber != "" || len(q.Fields) != 0 {
		t.Errorf("questionnaire = %+v, want empty", q)
	}
}

// TestFetchQuestionnaire_FlattensCategories tests the category flattening
func TestFetchQuestionnaire_FlattensCategories(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ws-kerb/lgbk/lgbk/mfxl1033223/ws/info":
			fmt.Fprint(w, `{"success": true, "value": {"_id": "mfxl1033223", "params": {"PNR": "LX42"}}}`)
		case "/ws-kerb/questionnaire/ws/proposal/attribute/run23/LX42":
			fmt.Fprint(w, `{
				"hutch": [
					{"id": "hutch-position", "val": "downstream", "modified_uid": "adal"},
					{"id": "hutch-temp", "val": "293"}
				],
				"meta": {"not": "a list"}
			}`)
		default:
			http.NotFound(w, r)
		}
	}))

	q, err := FetchQuestionnaire(context.Background(), c, "mfxl1033223")
	if err != nil {
		t.Fatalf("FetchQuestionnaire() failed: %v", err)
	}
	if q.ProposalNumber != "LX42" {
		t.Errorf("ProposalNumber = %q", q.ProposalNumber)
	}
	if len(q.Fields) != 2 {
		t.Fatalf("len(Fields) = %d, want 2", len(q.Fields))
	}
	if q.Fields[0].FieldName != "position" {
		t.Errorf("FieldName = %q, want position", q.Fields[0].FieldName)
	}
	if q.Fields[0].Category != "hutch" {
		t.Errorf("Category = %q", q.Fields[0].Category)
	}
}

// TestExtractLCLSRun tests the run-period suffix extraction
func TestExtractLCLSRun(t *testing.T) {
	if got := ExtractLCLSRun("mfxl1033223"); got != "23" {
		t.Errorf("ExtractLCLSRun(mfxl1033223) = %q, want 23", got)
	}
	if got := ExtractLCLSRun("mfx"); got != "" {
		t.Errorf("ExtractLCLSRun(mfx) = %q, want empty", got)
	}
}

// TestFetchWorkflow_KeepsRawParameters tests workflow parsing
func TestFetchWorkflow_KeepsRawParameters(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success": true, "value": [
			{"_id": "abc123", "name": "smd", "executable": "/bin/smd",
			 "trigger": "END_OF_RUN", "location": "S3DF",
			 "parameters": {"cores": 32}, "run_as_user": "psana"}
		]}`)
	}))

	wf, err := FetchWorkflow(context.Background(), c, "mfxl1033223")
	if err != nil {
		t.Fatalf("FetchWorkflow() failed: %v", err)
	}
	if len(wf.Definitions) != 1 {
		t.Fatalf("len(Definitions) = %d, want 1", len(wf.Definitions))
	}
	def := wf.Definitions[0]
	if def.Name != "smd" || def.Trigger != "END_OF_RUN" {
		t.Errorf("definition = %+v", def)
	}
	if def.Parameters != `{"cores": 32}` {
		t.Errorf("Parameters = %q", def.Parameters)
	}
}

// TestFormatAPITime tests timestamp normalization
func TestFormatAPITime(t *testing.T) {
	tests := []struct{ in, want string }{
		{"2026-01-01T10:00:00+00:00", "2026-01-01 10:00:00"},
		{"2026-01-01 10:00:00", "2026-01-01 10:00:00"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := FormatAPITime(tt.in); got != tt.want {
			t.Errorf("FormatAPITime(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
