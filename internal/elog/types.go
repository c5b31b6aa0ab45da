package elog

// ExperimentInfo is the experiment-level record as stored locally.
type ExperimentInfo struct {
	ExperimentID   string
	Name           string
	Instrument     string
	StartTime      string
	EndTime        string
	PI             string
	PIEmail        string
	LeaderAccount  string
	Description    string
	SlackChannels  string
	AnalysisQueues string
	URAWIProposal  string
}

// LogbookEntry is one elog entry, with the run number either taken from the
// entry itself or inferred from surrounding run-boundary entries.
type LogbookEntry struct {
	ExperimentID string
	RunNumber    *int
	Timestamp    string
	Content      string
	Tags         string
	Author       string
}

// RunProduction carries the DAQ production counters for one run.
type RunProduction struct {
	RunNumber int
	NEvents   *int64
	NDamaged  *int64
	NDropped  *int64
	StartTime string
	EndTime   string
	ProdStart string
	ProdEnd   string
}

// RunDetectors maps detector parameter names to their Checked/Unchecked
// status for one run.
type RunDetectors struct {
	RunNumber int
	Statuses  map[string]string
}

// RunTable is the per-run production and detector data for an experiment.
type RunTable struct {
	ExperimentID   string
	DataProduction []RunProduction
	Detectors      []RunDetectors
}

// FileManagerRecord aggregates the file manager listing by run.
type FileManagerRecord struct {
	RunNumber      int
	NumberOfFiles  int64
	TotalSizeBytes int64
}

// FileManager holds the per-run file aggregates for an experiment.
type FileManager struct {
	ExperimentID string
	Records      []FileManagerRecord
}

// QuestionnaireField is one flattened questionnaire attribute.
type QuestionnaireField struct {
	Category     string
	FieldID      string
	FieldName    string
	FieldValue   string
	ModifiedTime string
	ModifiedUID  string
}

// Questionnaire is the proposal questionnaire for an experiment.
type Questionnaire struct {
	ExperimentID   string
	ProposalNumber string
	Fields         []QuestionnaireField
}

// Workflow is one workflow (ARP) definition attached to an experiment.
type Workflow struct {
	MongoID       string
	Name          string
	Executable    string
	Trigger       string
	Location      string
	Parameters    string // JSON-encoded parameter map
	RunParamName  string
	RunParamValue string
	RunAsUser     string
}

// Workflows holds all workflow definitions for an experiment.
type Workflows struct {
	ExperimentID string
	Definitions  []Workflow
}

// Bundle is the complete record set for one experiment. A Bundle is only
// ever produced whole; a fetch that cannot assemble all parts fails instead.
type Bundle struct {
	ExperimentID  string
	Info          *ExperimentInfo
	Logbook       []LogbookEntry
	RunTable      *RunTable
	FileManager   *FileManager
	Questionnaire *Questionnaire
	Workflows     *Workflows
}
