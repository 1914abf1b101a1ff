package domain

import "time"

// Counters are the cumulative run counters. Processed == Indexed + Failed
// holds at every page boundary.
type Counters struct {
	Processed          int `json:"processed"`
	Indexed            int `json:"indexed"`
	Failed             int `json:"failed"`
	Batches            int `json:"batches"`
	ConsecutiveErrors  int `json:"consecutive_errors"`
	LastSuccessfulPage int `json:"last_successful_page"`
}

// Checkpoint is the durable record of pipeline progress. LastSuccessfulPage
// only advances for pages whose every batch produced zero document-level
// failures, so a resume re-attempts anything partially written.
type Checkpoint struct {
	LastSuccessfulPage int            `json:"last_successful_page"`
	Counters           Counters       `json:"counters"`
	Config             ConfigSnapshot `json:"config"`
	SavedAt            time.Time      `json:"saved_at"`
}

// ConfigSnapshot records the run options active when the checkpoint was
// written, so a resumed run can be sanity-checked against them.
type ConfigSnapshot struct {
	Collection         string `json:"collection"`
	BatchSize          int    `json:"batch_size"`
	PageSize           int    `json:"page_size"`
	CheckpointInterval int    `json:"checkpoint_interval"`
	StopOnErrors       bool   `json:"stop_on_errors"`
}

// Run status values for the final report.
const (
	RunStatusCompleted   = "COMPLETED"
	RunStatusInterrupted = "INTERRUPTED"
)

// Report is the final run summary written to logs/report-{ts}.json and
// printed on exit.
type Report struct {
	Status             string    `json:"status"`
	Processed          int       `json:"processed"`
	Indexed            int       `json:"indexed"`
	Failed             int       `json:"failed"`
	Batches            int       `json:"batches"`
	LastSuccessfulPage int       `json:"last_successful_page"`
	StartedAt          time.Time `json:"started_at"`
	FinishedAt         time.Time `json:"finished_at"`
	DurationSeconds    float64   `json:"duration_seconds"`
	DocsPerSecond      float64   `json:"docs_per_second"`
	Error              string    `json:"error,omitempty"`

	LogPath        string `json:"log_path,omitempty"`
	CheckpointPath string `json:"checkpoint_path,omitempty"`
	SamplesPath    string `json:"samples_path,omitempty"`
	ReportPath     string `json:"report_path,omitempty"`
}

// Error sample phases.
const (
	PhaseTransformation  = "transformation"
	PhaseIndexing        = "indexing"
	PhaseBatchProcessing = "batch_processing"
)

// ErrorSample is one captured failure for offline debugging. Product carries
// a bounded projection of the offending input, not the whole payload.
type ErrorSample struct {
	Timestamp time.Time     `json:"timestamp"`
	ProductID string        `json:"product_id"`
	Title     string        `json:"title"`
	Error     string        `json:"error"`
	Phase     string        `json:"phase"`
	Product   SampleProduct `json:"product"`
}

// SampleProduct is the bounded projection stored with an error sample.
type SampleProduct struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Brand      string `json:"brand"`
	Pricing    any    `json:"pricing,omitempty"`
	Categories any    `json:"categories,omitempty"`
}
