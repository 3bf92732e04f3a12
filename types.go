package mekiki

// RunSummary is the public account of one pipeline pass.
// It is a curated view of internal/model.RunSummary for use by embedding
// callers, with no internal package imports.
type RunSummary struct {
	// ExecutionDate is the run day in YYYY-MM-DD (UTC).
	ExecutionDate string `json:"execution_date"`
	// L1DedupCount is the number of unique papers harvested.
	L1DedupCount int `json:"l1_dedup_count"`
	// L2PassedCount is the number of papers passing the anchor gate.
	L2PassedCount int `json:"l2_passed_count"`
	// L3RelevantCount is the number of papers judged relevant.
	L3RelevantCount int `json:"l3_relevant_count"`
	// FiguresExtracted is the number of figures stored across all papers.
	FiguresExtracted int `json:"figures_extracted"`
	// ProcessingTimeSec is the wall time of the whole run in seconds.
	ProcessingTimeSec float64 `json:"processing_time_sec"`
	// ErrorCount is the number of stage and per-paper errors recorded in
	// the batch log. A run with errors still completes.
	ErrorCount int `json:"error_count"`
}

// Result is the trigger contract returned by Run. Serialized as-is to stdout
// by cmd/mekiki, it is the shape scheduler integrations match on:
//
//	{"statusCode":200,"body":{"execution_date":"2026-02-14",...}}
type Result struct {
	StatusCode int        `json:"statusCode"`
	Body       RunSummary `json:"body"`
}
