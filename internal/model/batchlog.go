package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateRange is the half-open harvest window of one pipeline run.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// boundLayout matches the submittedDate bound format of harvest queries, so
// the window stored with a batch log reads the same as the queries that ran.
const boundLayout = "200601021504"

type dateRangeJSON struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func (dr DateRange) MarshalJSON() ([]byte, error) {
	return json.Marshal(dateRangeJSON{
		Start: dr.Start.UTC().Format(boundLayout),
		End:   dr.End.UTC().Format(boundLayout),
	})
}

func (dr *DateRange) UnmarshalJSON(data []byte) error {
	var raw dateRangeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	start, err := time.ParseInLocation(boundLayout, raw.Start, time.UTC)
	if err != nil {
		return fmt.Errorf("model: parse date range start: %w", err)
	}
	end, err := time.ParseInLocation(boundLayout, raw.End, time.UTC)
	if err != nil {
		return fmt.Errorf("model: parse date range end: %w", err)
	}
	dr.Start, dr.End = start, end
	return nil
}

// Harvest is the fetch stage output: the deduplicated papers plus what the
// batch log needs to describe the fetch.
type Harvest struct {
	Papers   []Paper
	Window   DateRange
	RawCount int
}

// BatchLog summarizes one pipeline run for the batch_logs table.
// Token and cost fields are carried for the schema but currently always zero;
// the triage client does not report usage.
type BatchLog struct {
	ID                int       `json:"id,omitempty"`
	ExecutionDate     time.Time `json:"execution_date"`
	DateRange         DateRange `json:"date_range"`
	L1RawCount        int       `json:"l1_raw_count"`
	L1DedupCount      int       `json:"l1_dedup_count"`
	L2InputCount      int       `json:"l2_input_count"`
	L2PassedCount     int       `json:"l2_passed_count"`
	L2PassRate        float64   `json:"l2_pass_rate"`
	L3InputCount      int       `json:"l3_input_count"`
	L3RelevantCount   int       `json:"l3_relevant_count"`
	L3RelevanceRate   float64   `json:"l3_relevance_rate"`
	L3InputTokens     int       `json:"l3_input_tokens"`
	L3OutputTokens    int       `json:"l3_output_tokens"`
	L3CostUSD         float64   `json:"l3_cost_usd"`
	FiguresExtracted  int       `json:"figures_extracted"`
	Errors            []string  `json:"errors"`
	ProcessingTimeSec float64   `json:"processing_time_sec"`
	CreatedAt         time.Time `json:"created_at,omitempty"`
}

// RunSummary is the body of the trigger contract on success.
type RunSummary struct {
	ExecutionDate     string  `json:"execution_date"`
	L1DedupCount      int     `json:"l1_dedup_count"`
	L2PassedCount     int     `json:"l2_passed_count"`
	L3RelevantCount   int     `json:"l3_relevant_count"`
	FiguresExtracted  int     `json:"figures_extracted"`
	ProcessingTimeSec float64 `json:"processing_time_sec"`
	ErrorCount        int     `json:"error_count"`
}
