package domain

import "time"

// ProductFailure records why one product could not be recomputed.
type ProductFailure struct {
	ProductID int64  `json:"product_id"`
	Error     string `json:"error"`
	Invalid   bool   `json:"invalid_input"`
	Attempts  int    `json:"attempts"`
}

// BatchReport summarises a recompute-all run.
type BatchReport struct {
	RunID       int64            `json:"run_id"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt time.Time        `json:"completed_at"`
	Products    int              `json:"products"`
	Skipped     int              `json:"skipped"`
	Succeeded   int              `json:"succeeded"`
	Failures    []ProductFailure `json:"failures"`
	Anomalies   []Anomaly        `json:"anomalies"`
	ReportPath  string           `json:"report_path,omitempty"`
	ReportKey   string           `json:"report_key,omitempty"`
}

// Failed reports whether any product failed.
func (r *BatchReport) Failed() bool {
	return len(r.Failures) > 0
}

// IngestReport summarises a batch of appended facts.
type IngestReport struct {
	Received int      `json:"received"`
	Appended int      `json:"appended"`
	Rejected []RowRef `json:"rejected"`
	// TriggerErrors holds recompute errors raised after a row was durably appended.
	TriggerErrors []string `json:"trigger_errors"`
}
