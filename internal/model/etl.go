package model

import "time"

// Watermark keys stored in etl_state.
const (
	StateLastDomesticRunAt   = "last_domestic_run_at"
	StateLastSEC13FURL       = "last_sec_13f_url"
	StateLastSEC13FLabel     = "last_sec_13f_label"
	StateLastSuccessfulRunAt = "last_successful_run_at"
)

// EtlRunStatus is the lifecycle state of one ingestion invocation.
type EtlRunStatus string

const (
	EtlRunRunning EtlRunStatus = "running"
	EtlRunOK      EtlRunStatus = "ok"
	EtlRunError   EtlRunStatus = "error"
)

// EtlRun is the audit row for one invocation. A row left in running with no
// FinishedAt belongs to a run the host killed and counts as failed.
type EtlRun struct {
	ID         string       `json:"id"`
	Status     EtlRunStatus `json:"status"`
	Message    string       `json:"message"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
}

// IsStale reports whether a run is still marked running after maxAge.
func (r EtlRun) IsStale(now time.Time, maxAge time.Duration) bool {
	return r.Status == EtlRunRunning && r.FinishedAt == nil && now.Sub(r.StartedAt) > maxAge
}

// EtlState is one watermark entry.
type EtlState struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
