package model

import "time"

// Job names distinguish scheduled, sweep, and manually-triggered runs of the
// same matching logic in the execution history.
const (
	JobAutoAssign       = "auto-assign"
	JobAutoAssignSweep  = "auto-assign-sweep"
	JobAutoAssignManual = "auto-assign-manual"
)

// RunRecord is one row of the append-only execution history: created with
// status=started when a run begins, updated exactly once on completion, and
// never mutated afterward.
type RunRecord struct {
	ID       string    `json:"id"`
	JobName  string    `json:"job_name"`
	TenantID string    `json:"tenant_id,omitempty"` // empty for global sweeps
	Status   RunStatus `json:"status"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	DurationMS  int64      `json:"duration_ms"`

	TargetCount    int `json:"target_count"`
	ProcessedCount int `json:"processed_count"`
	FailedCount    int `json:"failed_count"`

	Details string `json:"details,omitempty"`
	Error   string `json:"error,omitempty"`
}

// RunQuery filters execution history listings.
type RunQuery struct {
	JobName  string
	TenantID string
	Status   RunStatus
	Since    *time.Time
	Limit    int
}
