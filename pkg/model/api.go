package model

import "time"

// Response is the standard API response envelope.
type Response struct {
	Status     string      `json:"status"`
	RequestID  string      `json:"request_id"`
	Timestamp  time.Time   `json:"timestamp"`
	Data       any         `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Error      *APIError   `json:"error"`
}

// Pagination holds pagination metadata for list endpoints.
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// ListOptions configures list queries with pagination and filtering.
type ListOptions struct {
	Limit  int
	Offset int
	Status string // Optional status filter
}

// DefaultListOptions returns sensible defaults.
func DefaultListOptions() ListOptions {
	return ListOptions{Limit: 20, Offset: 0}
}

// Clamp enforces limits (max 100, min 1).
func (o *ListOptions) Clamp() {
	if o.Limit <= 0 {
		o.Limit = 20
	}
	if o.Limit > 100 {
		o.Limit = 100
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
}

// BatchResult summarizes one batch-matching run for a tenant, returned by the
// manual-trigger endpoint and recorded in the execution history.
type BatchResult struct {
	TenantID   string   `json:"tenant_id"`
	TotalTasks int      `json:"total_tasks"`
	Assigned   int      `json:"assigned"`
	Proposed   int      `json:"proposed"`
	Skipped    int      `json:"skipped"`
	Failed     int      `json:"failed"`
	TaskIDs    []string `json:"task_ids,omitempty"`
}

// Processed returns the count of tasks that were assigned or proposed.
func (r BatchResult) Processed() int {
	return r.Assigned + r.Proposed
}
