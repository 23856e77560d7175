package model

import "time"

// Priority is the scheduling priority of a task. Higher-priority tasks are
// matched before lower-priority ones within a batch.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Rank returns a numeric rank for ordering (urgent > high > medium > low).
// Unknown values rank below low.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// GeoPoint is a WGS84 coordinate pair.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// PendingAssignment is a proposed task->worker match awaiting operator
// approval. A task carries at most one.
type PendingAssignment struct {
	WorkerID   string    `json:"worker_id"`
	ProposedAt time.Time `json:"proposed_at"`
}

// RejectedAssignment records one operator rejection of a proposed match.
// The rejection history is append-only.
type RejectedAssignment struct {
	WorkerID   string    `json:"worker_id"`
	Reason     string    `json:"reason"`
	RejectedAt time.Time `json:"rejected_at"`
}

// AssignmentMetrics is the per-factor score snapshot of the candidate that
// was proposed or assigned, kept for audit and tuning.
type AssignmentMetrics struct {
	WorkerID        string  `json:"worker_id"`
	SkillMatch      float64 `json:"skill_match"`
	Availability    float64 `json:"availability"`
	Proximity       float64 `json:"proximity"`
	WorkloadBalance float64 `json:"workload_balance"`
	Final           float64 `json:"final"`
}

// Task is a unit of work belonging to exactly one tenant.
type Task struct {
	ID          string     `json:"id"`
	TenantID    string     `json:"tenant_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      TaskStatus `json:"status"`
	Priority    Priority   `json:"priority"`
	DueDate     *time.Time `json:"due_date,omitempty"`

	RequiredSkills []string  `json:"required_skills,omitempty"`
	Location       *GeoPoint `json:"location,omitempty"`

	AssignedWorkerID string     `json:"assigned_worker_id,omitempty"`
	AssignedAt       *time.Time `json:"assigned_at,omitempty"`

	// Candidates is the ranked worker-id list from the last matching pass,
	// best first.
	Candidates []string           `json:"candidates,omitempty"`
	Metrics    *AssignmentMetrics `json:"metrics,omitempty"`

	Pending    *PendingAssignment   `json:"pending_assignment,omitempty"`
	Rejections []RejectedAssignment `json:"rejection_history,omitempty"`

	Deleted   bool      `json:"deleted,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasPending returns true if the task carries a pending assignment proposal.
func (t *Task) HasPending() bool {
	return t.Pending != nil
}

// RejectedBefore returns true if workerID was already rejected for this task.
func (t *Task) RejectedBefore(workerID string) bool {
	for _, r := range t.Rejections {
		if r.WorkerID == workerID {
			return true
		}
	}
	return false
}
