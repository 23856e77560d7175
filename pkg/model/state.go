package model

// TaskStatus represents the assignment lifecycle state of a Task.
type TaskStatus string

const (
	TaskStatusUnassigned TaskStatus = "UNASSIGNED"
	TaskStatusAssigned   TaskStatus = "ASSIGNED"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusCompleted  TaskStatus = "COMPLETED"
	TaskStatusCancelled  TaskStatus = "CANCELLED"
)

// String returns the string representation of the task status.
func (s TaskStatus) String() string {
	return string(s)
}

// IsTerminal returns true if the task is in a final state.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusCancelled:
		return true
	}
	return false
}

// ValidTaskTransitions defines the allowed status transitions for Tasks.
// CANCELLED is reachable from every non-terminal status.
var ValidTaskTransitions = map[TaskStatus][]TaskStatus{
	TaskStatusUnassigned: {TaskStatusAssigned, TaskStatusCancelled},
	TaskStatusAssigned:   {TaskStatusInProgress, TaskStatusCancelled},
	TaskStatusInProgress: {TaskStatusCompleted, TaskStatusCancelled},
}

// CanTransitionTo returns true if moving from the current status to next is valid.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	for _, allowed := range ValidTaskTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// RunStatus represents the lifecycle state of an execution history record.
type RunStatus string

const (
	RunStatusStarted   RunStatus = "started"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// String returns the string representation of the run status.
func (s RunStatus) String() string {
	return string(s)
}

// IsTerminal returns true if the run record will not be updated again.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}
