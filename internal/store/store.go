package store

import (
	"context"
	"time"

	"github.com/me/taskmatch/pkg/model"
)

// Store defines the persistence layer for taskmatch entities.
//
// The conditional mutations (SetPendingAssignment, CommitAssignment,
// ApprovePendingAssignment, RejectPendingAssignment, UpdateTaskStatus,
// AdjustWorkload) execute as single guarded statements so concurrent runs
// cannot double-commit an assignment or lose a workload update. Each returns
// false, nil when the guard did not hold.
type Store interface {
	// Task operations
	CreateTask(ctx context.Context, task *model.Task) error
	GetTask(ctx context.Context, id string) (*model.Task, error)
	ListTasks(ctx context.Context, tenantID string, opts model.ListOptions) ([]*model.Task, int, error)
	ListUnassignedTasks(ctx context.Context, tenantID string) ([]*model.Task, error)
	SoftDeleteTask(ctx context.Context, id string) error

	// SetPendingAssignment attaches a proposal to an UNASSIGNED task with no
	// existing pending entry, recording the ranked candidates and metrics.
	SetPendingAssignment(ctx context.Context, taskID string, pending model.PendingAssignment, candidates []string, metrics *model.AssignmentMetrics) (bool, error)

	// CommitAssignment assigns a worker directly to an UNASSIGNED task with
	// no pending entry.
	CommitAssignment(ctx context.Context, taskID, workerID string, at time.Time, candidates []string, metrics *model.AssignmentMetrics) (bool, error)

	// ApprovePendingAssignment commits the pending candidate, guarded on the
	// pending entry still naming workerID.
	ApprovePendingAssignment(ctx context.Context, taskID, workerID string, at time.Time) (bool, error)

	// RejectPendingAssignment clears the pending entry and appends the
	// rejection, guarded on the pending entry still naming the rejected
	// worker.
	RejectPendingAssignment(ctx context.Context, taskID string, rejection model.RejectedAssignment) (bool, error)

	// UpdateTaskStatus moves a task from one status to another, guarded on
	// the prior status.
	UpdateTaskStatus(ctx context.Context, taskID string, from, to model.TaskStatus) (bool, error)

	// Worker operations
	CreateWorker(ctx context.Context, w *model.Worker) error
	GetWorker(ctx context.Context, id string) (*model.Worker, error)
	ListEligibleWorkers(ctx context.Context, tenantID string, roles []string) ([]*model.Worker, error)

	// AdjustWorkload atomically adds delta to a worker's open-task count.
	// The count never goes below zero.
	AdjustWorkload(ctx context.Context, workerID string, delta int) (bool, error)

	// Agent configuration
	GetAgentConfig(ctx context.Context, tenantID string) (*model.AgentConfig, error)
	PutAgentConfig(ctx context.Context, cfg *model.AgentConfig) error
	ListEnabledTenants(ctx context.Context) ([]string, error)

	// Execution history
	CreateRunRecord(ctx context.Context, rec *model.RunRecord) error
	FinishRunRecord(ctx context.Context, rec *model.RunRecord) error
	ListRunRecords(ctx context.Context, q model.RunQuery) ([]*model.RunRecord, error)

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
