// Package assignment owns the task-assignment state machine. Every
// transition guard is enforced as a single conditional update in the store,
// so two concurrent runs cannot both commit an assignment to the same task.
package assignment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/taskmatch/internal/eventbus"
	"github.com/me/taskmatch/internal/store"
	"github.com/me/taskmatch/pkg/model"
)

// ErrPreconditionFailed reports that a storage-level guard did not hold:
// the task changed under us between scoring and committing. Batch callers
// treat this as a skip, not a failure.
var ErrPreconditionFailed = model.NewConflictError("task state changed; assignment not applied")

// Machine drives assignment transitions for individual tasks.
type Machine struct {
	store  store.Store
	bus    *eventbus.Bus
	logger *slog.Logger
}

// New creates a Machine. bus may be nil when no event consumers exist.
func New(st store.Store, bus *eventbus.Bus, logger *slog.Logger) *Machine {
	return &Machine{
		store:  st,
		bus:    bus,
		logger: logger.With("component", "assignment"),
	}
}

// Propose attaches a pending assignment for the best candidate. The task
// stays UNASSIGNED and no workload changes until an operator approves.
func (m *Machine) Propose(ctx context.Context, task *model.Task, workerID string, candidates []string, metrics *model.AssignmentMetrics) error {
	pending := model.PendingAssignment{
		WorkerID:   workerID,
		ProposedAt: time.Now().UTC(),
	}

	ok, err := m.store.SetPendingAssignment(ctx, task.ID, pending, candidates, metrics)
	if err != nil {
		return fmt.Errorf("set pending assignment: %w", err)
	}
	if !ok {
		return ErrPreconditionFailed
	}

	m.logger.Info("assignment proposed", "task_id", task.ID, "worker_id", workerID, "tenant_id", task.TenantID)
	m.publish(eventbus.EventAssignmentProposed, task.TenantID, task.ID, workerID)
	return nil
}

// DirectAssign commits the best candidate without approval: the task becomes
// ASSIGNED and the worker's workload is incremented atomically.
func (m *Machine) DirectAssign(ctx context.Context, task *model.Task, workerID string, candidates []string, metrics *model.AssignmentMetrics) error {
	ok, err := m.store.CommitAssignment(ctx, task.ID, workerID, time.Now().UTC(), candidates, metrics)
	if err != nil {
		return fmt.Errorf("commit assignment: %w", err)
	}
	if !ok {
		return ErrPreconditionFailed
	}

	ok, err = m.store.AdjustWorkload(ctx, workerID, 1)
	if err != nil {
		return fmt.Errorf("increment workload for %s: %w", workerID, err)
	}
	if !ok {
		m.logger.Warn("workload increment skipped, worker row missing", "task_id", task.ID, "worker_id", workerID)
	}

	m.logger.Info("task assigned", "task_id", task.ID, "worker_id", workerID, "tenant_id", task.TenantID)
	m.publish(eventbus.EventAssignmentCommitted, task.TenantID, task.ID, workerID)
	return nil
}

// Approve commits a task's pending candidate as its assigned worker.
func (m *Machine) Approve(ctx context.Context, taskID string) (*model.Task, error) {
	task, err := m.loadPending(ctx, taskID)
	if err != nil {
		return nil, err
	}
	workerID := task.Pending.WorkerID

	ok, err := m.store.ApprovePendingAssignment(ctx, taskID, workerID, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("approve pending assignment: %w", err)
	}
	if !ok {
		return nil, ErrPreconditionFailed
	}

	ok, err = m.store.AdjustWorkload(ctx, workerID, 1)
	if err != nil {
		return nil, fmt.Errorf("increment workload for %s: %w", workerID, err)
	}
	if !ok {
		m.logger.Warn("workload increment skipped, worker row missing", "task_id", taskID, "worker_id", workerID)
	}

	m.logger.Info("assignment approved", "task_id", taskID, "worker_id", workerID, "tenant_id", task.TenantID)
	m.publish(eventbus.EventAssignmentCommitted, task.TenantID, taskID, workerID)

	return m.store.GetTask(ctx, taskID)
}

// Reject clears a task's pending assignment and records the rejection. The
// task returns to the matchable pool and may be re-proposed on the next run.
func (m *Machine) Reject(ctx context.Context, taskID, reason string) (*model.Task, error) {
	task, err := m.loadPending(ctx, taskID)
	if err != nil {
		return nil, err
	}
	workerID := task.Pending.WorkerID

	rejection := model.RejectedAssignment{
		WorkerID:   workerID,
		Reason:     reason,
		RejectedAt: time.Now().UTC(),
	}
	ok, err := m.store.RejectPendingAssignment(ctx, taskID, rejection)
	if err != nil {
		return nil, fmt.Errorf("reject pending assignment: %w", err)
	}
	if !ok {
		return nil, ErrPreconditionFailed
	}

	m.logger.Info("assignment rejected", "task_id", taskID, "worker_id", workerID, "reason", reason)
	m.publish(eventbus.EventAssignmentRejected, task.TenantID, taskID, workerID)

	return m.store.GetTask(ctx, taskID)
}

// Transition moves a task along its lifecycle (start, complete, cancel).
// Leaving the open states ASSIGNED or IN_PROGRESS for a terminal state
// releases the assigned worker's workload slot.
func (m *Machine) Transition(ctx context.Context, taskID string, to model.TaskStatus) (*model.Task, error) {
	task, err := m.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", taskID, err)
	}
	if task == nil || task.Deleted {
		return nil, model.NewNotFoundError("task", taskID)
	}
	if !task.Status.CanTransitionTo(to) {
		return nil, &model.InvalidTransitionError{TaskID: taskID, From: task.Status, To: to}
	}

	ok, err := m.store.UpdateTaskStatus(ctx, taskID, task.Status, to)
	if err != nil {
		return nil, fmt.Errorf("update task status: %w", err)
	}
	if !ok {
		return nil, ErrPreconditionFailed
	}

	if task.AssignedWorkerID != "" && isOpen(task.Status) && to.IsTerminal() {
		released, err := m.store.AdjustWorkload(ctx, task.AssignedWorkerID, -1)
		if err != nil {
			return nil, fmt.Errorf("decrement workload for %s: %w", task.AssignedWorkerID, err)
		}
		if !released {
			m.logger.Warn("workload release skipped, worker missing or already at zero",
				"task_id", taskID, "worker_id", task.AssignedWorkerID)
		}
	}

	m.logger.Info("task transitioned", "task_id", taskID, "from", task.Status, "to", to)
	return m.store.GetTask(ctx, taskID)
}

// loadPending fetches a live task that carries a pending assignment.
// Missing, deleted, terminal, and pending-free tasks all surface as
// NotFound-class errors per the operator API contract.
func (m *Machine) loadPending(ctx context.Context, taskID string) (*model.Task, error) {
	task, err := m.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", taskID, err)
	}
	if task == nil || task.Deleted {
		return nil, model.NewNotFoundError("task", taskID)
	}
	if task.Status.IsTerminal() {
		return nil, model.NewInvalidStateError(fmt.Sprintf("task '%s' is %s", taskID, task.Status))
	}
	if !task.HasPending() {
		return nil, model.NewNotFoundError("pending assignment for task", taskID)
	}
	return task, nil
}

func isOpen(s model.TaskStatus) bool {
	return s == model.TaskStatusAssigned || s == model.TaskStatusInProgress
}

func (m *Machine) publish(eventType eventbus.EventType, tenantID, taskID, workerID string) {
	if m.bus == nil {
		return
	}
	m.bus.PublishNew(eventType, tenantID, taskID, workerID)
}
