// Package matcher runs one batch-matching pass for a tenant: rank workers
// against each unassigned task and drive the assignment state machine with
// the best candidate.
package matcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/me/taskmatch/internal/assignment"
	"github.com/me/taskmatch/internal/scoring"
	"github.com/me/taskmatch/internal/store"
	"github.com/me/taskmatch/pkg/model"
)

// Matcher scores and assigns a tenant's unassigned tasks.
type Matcher struct {
	store   store.Store
	machine *assignment.Machine
	logger  *slog.Logger
}

// New creates a Matcher.
func New(st store.Store, machine *assignment.Machine, logger *slog.Logger) *Matcher {
	return &Matcher{
		store:   st,
		machine: machine,
		logger:  logger.With("component", "matcher"),
	}
}

// candidate pairs a worker with its score for one task.
type candidate struct {
	worker    *model.Worker
	breakdown scoring.Breakdown
}

// RunForTenant executes one batch for the tenant. Per-task errors are logged
// and counted without aborting the batch; only a failure to load the batch
// itself (config, tasks, workers) fails the whole run.
func (m *Matcher) RunForTenant(ctx context.Context, tenantID string) (model.BatchResult, error) {
	result := model.BatchResult{TenantID: tenantID}

	cfg, err := m.store.GetAgentConfig(ctx, tenantID)
	if err != nil {
		return result, fmt.Errorf("load agent config for %s: %w", tenantID, err)
	}
	if cfg == nil || !cfg.Enabled {
		m.logger.Info("auto-assignment not enabled, skipping", "tenant_id", tenantID)
		return result, nil
	}

	tasks, err := m.store.ListUnassignedTasks(ctx, tenantID)
	if err != nil {
		return result, fmt.Errorf("list unassigned tasks for %s: %w", tenantID, err)
	}
	result.TotalTasks = len(tasks)
	if len(tasks) == 0 {
		return result, nil
	}

	workers, err := m.store.ListEligibleWorkers(ctx, tenantID, cfg.Roles)
	if err != nil {
		return result, fmt.Errorf("list eligible workers for %s: %w", tenantID, err)
	}
	if len(workers) == 0 {
		m.logger.Info("no eligible workers", "tenant_id", tenantID, "tasks", len(tasks))
		result.Skipped = len(tasks)
		return result, nil
	}

	// Tasks are processed sequentially in priority order so each commit's
	// workload increment is visible to the next task's scoring.
	for _, task := range tasks {
		if task.HasPending() {
			// Already proposed, waiting on an operator.
			result.Skipped++
			continue
		}

		if err := m.matchTask(ctx, task, workers, cfg, &result); err != nil {
			m.logger.Error("match task", "tenant_id", tenantID, "task_id", task.ID, "error", err)
			result.Failed++
		}
	}

	m.logger.Info("batch complete",
		"tenant_id", tenantID,
		"total", result.TotalTasks,
		"assigned", result.Assigned,
		"proposed", result.Proposed,
		"skipped", result.Skipped,
		"failed", result.Failed,
	)
	return result, nil
}

func (m *Matcher) matchTask(ctx context.Context, task *model.Task, workers []*model.Worker, cfg *model.AgentConfig, result *model.BatchResult) error {
	ranked := rankCandidates(task, workers, cfg)
	if len(ranked) == 0 {
		m.logger.Info("no candidate scored above zero", "task_id", task.ID)
		result.Skipped++
		return nil
	}

	best := ranked[0]
	ids := candidateIDs(ranked)
	metrics := best.breakdown.Metrics(best.worker.ID)

	var err error
	if cfg.RequiresApproval {
		err = m.machine.Propose(ctx, task, best.worker.ID, ids, metrics)
	} else {
		err = m.machine.DirectAssign(ctx, task, best.worker.ID, ids, metrics)
	}
	if err != nil {
		if errors.Is(err, assignment.ErrPreconditionFailed) {
			// A concurrent run got there first. Not an error.
			m.logger.Info("task taken by concurrent run", "task_id", task.ID)
			result.Skipped++
			return nil
		}
		return err
	}

	result.TaskIDs = append(result.TaskIDs, task.ID)
	if cfg.RequiresApproval {
		result.Proposed++
	} else {
		result.Assigned++
		// Bump the in-memory snapshot so later tasks in this batch observe
		// the committed increment.
		best.worker.Workload++
	}
	return nil
}

// rankCandidates scores every worker against the task and returns those with
// a positive final score, best first. Workers outside the tenant's role list
// and workers whose proposal for this task was rejected are excluded. Ties
// break on the worker id for a stable order.
func rankCandidates(task *model.Task, workers []*model.Worker, cfg *model.AgentConfig) []candidate {
	ranked := make([]candidate, 0, len(workers))
	for _, w := range workers {
		// The store query already filters on role; re-check here so a
		// caller-supplied worker slice cannot bypass the tenant's roles.
		if !cfg.AllowsRole(w.Role) {
			continue
		}
		if task.RejectedBefore(w.ID) {
			continue
		}
		b := scoring.Score(task, w, cfg)
		if b.Final > 0 {
			ranked = append(ranked, candidate{worker: w, breakdown: b})
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].breakdown.Final != ranked[j].breakdown.Final {
			return ranked[i].breakdown.Final > ranked[j].breakdown.Final
		}
		return ranked[i].worker.ID < ranked[j].worker.ID
	})
	return ranked
}

func candidateIDs(ranked []candidate) []string {
	ids := make([]string, len(ranked))
	for i, c := range ranked {
		ids[i] = c.worker.ID
	}
	return ids
}
