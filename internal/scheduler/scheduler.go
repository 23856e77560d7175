package scheduler

import (
	"context"

	"github.com/me/taskmatch/pkg/model"
)

// Scheduler owns the per-tenant assignment timers and the periodic
// fallback sweep.
type Scheduler interface {
	// Start launches all timers for enabled tenants and the sweep loop,
	// then blocks until ctx is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop gracefully shuts down all timers and waits for in-flight runs.
	Stop() error

	// Reconcile brings the tenant's timer in line with its stored config:
	// started when enabled, stopped when disabled or deleted, restarted
	// when the frequency changed. Safe to call repeatedly.
	Reconcile(ctx context.Context, tenantID string) error

	// TriggerNow runs one assignment batch for the tenant immediately,
	// outside its timer cadence.
	TriggerNow(ctx context.Context, tenantID string) (model.BatchResult, error)
}
