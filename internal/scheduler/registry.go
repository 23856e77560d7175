package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/me/taskmatch/internal/matcher"
	"github.com/me/taskmatch/internal/runlog"
	"github.com/me/taskmatch/internal/store"
	"github.com/me/taskmatch/pkg/model"
)

// DefaultSweepInterval is how often the fallback sweep visits every
// enabled tenant, catching any whose timer was lost or misconfigured.
const DefaultSweepInterval = 30 * time.Minute

// tenantTimer is one tenant's recurring assignment trigger.
type tenantTimer struct {
	tenantID string
	every    time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func (t *tenantTimer) halt() {
	close(t.stopCh)
	<-t.doneCh
}

// Registry implements Scheduler with one goroutine per enabled tenant
// plus a global sweep ticker.
type Registry struct {
	store      store.Store
	matcher    *matcher.Matcher
	recorder   *runlog.Recorder
	sweepEvery time.Duration
	logger     *slog.Logger

	mu     sync.Mutex
	timers map[string]*tenantTimer

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewRegistry creates a scheduler over the given store, matcher, and run
// recorder. A sweepEvery of 0 selects DefaultSweepInterval.
func NewRegistry(st store.Store, m *matcher.Matcher, rec *runlog.Recorder, sweepEvery time.Duration, logger *slog.Logger) *Registry {
	if sweepEvery <= 0 {
		sweepEvery = DefaultSweepInterval
	}
	return &Registry{
		store:      st,
		matcher:    m,
		recorder:   rec,
		sweepEvery: sweepEvery,
		logger:     logger.With("component", "scheduler"),
		timers:     make(map[string]*tenantTimer),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Start reconciles timers for all enabled tenants, then runs the sweep
// loop. Blocks until ctx is cancelled or Stop is called.
func (r *Registry) Start(ctx context.Context) error {
	if err := r.reconcileAll(ctx); err != nil {
		r.logger.Error("initial reconcile", "error", err)
	}
	r.logger.Info("scheduler started", "sweep_interval", r.sweepEvery)

	ticker := time.NewTicker(r.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("scheduler stopping (context cancelled)")
			r.haltTimers()
			close(r.doneCh)
			return ctx.Err()
		case <-r.stopCh:
			r.logger.Info("scheduler stopping (stop called)")
			r.haltTimers()
			close(r.doneCh)
			return nil
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

// Stop gracefully shuts down the scheduler and waits for all timers.
func (r *Registry) Stop() error {
	close(r.stopCh)
	<-r.doneCh
	return nil
}

// Reconcile compares the tenant's stored config against its running
// timer and starts, stops, or restarts the timer to match.
func (r *Registry) Reconcile(ctx context.Context, tenantID string) error {
	cfg, err := r.store.GetAgentConfig(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("get agent config for %s: %w", tenantID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing := r.timers[tenantID]

	if cfg == nil || !cfg.Enabled {
		if existing != nil {
			existing.halt()
			delete(r.timers, tenantID)
			r.logger.Info("tenant timer stopped", "tenant_id", tenantID)
		}
		return nil
	}

	every := cfg.Frequency()
	if existing != nil {
		if existing.every == every {
			return nil
		}
		existing.halt()
	}

	tt := &tenantTimer{
		tenantID: tenantID,
		every:    every,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	r.timers[tenantID] = tt
	go r.runTimer(tt)
	r.logger.Info("tenant timer started", "tenant_id", tenantID, "every", every)
	return nil
}

// TriggerNow runs one batch for the tenant immediately and records it
// as a manually triggered run.
func (r *Registry) TriggerNow(ctx context.Context, tenantID string) (model.BatchResult, error) {
	return r.runOnce(ctx, model.JobAutoAssignManual, tenantID)
}

func (r *Registry) reconcileAll(ctx context.Context) error {
	tenants, err := r.store.ListEnabledTenants(ctx)
	if err != nil {
		return err
	}
	for _, tenantID := range tenants {
		if err := r.Reconcile(ctx, tenantID); err != nil {
			r.logger.Error("reconcile tenant", "tenant_id", tenantID, "error", err)
		}
	}
	return nil
}

func (r *Registry) runTimer(tt *tenantTimer) {
	defer close(tt.doneCh)

	ticker := time.NewTicker(tt.every)
	defer ticker.Stop()

	for {
		select {
		case <-tt.stopCh:
			return
		case <-ticker.C:
			r.runOnce(context.Background(), model.JobAutoAssign, tt.tenantID)
		}
	}
}

// sweep runs a batch for every enabled tenant concurrently. Tenants
// with a healthy timer just get an extra (cheap, idempotent) run.
func (r *Registry) sweep(ctx context.Context) {
	tenants, err := r.store.ListEnabledTenants(ctx)
	if err != nil {
		r.logger.Error("sweep: list enabled tenants", "error", err)
		return
	}
	r.logger.Info("sweep started", "tenants", len(tenants))

	var wg conc.WaitGroup
	for _, tenantID := range tenants {
		tenantID := tenantID
		wg.Go(func() {
			r.runOnce(ctx, model.JobAutoAssignSweep, tenantID)
		})
	}
	wg.Wait()
}

// runOnce executes a single recorded assignment batch. Panics from the
// matcher are converted into a failed run record so one bad tenant
// cannot take down a timer goroutine.
func (r *Registry) runOnce(ctx context.Context, jobName, tenantID string) (result model.BatchResult, err error) {
	rec := r.recorder.Begin(ctx, jobName, tenantID)

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("assignment run panicked", "tenant_id", tenantID, "job", jobName, "panic", p)
			err = fmt.Errorf("assignment run panicked: %v", p)
			r.recorder.Fail(ctx, rec, err)
		}
	}()

	result, err = r.matcher.RunForTenant(ctx, tenantID)
	if err != nil {
		r.recorder.Fail(ctx, rec, err)
		return result, err
	}

	details := fmt.Sprintf("assigned=%d proposed=%d skipped=%d", result.Assigned, result.Proposed, result.Skipped)
	r.recorder.Complete(ctx, rec, result.TotalTasks, result.Processed(), result.Failed, details)
	return result, nil
}

func (r *Registry) haltTimers() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, tt := range r.timers {
		tt.halt()
		delete(r.timers, id)
	}
}
