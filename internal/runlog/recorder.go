// Package runlog records every scheduler tick and manual trigger in the
// execution history, independent of outcome. Recorder failures are logged
// and swallowed: losing an audit row must never fail the run it describes.
package runlog

import (
	"context"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/me/taskmatch/internal/store"
	"github.com/me/taskmatch/pkg/model"
)

// Recorder writes the append-only run history.
type Recorder struct {
	store  store.Store
	logger *slog.Logger
}

// New creates a Recorder.
func New(st store.Store, logger *slog.Logger) *Recorder {
	return &Recorder{
		store:  st,
		logger: logger.With("component", "runlog"),
	}
}

// Begin opens a run record with status=started. The record is returned even
// if persisting it failed, so the caller can still Complete or Fail it.
func (r *Recorder) Begin(ctx context.Context, jobName, tenantID string) *model.RunRecord {
	rec := &model.RunRecord{
		ID:        ulid.Make().String(),
		JobName:   jobName,
		TenantID:  tenantID,
		Status:    model.RunStatusStarted,
		StartedAt: time.Now().UTC(),
	}
	if err := r.store.CreateRunRecord(ctx, rec); err != nil {
		r.logger.Error("create run record", "job", jobName, "tenant_id", tenantID, "error", err)
	}
	return rec
}

// Complete finalizes a run record as completed with its counts.
func (r *Recorder) Complete(ctx context.Context, rec *model.RunRecord, target, processed, failed int, details string) {
	rec.Status = model.RunStatusCompleted
	rec.TargetCount = target
	rec.ProcessedCount = processed
	rec.FailedCount = failed
	rec.Details = details
	r.finish(ctx, rec)
}

// Fail finalizes a run record as failed with the error text.
func (r *Recorder) Fail(ctx context.Context, rec *model.RunRecord, runErr error) {
	rec.Status = model.RunStatusFailed
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	r.finish(ctx, rec)
}

func (r *Recorder) finish(ctx context.Context, rec *model.RunRecord) {
	now := time.Now().UTC()
	rec.CompletedAt = &now
	rec.DurationMS = now.Sub(rec.StartedAt).Milliseconds()
	if err := r.store.FinishRunRecord(ctx, rec); err != nil {
		r.logger.Error("finish run record", "id", rec.ID, "job", rec.JobName, "error", err)
	}
}

// List queries the run history.
func (r *Recorder) List(ctx context.Context, q model.RunQuery) ([]*model.RunRecord, error) {
	return r.store.ListRunRecords(ctx, q)
}
