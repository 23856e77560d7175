package runlog

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/me/taskmatch/internal/store"
	"github.com/me/taskmatch/pkg/model"
)

func testRecorder(t *testing.T) (*Recorder, store.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))

	st, err := store.NewSQLiteStore(":memory:", logger)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	return New(st, logger), st
}

func TestBeginComplete(t *testing.T) {
	r, st := testRecorder(t)
	ctx := context.Background()

	rec := r.Begin(ctx, model.JobAutoAssign, "biz-1")
	if rec.ID == "" {
		t.Fatal("run record id not set")
	}
	if rec.Status != model.RunStatusStarted {
		t.Errorf("status = %s, want started", rec.Status)
	}

	open, err := st.ListRunRecords(ctx, model.RunQuery{TenantID: "biz-1"})
	if err != nil {
		t.Fatalf("ListRunRecords: %v", err)
	}
	if len(open) != 1 || open[0].Status != model.RunStatusStarted {
		t.Fatalf("open records = %+v, want one started record", open)
	}

	r.Complete(ctx, rec, 5, 4, 1, "assigned 4 of 5")

	done, err := st.ListRunRecords(ctx, model.RunQuery{TenantID: "biz-1", Status: model.RunStatusCompleted})
	if err != nil {
		t.Fatalf("ListRunRecords: %v", err)
	}
	if len(done) != 1 {
		t.Fatalf("completed records = %d, want 1", len(done))
	}
	got := done[0]
	if got.TargetCount != 5 || got.ProcessedCount != 4 || got.FailedCount != 1 {
		t.Errorf("counts = %d/%d/%d, want 5/4/1", got.TargetCount, got.ProcessedCount, got.FailedCount)
	}
	if got.CompletedAt == nil {
		t.Error("completed_at not set")
	}
	if got.Details != "assigned 4 of 5" {
		t.Errorf("details = %q", got.Details)
	}
}

func TestFail(t *testing.T) {
	r, st := testRecorder(t)
	ctx := context.Background()

	rec := r.Begin(ctx, model.JobAutoAssignManual, "biz-1")
	r.Fail(ctx, rec, errors.New("store unavailable"))

	failed, err := st.ListRunRecords(ctx, model.RunQuery{Status: model.RunStatusFailed})
	if err != nil {
		t.Fatalf("ListRunRecords: %v", err)
	}
	if len(failed) != 1 {
		t.Fatalf("failed records = %d, want 1", len(failed))
	}
	if failed[0].Error != "store unavailable" {
		t.Errorf("error text = %q", failed[0].Error)
	}
	if failed[0].JobName != model.JobAutoAssignManual {
		t.Errorf("job name = %q", failed[0].JobName)
	}
}

func TestFinishedRecordsAreImmutable(t *testing.T) {
	r, st := testRecorder(t)
	ctx := context.Background()

	rec := r.Begin(ctx, model.JobAutoAssign, "biz-1")
	r.Complete(ctx, rec, 1, 1, 0, "")

	// A second finish attempt must not alter the stored row.
	rec.Status = model.RunStatusFailed
	rec.Error = "late failure"
	if err := st.FinishRunRecord(ctx, rec); err == nil {
		t.Error("second FinishRunRecord should be rejected")
	}

	recs, _ := st.ListRunRecords(ctx, model.RunQuery{TenantID: "biz-1"})
	if len(recs) != 1 || recs[0].Status != model.RunStatusCompleted {
		t.Errorf("record mutated after completion: %+v", recs)
	}
}
