package seed

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/me/taskmatch/internal/store"
	"github.com/me/taskmatch/pkg/model"
)

const sampleYAML = `
tenants:
  - tenant_id: biz-1
    enabled: true
    requires_approval: true
    frequency_minutes: 15
    weights:
      skill_match: 0.6
      availability: 0.2
      proximity: 0.1
      workload: 0.1
    roles: [technician]
workers:
  - id: worker-1
    tenant_id: biz-1
    name: Sam
    role: technician
    skills:
      cabling: {level: expert, years: 6}
    location: {lat: 52.5, lng: 13.4}
tasks:
  - id: task-1
    tenant_id: biz-1
    title: Install cabling
    priority: high
    required_skills: [cabling]
  - tenant_id: biz-1
    title: Second task without an id
`

func testStore(t *testing.T) store.Store {
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
	return st
}

func TestParseAndApply(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	f, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := f.Apply(ctx, st, logger); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	cfg, err := st.GetAgentConfig(ctx, "biz-1")
	if err != nil || cfg == nil {
		t.Fatalf("GetAgentConfig: %v, %v", cfg, err)
	}
	if !cfg.Enabled || !cfg.RequiresApproval || cfg.FrequencyMinutes != 15 {
		t.Errorf("config fields: %+v", cfg)
	}
	if cfg.Weights.SkillMatch != 0.6 {
		t.Errorf("weights = %+v", cfg.Weights)
	}
	if len(cfg.Roles) != 1 || cfg.Roles[0] != "technician" {
		t.Errorf("roles = %v", cfg.Roles)
	}

	w, err := st.GetWorker(ctx, "worker-1")
	if err != nil || w == nil {
		t.Fatalf("GetWorker: %v, %v", w, err)
	}
	if w.Skills["cabling"].Level != model.SkillExpert || !w.Active {
		t.Errorf("worker fields: %+v", w)
	}

	task, err := st.GetTask(ctx, "task-1")
	if err != nil || task == nil {
		t.Fatalf("GetTask: %v, %v", task, err)
	}
	if task.Priority != model.PriorityHigh || task.Status != model.TaskStatusUnassigned {
		t.Errorf("task fields: %+v", task)
	}

	// The id-less task got a generated id and a default priority.
	tasks, total, err := st.ListTasks(ctx, "biz-1", model.ListOptions{})
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if total != 2 {
		t.Fatalf("tasks seeded = %d, want 2", total)
	}
	for _, seeded := range tasks {
		if seeded.ID == "task-1" {
			continue
		}
		if seeded.ID == "" || seeded.Priority != model.PriorityMedium {
			t.Errorf("generated task: %+v", seeded)
		}
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	f, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := f.Apply(ctx, st, logger); err != nil {
		t.Fatalf("first Apply: %v", err)
	}

	// Mutate state that a re-apply must not roll back.
	cfg, _ := st.GetAgentConfig(ctx, "biz-1")
	cfg.Enabled = false
	if err := st.PutAgentConfig(ctx, cfg); err != nil {
		t.Fatalf("PutAgentConfig: %v", err)
	}

	if err := f.Apply(ctx, st, logger); err != nil {
		t.Fatalf("second Apply: %v", err)
	}
	cfg, _ = st.GetAgentConfig(ctx, "biz-1")
	if cfg.Enabled {
		t.Error("re-apply overwrote a modified config")
	}

	_, total, err := st.ListTasks(ctx, "biz-1", model.ListOptions{})
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if total != 3 {
		// task-1 is skipped, the id-less task gets a fresh ulid each apply.
		t.Errorf("tasks after re-apply = %d, want 3", total)
	}
}

func TestParseRejectsIncompleteEntries(t *testing.T) {
	cases := []string{
		"tenants:\n  - enabled: true\n",
		"workers:\n  - tenant_id: biz-1\n",
		"tasks:\n  - title: no tenant\n",
	}
	for i, src := range cases {
		if _, err := Parse([]byte(src)); err == nil {
			t.Errorf("case %d: Parse accepted incomplete entry", i)
		}
	}
}
