package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/me/taskmatch/internal/assignment"
	"github.com/me/taskmatch/internal/config"
	"github.com/me/taskmatch/internal/matcher"
	"github.com/me/taskmatch/internal/runlog"
	"github.com/me/taskmatch/internal/scheduler"
	"github.com/me/taskmatch/internal/server"
	"github.com/me/taskmatch/internal/store"
	"github.com/me/taskmatch/pkg/model"
)

// startTestServer starts a server with an in-memory store and one
// enabled tenant holding a task and a worker. Returns the base URL.
func startTestServer(t *testing.T) string {
	t.Helper()
	srvLogger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
	st, err := store.NewSQLiteStore(":memory:", srvLogger)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	now := time.Now().UTC()
	cfg := model.DefaultAgentConfig("biz-1")
	cfg.Enabled = true
	cfg.UpdatedAt = now
	if err := st.PutAgentConfig(ctx, cfg); err != nil {
		t.Fatalf("seed config: %v", err)
	}
	if err := st.CreateTask(ctx, &model.Task{
		ID: "task-1", TenantID: "biz-1", Title: "Fix boiler",
		Status: model.TaskStatusUnassigned, Priority: model.PriorityHigh,
		CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("seed task: %v", err)
	}
	if err := st.CreateWorker(ctx, &model.Worker{
		ID: "worker-1", TenantID: "biz-1", Name: "Sam", Active: true,
		CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("seed worker: %v", err)
	}

	machine := assignment.New(st, nil, srvLogger)
	m := matcher.New(st, machine, srvLogger)
	rec := runlog.New(st, srvLogger)
	sched := scheduler.NewRegistry(st, m, rec, scheduler.DefaultSweepInterval, srvLogger)

	srv := server.New(config.DefaultServerConfig(), st, machine, sched, nil, srvLogger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

// runCommand executes the CLI against the test server and captures stdout.
func runCommand(t *testing.T, serverURL string, args ...string) (string, error) {
	t.Helper()

	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w

	root := NewRootCmd()
	root.SetArgs(append([]string{"--server", serverURL}, args...))
	runErr := root.Execute()

	w.Close()
	os.Stdout = old
	out, _ := io.ReadAll(r)
	return string(out), runErr
}

func TestTriggerAndTasks(t *testing.T) {
	url := startTestServer(t)

	out, err := runCommand(t, url, "trigger", "biz-1")
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if !strings.Contains(out, "Assigned: 1") {
		t.Errorf("trigger output: %s", out)
	}

	out, err = runCommand(t, url, "tasks", "biz-1", "--status", "ASSIGNED")
	if err != nil {
		t.Fatalf("tasks: %v", err)
	}
	if !strings.Contains(out, "task-1") || !strings.Contains(out, "worker-1") {
		t.Errorf("tasks output: %s", out)
	}
}

func TestRunsOutput(t *testing.T) {
	url := startTestServer(t)

	if _, err := runCommand(t, url, "trigger", "biz-1"); err != nil {
		t.Fatalf("trigger: %v", err)
	}

	out, err := runCommand(t, url, "runs", "--tenant", "biz-1")
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if !strings.Contains(out, "auto-assign-manual") || !strings.Contains(out, "completed") {
		t.Errorf("runs output: %s", out)
	}
}

func TestConfigEnableDisable(t *testing.T) {
	url := startTestServer(t)

	out, err := runCommand(t, url, "config", "show", "biz-1")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, "Enabled:            true") {
		t.Errorf("show output: %s", out)
	}

	if _, err := runCommand(t, url, "config", "disable", "biz-1"); err != nil {
		t.Fatalf("config disable: %v", err)
	}
	out, err = runCommand(t, url, "config", "show", "biz-1")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, "Enabled:            false") {
		t.Errorf("show after disable: %s", out)
	}

	// Disabled tenant: trigger is a no-op, not an error.
	out, err = runCommand(t, url, "trigger", "biz-1")
	if err != nil {
		t.Fatalf("trigger disabled tenant: %v", err)
	}
	if !strings.Contains(out, "Assigned: 0") {
		t.Errorf("trigger output after disable: %s", out)
	}
}

func TestClientSurfacesAPIErrors(t *testing.T) {
	url := startTestServer(t)
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
	c := NewClient(url, logger)

	_, err := c.Post("/api/v1/tasks/missing/approve", nil)
	if err == nil {
		t.Fatal("expected an API error")
	}
	apiErr, ok := err.(*model.APIError)
	if !ok {
		t.Fatalf("error type = %T, want *model.APIError", err)
	}
	if apiErr.Code != model.ErrNotFound {
		t.Errorf("code = %s, want NOT_FOUND", apiErr.Code)
	}
}

func TestApproveFlow(t *testing.T) {
	url := startTestServer(t)
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
	c := NewClient(url, logger)

	// Switch the tenant to approval mode before matching.
	cfgResp, err := c.Get("/api/v1/tenants/biz-1/agent-config")
	if err != nil {
		t.Fatalf("get config: %v", err)
	}
	var cfg model.AgentConfig
	if err := json.Unmarshal(cfgResp.Data, &cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.RequiresApproval = true
	if _, err := c.Put("/api/v1/tenants/biz-1/agent-config", cfg); err != nil {
		t.Fatalf("put config: %v", err)
	}

	if _, err := runCommand(t, url, "trigger", "biz-1"); err != nil {
		t.Fatalf("trigger: %v", err)
	}

	out, err := runCommand(t, url, "approve", "task-1")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if !strings.Contains(out, "assigned to worker-1") {
		t.Errorf("approve output: %s", out)
	}
}
