package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/me/taskmatch/internal/assignment"
	"github.com/me/taskmatch/internal/config"
	"github.com/me/taskmatch/internal/eventbus"
	"github.com/me/taskmatch/internal/matcher"
	"github.com/me/taskmatch/internal/runlog"
	"github.com/me/taskmatch/internal/scheduler"
	"github.com/me/taskmatch/internal/store"
	"github.com/me/taskmatch/pkg/model"
)

type envelope struct {
	Status     string            `json:"status"`
	RequestID  string            `json:"request_id"`
	Data       json.RawMessage   `json:"data"`
	Pagination *model.Pagination `json:"pagination"`
	Error      *model.APIError   `json:"error"`
}

func newTestServer(t *testing.T) (*Server, store.Store) {
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

	bus := eventbus.New()
	machine := assignment.New(st, bus, logger)
	m := matcher.New(st, machine, logger)
	rec := runlog.New(st, logger)
	sched := scheduler.NewRegistry(st, m, rec, scheduler.DefaultSweepInterval, logger)

	return New(config.DefaultServerConfig(), st, machine, sched, bus, logger), st
}

func doRequest(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var rdr *strings.Reader
	if body == "" {
		rdr = strings.NewReader("")
	} else {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: decode envelope: %v (body %s)", method, path, err, w.Body.String())
	}
	return w, env
}

func seedTenant(t *testing.T, st store.Store, tenantID string, requiresApproval bool) {
	t.Helper()
	cfg := model.DefaultAgentConfig(tenantID)
	cfg.Enabled = true
	cfg.RequiresApproval = requiresApproval
	cfg.UpdatedAt = time.Now().UTC()
	if err := st.PutAgentConfig(context.Background(), cfg); err != nil {
		t.Fatalf("PutAgentConfig: %v", err)
	}
}

func seedTaskAndWorker(t *testing.T, st store.Store, tenantID, taskID, workerID string) {
	t.Helper()
	now := time.Now().UTC()
	task := &model.Task{
		ID: taskID, TenantID: tenantID, Title: taskID,
		Status: model.TaskStatusUnassigned, Priority: model.PriorityMedium,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := st.CreateTask(context.Background(), task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	w := &model.Worker{
		ID: workerID, TenantID: tenantID, Name: workerID, Active: true,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := st.CreateWorker(context.Background(), w); err != nil {
		t.Fatalf("CreateWorker: %v", err)
	}
}

func TestHealthAndDiscovery(t *testing.T) {
	s, _ := newTestServer(t)

	w, env := doRequest(t, s, http.MethodGet, "/api/v1/health", "")
	if w.Code != http.StatusOK || env.Status != "ok" {
		t.Errorf("health: code=%d status=%s", w.Code, env.Status)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}

	w, env = doRequest(t, s, http.MethodGet, "/api/v1/", "")
	if w.Code != http.StatusOK {
		t.Errorf("discovery: code=%d", w.Code)
	}
	var disc discoveryResponse
	if err := json.Unmarshal(env.Data, &disc); err != nil {
		t.Fatalf("decode discovery: %v", err)
	}
	if len(disc.Endpoints) == 0 {
		t.Error("discovery lists no endpoints")
	}
}

func TestAgentConfigRoundTrip(t *testing.T) {
	s, _ := newTestServer(t)

	// Never-configured tenant is a 404, not silent defaults.
	w, env := doRequest(t, s, http.MethodGet, "/api/v1/tenants/biz-1/agent-config", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET before create: code=%d, want 404", w.Code)
	}
	if env.Error == nil || env.Error.Code != model.ErrNotFound {
		t.Fatalf("GET before create: error=%+v, want %s", env.Error, model.ErrNotFound)
	}

	var cfg model.AgentConfig
	body := `{"enabled":true,"frequency_minutes":15,"weights":{"skill_match":0.5,"availability":0.3,"proximity":0.1,"workload":0.1}}`
	w, env = doRequest(t, s, http.MethodPut, "/api/v1/tenants/biz-1/agent-config", body)
	if w.Code != http.StatusOK {
		t.Fatalf("PUT: code=%d error=%+v", w.Code, env.Error)
	}

	w, env = doRequest(t, s, http.MethodGet, "/api/v1/tenants/biz-1/agent-config", "")
	if err := json.Unmarshal(env.Data, &cfg); err != nil {
		t.Fatalf("decode config: %v", err)
	}
	if !cfg.Enabled || cfg.FrequencyMinutes != 15 || cfg.Weights.SkillMatch != 0.5 {
		t.Errorf("stored config: %+v", cfg)
	}
	if cfg.TenantID != "biz-1" {
		t.Errorf("tenant id = %q, want biz-1 (from URL)", cfg.TenantID)
	}
}

func TestPutAgentConfigValidation(t *testing.T) {
	s, _ := newTestServer(t)

	w, env := doRequest(t, s, http.MethodPut, "/api/v1/tenants/biz-1/agent-config",
		`{"enabled":true,"weights":{"skill_match":-1}}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("code = %d, want 400", w.Code)
	}
	if env.Error == nil || env.Error.Code != model.ErrValidation {
		t.Errorf("error = %+v, want VALIDATION_ERROR", env.Error)
	}
	if len(env.Error.Details) == 0 {
		t.Error("validation error carries no field details")
	}

	w, env = doRequest(t, s, http.MethodPut, "/api/v1/tenants/biz-1/agent-config", `{not json`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad JSON: code = %d, want 400", w.Code)
	}
}

func TestTriggerRunAssigns(t *testing.T) {
	s, st := newTestServer(t)
	seedTenant(t, st, "biz-1", false)
	seedTaskAndWorker(t, st, "biz-1", "task-1", "worker-1")

	w, env := doRequest(t, s, http.MethodPost, "/api/v1/tenants/biz-1/assignments/run", "")
	if w.Code != http.StatusOK {
		t.Fatalf("trigger: code=%d error=%+v", w.Code, env.Error)
	}
	var res model.BatchResult
	if err := json.Unmarshal(env.Data, &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.Assigned != 1 || res.TotalTasks != 1 {
		t.Errorf("result = %+v", res)
	}

	// The run shows up in the execution history.
	w, env = doRequest(t, s, http.MethodGet, "/api/v1/runs?job=auto-assign-manual", "")
	if w.Code != http.StatusOK {
		t.Fatalf("runs: code=%d", w.Code)
	}
	var runs []model.RunRecord
	if err := json.Unmarshal(env.Data, &runs); err != nil {
		t.Fatalf("decode runs: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != model.RunStatusCompleted {
		t.Errorf("runs = %+v", runs)
	}
}

func TestApproveRejectFlow(t *testing.T) {
	s, st := newTestServer(t)
	seedTenant(t, st, "biz-1", true)
	seedTaskAndWorker(t, st, "biz-1", "task-1", "worker-1")

	if _, env := doRequest(t, s, http.MethodPost, "/api/v1/tenants/biz-1/assignments/run", ""); env.Status != "ok" {
		t.Fatalf("trigger failed: %+v", env.Error)
	}

	// Reject, task stays matchable with a recorded rejection.
	w, env := doRequest(t, s, http.MethodPost, "/api/v1/tasks/task-1/reject", `{"reason":"on leave"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("reject: code=%d error=%+v", w.Code, env.Error)
	}
	var task model.Task
	if err := json.Unmarshal(env.Data, &task); err != nil {
		t.Fatalf("decode task: %v", err)
	}
	if task.Status != model.TaskStatusUnassigned || len(task.Rejections) != 1 {
		t.Errorf("after reject: %+v", task)
	}
	if task.Rejections[0].Reason != "on leave" {
		t.Errorf("rejection reason = %q", task.Rejections[0].Reason)
	}

	// Approving with nothing pending is a 404.
	w, env = doRequest(t, s, http.MethodPost, "/api/v1/tasks/task-1/approve", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("approve without pending: code=%d, want 404", w.Code)
	}

	// Re-propose (the only worker was rejected, so nothing is proposed).
	_, env = doRequest(t, s, http.MethodPost, "/api/v1/tenants/biz-1/assignments/run", "")
	var res model.BatchResult
	if err := json.Unmarshal(env.Data, &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.Proposed != 0 {
		t.Errorf("rejected worker was re-proposed: %+v", res)
	}
}

func TestApproveCommitsPending(t *testing.T) {
	s, st := newTestServer(t)
	seedTenant(t, st, "biz-1", true)
	seedTaskAndWorker(t, st, "biz-1", "task-1", "worker-1")

	if _, env := doRequest(t, s, http.MethodPost, "/api/v1/tenants/biz-1/assignments/run", ""); env.Status != "ok" {
		t.Fatalf("trigger failed: %+v", env.Error)
	}

	w, env := doRequest(t, s, http.MethodPost, "/api/v1/tasks/task-1/approve", "")
	if w.Code != http.StatusOK {
		t.Fatalf("approve: code=%d error=%+v", w.Code, env.Error)
	}
	var task model.Task
	if err := json.Unmarshal(env.Data, &task); err != nil {
		t.Fatalf("decode task: %v", err)
	}
	if task.Status != model.TaskStatusAssigned || task.AssignedWorkerID != "worker-1" {
		t.Errorf("after approve: %+v", task)
	}

	// Lifecycle: start, then complete.
	w, env = doRequest(t, s, http.MethodPost, "/api/v1/tasks/task-1/status", `{"status":"IN_PROGRESS"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("start: code=%d error=%+v", w.Code, env.Error)
	}
	w, env = doRequest(t, s, http.MethodPost, "/api/v1/tasks/task-1/status", `{"status":"COMPLETED"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("complete: code=%d error=%+v", w.Code, env.Error)
	}

	// Completion released the workload slot.
	worker, err := st.GetWorker(context.Background(), "worker-1")
	if err != nil {
		t.Fatalf("GetWorker: %v", err)
	}
	if worker.Workload != 0 {
		t.Errorf("workload after completion = %d, want 0", worker.Workload)
	}

	// Terminal tasks refuse further transitions.
	w, env = doRequest(t, s, http.MethodPost, "/api/v1/tasks/task-1/status", `{"status":"IN_PROGRESS"}`)
	if w.Code != http.StatusConflict {
		t.Errorf("transition from COMPLETED: code=%d, want 409", w.Code)
	}
	if env.Error == nil || env.Error.Code != model.ErrInvalidState {
		t.Errorf("error = %+v, want INVALID_STATE", env.Error)
	}
}

func TestListTasksFilters(t *testing.T) {
	s, st := newTestServer(t)
	seedTenant(t, st, "biz-1", false)
	seedTaskAndWorker(t, st, "biz-1", "task-1", "worker-1")
	seedTaskAndWorker(t, st, "biz-1", "task-2", "worker-2")

	if _, env := doRequest(t, s, http.MethodPost, "/api/v1/tenants/biz-1/assignments/run", ""); env.Status != "ok" {
		t.Fatalf("trigger failed: %+v", env.Error)
	}

	w, env := doRequest(t, s, http.MethodGet, "/api/v1/tenants/biz-1/tasks?status=ASSIGNED", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list: code=%d", w.Code)
	}
	if env.Pagination == nil || env.Pagination.Total != 2 {
		t.Errorf("pagination = %+v, want total 2", env.Pagination)
	}

	w, _ = doRequest(t, s, http.MethodGet, "/api/v1/tenants/biz-1/tasks?status=BOGUS", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bogus status filter: code=%d, want 400", w.Code)
	}

	w, _ = doRequest(t, s, http.MethodGet, "/api/v1/tasks/task-1", "")
	if w.Code != http.StatusOK {
		t.Errorf("get task: code=%d", w.Code)
	}
	w, env = doRequest(t, s, http.MethodGet, "/api/v1/tasks/missing", "")
	if w.Code != http.StatusNotFound || env.Error == nil || env.Error.Code != model.ErrNotFound {
		t.Errorf("missing task: code=%d error=%+v", w.Code, env.Error)
	}
}

func TestListWorkers(t *testing.T) {
	s, st := newTestServer(t)
	seedTaskAndWorker(t, st, "biz-1", "task-1", "worker-1")

	w, env := doRequest(t, s, http.MethodGet, "/api/v1/tenants/biz-1/workers", "")
	if w.Code != http.StatusOK {
		t.Fatalf("workers: code=%d", w.Code)
	}
	var workers []model.Worker
	if err := json.Unmarshal(env.Data, &workers); err != nil {
		t.Fatalf("decode workers: %v", err)
	}
	if len(workers) != 1 || workers[0].ID != "worker-1" {
		t.Errorf("workers = %+v", workers)
	}
}

func TestDeleteTaskHidesIt(t *testing.T) {
	s, st := newTestServer(t)
	seedTaskAndWorker(t, st, "biz-1", "task-1", "worker-1")

	w, _ := doRequest(t, s, http.MethodDelete, "/api/v1/tasks/task-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete: code=%d", w.Code)
	}
	w, _ = doRequest(t, s, http.MethodGet, "/api/v1/tasks/task-1", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("deleted task still visible: code=%d", w.Code)
	}
}
