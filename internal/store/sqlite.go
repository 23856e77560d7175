package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/me/taskmatch/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}

	// SQLite allows one writer at a time; a single pooled connection also
	// keeps ":memory:" databases from being duplicated per connection.
	db.SetMaxOpenConns(1)

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// --- JSON / timestamp helpers ---

func marshalJSON(v any, what string) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", what, err)
	}
	return string(data), nil
}

func marshalNullable(v any, what string) (sql.NullString, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal %s: %w", what, err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func marshalMetrics(m *model.AssignmentMetrics) (sql.NullString, error) {
	if m == nil {
		return sql.NullString{}, nil
	}
	return marshalNullable(m, "metrics")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil
	}
	return &t
}

// --- Task operations ---

const taskColumns = `id, tenant_id, title, description, status, priority, due_date,
	required_skills, location, assigned_worker_id, assigned_at, candidates, metrics,
	pending_assignment, rejection_history, deleted, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*model.Task, error) {
	var t model.Task
	var dueDate, assignedAt, location, metrics, pending sql.NullString
	var skillsJSON, candidatesJSON, rejectionsJSON string
	var deleted int
	var createdAt, updatedAt string

	err := row.Scan(&t.ID, &t.TenantID, &t.Title, &t.Description, &t.Status, &t.Priority,
		&dueDate, &skillsJSON, &location, &t.AssignedWorkerID, &assignedAt,
		&candidatesJSON, &metrics, &pending, &rejectionsJSON, &deleted, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(skillsJSON), &t.RequiredSkills); err != nil {
		return nil, fmt.Errorf("unmarshal required_skills: %w", err)
	}
	if err := json.Unmarshal([]byte(candidatesJSON), &t.Candidates); err != nil {
		return nil, fmt.Errorf("unmarshal candidates: %w", err)
	}
	if err := json.Unmarshal([]byte(rejectionsJSON), &t.Rejections); err != nil {
		return nil, fmt.Errorf("unmarshal rejection_history: %w", err)
	}
	if location.Valid {
		t.Location = &model.GeoPoint{}
		if err := json.Unmarshal([]byte(location.String), t.Location); err != nil {
			return nil, fmt.Errorf("unmarshal location: %w", err)
		}
	}
	if metrics.Valid {
		t.Metrics = &model.AssignmentMetrics{}
		if err := json.Unmarshal([]byte(metrics.String), t.Metrics); err != nil {
			return nil, fmt.Errorf("unmarshal metrics: %w", err)
		}
	}
	if pending.Valid {
		t.Pending = &model.PendingAssignment{}
		if err := json.Unmarshal([]byte(pending.String), t.Pending); err != nil {
			return nil, fmt.Errorf("unmarshal pending_assignment: %w", err)
		}
	}
	t.DueDate = parseTimePtr(dueDate)
	t.AssignedAt = parseTimePtr(assignedAt)
	t.Deleted = deleted != 0
	t.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	t.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)

	return &t, nil
}

func (s *SQLiteStore) CreateTask(ctx context.Context, task *model.Task) error {
	s.logger.Debug("sql", "op", "insert", "table", "tasks", "id", task.ID)

	skillsJSON, err := marshalJSON(task.RequiredSkills, "required_skills")
	if err != nil {
		return err
	}
	candidatesJSON, err := marshalJSON(task.Candidates, "candidates")
	if err != nil {
		return err
	}
	rejectionsJSON, err := marshalJSON(task.Rejections, "rejection_history")
	if err != nil {
		return err
	}
	var locationJSON, metricsJSON, pendingJSON sql.NullString
	if task.Location != nil {
		if locationJSON, err = marshalNullable(task.Location, "location"); err != nil {
			return err
		}
	}
	if metricsJSON, err = marshalMetrics(task.Metrics); err != nil {
		return err
	}
	if task.Pending != nil {
		if pendingJSON, err = marshalNullable(task.Pending, "pending_assignment"); err != nil {
			return err
		}
	}

	deleted := 0
	if task.Deleted {
		deleted = 1
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.TenantID, task.Title, task.Description, task.Status, task.Priority,
		formatTimePtr(task.DueDate), skillsJSON, locationJSON, task.AssignedWorkerID,
		formatTimePtr(task.AssignedAt), candidatesJSON, metricsJSON, pendingJSON,
		rejectionsJSON, deleted, formatTime(task.CreatedAt), formatTime(task.UpdatedAt),
	)
	return err
}

func (s *SQLiteStore) GetTask(ctx context.Context, id string) (*model.Task, error) {
	s.logger.Debug("sql", "op", "select", "table", "tasks", "id", id)

	task, err := scanTask(s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return task, err
}

func (s *SQLiteStore) ListTasks(ctx context.Context, tenantID string, opts model.ListOptions) ([]*model.Task, int, error) {
	s.logger.Debug("sql", "op", "select", "table", "tasks", "tenant_id", tenantID)
	opts.Clamp()

	where := "tenant_id = ? AND deleted = 0"
	args := []any{tenantID}
	if opts.Status != "" {
		where += " AND status = ?"
		args = append(args, opts.Status)
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM tasks WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE `+where+`
		 ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		append(args, opts.Limit, opts.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var tasks []*model.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, 0, err
		}
		tasks = append(tasks, task)
	}
	return tasks, total, rows.Err()
}

// ListUnassignedTasks returns a tenant's live UNASSIGNED tasks ordered by
// priority (descending) then due date (ascending, missing due dates last).
func (s *SQLiteStore) ListUnassignedTasks(ctx context.Context, tenantID string) ([]*model.Task, error) {
	s.logger.Debug("sql", "op", "select_unassigned", "table", "tasks", "tenant_id", tenantID)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE tenant_id = ? AND status = ? AND deleted = 0
		 ORDER BY CASE priority
			WHEN 'urgent' THEN 4
			WHEN 'high'   THEN 3
			WHEN 'medium' THEN 2
			WHEN 'low'    THEN 1
			ELSE 0 END DESC,
			due_date IS NULL, due_date ASC`,
		tenantID, model.TaskStatusUnassigned)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*model.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func (s *SQLiteStore) SoftDeleteTask(ctx context.Context, id string) error {
	s.logger.Debug("sql", "op", "soft_delete", "table", "tasks", "id", id)
	_, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET deleted = 1, updated_at = ? WHERE id = ?`,
		formatTime(time.Now()), id)
	return err
}

func (s *SQLiteStore) SetPendingAssignment(ctx context.Context, taskID string, pending model.PendingAssignment, candidates []string, metrics *model.AssignmentMetrics) (bool, error) {
	s.logger.Debug("sql", "op", "set_pending", "table", "tasks", "id", taskID, "worker_id", pending.WorkerID)

	pendingJSON, err := marshalJSON(pending, "pending_assignment")
	if err != nil {
		return false, err
	}
	candidatesJSON, err := marshalJSON(candidates, "candidates")
	if err != nil {
		return false, err
	}
	metricsJSON, err := marshalMetrics(metrics)
	if err != nil {
		return false, err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks
		 SET pending_assignment = ?, candidates = ?, metrics = ?, updated_at = ?
		 WHERE id = ? AND deleted = 0 AND status = ? AND pending_assignment IS NULL`,
		pendingJSON, candidatesJSON, metricsJSON, formatTime(time.Now()),
		taskID, model.TaskStatusUnassigned)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *SQLiteStore) CommitAssignment(ctx context.Context, taskID, workerID string, at time.Time, candidates []string, metrics *model.AssignmentMetrics) (bool, error) {
	s.logger.Debug("sql", "op", "commit_assignment", "table", "tasks", "id", taskID, "worker_id", workerID)

	candidatesJSON, err := marshalJSON(candidates, "candidates")
	if err != nil {
		return false, err
	}
	metricsJSON, err := marshalMetrics(metrics)
	if err != nil {
		return false, err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks
		 SET status = ?, assigned_worker_id = ?, assigned_at = ?, candidates = ?,
		     metrics = ?, pending_assignment = NULL, updated_at = ?
		 WHERE id = ? AND deleted = 0 AND status = ? AND pending_assignment IS NULL`,
		model.TaskStatusAssigned, workerID, formatTime(at), candidatesJSON,
		metricsJSON, formatTime(time.Now()),
		taskID, model.TaskStatusUnassigned)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *SQLiteStore) ApprovePendingAssignment(ctx context.Context, taskID, workerID string, at time.Time) (bool, error) {
	s.logger.Debug("sql", "op", "approve_pending", "table", "tasks", "id", taskID, "worker_id", workerID)

	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks
		 SET status = ?, assigned_worker_id = ?, assigned_at = ?,
		     pending_assignment = NULL, updated_at = ?
		 WHERE id = ? AND deleted = 0 AND status = ?
		   AND pending_assignment IS NOT NULL
		   AND json_extract(pending_assignment, '$.worker_id') = ?`,
		model.TaskStatusAssigned, workerID, formatTime(at), formatTime(time.Now()),
		taskID, model.TaskStatusUnassigned, workerID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *SQLiteStore) RejectPendingAssignment(ctx context.Context, taskID string, rejection model.RejectedAssignment) (bool, error) {
	s.logger.Debug("sql", "op", "reject_pending", "table", "tasks", "id", taskID, "worker_id", rejection.WorkerID)

	rejectionJSON, err := marshalJSON(rejection, "rejection")
	if err != nil {
		return false, err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks
		 SET pending_assignment = NULL,
		     rejection_history = json_insert(rejection_history, '$[#]', json(?)),
		     updated_at = ?
		 WHERE id = ? AND deleted = 0
		   AND pending_assignment IS NOT NULL
		   AND json_extract(pending_assignment, '$.worker_id') = ?`,
		rejectionJSON, formatTime(time.Now()), taskID, rejection.WorkerID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *SQLiteStore) UpdateTaskStatus(ctx context.Context, taskID string, from, to model.TaskStatus) (bool, error) {
	s.logger.Debug("sql", "op", "update_status", "table", "tasks", "id", taskID, "from", from, "to", to)

	// Pending is a sub-state of UNASSIGNED; a terminal transition resolves
	// any open proposal along with the task.
	query := `UPDATE tasks SET status = ?, updated_at = ? WHERE id = ? AND deleted = 0 AND status = ?`
	if to.IsTerminal() {
		query = `UPDATE tasks SET status = ?, updated_at = ?, pending_assignment = NULL WHERE id = ? AND deleted = 0 AND status = ?`
	}
	res, err := s.db.ExecContext(ctx, query, to, formatTime(time.Now()), taskID, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// --- Worker operations ---

const workerColumns = `id, tenant_id, name, role, skills, location, workload,
	max_weekly_hours, active, created_at, updated_at`

func scanWorker(row rowScanner) (*model.Worker, error) {
	var w model.Worker
	var skillsJSON string
	var location sql.NullString
	var active int
	var createdAt, updatedAt string

	err := row.Scan(&w.ID, &w.TenantID, &w.Name, &w.Role, &skillsJSON, &location,
		&w.Workload, &w.MaxWeeklyHours, &active, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(skillsJSON), &w.Skills); err != nil {
		return nil, fmt.Errorf("unmarshal skills: %w", err)
	}
	if location.Valid {
		w.Location = &model.GeoPoint{}
		if err := json.Unmarshal([]byte(location.String), w.Location); err != nil {
			return nil, fmt.Errorf("unmarshal location: %w", err)
		}
	}
	w.Active = active != 0
	w.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	w.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)

	return &w, nil
}

func (s *SQLiteStore) CreateWorker(ctx context.Context, w *model.Worker) error {
	s.logger.Debug("sql", "op", "insert", "table", "workers", "id", w.ID)

	skillsJSON, err := marshalJSON(w.Skills, "skills")
	if err != nil {
		return err
	}
	var locationJSON sql.NullString
	if w.Location != nil {
		if locationJSON, err = marshalNullable(w.Location, "location"); err != nil {
			return err
		}
	}

	active := 0
	if w.Active {
		active = 1
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO workers (`+workerColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.TenantID, w.Name, w.Role, skillsJSON, locationJSON,
		w.Workload, w.MaxWeeklyHours, active, formatTime(w.CreatedAt), formatTime(w.UpdatedAt))
	return err
}

func (s *SQLiteStore) GetWorker(ctx context.Context, id string) (*model.Worker, error) {
	s.logger.Debug("sql", "op", "select", "table", "workers", "id", id)

	w, err := scanWorker(s.db.QueryRowContext(ctx,
		`SELECT `+workerColumns+` FROM workers WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return w, err
}

// ListEligibleWorkers returns a tenant's active workers, optionally filtered
// to the given roles.
func (s *SQLiteStore) ListEligibleWorkers(ctx context.Context, tenantID string, roles []string) ([]*model.Worker, error) {
	s.logger.Debug("sql", "op", "select_eligible", "table", "workers", "tenant_id", tenantID, "roles", roles)

	query := `SELECT ` + workerColumns + ` FROM workers WHERE tenant_id = ? AND active = 1`
	args := []any{tenantID}
	if len(roles) > 0 {
		query += ` AND role IN (?` + strings.Repeat(", ?", len(roles)-1) + `)`
		for _, r := range roles {
			args = append(args, r)
		}
	}
	query += ` ORDER BY name ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workers []*model.Worker
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, err
		}
		workers = append(workers, w)
	}
	return workers, rows.Err()
}

// AdjustWorkload applies delta to the worker's open-task counter in a single
// statement. The guard keeps the counter non-negative; a decrement below
// zero reports false rather than corrupting the count.
func (s *SQLiteStore) AdjustWorkload(ctx context.Context, workerID string, delta int) (bool, error) {
	s.logger.Debug("sql", "op", "adjust_workload", "table", "workers", "id", workerID, "delta", delta)

	res, err := s.db.ExecContext(ctx,
		`UPDATE workers SET workload = workload + ?, updated_at = ?
		 WHERE id = ? AND workload + ? >= 0`,
		delta, formatTime(time.Now()), workerID, delta)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// --- Agent configuration ---

func (s *SQLiteStore) GetAgentConfig(ctx context.Context, tenantID string) (*model.AgentConfig, error) {
	s.logger.Debug("sql", "op", "select", "table", "agent_configs", "tenant_id", tenantID)

	var cfg model.AgentConfig
	var enabled, requiresApproval, respectMax, notify int
	var weightsJSON, skillPriorityJSON, rolesJSON string
	var updatedAt string

	err := s.db.QueryRowContext(ctx,
		`SELECT tenant_id, enabled, requires_approval, weights, skill_priority,
		        frequency_minutes, respect_max_workload, max_tasks_per_worker,
		        roles, notify_on_assignment, updated_at
		 FROM agent_configs WHERE tenant_id = ?`, tenantID,
	).Scan(&cfg.TenantID, &enabled, &requiresApproval, &weightsJSON, &skillPriorityJSON,
		&cfg.FrequencyMinutes, &respectMax, &cfg.MaxTasksPerWorker,
		&rolesJSON, &notify, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(weightsJSON), &cfg.Weights); err != nil {
		return nil, fmt.Errorf("unmarshal weights: %w", err)
	}
	if err := json.Unmarshal([]byte(skillPriorityJSON), &cfg.SkillPriority); err != nil {
		return nil, fmt.Errorf("unmarshal skill_priority: %w", err)
	}
	if err := json.Unmarshal([]byte(rolesJSON), &cfg.Roles); err != nil {
		return nil, fmt.Errorf("unmarshal roles: %w", err)
	}
	cfg.Enabled = enabled != 0
	cfg.RequiresApproval = requiresApproval != 0
	cfg.RespectMaxWorkload = respectMax != 0
	cfg.NotifyOnAssignment = notify != 0
	cfg.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)

	return &cfg, nil
}

func (s *SQLiteStore) PutAgentConfig(ctx context.Context, cfg *model.AgentConfig) error {
	s.logger.Debug("sql", "op", "upsert", "table", "agent_configs", "tenant_id", cfg.TenantID)

	weightsJSON, err := marshalJSON(cfg.Weights, "weights")
	if err != nil {
		return err
	}
	skillPriorityJSON, err := marshalJSON(cfg.SkillPriority, "skill_priority")
	if err != nil {
		return err
	}
	rolesJSON, err := marshalJSON(cfg.Roles, "roles")
	if err != nil {
		return err
	}

	boolInt := func(b bool) int {
		if b {
			return 1
		}
		return 0
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO agent_configs (tenant_id, enabled, requires_approval, weights,
		        skill_priority, frequency_minutes, respect_max_workload,
		        max_tasks_per_worker, roles, notify_on_assignment, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(tenant_id) DO UPDATE SET
		        enabled = excluded.enabled,
		        requires_approval = excluded.requires_approval,
		        weights = excluded.weights,
		        skill_priority = excluded.skill_priority,
		        frequency_minutes = excluded.frequency_minutes,
		        respect_max_workload = excluded.respect_max_workload,
		        max_tasks_per_worker = excluded.max_tasks_per_worker,
		        roles = excluded.roles,
		        notify_on_assignment = excluded.notify_on_assignment,
		        updated_at = excluded.updated_at`,
		cfg.TenantID, boolInt(cfg.Enabled), boolInt(cfg.RequiresApproval), weightsJSON,
		skillPriorityJSON, cfg.FrequencyMinutes, boolInt(cfg.RespectMaxWorkload),
		cfg.MaxTasksPerWorker, rolesJSON, boolInt(cfg.NotifyOnAssignment),
		formatTime(cfg.UpdatedAt))
	return err
}

func (s *SQLiteStore) ListEnabledTenants(ctx context.Context) ([]string, error) {
	s.logger.Debug("sql", "op", "select_enabled", "table", "agent_configs")

	rows, err := s.db.QueryContext(ctx,
		`SELECT tenant_id FROM agent_configs WHERE enabled = 1 ORDER BY tenant_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		tenants = append(tenants, id)
	}
	return tenants, rows.Err()
}

// --- Execution history ---

func (s *SQLiteStore) CreateRunRecord(ctx context.Context, rec *model.RunRecord) error {
	s.logger.Debug("sql", "op", "insert", "table", "run_records", "id", rec.ID, "job", rec.JobName)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_records (id, job_name, tenant_id, status, started_at,
		        completed_at, duration_ms, target_count, processed_count,
		        failed_count, details, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.JobName, rec.TenantID, rec.Status, formatTime(rec.StartedAt),
		formatTimePtr(rec.CompletedAt), rec.DurationMS, rec.TargetCount,
		rec.ProcessedCount, rec.FailedCount, rec.Details, rec.Error)
	return err
}

// FinishRunRecord writes the one-and-only completion update. The guard on
// status=started keeps finished records immutable.
func (s *SQLiteStore) FinishRunRecord(ctx context.Context, rec *model.RunRecord) error {
	s.logger.Debug("sql", "op", "finish", "table", "run_records", "id", rec.ID, "status", rec.Status)

	res, err := s.db.ExecContext(ctx,
		`UPDATE run_records
		 SET status = ?, completed_at = ?, duration_ms = ?, target_count = ?,
		     processed_count = ?, failed_count = ?, details = ?, error = ?
		 WHERE id = ? AND status = ?`,
		rec.Status, formatTimePtr(rec.CompletedAt), rec.DurationMS, rec.TargetCount,
		rec.ProcessedCount, rec.FailedCount, rec.Details, rec.Error,
		rec.ID, model.RunStatusStarted)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("run record %s not open for update", rec.ID)
	}
	return nil
}

func (s *SQLiteStore) ListRunRecords(ctx context.Context, q model.RunQuery) ([]*model.RunRecord, error) {
	s.logger.Debug("sql", "op", "select", "table", "run_records", "job", q.JobName, "tenant_id", q.TenantID)

	query := `SELECT id, job_name, tenant_id, status, started_at, completed_at,
		duration_ms, target_count, processed_count, failed_count, details, error
		FROM run_records WHERE 1=1`
	var args []any
	if q.JobName != "" {
		query += " AND job_name = ?"
		args = append(args, q.JobName)
	}
	if q.TenantID != "" {
		query += " AND tenant_id = ?"
		args = append(args, q.TenantID)
	}
	if q.Status != "" {
		query += " AND status = ?"
		args = append(args, q.Status)
	}
	if q.Since != nil {
		query += " AND started_at >= ?"
		args = append(args, formatTime(*q.Since))
	}
	limit := q.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query += " ORDER BY started_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*model.RunRecord
	for rows.Next() {
		var rec model.RunRecord
		var startedAt string
		var completedAt sql.NullString
		if err := rows.Scan(&rec.ID, &rec.JobName, &rec.TenantID, &rec.Status,
			&startedAt, &completedAt, &rec.DurationMS, &rec.TargetCount,
			&rec.ProcessedCount, &rec.FailedCount, &rec.Details, &rec.Error); err != nil {
			return nil, err
		}
		rec.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
		rec.CompletedAt = parseTimePtr(completedAt)
		recs = append(recs, &rec)
	}
	return recs, rows.Err()
}
