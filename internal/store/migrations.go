package store

import (
	"context"
	"database/sql"
)

// schema contains the DDL for all taskmatch tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS tasks (
		id                 TEXT PRIMARY KEY,
		tenant_id          TEXT NOT NULL,
		title              TEXT NOT NULL,
		description        TEXT NOT NULL DEFAULT '',
		status             TEXT NOT NULL DEFAULT 'UNASSIGNED',
		priority           TEXT NOT NULL DEFAULT 'medium',
		due_date           TEXT,
		required_skills    TEXT NOT NULL DEFAULT '[]',
		location           TEXT,
		assigned_worker_id TEXT NOT NULL DEFAULT '',
		assigned_at        TEXT,
		candidates         TEXT NOT NULL DEFAULT '[]',
		metrics            TEXT,
		pending_assignment TEXT,
		rejection_history  TEXT NOT NULL DEFAULT '[]',
		deleted            INTEGER NOT NULL DEFAULT 0,
		created_at         TEXT NOT NULL,
		updated_at         TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS workers (
		id               TEXT PRIMARY KEY,
		tenant_id        TEXT NOT NULL,
		name             TEXT NOT NULL,
		role             TEXT NOT NULL DEFAULT '',
		skills           TEXT NOT NULL DEFAULT '{}',
		location         TEXT,
		workload         INTEGER NOT NULL DEFAULT 0,
		max_weekly_hours INTEGER NOT NULL DEFAULT 0,
		active           INTEGER NOT NULL DEFAULT 1,
		created_at       TEXT NOT NULL,
		updated_at       TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS agent_configs (
		tenant_id            TEXT PRIMARY KEY,
		enabled              INTEGER NOT NULL DEFAULT 0,
		requires_approval    INTEGER NOT NULL DEFAULT 0,
		weights              TEXT NOT NULL,
		skill_priority       TEXT NOT NULL DEFAULT '[]',
		frequency_minutes    INTEGER NOT NULL DEFAULT 60,
		respect_max_workload INTEGER NOT NULL DEFAULT 0,
		max_tasks_per_worker INTEGER NOT NULL DEFAULT 10,
		roles                TEXT NOT NULL DEFAULT '[]',
		notify_on_assignment INTEGER NOT NULL DEFAULT 0,
		updated_at           TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS run_records (
		id              TEXT PRIMARY KEY,
		job_name        TEXT NOT NULL,
		tenant_id       TEXT NOT NULL DEFAULT '',
		status          TEXT NOT NULL DEFAULT 'started',
		started_at      TEXT NOT NULL,
		completed_at    TEXT,
		duration_ms     INTEGER NOT NULL DEFAULT 0,
		target_count    INTEGER NOT NULL DEFAULT 0,
		processed_count INTEGER NOT NULL DEFAULT 0,
		failed_count    INTEGER NOT NULL DEFAULT 0,
		details         TEXT NOT NULL DEFAULT '',
		error           TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE INDEX IF NOT EXISTS idx_tasks_tenant_id ON tasks(tenant_id)`,
	// Compound index for the batch matcher's unassigned-task query
	`CREATE INDEX IF NOT EXISTS idx_tasks_tenant_status ON tasks(tenant_id, status, deleted)`,
	`CREATE INDEX IF NOT EXISTS idx_workers_tenant_id ON workers(tenant_id)`,
	`CREATE INDEX IF NOT EXISTS idx_workers_tenant_active ON workers(tenant_id, active)`,
	`CREATE INDEX IF NOT EXISTS idx_agent_configs_enabled ON agent_configs(enabled)`,
	`CREATE INDEX IF NOT EXISTS idx_run_records_job ON run_records(job_name)`,
	`CREATE INDEX IF NOT EXISTS idx_run_records_tenant ON run_records(tenant_id)`,
	`CREATE INDEX IF NOT EXISTS idx_run_records_started ON run_records(started_at)`,
}

// migrate executes all schema DDL statements.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
