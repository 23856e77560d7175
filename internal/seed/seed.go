package seed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/oklog/ulid/v2"
	"gopkg.in/yaml.v3"

	"github.com/me/taskmatch/internal/store"
	"github.com/me/taskmatch/pkg/model"
)

// File is a demo/bootstrap data set loaded at server start. Applying it
// is create-only: entries whose IDs already exist are left untouched, so
// restarting a server against the same database is safe.
type File struct {
	Tenants []TenantSeed `yaml:"tenants"`
	Workers []WorkerSeed `yaml:"workers"`
	Tasks   []TaskSeed   `yaml:"tasks"`
}

// TenantSeed is one tenant's agent configuration.
type TenantSeed struct {
	TenantID           string                `yaml:"tenant_id"`
	Enabled            bool                  `yaml:"enabled"`
	RequiresApproval   bool                  `yaml:"requires_approval"`
	Weights            *model.ScoringWeights `yaml:"weights"`
	SkillPriority      []string              `yaml:"skill_priority"`
	FrequencyMinutes   int                   `yaml:"frequency_minutes"`
	RespectMaxWorkload bool                  `yaml:"respect_max_workload"`
	MaxTasksPerWorker  int                   `yaml:"max_tasks_per_worker"`
	Roles              []string              `yaml:"roles"`
	NotifyOnAssignment bool                  `yaml:"notify_on_assignment"`
}

type SkillSeed struct {
	Level string  `yaml:"level"`
	Years float64 `yaml:"years"`
}

type PointSeed struct {
	Lat float64 `yaml:"lat"`
	Lng float64 `yaml:"lng"`
}

type WorkerSeed struct {
	ID             string               `yaml:"id"`
	TenantID       string               `yaml:"tenant_id"`
	Name           string               `yaml:"name"`
	Role           string               `yaml:"role"`
	Skills         map[string]SkillSeed `yaml:"skills"`
	Location       *PointSeed           `yaml:"location"`
	MaxWeeklyHours int                  `yaml:"max_weekly_hours"`
}

type TaskSeed struct {
	ID             string     `yaml:"id"`
	TenantID       string     `yaml:"tenant_id"`
	Title          string     `yaml:"title"`
	Description    string     `yaml:"description"`
	Priority       string     `yaml:"priority"`
	DueDate        *time.Time `yaml:"due_date"`
	RequiredSkills []string   `yaml:"required_skills"`
	Location       *PointSeed `yaml:"location"`
}

// Load reads and parses a seed file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(data)
}

// Parse decodes seed YAML and validates the minimum each entry needs.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	for i, t := range f.Tenants {
		if t.TenantID == "" {
			return nil, fmt.Errorf("tenants[%d]: tenant_id is required", i)
		}
	}
	for i, w := range f.Workers {
		if w.TenantID == "" || w.Name == "" {
			return nil, fmt.Errorf("workers[%d]: tenant_id and name are required", i)
		}
	}
	for i, task := range f.Tasks {
		if task.TenantID == "" || task.Title == "" {
			return nil, fmt.Errorf("tasks[%d]: tenant_id and title are required", i)
		}
	}
	return &f, nil
}

// Apply inserts the seed entries that do not already exist. Worker and
// task IDs are generated when omitted.
func (f *File) Apply(ctx context.Context, st store.Store, logger *slog.Logger) error {
	logger = logger.With("component", "seed")
	now := time.Now().UTC()

	for _, t := range f.Tenants {
		existing, err := st.GetAgentConfig(ctx, t.TenantID)
		if err != nil {
			return fmt.Errorf("seed tenant %s: %w", t.TenantID, err)
		}
		if existing != nil {
			logger.Debug("tenant config exists, skipping", "tenant_id", t.TenantID)
			continue
		}
		cfg := t.toConfig(now)
		if err := st.PutAgentConfig(ctx, cfg); err != nil {
			return fmt.Errorf("seed tenant %s: %w", t.TenantID, err)
		}
		logger.Info("seeded tenant config", "tenant_id", t.TenantID, "enabled", cfg.Enabled)
	}

	for _, ws := range f.Workers {
		id := ws.ID
		if id == "" {
			id = "worker_" + ulid.Make().String()
		}
		existing, err := st.GetWorker(ctx, id)
		if err != nil {
			return fmt.Errorf("seed worker %s: %w", id, err)
		}
		if existing != nil {
			continue
		}
		if err := st.CreateWorker(ctx, ws.toWorker(id, now)); err != nil {
			return fmt.Errorf("seed worker %s: %w", id, err)
		}
		logger.Info("seeded worker", "worker_id", id, "tenant_id", ws.TenantID)
	}

	for _, ts := range f.Tasks {
		id := ts.ID
		if id == "" {
			id = "task_" + ulid.Make().String()
		}
		existing, err := st.GetTask(ctx, id)
		if err != nil {
			return fmt.Errorf("seed task %s: %w", id, err)
		}
		if existing != nil {
			continue
		}
		if err := st.CreateTask(ctx, ts.toTask(id, now)); err != nil {
			return fmt.Errorf("seed task %s: %w", id, err)
		}
		logger.Info("seeded task", "task_id", id, "tenant_id", ts.TenantID)
	}

	return nil
}

func (t TenantSeed) toConfig(now time.Time) *model.AgentConfig {
	cfg := model.DefaultAgentConfig(t.TenantID)
	cfg.Enabled = t.Enabled
	cfg.RequiresApproval = t.RequiresApproval
	if t.Weights != nil {
		cfg.Weights = *t.Weights
	}
	cfg.SkillPriority = t.SkillPriority
	if t.FrequencyMinutes > 0 {
		cfg.FrequencyMinutes = t.FrequencyMinutes
	}
	cfg.RespectMaxWorkload = t.RespectMaxWorkload
	if t.MaxTasksPerWorker > 0 {
		cfg.MaxTasksPerWorker = t.MaxTasksPerWorker
	}
	cfg.Roles = t.Roles
	cfg.NotifyOnAssignment = t.NotifyOnAssignment
	cfg.UpdatedAt = now
	return cfg
}

func (ws WorkerSeed) toWorker(id string, now time.Time) *model.Worker {
	w := &model.Worker{
		ID:             id,
		TenantID:       ws.TenantID,
		Name:           ws.Name,
		Role:           ws.Role,
		MaxWeeklyHours: ws.MaxWeeklyHours,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if len(ws.Skills) > 0 {
		w.Skills = make(map[string]model.Skill, len(ws.Skills))
		for name, s := range ws.Skills {
			w.Skills[name] = model.Skill{Level: model.SkillLevel(s.Level), Years: s.Years}
		}
	}
	if ws.Location != nil {
		w.Location = &model.GeoPoint{Lat: ws.Location.Lat, Lng: ws.Location.Lng}
	}
	return w
}

func (ts TaskSeed) toTask(id string, now time.Time) *model.Task {
	priority := model.Priority(ts.Priority)
	if ts.Priority == "" {
		priority = model.PriorityMedium
	}
	task := &model.Task{
		ID:             id,
		TenantID:       ts.TenantID,
		Title:          ts.Title,
		Description:    ts.Description,
		Status:         model.TaskStatusUnassigned,
		Priority:       priority,
		DueDate:        ts.DueDate,
		RequiredSkills: ts.RequiredSkills,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if ts.Location != nil {
		task.Location = &model.GeoPoint{Lat: ts.Location.Lat, Lng: ts.Location.Lng}
	}
	return task
}
