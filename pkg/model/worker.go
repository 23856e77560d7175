package model

import "time"

// SkillLevel is a worker's proficiency in one skill.
type SkillLevel string

const (
	SkillNovice       SkillLevel = "novice"
	SkillIntermediate SkillLevel = "intermediate"
	SkillAdvanced     SkillLevel = "advanced"
	SkillExpert       SkillLevel = "expert"
)

// Points maps a proficiency level to its scoring contribution.
// Unknown or missing levels score 0.
func (l SkillLevel) Points() float64 {
	switch l {
	case SkillExpert:
		return 100
	case SkillAdvanced:
		return 75
	case SkillIntermediate:
		return 50
	case SkillNovice:
		return 25
	}
	return 0
}

// Skill is one entry in a worker's skill map.
type Skill struct {
	Level SkillLevel `json:"level"`
	Years float64    `json:"years,omitempty"`
}

// Worker is a staff member's assignment-relevant profile for one tenant.
// Profiles are created and updated by an external sync process; the engine
// mutates only Workload, through the store's atomic adjustment.
type Worker struct {
	ID       string           `json:"id"`
	TenantID string           `json:"tenant_id"`
	Name     string           `json:"name"`
	Role     string           `json:"role,omitempty"`
	Skills   map[string]Skill `json:"skills,omitempty"`
	Location *GeoPoint        `json:"location,omitempty"`

	// Workload is the count of tasks currently ASSIGNED or IN_PROGRESS to
	// this worker.
	Workload int `json:"workload"`

	MaxWeeklyHours int  `json:"max_weekly_hours,omitempty"`
	Active         bool `json:"active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SkillLevelFor returns the worker's level for a skill name, or the empty
// level when the worker lacks it.
func (w *Worker) SkillLevelFor(name string) SkillLevel {
	if s, ok := w.Skills[name]; ok {
		return s.Level
	}
	return ""
}
