package model

import "time"

// MaxWorkloadThreshold is the fixed reference capacity used by the
// availability sub-score. It is distinct from the tenant-configurable
// MaxTasksPerWorker cap.
const MaxWorkloadThreshold = 10

// ScoringWeights are the per-factor weights a tenant applies to candidate
// scores. They are normalized by their sum at scoring time, so they do not
// have to sum to exactly 1.0.
type ScoringWeights struct {
	SkillMatch   float64 `json:"skill_match" yaml:"skill_match"`
	Availability float64 `json:"availability" yaml:"availability"`
	Proximity    float64 `json:"proximity" yaml:"proximity"`
	Workload     float64 `json:"workload" yaml:"workload"`
}

// Sum returns the total of all four weights.
func (w ScoringWeights) Sum() float64 {
	return w.SkillMatch + w.Availability + w.Proximity + w.Workload
}

// DefaultScoringWeights favors skill match over the other factors.
func DefaultScoringWeights() ScoringWeights {
	return ScoringWeights{SkillMatch: 0.4, Availability: 0.2, Proximity: 0.2, Workload: 0.2}
}

// AgentConfig is a tenant's auto-assignment configuration. There is at most
// one per tenant; every write drives a scheduler reconcile.
type AgentConfig struct {
	TenantID         string         `json:"tenant_id"`
	Enabled          bool           `json:"enabled"`
	RequiresApproval bool           `json:"requires_approval"`
	Weights          ScoringWeights `json:"weights"`

	// SkillPriority orders a tenant's most important skills first. Skills
	// not listed keep their task order after the prioritized ones.
	SkillPriority []string `json:"skill_priority,omitempty"`

	FrequencyMinutes   int  `json:"frequency_minutes"`
	RespectMaxWorkload bool `json:"respect_max_workload"`
	MaxTasksPerWorker  int  `json:"max_tasks_per_worker"`

	// Roles restricts matching to workers holding one of these roles.
	// Empty means all roles are eligible.
	Roles []string `json:"roles,omitempty"`

	NotifyOnAssignment bool      `json:"notify_on_assignment"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// DefaultAgentConfig returns the fixed fallback used when a tenant has no
// stored configuration.
func DefaultAgentConfig(tenantID string) *AgentConfig {
	return &AgentConfig{
		TenantID:          tenantID,
		Enabled:           false,
		RequiresApproval:  false,
		Weights:           DefaultScoringWeights(),
		FrequencyMinutes:  60,
		MaxTasksPerWorker: 10,
	}
}

// Frequency returns the re-evaluation interval, clamped to at least one
// minute.
func (c *AgentConfig) Frequency() time.Duration {
	minutes := c.FrequencyMinutes
	if minutes < 1 {
		minutes = 1
	}
	return time.Duration(minutes) * time.Minute
}

// EffectiveMaxTasks returns the tenant workload cap, falling back to the
// default when unset.
func (c *AgentConfig) EffectiveMaxTasks() int {
	if c.MaxTasksPerWorker < 1 {
		return 10
	}
	return c.MaxTasksPerWorker
}

// AllowsRole returns true if a worker with the given role may be matched.
func (c *AgentConfig) AllowsRole(role string) bool {
	if len(c.Roles) == 0 {
		return true
	}
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}
