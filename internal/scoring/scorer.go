// Package scoring computes the multi-factor candidate score for one
// (task, worker) pair. Score is pure: it never touches storage and never
// fails, so missing data degrades a score instead of aborting a batch.
package scoring

import (
	"math"

	"github.com/me/taskmatch/pkg/model"
)

const (
	// proximityRangeKM is the distance at which the proximity sub-score
	// decays to zero.
	proximityRangeKM = 20.0

	// neutralProximity is used when the worker has no known location but
	// the task does.
	neutralProximity = 50.0

	earthRadiusKM = 6371.0
)

// Breakdown holds the four sub-scores and the weighted final score, each in
// [0, 100].
type Breakdown struct {
	SkillMatch      float64 `json:"skill_match"`
	Availability    float64 `json:"availability"`
	Proximity       float64 `json:"proximity"`
	WorkloadBalance float64 `json:"workload_balance"`
	Final           float64 `json:"final"`
}

// Metrics converts the breakdown into the audit snapshot stored on a task.
func (b Breakdown) Metrics(workerID string) *model.AssignmentMetrics {
	return &model.AssignmentMetrics{
		WorkerID:        workerID,
		SkillMatch:      b.SkillMatch,
		Availability:    b.Availability,
		Proximity:       b.Proximity,
		WorkloadBalance: b.WorkloadBalance,
		Final:           b.Final,
	}
}

// Score computes the candidate score for worker against task under cfg.
//
// When cfg.RespectMaxWorkload is set and the worker is at or over the tenant
// cap, the worker is hard-excluded: every field of the breakdown is zero.
func Score(task *model.Task, worker *model.Worker, cfg *model.AgentConfig) Breakdown {
	maxTasks := cfg.EffectiveMaxTasks()

	if cfg.RespectMaxWorkload && worker.Workload >= maxTasks {
		return Breakdown{}
	}

	b := Breakdown{
		SkillMatch:      skillMatchScore(task, worker, cfg.SkillPriority),
		Availability:    availabilityScore(worker.Workload),
		Proximity:       proximityScore(task, worker),
		WorkloadBalance: workloadBalanceScore(worker.Workload, maxTasks),
	}

	w := normalizeWeights(cfg.Weights)
	b.Final = b.SkillMatch*w.SkillMatch +
		b.Availability*w.Availability +
		b.Proximity*w.Proximity +
		b.WorkloadBalance*w.Workload
	return b
}

// normalizeWeights scales the weights so they sum to 1. A non-positive sum
// falls back to the default weights, which keeps every final score inside
// [0, 100] regardless of what a tenant stored.
func normalizeWeights(w model.ScoringWeights) model.ScoringWeights {
	sum := w.Sum()
	if sum <= 0 {
		w = model.DefaultScoringWeights()
		sum = w.Sum()
	}
	return model.ScoringWeights{
		SkillMatch:   w.SkillMatch / sum,
		Availability: w.Availability / sum,
		Proximity:    w.Proximity / sum,
		Workload:     w.Workload / sum,
	}
}

// skillMatchScore averages the worker's proficiency points over the task's
// required skills. The tenant skill-priority list reorders required skills
// without changing the average; it determines which skills dominate when a
// caller truncates the list, so it is applied before scoring for a stable,
// documented order.
func skillMatchScore(task *model.Task, worker *model.Worker, priority []string) float64 {
	required := orderBySkillPriority(task.RequiredSkills, priority)
	if len(required) == 0 {
		return 100
	}

	var total float64
	for _, name := range required {
		total += worker.SkillLevelFor(name).Points()
	}
	return total / float64(len(required))
}

// orderBySkillPriority returns required reordered so that skills named in
// priority come first, in priority order. Skills absent from the priority
// list keep their task order afterward. Priority entries that the task does
// not require are dropped.
func orderBySkillPriority(required, priority []string) []string {
	if len(priority) == 0 || len(required) == 0 {
		return required
	}

	requiredSet := make(map[string]bool, len(required))
	for _, s := range required {
		requiredSet[s] = true
	}

	ordered := make([]string, 0, len(required))
	seen := make(map[string]bool, len(required))
	for _, s := range priority {
		if requiredSet[s] && !seen[s] {
			ordered = append(ordered, s)
			seen[s] = true
		}
	}
	for _, s := range required {
		if !seen[s] {
			ordered = append(ordered, s)
			seen[s] = true
		}
	}
	return ordered
}

// availabilityScore decays linearly with workload against the fixed
// reference capacity, floored at zero.
func availabilityScore(workload int) float64 {
	score := 100 * (1 - float64(workload)/float64(model.MaxWorkloadThreshold))
	return math.Max(0, score)
}

// proximityScore decays linearly from 100 at 0 km to 0 at the range limit.
// A task without a location scores 100 for everyone; a located task scores a
// neutral 50 against workers with no known location.
func proximityScore(task *model.Task, worker *model.Worker) float64 {
	if task.Location == nil {
		return 100
	}
	if worker.Location == nil {
		return neutralProximity
	}
	km := haversineKM(*task.Location, *worker.Location)
	score := 100 * (1 - km/proximityRangeKM)
	return math.Max(0, score)
}

// workloadBalanceScore decays linearly with workload against the tenant cap,
// floored at zero.
func workloadBalanceScore(workload, maxTasks int) float64 {
	if maxTasks <= 0 {
		return 0
	}
	score := 100 * (1 - float64(workload)/float64(maxTasks))
	return math.Max(0, score)
}

// haversineKM computes the great-circle distance between two points in km.
func haversineKM(a, b model.GeoPoint) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKM * math.Asin(math.Sqrt(h))
}
