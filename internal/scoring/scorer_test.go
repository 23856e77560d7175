package scoring

import (
	"math"
	"testing"
	"time"

	"github.com/me/taskmatch/pkg/model"
)

func testConfig() *model.AgentConfig {
	cfg := model.DefaultAgentConfig("biz-1")
	cfg.Enabled = true
	return cfg
}

func testTask(skills ...string) *model.Task {
	return &model.Task{
		ID:             "task-1",
		TenantID:       "biz-1",
		Title:          "fix the thing",
		Status:         model.TaskStatusUnassigned,
		Priority:       model.PriorityMedium,
		RequiredSkills: skills,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
}

func testWorker(skills map[string]model.Skill, workload int) *model.Worker {
	return &model.Worker{
		ID:       "worker-1",
		TenantID: "biz-1",
		Name:     "Alex",
		Skills:   skills,
		Workload: workload,
		Active:   true,
	}
}

func inRange(v float64) bool {
	return v >= 0 && v <= 100
}

func TestScoreBounds(t *testing.T) {
	tasks := []*model.Task{
		testTask(),
		testTask("welding"),
		testTask("welding", "rigging", "plumbing"),
	}
	tasks[2].Location = &model.GeoPoint{Lat: 40.7128, Lng: -74.0060}

	workers := []*model.Worker{
		testWorker(nil, 0),
		testWorker(map[string]model.Skill{"welding": {Level: model.SkillExpert}}, 5),
		testWorker(map[string]model.Skill{"rigging": {Level: model.SkillNovice}}, 50),
	}
	workers[2].Location = &model.GeoPoint{Lat: 34.0522, Lng: -118.2437}

	cfgs := []*model.AgentConfig{
		testConfig(),
		func() *model.AgentConfig {
			// Malformed weights summing to 4.0 must still be bounded.
			cfg := testConfig()
			cfg.Weights = model.ScoringWeights{SkillMatch: 1, Availability: 1, Proximity: 1, Workload: 1}
			return cfg
		}(),
		func() *model.AgentConfig {
			cfg := testConfig()
			cfg.Weights = model.ScoringWeights{}
			return cfg
		}(),
	}

	for _, task := range tasks {
		for _, worker := range workers {
			for _, cfg := range cfgs {
				b := Score(task, worker, cfg)
				for name, v := range map[string]float64{
					"skill_match":      b.SkillMatch,
					"availability":     b.Availability,
					"proximity":        b.Proximity,
					"workload_balance": b.WorkloadBalance,
					"final":            b.Final,
				} {
					if !inRange(v) {
						t.Errorf("%s = %v out of [0,100] (workload=%d)", name, v, worker.Workload)
					}
				}
			}
		}
	}
}

func TestSkillMatch(t *testing.T) {
	task := testTask("welding")
	cfg := testConfig()
	cfg.Weights = model.ScoringWeights{SkillMatch: 1}

	expert := testWorker(map[string]model.Skill{"welding": {Level: model.SkillExpert, Years: 8}}, 0)
	missing := testWorker(map[string]model.Skill{"plumbing": {Level: model.SkillExpert}}, 0)

	if got := Score(task, expert, cfg).Final; got != 100 {
		t.Errorf("expert welder final = %v, want 100", got)
	}
	if got := Score(task, missing, cfg).Final; got != 0 {
		t.Errorf("non-welder final = %v, want 0", got)
	}
}

func TestSkillMatchAveragesOverRequired(t *testing.T) {
	task := testTask("welding", "rigging")
	worker := testWorker(map[string]model.Skill{
		"welding": {Level: model.SkillExpert},       // 100
		"rigging": {Level: model.SkillIntermediate}, // 50
	}, 0)

	if got := Score(task, worker, testConfig()).SkillMatch; got != 75 {
		t.Errorf("skill match = %v, want 75", got)
	}
}

func TestSkillMatchNoRequiredSkills(t *testing.T) {
	if got := Score(testTask(), testWorker(nil, 0), testConfig()).SkillMatch; got != 100 {
		t.Errorf("skill match with no required skills = %v, want 100", got)
	}
}

func TestHardExclusion(t *testing.T) {
	task := testTask("welding")
	worker := testWorker(map[string]model.Skill{"welding": {Level: model.SkillExpert}}, 10)

	cfg := testConfig()
	cfg.RespectMaxWorkload = true
	cfg.MaxTasksPerWorker = 10

	b := Score(task, worker, cfg)
	if b.Final != 0 || b.SkillMatch != 0 || b.Availability != 0 || b.Proximity != 0 || b.WorkloadBalance != 0 {
		t.Errorf("worker at cap must score zero everywhere, got %+v", b)
	}

	// Without the flag the same worker scores normally.
	cfg.RespectMaxWorkload = false
	if b := Score(task, worker, cfg); b.SkillMatch != 100 {
		t.Errorf("skill match without hard exclusion = %v, want 100", b.SkillMatch)
	}
}

func TestAvailabilityScore(t *testing.T) {
	cases := []struct {
		workload int
		want     float64
	}{
		{0, 100},
		{5, 50},
		{10, 0},
		{25, 0}, // floored
	}
	for _, c := range cases {
		if got := availabilityScore(c.workload); got != c.want {
			t.Errorf("availabilityScore(%d) = %v, want %v", c.workload, got, c.want)
		}
	}
}

func TestWorkloadBalanceScore(t *testing.T) {
	if got := workloadBalanceScore(2, 4); got != 50 {
		t.Errorf("workloadBalanceScore(2, 4) = %v, want 50", got)
	}
	if got := workloadBalanceScore(8, 4); got != 0 {
		t.Errorf("workloadBalanceScore(8, 4) = %v, want 0 (floored)", got)
	}
	if got := workloadBalanceScore(0, 0); got != 0 {
		t.Errorf("workloadBalanceScore with zero cap = %v, want 0", got)
	}
}

func TestProximityScore(t *testing.T) {
	task := testTask()
	worker := testWorker(nil, 0)

	// No task location: everyone scores 100.
	if got := proximityScore(task, worker); got != 100 {
		t.Errorf("no task location = %v, want 100", got)
	}

	// Task located, worker location unknown: neutral 50.
	task.Location = &model.GeoPoint{Lat: 52.52, Lng: 13.405}
	if got := proximityScore(task, worker); got != 50 {
		t.Errorf("unknown worker location = %v, want 50", got)
	}

	// Same point: 100.
	worker.Location = &model.GeoPoint{Lat: 52.52, Lng: 13.405}
	if got := proximityScore(task, worker); math.Abs(got-100) > 1e-9 {
		t.Errorf("zero distance = %v, want 100", got)
	}

	// Far away (Berlin -> Munich, ~500 km): floored at 0.
	worker.Location = &model.GeoPoint{Lat: 48.1351, Lng: 11.582}
	if got := proximityScore(task, worker); got != 0 {
		t.Errorf("distant worker = %v, want 0", got)
	}
}

func TestHaversineKM(t *testing.T) {
	berlin := model.GeoPoint{Lat: 52.52, Lng: 13.405}
	munich := model.GeoPoint{Lat: 48.1351, Lng: 11.582}

	km := haversineKM(berlin, munich)
	if km < 480 || km > 520 {
		t.Errorf("Berlin-Munich distance = %v km, want ~504", km)
	}
	if d := haversineKM(berlin, berlin); d != 0 {
		t.Errorf("distance to self = %v, want 0", d)
	}
}

func TestWeightNormalization(t *testing.T) {
	// Weights summing to 2.0 must behave identically to the same ratios
	// summing to 1.0.
	task := testTask("welding")
	worker := testWorker(map[string]model.Skill{"welding": {Level: model.SkillAdvanced}}, 3)

	cfgA := testConfig()
	cfgA.Weights = model.ScoringWeights{SkillMatch: 0.8, Availability: 0.4, Proximity: 0.4, Workload: 0.4}
	cfgB := testConfig()
	cfgB.Weights = model.ScoringWeights{SkillMatch: 0.4, Availability: 0.2, Proximity: 0.2, Workload: 0.2}

	a, b := Score(task, worker, cfgA), Score(task, worker, cfgB)
	if math.Abs(a.Final-b.Final) > 1e-9 {
		t.Errorf("scaled weights changed the final score: %v vs %v", a.Final, b.Final)
	}
}

func TestSkillPriorityOrdering(t *testing.T) {
	got := orderBySkillPriority(
		[]string{"plumbing", "welding", "rigging"},
		[]string{"rigging", "carpentry", "welding"},
	)
	want := []string{"rigging", "welding", "plumbing"}
	if len(got) != len(want) {
		t.Fatalf("ordered = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ordered[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
