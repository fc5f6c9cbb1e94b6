package sim

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRunContext(t *testing.T, mode Mode, seed int64, scale Scale) RunContext {
	t.Helper()
	run, err := NewRunContext(fmt.Sprintf("test-%d", seed), mode, seed, scale, 0, 0)
	require.NoError(t, err)
	return run
}

func TestGenerateScenario_Deterministic(t *testing.T) {
	run := mustRunContext(t, ModeBaseline, 42, ScaleMini)
	cfg := DefaultConfig()

	sc1, err := GenerateScenario(run, cfg)
	require.NoError(t, err)
	sc2, err := GenerateScenario(run, cfg)
	require.NoError(t, err)

	assert.Equal(t, sc1.Hash, sc2.Hash)
	assert.Equal(t, sc1.Robots, sc2.Robots)
	assert.Equal(t, sc1.Jobs, sc2.Jobs)
}

func TestGenerateScenario_SeedChangesHash(t *testing.T) {
	cfg := DefaultConfig()
	sc1, err := GenerateScenario(mustRunContext(t, ModeBaseline, 42, ScaleMini), cfg)
	require.NoError(t, err)
	sc2, err := GenerateScenario(mustRunContext(t, ModeBaseline, 43, ScaleMini), cfg)
	require.NoError(t, err)
	assert.NotEqual(t, sc1.Hash, sc2.Hash)
}

func TestGenerateScenario_Shape(t *testing.T) {
	run := mustRunContext(t, ModeBaseline, 7, ScaleDemo)
	cfg := DefaultConfig()
	sc, err := GenerateScenario(run, cfg)
	require.NoError(t, err)

	require.Len(t, sc.Robots, 10)
	require.Len(t, sc.Jobs, 50)

	for i, r := range sc.Robots {
		assert.Equal(t, i+1, r.ID, "robot ids are 1-based ascending")
		assert.Equal(t, RobotIdle, r.State)
		assert.Equal(t, 100.0, r.Battery)
		assert.GreaterOrEqual(t, r.X, 0.0)
		assert.LessOrEqual(t, r.X, cfg.WorldSize)
		assert.GreaterOrEqual(t, r.Speed, cfg.SpeedMin)
		assert.LessOrEqual(t, r.Speed, cfg.SpeedMax)
	}
	for n, j := range sc.Jobs {
		assert.Equal(t, fmt.Sprintf("job_%d", n+1), j.ID)
		assert.Equal(t, JobPending, j.State)
		assert.GreaterOrEqual(t, j.Priority, 1)
		assert.LessOrEqual(t, j.Priority, 5)
		// Deadline leaves at least the travel, service, and minimum slack.
		minDeadline := int64(Dist(j.Pickup, j.Dropoff)/cfg.SpeedMin) + int64(cfg.ServiceTimeS) + int64(slackMinS)
		assert.GreaterOrEqual(t, j.DeadlineTS, minDeadline)
	}
}

func TestGenerateScenario_InvalidInputs(t *testing.T) {
	cfg := DefaultConfig()

	_, err := GenerateScenario(RunContext{RunID: "x", Mode: ModeBaseline, Robots: 0, Jobs: 5}, cfg)
	assert.Error(t, err, "jobs without robots must be rejected at scenario time")

	bad := cfg
	bad.TickHz = 0
	_, err = GenerateScenario(RunContext{RunID: "x", Mode: ModeBaseline, Robots: 1, Jobs: 1}, bad)
	assert.Error(t, err)
}

func TestScalePresets(t *testing.T) {
	tests := []struct {
		scale  Scale
		robots int
		jobs   int
	}{
		{ScaleMini, 5, 5},
		{ScaleSmall, 5, 25},
		{ScaleDemo, 10, 50},
		{ScaleLarge, 20, 100},
	}
	for _, tt := range tests {
		t.Run(string(tt.scale), func(t *testing.T) {
			robots, jobs, err := ScalePreset(tt.scale)
			require.NoError(t, err)
			assert.Equal(t, tt.robots, robots)
			assert.Equal(t, tt.jobs, jobs)
		})
	}

	_, _, err := ScalePreset(Scale("galactic"))
	assert.Error(t, err)
}

func TestNewRunContext_Overrides(t *testing.T) {
	run, err := NewRunContext("r", ModeGA, 1, ScaleMini, 3, 12)
	require.NoError(t, err)
	assert.Equal(t, 3, run.Robots)
	assert.Equal(t, 12, run.Jobs)

	_, err = NewRunContext("r", ModeGA, 1, ScaleMini, -1, 0)
	assert.Error(t, err)

	_, err = NewRunContext("r", Mode("psychic"), 1, ScaleMini, 0, 0)
	assert.Error(t, err)
}
