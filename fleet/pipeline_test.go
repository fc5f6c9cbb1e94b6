package fleet

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetsim/fleetsim/bus"
	"github.com/fleetsim/fleetsim/dispatch"
	"github.com/fleetsim/fleetsim/ga"
	"github.com/fleetsim/fleetsim/sim"
	"github.com/fleetsim/fleetsim/trace"
)

func testStack() (sim.Config, dispatch.Config, dispatch.LocalOptimizer) {
	simCfg := sim.DefaultConfig()
	dispCfg := dispatch.DefaultConfig()
	dispCfg.TraceLevel = trace.LevelDecisions
	gaCfg := ga.DefaultConfig()
	// Small GA settings keep the end-to-end runs quick; determinism does
	// not depend on them.
	gaCfg.PopulationSize = 16
	gaCfg.Generations = 10
	return simCfg, dispCfg, dispatch.LocalOptimizer{Cfg: gaCfg}
}

func miniRun(t *testing.T, mode sim.Mode, seed int64) sim.RunContext {
	t.Helper()
	run, err := sim.NewRunContext("e2e-"+string(mode), mode, seed, sim.ScaleMini, 0, 0)
	require.NoError(t, err)
	return run
}

func TestRun_MiniBaseline(t *testing.T) {
	simCfg, dispCfg, opt := testStack()
	res1, err := Run(context.Background(), bus.NewExchange(), miniRun(t, sim.ModeBaseline, 42), simCfg, dispCfg, opt)
	require.NoError(t, err)

	assert.Equal(t, 5, res1.Metrics.TotalJobs)
	assert.Equal(t, 5, res1.Metrics.CompletedJobs+res1.Metrics.FailedJobs)
	assert.NotEmpty(t, res1.ScenarioHash)

	// A second run with the same inputs reproduces hash and metrics.
	res2, err := Run(context.Background(), bus.NewExchange(), miniRun(t, sim.ModeBaseline, 42), simCfg, dispCfg, opt)
	require.NoError(t, err)
	assert.Equal(t, res1.ScenarioHash, res2.ScenarioHash)
	assert.Equal(t, res1.Metrics, res2.Metrics)
}

func TestRun_MiniGA(t *testing.T) {
	simCfg, dispCfg, opt := testStack()
	res1, err := Run(context.Background(), bus.NewExchange(), miniRun(t, sim.ModeGA, 42), simCfg, dispCfg, opt)
	require.NoError(t, err)

	assert.Equal(t, 5, res1.Metrics.TotalJobs)
	assert.Equal(t, 5, res1.Metrics.CompletedJobs+res1.Metrics.FailedJobs)

	res2, err := Run(context.Background(), bus.NewExchange(), miniRun(t, sim.ModeGA, 42), simCfg, dispCfg, opt)
	require.NoError(t, err)
	assert.Equal(t, res1.ScenarioHash, res2.ScenarioHash)
	assert.Equal(t, res1.Metrics, res2.Metrics)

	// Every GA assignment came through a recorded trigger.
	require.NotNil(t, res1.Trace)
	total := 0
	for _, n := range res1.Trace.CountByTrigger() {
		total += n
	}
	assert.Equal(t, 5, total)
}

func TestCompare_SameScenarioBothModes(t *testing.T) {
	simCfg, dispCfg, opt := testStack()
	baseline, genetic, err := Compare(context.Background(), 42, sim.ScaleMini, 0, 0, simCfg, dispCfg, opt)
	require.NoError(t, err)

	assert.Equal(t, baseline.ScenarioHash, genetic.ScenarioHash,
		"both modes must dispatch the identical generated scenario")
	assert.Equal(t, 5, baseline.Metrics.TotalJobs)
	assert.Equal(t, 5, genetic.Metrics.TotalJobs)
}

func TestRun_ScenarioFailure(t *testing.T) {
	simCfg, dispCfg, opt := testStack()
	x := bus.NewExchange()
	obs := x.Bind("obs", bus.RunCompleted)

	bad := sim.RunContext{RunID: "bad", Mode: sim.ModeBaseline, Seed: 1, Scale: sim.ScaleMini, Robots: 0, Jobs: 5}
	_, err := Run(context.Background(), x, bad, simCfg, dispCfg, opt)
	require.Error(t, err)

	events := obs.Drain()
	require.Len(t, events, 1)
	var p sim.RunCompletedPayload
	require.NoError(t, events[0].Decode(&p))
	assert.True(t, p.Failed)
	assert.NotEmpty(t, p.Error)
}
