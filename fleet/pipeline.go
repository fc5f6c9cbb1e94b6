// Package fleet wires the simulator, dispatcher, and optimizer together
// over the event bus: a lockstep pipeline for reproducible one-shot runs,
// and a manager that spawns components per run.started event in serve
// mode.
package fleet

import (
	"context"
	"fmt"

	"github.com/fleetsim/fleetsim/bus"
	"github.com/fleetsim/fleetsim/dispatch"
	"github.com/fleetsim/fleetsim/sim"
	"github.com/fleetsim/fleetsim/trace"
)

// Result is the outcome of one completed run.
type Result struct {
	Metrics      sim.Metrics
	ScenarioHash string
	Trace        *trace.DecisionTrace
}

// Run executes one run to completion in-process. The simulator tick and
// the dispatcher step alternate on one goroutine and the optimizer call is
// synchronous, so the whole run is a deterministic function of
// (run context, configuration).
func Run(ctx context.Context, x *bus.Exchange, run sim.RunContext, simCfg sim.Config,
	dispCfg dispatch.Config, opt dispatch.OptimizerClient) (Result, error) {

	sc, err := sim.GenerateScenario(run, simCfg)
	if err != nil {
		sim.PublishScenarioFailure(x, run, err)
		return Result{}, fmt.Errorf("scenario for %s: %w", run.RunID, err)
	}

	simulator := sim.NewSimulator(run, simCfg, sc, x)
	dispCfg.SyncOptimize = true
	dispatcher := dispatch.NewDispatcher(run, dispCfg, x, opt)

	simulator.Start()
	dispatcher.Step()
	for !simulator.Done() {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		default:
		}
		simulator.Tick()
		dispatcher.Step()
	}
	dispatcher.Step() // fold the terminal events into the projection

	return Result{
		Metrics:      simulator.Metrics(),
		ScenarioHash: simulator.ScenarioHash(),
		Trace:        dispatcher.Trace(),
	}, nil
}

// Compare runs the identical generated scenario under both policies and
// verifies the reproducibility digest matches between the two runs.
func Compare(ctx context.Context, seed int64, scale sim.Scale, robots, jobs int,
	simCfg sim.Config, dispCfg dispatch.Config, opt dispatch.OptimizerClient) (baseline, genetic Result, err error) {

	for _, mode := range []sim.Mode{sim.ModeBaseline, sim.ModeGA} {
		runCtx, ctxErr := sim.NewRunContext(
			fmt.Sprintf("run-%s-%d", mode, seed), mode, seed, scale, robots, jobs)
		if ctxErr != nil {
			return baseline, genetic, ctxErr
		}
		res, runErr := Run(ctx, bus.NewExchange(), runCtx, simCfg, dispCfg, opt)
		if runErr != nil {
			return baseline, genetic, runErr
		}
		if mode == sim.ModeBaseline {
			baseline = res
		} else {
			genetic = res
		}
	}
	if baseline.ScenarioHash != genetic.ScenarioHash {
		return baseline, genetic, fmt.Errorf("scenario hash mismatch: %s vs %s",
			baseline.ScenarioHash, genetic.ScenarioHash)
	}
	return baseline, genetic, nil
}
