package fleet

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/fleetsim/fleetsim/bus"
	"github.com/fleetsim/fleetsim/dispatch"
	"github.com/fleetsim/fleetsim/sim"
)

// Manager consumes run.started events and spawns a simulator and a
// dispatcher per run. Each run gets its own tick driver and event loop;
// runs share nothing but the exchange.
type Manager struct {
	exchange *bus.Exchange
	queue    *bus.Queue
	simCfg   sim.Config
	dispCfg  dispatch.Config
	opt      dispatch.OptimizerClient
	// pace slows each run's tick driver to pace*dt wall-clock per tick so
	// dashboards can follow; zero runs unpaced.
	pace float64
}

// NewManager binds a run.started queue on the exchange.
func NewManager(x *bus.Exchange, simCfg sim.Config, dispCfg dispatch.Config,
	opt dispatch.OptimizerClient, pace float64) *Manager {
	return &Manager{
		exchange: x,
		queue:    x.Bind("run-manager", bus.RunStarted),
		simCfg:   simCfg,
		dispCfg:  dispCfg,
		opt:      opt,
		pace:     pace,
	}
}

// Run accepts run.started events until the context ends.
func (m *Manager) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for {
		env, ok := m.queue.Next(ctx)
		if !ok {
			break
		}
		var p sim.RunStartedPayload
		if err := env.Decode(&p); err != nil {
			bus.DropMalformed(m.queue, env, err)
			continue
		}
		m.startRun(ctx, g, p)
	}
	return g.Wait()
}

func (m *Manager) startRun(ctx context.Context, g *errgroup.Group, p sim.RunStartedPayload) {
	run, err := sim.NewRunContext(p.RunID, sim.Mode(p.Mode), p.Seed, sim.Scale(p.Scale), p.Robots, p.Jobs)
	if err != nil {
		logrus.Warnf("rejecting run %s: %v", p.RunID, err)
		sim.PublishScenarioFailure(m.exchange,
			sim.RunContext{RunID: p.RunID, Mode: sim.Mode(p.Mode), Seed: p.Seed, Scale: sim.Scale(p.Scale)}, err)
		return
	}
	sc, err := sim.GenerateScenario(run, m.simCfg)
	if err != nil {
		logrus.Warnf("rejecting run %s at scenario time: %v", p.RunID, err)
		sim.PublishScenarioFailure(m.exchange, run, err)
		return
	}

	simulator := sim.NewSimulator(run, m.simCfg, sc, m.exchange)
	simulator.SetPace(m.pace)
	dispatcher := dispatch.NewDispatcher(run, m.dispCfg, m.exchange, m.opt)

	logrus.WithFields(logrus.Fields{
		"run_id": run.RunID, "mode": run.Mode, "seed": run.Seed, "scale": run.Scale,
	}).Info("starting run")

	g.Go(func() error {
		if err := simulator.Run(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := dispatcher.Run(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	})
}
