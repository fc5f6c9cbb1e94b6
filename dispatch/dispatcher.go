// Package dispatch decides job assignments from a projection of world
// state. It consumes job and robot events, applies the baseline or GA
// policy under battery gating, and emits idempotent job.assigned commands.
// The simulator remains authoritative; a stale projection at worst
// produces commands the simulator rejects.
package dispatch

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fleetsim/fleetsim/bus"
	"github.com/fleetsim/fleetsim/ga"
	"github.com/fleetsim/fleetsim/sim"
	"github.com/fleetsim/fleetsim/trace"
)

// Assignment reasons on the wire.
const (
	ReasonBaseline = "baseline_edf_nearest"
	ReasonGAReplan = "ga_replan"
)

// GA replan trigger names, recorded in the decision trace.
const (
	TriggerInitial  = "initial"
	TriggerPeriodic = "periodic"
	TriggerIdleGap  = "idle_gap"
)

// Config holds the dispatcher knobs.
type Config struct {
	// BatteryThreshold gates eligibility together with the charging state.
	BatteryThreshold float64
	// GAReplanIntervalS enables periodic replanning when positive.
	GAReplanIntervalS float64
	// OptimizeTimeout bounds one optimizer call.
	OptimizeTimeout time.Duration
	// SyncOptimize runs the optimizer call inline instead of off the
	// event loop. The lockstep pipeline uses it for reproducible runs;
	// serve mode leaves it off so events keep flowing during a replan.
	SyncOptimize bool
	TraceLevel   trace.Level
}

// DefaultConfig returns the documented dispatcher defaults.
func DefaultConfig() Config {
	return Config{
		BatteryThreshold: 20,
		OptimizeTimeout:  10 * time.Second,
	}
}

// robotView is the latest known state of one robot.
type robotView struct {
	ID           int
	X, Y         float64
	Speed        float64
	Battery      float64
	State        string
	CurrentJobID string
}

func (r *robotView) eligible(threshold float64) bool {
	return r.State != string(sim.RobotCharging) && r.Battery >= threshold
}

func (r *robotView) idle() bool {
	return r.State == string(sim.RobotIdle) && r.CurrentJobID == ""
}

// replanOutcome carries an optimizer answer (or failure) back onto the
// event loop together with the trigger that started it.
type replanOutcome struct {
	trigger string
	resp    ga.Response
	err     error
}

// Dispatcher holds the projection and policy state for a single run.
// All fields are owned by the event loop; the only concurrency is the
// optimizer worker, which communicates through the results channel.
type Dispatcher struct {
	cfg  Config
	run  sim.RunContext
	meta bus.RunMeta

	exchange *bus.Exchange
	queue    *bus.Queue
	opt      OptimizerClient
	tr       *trace.DecisionTrace

	pending map[string]*ga.JobInput
	robots  map[int]*robotView
	// planned holds jobs committed to a robot but not yet handed to the
	// simulator; the head is handed when the robot reports idle.
	planned map[int][]string

	inFlight          bool
	initialReplanDone bool
	lastReplanS       float64
	simTime           float64
	results           chan replanOutcome
	done              bool
}

// NewDispatcher builds a dispatcher for one run and binds its queue to the
// exchange.
func NewDispatcher(run sim.RunContext, cfg Config, exchange *bus.Exchange, opt OptimizerClient) *Dispatcher {
	return &Dispatcher{
		cfg:      cfg,
		run:      run,
		meta:     bus.RunMeta{RunID: run.RunID, Mode: string(run.Mode), Seed: run.Seed, Scale: string(run.Scale)},
		exchange: exchange,
		queue: exchange.Bind("dispatcher:"+run.RunID,
			bus.JobCreated, bus.RobotUpdated, bus.JobCompleted, bus.JobFailed, bus.RunCompleted),
		opt:     opt,
		tr:      trace.New(cfg.TraceLevel),
		pending: make(map[string]*ga.JobInput),
		robots:  make(map[int]*robotView),
		planned: make(map[int][]string),
		results: make(chan replanOutcome, 1),
	}
}

// Trace returns the decision trace, nil unless tracing was enabled.
func (d *Dispatcher) Trace() *trace.DecisionTrace {
	return d.tr
}

// Done reports whether the run this dispatcher serves has completed.
func (d *Dispatcher) Done() bool {
	return d.done
}

// Run serializes event handling and replan outcomes until the run
// completes or the context ends.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env := <-d.queue.C():
			d.Handle(env)
			if d.done {
				return nil
			}
		case out := <-d.results:
			d.applyOutcome(out)
		}
	}
}

// Step drains buffered events and any finished replan without blocking.
// The lockstep pipeline calls it once per simulator tick.
func (d *Dispatcher) Step() {
	for _, env := range d.queue.Drain() {
		d.Handle(env)
	}
	select {
	case out := <-d.results:
		d.applyOutcome(out)
	default:
	}
}

// Handle processes one envelope against the projection and runs the
// policy hooks.
func (d *Dispatcher) Handle(env bus.Envelope) {
	if env.RunID != d.run.RunID {
		return
	}
	if env.SimTimeS > d.simTime {
		d.simTime = env.SimTimeS
	}

	switch env.EventType {
	case bus.JobCreated:
		var p sim.JobCreatedPayload
		if err := env.Decode(&p); err != nil {
			bus.DropMalformed(d.queue, env, err)
			return
		}
		d.pending[p.JobID] = &ga.JobInput{
			ID:         p.JobID,
			Pickup:     sim.Point{X: p.PickupX, Y: p.PickupY},
			Dropoff:    sim.Point{X: p.DropoffX, Y: p.DropoffY},
			DeadlineTS: p.DeadlineTS,
			Priority:   p.Priority,
		}
		if d.run.Mode == sim.ModeBaseline {
			d.baselineSweep()
		}

	case bus.RobotUpdated:
		var p sim.RobotUpdatedPayload
		if err := env.Decode(&p); err != nil {
			bus.DropMalformed(d.queue, env, err)
			return
		}
		d.handleRobotUpdate(p)

	case bus.JobCompleted, bus.JobFailed:
		var p sim.JobTerminalPayload
		if err := env.Decode(&p); err != nil {
			bus.DropMalformed(d.queue, env, err)
			return
		}
		delete(d.pending, p.JobID)
		d.removePlanned(p.JobID)

	case bus.RunCompleted:
		d.done = true
		return
	}

	if d.run.Mode == sim.ModeGA {
		d.maybeReplan()
	}
}

func (d *Dispatcher) handleRobotUpdate(p sim.RobotUpdatedPayload) {
	rv, known := d.robots[p.RobotID]
	if !known {
		rv = &robotView{ID: p.RobotID}
		d.robots[p.RobotID] = rv
	}
	wasIdle := known && rv.idle()
	rv.X, rv.Y = p.X, p.Y
	rv.Speed = p.Speed
	rv.Battery = p.Battery
	rv.State = p.State
	rv.CurrentJobID = p.CurrentJobID

	becameIdle := rv.idle() && !wasIdle

	switch d.run.Mode {
	case sim.ModeBaseline:
		if becameIdle || !known {
			d.baselineSweep()
		}
	case sim.ModeGA:
		if becameIdle && rv.eligible(d.cfg.BatteryThreshold) {
			if queue := d.planned[rv.ID]; len(queue) > 0 {
				d.handPlanned(rv)
			} else if d.initialReplanDone && len(d.pending) > 0 && !d.inFlight {
				d.replan(TriggerIdleGap)
			}
		}
	}
}

// baselineSweep assigns while pending jobs and idle eligible robots both
// exist: pop the top job in canonical order, hand it to the nearest idle
// eligible robot, ties to the lowest robot id.
func (d *Dispatcher) baselineSweep() {
	for len(d.pending) > 0 {
		job := d.pendingCanonical()[0]

		var best *robotView
		bestDist := 0.0
		for _, id := range d.robotIDs() {
			rv := d.robots[id]
			if !rv.idle() || !rv.eligible(d.cfg.BatteryThreshold) {
				continue
			}
			dist := sim.Dist(sim.Point{X: rv.X, Y: rv.Y}, job.Pickup)
			if best == nil || dist < bestDist {
				best, bestDist = rv, dist
			}
		}
		if best == nil {
			return
		}
		delete(d.pending, job.ID)
		d.hand(best, job.ID, ReasonBaseline, ReasonBaseline, 0)
	}
}

// maybeReplan fires the initial and periodic GA triggers. All triggers are
// suppressed while an optimize call is in flight.
func (d *Dispatcher) maybeReplan() {
	if d.inFlight || len(d.pending) == 0 {
		return
	}
	if !d.initialReplanDone {
		// The initial replan waits until the whole generated fleet has
		// been seen, so the first plan is fleet-wide rather than a
		// partial snapshot of whatever arrived first.
		if len(d.robots) >= d.run.Robots {
			d.replan(TriggerInitial)
		}
		return
	}
	if d.cfg.GAReplanIntervalS > 0 && d.simTime-d.lastReplanS >= d.cfg.GAReplanIntervalS {
		d.replan(TriggerPeriodic)
	}
}

// replan snapshots pending jobs (canonical order) and eligible robots (id
// order), sets the single-flight flag, and calls the optimizer. The call
// runs inline under SyncOptimize, otherwise on a worker goroutine so the
// event loop keeps folding events into the projection.
func (d *Dispatcher) replan(trigger string) {
	jobs := make([]ga.JobInput, 0, len(d.pending))
	for _, j := range d.pendingCanonical() {
		jobs = append(jobs, *j)
	}
	robots := make([]ga.RobotInput, 0, len(d.robots))
	for _, id := range d.robotIDs() {
		rv := d.robots[id]
		if !rv.eligible(d.cfg.BatteryThreshold) {
			continue
		}
		robots = append(robots, ga.RobotInput{
			ID: rv.ID, X: rv.X, Y: rv.Y, Speed: rv.Speed, Battery: rv.Battery, State: rv.State,
		})
	}
	if len(robots) == 0 {
		return
	}

	d.inFlight = true
	d.initialReplanDone = true
	d.lastReplanS = d.simTime

	req := ga.Request{
		RunID:       d.run.RunID,
		Seed:        d.run.Seed,
		Mode:        string(d.run.Mode),
		SimTimeS:    d.simTime,
		Robots:      robots,
		PendingJobs: jobs,
	}

	if d.cfg.SyncOptimize {
		resp, err := d.opt.Optimize(context.Background(), req)
		d.applyOutcome(replanOutcome{trigger: trigger, resp: resp, err: err})
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.OptimizeTimeout)
		defer cancel()
		resp, err := d.opt.Optimize(ctx, req)
		d.results <- replanOutcome{trigger: trigger, resp: resp, err: err}
	}()
}

// applyOutcome clears the single-flight flag and folds a whole-fleet
// assignment into the planned queues. On optimizer failure the error is
// logged and the next trigger retries; there is no baseline fallback.
func (d *Dispatcher) applyOutcome(out replanOutcome) {
	d.inFlight = false
	if out.err != nil {
		logrus.WithField("run_id", d.run.RunID).Warnf("optimize failed (%s trigger): %v", out.trigger, out.err)
		return
	}
	for _, a := range out.resp.Assignments {
		if _, ok := d.pending[a.JobID]; !ok {
			// Consumed since the snapshot; a stale command would be a
			// no-op at the simulator anyway, skip it here.
			continue
		}
		delete(d.pending, a.JobID)
		d.planned[a.RobotID] = append(d.planned[a.RobotID], a.JobID)
		d.tr.RecordAssignment(trace.AssignmentRecord{
			RunID:    d.run.RunID,
			SimTimeS: d.simTime,
			Policy:   string(sim.ModeGA),
			Trigger:  out.trigger,
			JobID:    a.JobID,
			RobotID:  a.RobotID,
			Score:    a.Score,
		})
	}
	for _, id := range d.robotIDs() {
		rv := d.robots[id]
		if rv.idle() && rv.eligible(d.cfg.BatteryThreshold) {
			d.handPlanned(rv)
		}
	}
}

// handPlanned hands the head of the robot's planned queue to the
// simulator. The rest of the queue waits for the next idle transition.
func (d *Dispatcher) handPlanned(rv *robotView) {
	queue := d.planned[rv.ID]
	if len(queue) == 0 {
		return
	}
	jobID := queue[0]
	d.planned[rv.ID] = queue[1:]
	d.hand(rv, jobID, ReasonGAReplan, "", 0)
}

// hand emits one job.assigned command and optimistically marks the robot
// busy in the projection so a sweep never double-books it.
func (d *Dispatcher) hand(rv *robotView, jobID, reason, traceTrigger string, score float64) {
	cmd := sim.AssignCommand{
		RunID:          d.run.RunID,
		JobID:          jobID,
		RobotID:        rv.ID,
		SimTimeS:       d.simTime,
		Reason:         reason,
		IdempotencyKey: fmt.Sprintf("%s:%s", d.run.RunID, jobID),
	}
	d.exchange.Publish(bus.NewEnvelope(bus.JobAssigned, d.meta, d.simTime, cmd))
	rv.CurrentJobID = jobID
	if traceTrigger != "" {
		d.tr.RecordAssignment(trace.AssignmentRecord{
			RunID:    d.run.RunID,
			SimTimeS: d.simTime,
			Policy:   string(d.run.Mode),
			Trigger:  traceTrigger,
			JobID:    jobID,
			RobotID:  rv.ID,
			Score:    score,
		})
	}
}

func (d *Dispatcher) removePlanned(jobID string) {
	for id, queue := range d.planned {
		for i, j := range queue {
			if j == jobID {
				d.planned[id] = append(queue[:i], queue[i+1:]...)
				return
			}
		}
	}
}

// pendingCanonical returns pending jobs sorted by
// (deadline_ts ASC, priority DESC, job_id ASC).
func (d *Dispatcher) pendingCanonical() []*ga.JobInput {
	jobs := make([]*ga.JobInput, 0, len(d.pending))
	for _, j := range d.pending {
		jobs = append(jobs, j)
	}
	sort.SliceStable(jobs, func(i, j int) bool {
		a, b := jobs[i], jobs[j]
		if a.DeadlineTS != b.DeadlineTS {
			return a.DeadlineTS < b.DeadlineTS
		}
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.ID < b.ID
	})
	return jobs
}

func (d *Dispatcher) robotIDs() []int {
	ids := make([]int, 0, len(d.robots))
	for id := range d.robots {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
