package sim

import (
	"context"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fleetsim/fleetsim/bus"
)

// Simulator owns the world truth for exactly one run. It drives discrete
// simulation time: each tick advances sim_time_s by 1/tick_hz seconds,
// applies inbound assignment commands, advances kinematics and battery,
// and emits events. Sim time and wall clock are decoupled; unless paced,
// ticks run as fast as the CPU allows.
type Simulator struct {
	cfg  Config
	run  RunContext
	meta bus.RunMeta

	exchange *bus.Exchange
	assignQ  *bus.Queue

	robots   []*Robot
	jobs     []*Job
	jobsByID map[string]*Job
	hash     string

	tick    int64
	simTime float64
	// applied records idempotency keys of materialised assignments.
	applied map[string]bool
	// lastTelemetryS is the last whole sim-second telemetry was emitted.
	lastTelemetryS int64
	finished       bool
	metrics        Metrics

	// pace slows ticking to wall-clock dt multiples for live dashboards.
	// Zero means unpaced.
	pace float64
}

// NewSimulator builds a simulator for the given run over a generated
// scenario and binds its assignment queue to the exchange.
func NewSimulator(run RunContext, cfg Config, sc *Scenario, exchange *bus.Exchange) *Simulator {
	s := &Simulator{
		cfg:            cfg,
		run:            run,
		meta:           bus.RunMeta{RunID: run.RunID, Mode: string(run.Mode), Seed: run.Seed, Scale: string(run.Scale)},
		exchange:       exchange,
		assignQ:        exchange.Bind("simulator:"+run.RunID, bus.JobAssigned),
		robots:         sc.Robots,
		jobs:           sc.Jobs,
		jobsByID:       make(map[string]*Job, len(sc.Jobs)),
		hash:           sc.Hash,
		applied:        make(map[string]bool),
		lastTelemetryS: -1,
	}
	for _, j := range sc.Jobs {
		s.jobsByID[j.ID] = j
	}
	return s
}

// SetPace makes Run sleep pace*dt of wall clock per tick (1.0 = real time).
func (s *Simulator) SetPace(pace float64) {
	s.pace = pace
}

// ScenarioHash returns the reproducibility digest of the generated world.
func (s *Simulator) ScenarioHash() string {
	return s.hash
}

// SimTime returns the current simulation time in seconds.
func (s *Simulator) SimTime() float64 {
	return s.simTime
}

// Metrics returns the final metrics; valid once Done reports true.
func (s *Simulator) Metrics() Metrics {
	return s.metrics
}

// Start emits the scenario to the bus: one job.created per job in id
// order, then one initial robot.updated per robot in id order.
func (s *Simulator) Start() {
	for _, j := range s.jobs {
		j.CreatedSimTS = 0
		s.publish(bus.JobCreated, JobCreatedPayload{
			RunID:      s.run.RunID,
			JobID:      j.ID,
			PickupX:    j.Pickup.X,
			PickupY:    j.Pickup.Y,
			DropoffX:   j.Dropoff.X,
			DropoffY:   j.Dropoff.Y,
			DeadlineTS: j.DeadlineTS,
			Priority:   j.Priority,
			SimTimeS:   0,
		})
	}
	for _, r := range s.robots {
		s.emitRobot(r)
	}
}

// Done reports whether the run has terminated.
func (s *Simulator) Done() bool {
	return s.finished
}

// Run drives ticks until termination or context cancellation. Cancellation
// lands cleanly between ticks.
func (s *Simulator) Run(ctx context.Context) error {
	s.Start()
	var ticker *time.Ticker
	if s.pace > 0 {
		ticker = time.NewTicker(time.Duration(s.pace * s.cfg.Dt() * float64(time.Second)))
		defer ticker.Stop()
	}
	for !s.finished {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if ticker != nil {
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		s.Tick()
	}
	return nil
}

// Tick advances the simulation by one step: drain inbound assignments,
// advance every robot, emit the per-tick snapshot and per-second
// telemetry, then check termination.
func (s *Simulator) Tick() {
	if s.finished {
		return
	}
	s.tick++
	s.simTime = float64(s.tick) * s.cfg.Dt()

	s.applyAssignments()

	for _, r := range s.robots {
		s.advanceRobot(r)
	}

	// Jobs past their deadline are not failed here: lateness is recorded
	// at completion, and only the horizon fails jobs.

	s.emitSnapshot()
	s.emitTelemetry()

	if s.terminated() {
		s.finish()
	}
}

// applyAssignments drains job.assigned commands received since the last
// tick and materialises the valid ones.
func (s *Simulator) applyAssignments() {
	for _, env := range s.assignQ.Drain() {
		if env.RunID != s.run.RunID {
			continue
		}
		var cmd AssignCommand
		if err := env.Decode(&cmd); err != nil {
			bus.DropMalformed(s.assignQ, env, err)
			continue
		}
		s.applyAssignment(cmd)
	}
}

func (s *Simulator) applyAssignment(cmd AssignCommand) {
	log := logrus.WithFields(logrus.Fields{
		"run_id": s.run.RunID, "job_id": cmd.JobID, "robot_id": cmd.RobotID,
	})
	if s.applied[cmd.IdempotencyKey] {
		return
	}
	job, ok := s.jobsByID[cmd.JobID]
	if !ok {
		log.Warn("assignment for unknown job ignored")
		return
	}
	if !job.Assignable() {
		if job.State == JobAssigned {
			// Duplicate assignment for an already-assigned job.
			return
		}
		log.Warnf("re-assignment attempt rejected, job is %s", job.State)
		return
	}
	robot := s.robotByID(cmd.RobotID)
	if robot == nil {
		log.Warn("assignment for unknown robot ignored")
		return
	}
	if robot.State == RobotCharging || robot.Battery < s.cfg.BatteryThreshold {
		log.Warnf("assignment rejected, robot ineligible (state=%s battery=%.1f)", robot.State, robot.Battery)
		job.State = JobUnassigned
		return
	}
	if robot.CurrentJobID != "" {
		log.Warnf("assignment rejected, robot already executing %s", robot.CurrentJobID)
		job.State = JobUnassigned
		return
	}

	s.applied[cmd.IdempotencyKey] = true
	job.State = JobAssigned
	job.AssignedRobotID = robot.ID
	robot.CurrentJobID = job.ID
	robot.State = RobotMovingToPickup
	s.emitRobot(robot)
}

// advanceRobot runs one dt of kinematics, service, charging, and battery
// drain for a single robot.
func (s *Simulator) advanceRobot(r *Robot) {
	dt := s.cfg.Dt()

	switch r.State {
	case RobotIdle:
		return // idle robots neither move nor drain

	case RobotCharging:
		r.Battery = math.Min(100, r.Battery+s.cfg.ChargeRate*dt)
		if r.Battery >= s.cfg.ChargeResumeThreshold {
			if r.pausedState != "" {
				r.State = r.pausedState
				r.pausedState = ""
			} else {
				r.State = RobotIdle
			}
			s.emitRobot(r)
		}
		return

	case RobotMovingToPickup, RobotMovingToDropoff:
		job := s.jobsByID[r.CurrentJobID]
		target := job.Pickup
		if r.State == RobotMovingToDropoff {
			target = job.Dropoff
		}
		s.moveToward(r, target, dt)
		if r.Pos() == target {
			if r.State == RobotMovingToPickup {
				r.State = RobotServicing
				r.serviceLeftS = s.cfg.ServiceTimeS
				job.State = JobInProgress
				job.StartedSimTS = s.simTime
				s.emitRobot(r)
			} else {
				s.completeJob(r, job)
			}
		} else if sec := int64(s.simTime); sec > r.lastPosEmitS {
			// Position-only updates are throttled to once per sim-second.
			r.lastPosEmitS = sec
			s.emitRobot(r)
		}

	case RobotServicing:
		r.serviceLeftS -= dt
		if r.serviceLeftS <= 0 {
			r.serviceLeftS = 0
			r.State = RobotMovingToDropoff
			s.emitRobot(r)
		}
	}

	// Non-idle, non-charging robots drain a fixed amount per tick.
	r.Battery -= s.cfg.BatteryDrainPerTick
	if r.Battery <= 0 {
		r.Battery = 0
		if r.State != RobotCharging {
			// Motion stops; a current job is preserved and paused.
			r.pausedState = r.State
			r.State = RobotCharging
			s.emitRobot(r)
		}
	}
}

func (s *Simulator) moveToward(r *Robot, target Point, dt float64) {
	step := r.Speed * dt
	d := Dist(r.Pos(), target)
	// A gap within rounding error of one step counts as reached this step.
	if d <= step+1e-9 {
		r.X, r.Y = target.X, target.Y
		r.distance += d
		return
	}
	r.X += (target.X - r.X) / d * step
	r.Y += (target.Y - r.Y) / d * step
	r.distance += step
}

func (s *Simulator) completeJob(r *Robot, job *Job) {
	job.State = JobCompleted
	job.CompletedSimTS = s.simTime
	job.LatenessS = s.simTime - float64(job.DeadlineTS)
	r.State = RobotIdle
	r.CurrentJobID = ""
	s.publish(bus.JobCompleted, JobTerminalPayload{
		RunID:     s.run.RunID,
		JobID:     job.ID,
		SimTimeS:  s.simTime,
		LatenessS: job.LatenessS,
	})
	s.emitRobot(r)
}

// terminated checks the two run-end conditions: the horizon, or no job
// left pending and no robot executing one.
func (s *Simulator) terminated() bool {
	if s.simTime >= s.cfg.MaxSimSeconds {
		return true
	}
	for _, j := range s.jobs {
		if !j.Terminal() {
			return false
		}
	}
	return true
}

// finish fails incomplete jobs, computes metrics, and emits run.completed.
func (s *Simulator) finish() {
	for _, j := range s.jobs {
		if j.Terminal() {
			continue
		}
		j.State = JobFailed
		s.publish(bus.JobFailed, JobTerminalPayload{
			RunID:     s.run.RunID,
			JobID:     j.ID,
			SimTimeS:  s.simTime,
			LatenessS: s.simTime - float64(j.DeadlineTS),
		})
	}
	s.metrics = ComputeMetrics(s.robots, s.jobs)
	s.finished = true
	s.publish(bus.RunCompleted, RunCompletedPayload{
		RunID:        s.run.RunID,
		SimTimeS:     s.simTime,
		Metrics:      s.metrics,
		ScenarioHash: s.hash,
	})
	logrus.WithField("run_id", s.run.RunID).Infof("[t=%.1fs] run completed: %d/%d jobs",
		s.simTime, s.metrics.CompletedJobs, s.metrics.TotalJobs)
}

func (s *Simulator) robotByID(id int) *Robot {
	if id < 1 || id > len(s.robots) {
		return nil
	}
	return s.robots[id-1]
}

func (s *Simulator) emitRobot(r *Robot) {
	r.lastPosEmitS = int64(s.simTime)
	s.publish(bus.RobotUpdated, RobotUpdatedPayload{
		RunID:        s.run.RunID,
		RobotID:      r.ID,
		State:        string(r.State),
		SimTimeS:     s.simTime,
		X:            r.X,
		Y:            r.Y,
		Speed:        r.Speed,
		Battery:      r.Battery,
		CurrentJobID: r.CurrentJobID,
	})
}

func (s *Simulator) emitSnapshot() {
	s.publish(bus.SnapshotTick, SnapshotPayload{
		RunID:    s.run.RunID,
		SimTimeS: s.simTime,
		Snapshot: Snapshot{Robots: s.robots, Jobs: s.jobs},
	})
}

func (s *Simulator) emitTelemetry() {
	sec := int64(s.simTime)
	if sec <= s.lastTelemetryS {
		return
	}
	s.lastTelemetryS = sec
	for _, r := range s.robots {
		s.publish(bus.TelemetryReceived, TelemetryPayload{
			RunID:    s.run.RunID,
			SimTimeS: s.simTime,
			RobotID:  r.ID,
			State:    string(r.State),
			X:        r.X,
			Y:        r.Y,
			Battery:  r.Battery,
		})
	}
}

func (s *Simulator) publish(eventType string, payload any) {
	s.exchange.Publish(bus.NewEnvelope(eventType, s.meta, s.simTime, payload))
}

// PublishScenarioFailure emits the run.completed failure marker used when
// scenario generation rejects the run's inputs.
func PublishScenarioFailure(exchange *bus.Exchange, run RunContext, genErr error) {
	meta := bus.RunMeta{RunID: run.RunID, Mode: string(run.Mode), Seed: run.Seed, Scale: string(run.Scale)}
	exchange.Publish(bus.NewEnvelope(bus.RunCompleted, meta, 0, RunCompletedPayload{
		RunID:  run.RunID,
		Failed: true,
		Error:  genErr.Error(),
	}))
}
