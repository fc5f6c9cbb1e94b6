package sim

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
)

// Deadline slack bounds in sim-seconds. The slack draw gives a
// well-dispatched fleet enough headroom to hit most deadlines on the demo
// scale.
const (
	slackMinS        = 30.0
	slackMaxFraction = 0.25 // of max_sim_seconds
)

// Scenario is the generated world for one run: robots and jobs in
// ascending id order plus the reproducibility digest.
type Scenario struct {
	Robots []*Robot
	Jobs   []*Job
	Hash   string
}

// GenerateScenario is a pure function of (seed, counts, world geometry,
// speed range, service time, horizon): identical inputs produce a byte-identical
// scenario and hash.
//
// All draws come from the seed bank's scenario stream, in a fixed order:
// robots first in id order (x, y, speed per robot), then jobs in id order
// (pickup x, pickup y, dropoff x, dropoff y, priority, slack per job).
func GenerateScenario(run RunContext, cfg Config) (*Scenario, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if run.Robots <= 0 {
		return nil, fmt.Errorf("scenario requires at least one robot, got %d", run.Robots)
	}
	if run.Jobs < 0 {
		return nil, fmt.Errorf("scenario requires a non-negative job count, got %d", run.Jobs)
	}

	rng := NewSeedBank(run.Seed).Stream(StreamScenario)

	robots := make([]*Robot, 0, run.Robots)
	for i := 1; i <= run.Robots; i++ {
		robots = append(robots, &Robot{
			ID:      i,
			X:       rng.Float64() * cfg.WorldSize,
			Y:       rng.Float64() * cfg.WorldSize,
			Speed:   cfg.SpeedMin + rng.Float64()*(cfg.SpeedMax-cfg.SpeedMin),
			Battery: 100,
			State:   RobotIdle,
		})
	}

	slackMax := cfg.MaxSimSeconds * slackMaxFraction
	jobs := make([]*Job, 0, run.Jobs)
	for n := 1; n <= run.Jobs; n++ {
		pickup := Point{X: rng.Float64() * cfg.WorldSize, Y: rng.Float64() * cfg.WorldSize}
		dropoff := Point{X: rng.Float64() * cfg.WorldSize, Y: rng.Float64() * cfg.WorldSize}
		priority := 1 + rng.Intn(5)
		slack := slackMinS + rng.Float64()*(slackMax-slackMinS)
		deadline := int64(math.Ceil(Dist(pickup, dropoff)/cfg.SpeedMin)) +
			int64(cfg.ServiceTimeS) + int64(slack)
		jobs = append(jobs, &Job{
			ID:         fmt.Sprintf("job_%d", n),
			Pickup:     pickup,
			Dropoff:    dropoff,
			DeadlineTS: deadline,
			Priority:   priority,
			State:      JobPending,
		})
	}

	return &Scenario{
		Robots: robots,
		Jobs:   jobs,
		Hash:   scenarioHash(robots, jobs),
	}, nil
}

// scenarioHash digests the ordered serialized scenario. The serialization
// is a fixed text format so the digest is stable across processes; no
// wall-clock input is involved.
func scenarioHash(robots []*Robot, jobs []*Job) string {
	var b strings.Builder
	for _, r := range robots {
		fmt.Fprintf(&b, "robot|%d|%.9f|%.9f|%.9f\n", r.ID, r.X, r.Y, r.Speed)
	}
	for _, j := range jobs {
		fmt.Fprintf(&b, "job|%s|%.9f|%.9f|%.9f|%.9f|%d|%d\n",
			j.ID, j.Pickup.X, j.Pickup.Y, j.Dropoff.X, j.Dropoff.Y, j.DeadlineTS, j.Priority)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
