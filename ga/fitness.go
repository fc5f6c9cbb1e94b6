package ga

import "github.com/fleetsim/fleetsim/sim"

// Fitness term weights. Lateness dominates, distance and priority shape
// the middle, the battery bands veto depleting plans, and the quadratic
// load term spreads work across the fleet.
const (
	latenessWeight    = 1000
	distanceWeight    = 2
	priorityWeight    = 3
	batteryDeadBase   = 500
	batteryDeadSlope  = 100
	batteryLowPenalty = 200
	batteryLowLevel   = 10
	loadWeight        = 30
)

// evaluator scores chromosomes against one replan snapshot. Robots and
// jobs are in canonical order; gene k maps job k to a robot index.
type evaluator struct {
	robots  []RobotInput
	jobs    []JobInput
	simTime float64
	cfg     Config
}

// fitness simulates, per robot, the sequential execution of its assigned
// jobs in canonical job order from the robot's current position and
// battery, and sums the per-job cost terms plus the per-robot load terms.
// Lower is better.
func (ev *evaluator) fitness(genes []int) float64 {
	total := 0.0
	for r := range ev.robots {
		robot := &ev.robots[r]
		pos := sim.Point{X: robot.X, Y: robot.Y}
		t := ev.simTime
		battery := robot.Battery
		count := 0

		for k, g := range genes {
			if g != r {
				continue
			}
			job := &ev.jobs[k]
			travel := sim.Dist(pos, job.Pickup) + sim.Dist(job.Pickup, job.Dropoff)
			busy := travel/robot.Speed + ev.cfg.ServiceTimeS
			t += busy
			battery -= busy * ev.cfg.BatteryDrainPerSec

			if late := t - float64(job.DeadlineTS); late > 0 {
				total += late * latenessWeight
			}
			total += travel * distanceWeight
			total += float64(6-job.Priority) * priorityWeight
			switch {
			case battery < 0:
				total += batteryDeadBase + -battery*batteryDeadSlope
			case battery < batteryLowLevel:
				total += batteryLowPenalty
			}

			pos = job.Dropoff
			count++
		}
		total += float64(count*count) * loadWeight
	}
	return total
}
