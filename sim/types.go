package sim

import "math"

// Point is a position on the 2D world. Coordinates are real-valued and
// clamped to [0, world_size].
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Dist returns the Euclidean distance between two points.
func Dist(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// RobotState enumerates the robot state machine.
type RobotState string

const (
	RobotIdle            RobotState = "idle"
	RobotMovingToPickup  RobotState = "moving_to_pickup"
	RobotMovingToDropoff RobotState = "moving_to_dropoff"
	RobotServicing       RobotState = "servicing"
	RobotCharging        RobotState = "charging"
)

// JobState enumerates the job state lattice. Transitions are monotonic:
// pending → assigned → in_progress → {completed, failed}. A rejected
// assignment puts the job back to unassigned, from where it may be
// assigned again.
type JobState string

const (
	JobPending    JobState = "pending"
	JobUnassigned JobState = "unassigned"
	JobAssigned   JobState = "assigned"
	JobInProgress JobState = "in_progress"
	JobCompleted  JobState = "completed"
	JobFailed     JobState = "failed"
)

// Robot is the authoritative robot record held by the simulator. IDs are
// 1-based and ascending.
type Robot struct {
	ID      int        `json:"id"`
	X       float64    `json:"x"`
	Y       float64    `json:"y"`
	Speed   float64    `json:"speed"`
	Battery float64    `json:"battery"`
	State   RobotState `json:"state"`
	// CurrentJobID is empty when the robot has no job. A robot holds at
	// most one current job at any simulation instant.
	CurrentJobID string `json:"current_job_id,omitempty"`

	// pausedState remembers the pre-charging state so a drained robot can
	// re-enter it once recharged.
	pausedState RobotState
	// serviceLeftS counts down the remaining service time at a pickup.
	serviceLeftS float64
	// distance tallies |Δposition| accumulated during movement steps.
	distance float64
	// lastPosEmitS is the sim-second of the last position-only
	// robot.updated emission, used for throttling.
	lastPosEmitS int64
}

// Pos returns the robot's position as a Point.
func (r *Robot) Pos() Point {
	return Point{X: r.X, Y: r.Y}
}

// Distance returns the total distance the robot has travelled.
func (r *Robot) Distance() float64 {
	return r.distance
}

// Job is the authoritative job record held by the simulator. IDs are the
// stable strings "job_1", "job_2", ...
type Job struct {
	ID       string `json:"id"`
	Pickup   Point  `json:"pickup"`
	Dropoff  Point  `json:"dropoff"`
	// DeadlineTS is in integer simulation seconds.
	DeadlineTS int64    `json:"deadline_ts"`
	Priority   int      `json:"priority"`
	State      JobState `json:"state"`
	// AssignedRobotID is 0 while unassigned.
	AssignedRobotID int     `json:"assigned_robot_id,omitempty"`
	CreatedSimTS    float64 `json:"created_sim_ts"`
	StartedSimTS    float64 `json:"started_sim_ts,omitempty"`
	CompletedSimTS  float64 `json:"completed_sim_ts,omitempty"`
	// LatenessS is recorded signed at completion; penalty terms clamp it
	// at zero.
	LatenessS float64 `json:"lateness_s,omitempty"`
}

// Assignable reports whether the job may still accept an assignment
// command from the dispatcher.
func (j *Job) Assignable() bool {
	return j.State == JobPending || j.State == JobUnassigned
}

// Terminal reports whether the job has reached a terminal state.
func (j *Job) Terminal() bool {
	return j.State == JobCompleted || j.State == JobFailed
}
