package sim

// Event payloads carried inside bus envelopes. Field names follow the wire
// contract; envelopes repeat run_id and sim_time_s at the top level, the
// payloads carry them as well so external consumers can work from either.

// RunStartedPayload is injected at the boundary to start a run.
// Robots and Jobs are optional overrides on top of the scale preset
// (0 = use preset).
type RunStartedPayload struct {
	RunID  string `json:"run_id"`
	Mode   string `json:"mode"`
	Seed   int64  `json:"seed"`
	Scale  string `json:"scale"`
	Robots int    `json:"robots,omitempty"`
	Jobs   int    `json:"jobs,omitempty"`
}

// JobCreatedPayload announces a generated job to the dispatcher.
type JobCreatedPayload struct {
	RunID      string  `json:"run_id"`
	JobID      string  `json:"job_id"`
	PickupX    float64 `json:"pickup_x"`
	PickupY    float64 `json:"pickup_y"`
	DropoffX   float64 `json:"dropoff_x"`
	DropoffY   float64 `json:"dropoff_y"`
	DeadlineTS int64   `json:"deadline_ts"`
	Priority   int     `json:"priority"`
	SimTimeS   float64 `json:"sim_time_s"`
}

// RobotUpdatedPayload reports a robot state transition or a throttled
// position update. RunID, RobotID, State, and SimTimeS are required; the
// rest are informational.
type RobotUpdatedPayload struct {
	RunID        string  `json:"run_id"`
	RobotID      int     `json:"robot_id"`
	State        string  `json:"state"`
	SimTimeS     float64 `json:"sim_time_s"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	Speed        float64 `json:"speed"`
	Battery      float64 `json:"battery"`
	CurrentJobID string  `json:"current_job_id,omitempty"`
}

// AssignCommand is the dispatcher's job.assigned command. The simulator
// materialises it on the next tick; IdempotencyKey (run_id:job_id) drops
// duplicates.
type AssignCommand struct {
	RunID          string  `json:"run_id"`
	JobID          string  `json:"job_id"`
	RobotID        int     `json:"robot_id"`
	SimTimeS       float64 `json:"sim_time_s"`
	Reason         string  `json:"reason"`
	IdempotencyKey string  `json:"idempotency_key"`
}

// JobTerminalPayload is shared by job.completed and job.failed.
type JobTerminalPayload struct {
	RunID     string  `json:"run_id"`
	JobID     string  `json:"job_id"`
	SimTimeS  float64 `json:"sim_time_s"`
	LatenessS float64 `json:"lateness_s"`
}

// Snapshot is the full world state published once per tick.
type Snapshot struct {
	Robots []*Robot `json:"robots"`
	Jobs   []*Job   `json:"jobs"`
}

// SnapshotPayload wraps a snapshot for the snapshot.tick stream.
type SnapshotPayload struct {
	RunID    string   `json:"run_id"`
	SimTimeS float64  `json:"sim_time_s"`
	Snapshot Snapshot `json:"snapshot"`
}

// TelemetryPayload is emitted once per robot per whole sim-second.
type TelemetryPayload struct {
	RunID    string  `json:"run_id"`
	SimTimeS float64 `json:"sim_time_s"`
	RobotID  int     `json:"robot_id"`
	State    string  `json:"state"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Battery  float64 `json:"battery"`
}

// RunCompletedPayload closes a run. Failed marks runs rejected at scenario
// time; Metrics is zero-valued in that case.
type RunCompletedPayload struct {
	RunID        string  `json:"run_id"`
	SimTimeS     float64 `json:"sim_time_s"`
	Metrics      Metrics `json:"metrics"`
	ScenarioHash string  `json:"scenario_hash,omitempty"`
	Failed       bool    `json:"failed,omitempty"`
	Error        string  `json:"error,omitempty"`
}
