// Package trace records dispatcher assignment decisions for offline
// analysis of a run.
package trace

// Level controls the verbosity of decision tracing.
type Level string

const (
	// LevelNone disables tracing (zero overhead).
	LevelNone Level = "none"
	// LevelDecisions captures every assignment decision with its trigger.
	LevelDecisions Level = "decisions"
)

// validLevels maps accepted trace level strings.
var validLevels = map[Level]bool{
	LevelNone:      true,
	LevelDecisions: true,
	"":             true, // empty defaults to none
}

// IsValidLevel returns true if the given level string is recognized.
func IsValidLevel(level string) bool {
	return validLevels[Level(level)]
}

// AssignmentRecord is one dispatcher decision: which policy, fired by
// which trigger, bound which job to which robot.
type AssignmentRecord struct {
	RunID    string  `json:"run_id"`
	SimTimeS float64 `json:"sim_time_s"`
	Policy   string  `json:"policy"`
	Trigger  string  `json:"trigger"`
	JobID    string  `json:"job_id"`
	RobotID  int     `json:"robot_id"`
	Score    float64 `json:"score,omitempty"`
}

// DecisionTrace collects assignment records during a run. A nil
// *DecisionTrace is valid and records nothing.
type DecisionTrace struct {
	Level       Level
	Assignments []AssignmentRecord
}

// New creates a DecisionTrace ready for recording, or nil when the level
// disables tracing.
func New(level Level) *DecisionTrace {
	if level == "" || level == LevelNone {
		return nil
	}
	return &DecisionTrace{
		Level:       level,
		Assignments: make([]AssignmentRecord, 0),
	}
}

// RecordAssignment appends an assignment decision record.
func (dt *DecisionTrace) RecordAssignment(rec AssignmentRecord) {
	if dt == nil {
		return
	}
	dt.Assignments = append(dt.Assignments, rec)
}

// CountByTrigger summarizes how many assignments each trigger produced.
func (dt *DecisionTrace) CountByTrigger() map[string]int {
	if dt == nil {
		return nil
	}
	out := make(map[string]int)
	for _, rec := range dt.Assignments {
		out[rec.Trigger]++
	}
	return out
}
