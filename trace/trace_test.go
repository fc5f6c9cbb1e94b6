package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidLevel(t *testing.T) {
	assert.True(t, IsValidLevel("none"))
	assert.True(t, IsValidLevel("decisions"))
	assert.True(t, IsValidLevel(""))
	assert.False(t, IsValidLevel("verbose"))
}

func TestNew_NoneIsNil(t *testing.T) {
	assert.Nil(t, New(LevelNone))
	assert.Nil(t, New(""))
	assert.NotNil(t, New(LevelDecisions))
}

func TestNilTraceIsSafe(t *testing.T) {
	var dt *DecisionTrace
	dt.RecordAssignment(AssignmentRecord{JobID: "job_1"})
	assert.Nil(t, dt.CountByTrigger())
}

func TestCountByTrigger(t *testing.T) {
	dt := New(LevelDecisions)
	dt.RecordAssignment(AssignmentRecord{Trigger: "initial", JobID: "job_1"})
	dt.RecordAssignment(AssignmentRecord{Trigger: "initial", JobID: "job_2"})
	dt.RecordAssignment(AssignmentRecord{Trigger: "idle_gap", JobID: "job_3"})
	assert.Equal(t, map[string]int{"initial": 2, "idle_gap": 1}, dt.CountByTrigger())
}
