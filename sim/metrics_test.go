package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeMetrics(t *testing.T) {
	robots := []*Robot{
		{ID: 1, distance: 12.5},
		{ID: 2, distance: 7.5},
	}
	jobs := []*Job{
		{ID: "job_1", DeadlineTS: 100, State: JobCompleted, CreatedSimTS: 0, CompletedSimTS: 80},
		{ID: "job_2", DeadlineTS: 50, State: JobCompleted, CreatedSimTS: 0, CompletedSimTS: 60},
		{ID: "job_3", DeadlineTS: 40, State: JobFailed},
		{ID: "job_4", DeadlineTS: 40, State: JobPending},
	}

	m := ComputeMetrics(robots, jobs)
	assert.Equal(t, 2, m.CompletedJobs)
	assert.Equal(t, 1, m.FailedJobs)
	assert.Equal(t, 4, m.TotalJobs)
	assert.LessOrEqual(t, m.CompletedJobs+m.FailedJobs, m.TotalJobs)
	// One of four jobs landed on time.
	assert.InDelta(t, 0.25, m.OnTimeRate, 1e-12)
	assert.InDelta(t, 20.0, m.TotalDistance, 1e-12)
	assert.InDelta(t, 70.0, m.AvgCompletionTime, 1e-12)
	// job_2 finished 10 s past its deadline.
	assert.InDelta(t, 10.0, m.MaxLateness, 1e-12)
}

func TestComputeMetrics_Empty(t *testing.T) {
	m := ComputeMetrics(nil, nil)
	assert.Equal(t, 0, m.TotalJobs)
	assert.Equal(t, 0.0, m.OnTimeRate)
	assert.Equal(t, 0.0, m.AvgCompletionTime)
}
