package sim

import "fmt"

// Metrics aggregates fleet-level statistics for final reporting, written
// once at run end.
type Metrics struct {
	CompletedJobs int     `json:"completed_jobs"`
	FailedJobs    int     `json:"failed_jobs"`
	TotalJobs     int     `json:"total_jobs"`
	OnTimeRate    float64 `json:"on_time_rate"`
	TotalDistance float64 `json:"total_distance"`
	// AvgCompletionTime is the mean (completed - created) over completed
	// jobs, in sim-seconds.
	AvgCompletionTime float64 `json:"avg_completion_time"`
	MaxLateness       float64 `json:"max_lateness"`
}

// ComputeMetrics derives run metrics from the final world state.
func ComputeMetrics(robots []*Robot, jobs []*Job) Metrics {
	m := Metrics{TotalJobs: len(jobs)}

	onTime := 0
	completionSum := 0.0
	for _, j := range jobs {
		switch j.State {
		case JobCompleted:
			m.CompletedJobs++
			completionSum += j.CompletedSimTS - j.CreatedSimTS
			if j.CompletedSimTS <= float64(j.DeadlineTS) {
				onTime++
			}
			if late := j.CompletedSimTS - float64(j.DeadlineTS); late > m.MaxLateness {
				m.MaxLateness = late
			}
		case JobFailed:
			m.FailedJobs++
		}
	}
	if m.TotalJobs > 0 {
		m.OnTimeRate = float64(onTime) / float64(m.TotalJobs)
	}
	if m.CompletedJobs > 0 {
		m.AvgCompletionTime = completionSum / float64(m.CompletedJobs)
	}
	for _, r := range robots {
		m.TotalDistance += r.Distance()
	}
	return m
}

// Print displays the aggregated metrics at the end of a run.
func (m Metrics) Print() {
	fmt.Println("=== Run Metrics ===")
	fmt.Printf("Completed Jobs      : %d / %d\n", m.CompletedJobs, m.TotalJobs)
	fmt.Printf("Failed Jobs         : %d\n", m.FailedJobs)
	fmt.Printf("On-time Rate        : %.3f\n", m.OnTimeRate)
	fmt.Printf("Total Distance      : %.2f\n", m.TotalDistance)
	fmt.Printf("Avg Completion Time : %.2f s\n", m.AvgCompletionTime)
	fmt.Printf("Max Lateness        : %.2f s\n", m.MaxLateness)
}
