package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fleetsim/fleetsim/dispatch"
	"github.com/fleetsim/fleetsim/fleet"
	"github.com/fleetsim/fleetsim/sim"
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Run the same scenario under both policies and print the metrics side by side",
	RunE: func(cmd *cobra.Command, args []string) error {
		setupLogging()
		simCfg, dispCfg, gaCfg := buildConfigs()

		baseline, genetic, err := fleet.Compare(context.Background(),
			seed, sim.Scale(scale), nRobots, nJobs,
			simCfg, dispCfg, dispatch.LocalOptimizer{Cfg: gaCfg})
		if err != nil {
			return err
		}

		fmt.Printf("scenario_hash: %s\n\n", baseline.ScenarioHash)
		fmt.Printf("%-22s %12s %12s\n", "metric", "baseline", "ga")
		rows := []struct {
			name     string
			b, g     float64
			integral bool
		}{
			{"completed_jobs", float64(baseline.Metrics.CompletedJobs), float64(genetic.Metrics.CompletedJobs), true},
			{"failed_jobs", float64(baseline.Metrics.FailedJobs), float64(genetic.Metrics.FailedJobs), true},
			{"on_time_rate", baseline.Metrics.OnTimeRate, genetic.Metrics.OnTimeRate, false},
			{"total_distance", baseline.Metrics.TotalDistance, genetic.Metrics.TotalDistance, false},
			{"avg_completion_time", baseline.Metrics.AvgCompletionTime, genetic.Metrics.AvgCompletionTime, false},
			{"max_lateness", baseline.Metrics.MaxLateness, genetic.Metrics.MaxLateness, false},
		}
		for _, row := range rows {
			if row.integral {
				fmt.Printf("%-22s %12.0f %12.0f\n", row.name, row.b, row.g)
			} else {
				fmt.Printf("%-22s %12.3f %12.3f\n", row.name, row.b, row.g)
			}
		}
		return nil
	},
}

func init() {
	compareCmd.Flags().Int64Var(&seed, "seed", 42, "Scenario seed")
	compareCmd.Flags().StringVar(&scale, "scale", "demo", "Fleet scale (mini, small, demo, large)")
	compareCmd.Flags().IntVar(&nRobots, "robots", 0, "Robot count override (0 = scale preset)")
	compareCmd.Flags().IntVar(&nJobs, "jobs", 0, "Job count override (0 = scale preset)")

	rootCmd.AddCommand(compareCmd)
}
