// cmd/root.go
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fleetsim/fleetsim/bus"
	"github.com/fleetsim/fleetsim/dispatch"
	"github.com/fleetsim/fleetsim/fleet"
	"github.com/fleetsim/fleetsim/ga"
	"github.com/fleetsim/fleetsim/sim"
	"github.com/fleetsim/fleetsim/trace"
)

var (
	mode       string
	seed       int64
	scale      string
	nRobots    int
	nJobs      int
	logLevel   string
	traceLevel string

	scenarioFile string
	scenarioName string

	tickHz          float64
	worldSize       float64
	maxSimSeconds   float64
	serviceTime     float64
	speedMin        float64
	speedMax        float64
	batteryThresh   float64
	chargeRate      float64
	chargeResume    float64
	gaReplanS       float64
	gaPopulation    int
	gaGenerations   int
	gaElite         int
	gaMutationRate  float64
	gaCrossoverRate float64
)

var rootCmd = &cobra.Command{
	Use:   "fleetsim",
	Short: "Deterministic simulator and dispatcher for AMR pickup-and-dropoff fleets",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one run and print its metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		setupLogging()

		if scenarioName != "" {
			if err := loadScenarioPreset(scenarioFile, scenarioName); err != nil {
				return err
			}
		}
		runCtx, err := sim.NewRunContext(
			fmt.Sprintf("run-%s-%d", mode, seed),
			sim.Mode(mode), seed, sim.Scale(scale), nRobots, nJobs)
		if err != nil {
			return err
		}
		simCfg, dispCfg, gaCfg := buildConfigs()

		logrus.Infof("Starting %s run: seed=%d scale=%s robots=%d jobs=%d",
			runCtx.Mode, runCtx.Seed, runCtx.Scale, runCtx.Robots, runCtx.Jobs)

		res, err := fleet.Run(context.Background(), bus.NewExchange(), runCtx,
			simCfg, dispCfg, dispatch.LocalOptimizer{Cfg: gaCfg})
		if err != nil {
			return err
		}
		fmt.Printf("scenario_hash: %s\n", res.ScenarioHash)
		res.Metrics.Print()
		if counts := res.Trace.CountByTrigger(); counts != nil {
			fmt.Printf("assignments by trigger: %v\n", counts)
		}
		return nil
	},
}

func setupLogging() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
	if !trace.IsValidLevel(traceLevel) {
		logrus.Fatalf("Invalid trace level: %s", traceLevel)
	}
}

func buildConfigs() (sim.Config, dispatch.Config, ga.Config) {
	simCfg := sim.DefaultConfig()
	simCfg.TickHz = tickHz
	simCfg.WorldSize = worldSize
	simCfg.MaxSimSeconds = maxSimSeconds
	simCfg.ServiceTimeS = serviceTime
	simCfg.SpeedMin = speedMin
	simCfg.SpeedMax = speedMax
	simCfg.BatteryThreshold = batteryThresh
	simCfg.ChargeRate = chargeRate
	simCfg.ChargeResumeThreshold = chargeResume

	dispCfg := dispatch.DefaultConfig()
	dispCfg.BatteryThreshold = batteryThresh
	dispCfg.GAReplanIntervalS = gaReplanS
	dispCfg.TraceLevel = trace.Level(traceLevel)

	gaCfg := ga.DefaultConfig()
	gaCfg.PopulationSize = gaPopulation
	gaCfg.Generations = gaGenerations
	gaCfg.EliteSize = gaElite
	gaCfg.MutationRate = gaMutationRate
	gaCfg.CrossoverRate = gaCrossoverRate
	gaCfg.ServiceTimeS = simCfg.ServiceTimeS
	gaCfg.BatteryDrainPerSec = simCfg.BatteryDrainPerSec()

	return simCfg, dispCfg, gaCfg
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&logLevel, "log", "warn", "Log level (debug, info, warn, error)")
	pf.StringVar(&traceLevel, "trace", "none", "Decision trace level (none, decisions)")
	pf.Float64Var(&tickHz, "tick-hz", 5, "Simulation ticks per sim-second")
	pf.Float64Var(&worldSize, "world-size", 100, "Side length of the square world")
	pf.Float64Var(&maxSimSeconds, "max-sim-seconds", 3600, "Simulation horizon in sim-seconds")
	pf.Float64Var(&serviceTime, "service-time", 5, "Service time at a pickup in sim-seconds")
	pf.Float64Var(&speedMin, "speed-min", 1.0, "Minimum robot speed")
	pf.Float64Var(&speedMax, "speed-max", 2.0, "Maximum robot speed")
	pf.Float64Var(&batteryThresh, "battery-threshold", 20, "Battery percent below which robots take no new work")
	pf.Float64Var(&chargeRate, "charge-rate", 5, "Battery percent regained per sim-second while charging")
	pf.Float64Var(&chargeResume, "charge-resume", 20, "Battery percent at which a charging robot resumes")
	pf.Float64Var(&gaReplanS, "ga-replan-interval", 0, "Periodic GA replan interval in sim-seconds (0 = off)")
	pf.IntVar(&gaPopulation, "ga-population", 64, "GA population size")
	pf.IntVar(&gaGenerations, "ga-generations", 80, "GA generations per replan")
	pf.IntVar(&gaElite, "ga-elite", 4, "GA elite individuals carried unchanged")
	pf.Float64Var(&gaMutationRate, "ga-mutation", 0.10, "GA per-gene mutation rate")
	pf.Float64Var(&gaCrossoverRate, "ga-crossover", 0.90, "GA crossover rate")

	runCmd.Flags().StringVar(&mode, "mode", "baseline", "Assignment policy (baseline, ga)")
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Scenario seed")
	runCmd.Flags().StringVar(&scale, "scale", "demo", "Fleet scale (mini, small, demo, large)")
	runCmd.Flags().IntVar(&nRobots, "robots", 0, "Robot count override (0 = scale preset)")
	runCmd.Flags().IntVar(&nJobs, "jobs", 0, "Job count override (0 = scale preset)")
	runCmd.Flags().StringVar(&scenarioFile, "scenario-config", "scenarios.yaml", "Scenario preset file")
	runCmd.Flags().StringVar(&scenarioName, "scenario", "", "Named preset from the scenario config")

	rootCmd.AddCommand(runCmd)
}
