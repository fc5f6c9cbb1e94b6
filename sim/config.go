package sim

import "fmt"

// Mode selects the assignment policy for a run.
type Mode string

const (
	ModeBaseline Mode = "baseline"
	ModeGA       Mode = "ga"
)

// Scale names a preset fleet size.
type Scale string

const (
	ScaleMini  Scale = "mini"
	ScaleSmall Scale = "small"
	ScaleDemo  Scale = "demo"
	ScaleLarge Scale = "large"
)

// scalePresets maps a scale to (n_robots, n_jobs) defaults.
var scalePresets = map[Scale][2]int{
	ScaleMini:  {5, 5},
	ScaleSmall: {5, 25},
	ScaleDemo:  {10, 50},
	ScaleLarge: {20, 100},
}

// ScalePreset returns the default robot and job counts for a scale.
func ScalePreset(s Scale) (robots, jobs int, err error) {
	p, ok := scalePresets[s]
	if !ok {
		return 0, 0, fmt.Errorf("unknown scale %q", s)
	}
	return p[0], p[1], nil
}

// RunContext is the immutable identity of one run. Robots and Jobs are the
// effective counts after applying overrides on top of the scale preset.
type RunContext struct {
	RunID  string
	Mode   Mode
	Seed   int64
	Scale  Scale
	Robots int
	Jobs   int
}

// NewRunContext resolves the scale preset and optional overrides
// (0 = use preset). A jobs override without a robots preset resolving to a
// positive count is rejected with an error.
func NewRunContext(runID string, mode Mode, seed int64, scale Scale, robotsOverride, jobsOverride int) (RunContext, error) {
	robots, jobs, err := ScalePreset(scale)
	if err != nil {
		return RunContext{}, err
	}
	if robotsOverride > 0 {
		robots = robotsOverride
	}
	if jobsOverride > 0 {
		jobs = jobsOverride
	}
	if robotsOverride < 0 || jobsOverride < 0 {
		return RunContext{}, fmt.Errorf("negative fleet override (robots=%d jobs=%d)", robotsOverride, jobsOverride)
	}
	if jobsOverride > 0 && robots <= 0 {
		return RunContext{}, fmt.Errorf("jobs override %d without any robots", jobsOverride)
	}
	if mode != ModeBaseline && mode != ModeGA {
		return RunContext{}, fmt.Errorf("unknown mode %q", mode)
	}
	return RunContext{
		RunID:  runID,
		Mode:   mode,
		Seed:   seed,
		Scale:  scale,
		Robots: robots,
		Jobs:   jobs,
	}, nil
}

// Config groups the simulation engine parameters.
type Config struct {
	TickHz        float64 // ticks per simulated second
	WorldSize     float64 // side length of the square world
	MaxSimSeconds float64 // hard horizon for a run
	ServiceTimeS  float64 // dwell time at a pickup
	SpeedMin      float64 // lower bound of the robot speed draw
	SpeedMax      float64 // upper bound of the robot speed draw
	// BatteryDrainPerTick is the percent drained each tick by a non-idle,
	// non-charging robot. 0.05 %/tick at 5 Hz is 0.25 %/sim-second, slow
	// enough that demo-scale runs deplete only occasionally.
	BatteryDrainPerTick   float64
	ChargeRate            float64 // percent regained per sim-second while charging
	ChargeResumeThreshold float64 // battery level at which a charging robot resumes
	// BatteryThreshold gates assignments: a robot below it (or charging)
	// is not eligible for new work. The dispatcher applies the same gate
	// on its projection.
	BatteryThreshold float64
}

// DefaultConfig returns the documented engine defaults.
func DefaultConfig() Config {
	return Config{
		TickHz:                5,
		WorldSize:             100,
		MaxSimSeconds:         3600,
		ServiceTimeS:          5,
		SpeedMin:              1.0,
		SpeedMax:              2.0,
		BatteryDrainPerTick:   0.05,
		ChargeRate:            5,
		ChargeResumeThreshold: 20,
		BatteryThreshold:      20,
	}
}

// Dt returns the simulated seconds advanced per tick.
func (c Config) Dt() float64 {
	return 1 / c.TickHz
}

// BatteryDrainPerSec returns the drain rate in percent per sim-second.
// The GA fitness model uses the same constant as the engine.
func (c Config) BatteryDrainPerSec() float64 {
	return c.BatteryDrainPerTick * c.TickHz
}

// Validate rejects configurations the engine cannot run.
func (c Config) Validate() error {
	if c.TickHz <= 0 {
		return fmt.Errorf("tick_hz must be positive, got %v", c.TickHz)
	}
	if c.WorldSize <= 0 {
		return fmt.Errorf("world_size must be positive, got %v", c.WorldSize)
	}
	if c.MaxSimSeconds <= 0 {
		return fmt.Errorf("max_sim_seconds must be positive, got %v", c.MaxSimSeconds)
	}
	if c.SpeedMin <= 0 || c.SpeedMax < c.SpeedMin {
		return fmt.Errorf("invalid speed range [%v, %v]", c.SpeedMin, c.SpeedMax)
	}
	return nil
}
