package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// ScenarioConfig is the YAML schema for named fleet presets, an
// alternative to spelling out --robots/--jobs/--world-size by hand.
type ScenarioConfig struct {
	Scenarios map[string]ScenarioPreset `yaml:"scenarios"`
}

type ScenarioPreset struct {
	Robots    int     `yaml:"robots"`
	Jobs      int     `yaml:"jobs"`
	WorldSize float64 `yaml:"world_size"`
	SpeedMin  float64 `yaml:"speed_min"`
	SpeedMax  float64 `yaml:"speed_max"`
}

// loadScenarioPreset reads a preset file and applies the named preset onto
// the flag-derived settings. Zero-valued preset fields leave the flag
// values untouched.
func loadScenarioPreset(path, name string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read scenario config: %w", err)
	}
	var cfg ScenarioConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse scenario config: %w", err)
	}
	preset, ok := cfg.Scenarios[name]
	if !ok {
		return fmt.Errorf("scenario %q not found in %s", name, path)
	}
	logrus.Infof("Using scenario preset %v", name)
	if preset.Robots > 0 {
		nRobots = preset.Robots
	}
	if preset.Jobs > 0 {
		nJobs = preset.Jobs
	}
	if preset.WorldSize > 0 {
		worldSize = preset.WorldSize
	}
	if preset.SpeedMin > 0 {
		speedMin = preset.SpeedMin
	}
	if preset.SpeedMax > 0 {
		speedMax = preset.SpeedMax
	}
	return nil
}
