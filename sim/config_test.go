package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig_Values(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 5.0, cfg.TickHz)
	assert.Equal(t, 100.0, cfg.WorldSize)
	assert.Equal(t, 3600.0, cfg.MaxSimSeconds)
	assert.Equal(t, 5.0, cfg.ServiceTimeS)
	assert.Equal(t, 1.0, cfg.SpeedMin)
	assert.Equal(t, 2.0, cfg.SpeedMax)
	assert.Equal(t, 20.0, cfg.BatteryThreshold)
	assert.Equal(t, 5.0, cfg.ChargeRate)
	assert.Equal(t, 20.0, cfg.ChargeResumeThreshold)
}

func TestConfig_Derived(t *testing.T) {
	cfg := DefaultConfig()
	assert.InDelta(t, 0.2, cfg.Dt(), 1e-12)
	// 0.05 %/tick at 5 Hz is 0.25 %/sim-second.
	assert.InDelta(t, 0.25, cfg.BatteryDrainPerSec(), 1e-12)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"zero tick rate", func(c *Config) { c.TickHz = 0 }, false},
		{"negative world", func(c *Config) { c.WorldSize = -1 }, false},
		{"zero horizon", func(c *Config) { c.MaxSimSeconds = 0 }, false},
		{"inverted speeds", func(c *Config) { c.SpeedMin = 3; c.SpeedMax = 2 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
