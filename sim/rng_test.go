package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedBank_SameSeedSameSequences(t *testing.T) {
	a := NewSeedBank(42)
	b := NewSeedBank(42)

	for i := 0; i < 5; i++ {
		require.Equal(t,
			a.Stream(StreamPlanner).Float64(),
			b.Stream(StreamPlanner).Float64(),
			"draw %d diverged between identically seeded banks", i)
	}
}

func TestSeedBank_StreamsAreIndependent(t *testing.T) {
	// Heavy use of the scenario stream must not move the planner stream.
	busy := NewSeedBank(42)
	for i := 0; i < 100; i++ {
		busy.Stream(StreamScenario).Float64()
	}

	fresh := NewSeedBank(42)
	assert.Equal(t,
		fresh.Stream(StreamPlanner).Float64(),
		busy.Stream(StreamPlanner).Float64())
}

func TestSeedBank_StreamIsCached(t *testing.T) {
	b := NewSeedBank(7)
	assert.Equal(t, int64(7), b.Seed())
	// The same name must hand back the same generator so draw positions
	// carry across call sites.
	assert.Same(t, b.Stream(StreamScenario), b.Stream(StreamScenario))
}

func TestSeedBank_DistinctSeedsAndStreamsDiffer(t *testing.T) {
	tests := []struct {
		name         string
		seedA, seedB int64
		strA, strB   string
	}{
		{"different seeds", 1, 2, StreamPlanner, StreamPlanner},
		{"different streams", 1, 1, StreamScenario, StreamPlanner},
		{"sign flip", 5, -5, StreamScenario, StreamScenario},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewSeedBank(tt.seedA).Stream(tt.strA).Float64()
			b := NewSeedBank(tt.seedB).Stream(tt.strB).Float64()
			assert.NotEqual(t, a, b)
		})
	}
}

func TestDeriveStreamSeed_Stable(t *testing.T) {
	// The derivation is pure: same inputs, same stream seed.
	assert.Equal(t, deriveStreamSeed(42, StreamScenario), deriveStreamSeed(42, StreamScenario))
	assert.NotEqual(t, deriveStreamSeed(42, StreamScenario), deriveStreamSeed(42, StreamPlanner))
	assert.NotEqual(t, deriveStreamSeed(0, StreamScenario), deriveStreamSeed(1, StreamScenario))
}
