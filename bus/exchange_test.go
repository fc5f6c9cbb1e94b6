package bus

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchTopic(t *testing.T) {
	tests := []struct {
		pattern string
		key     string
		want    bool
	}{
		{"job.created", "job.created", true},
		{"job.created", "job.assigned", false},
		{"job.*", "job.created", true},
		{"job.*", "job", false},
		{"job.*", "job.a.b", false},
		{"*.created", "job.created", true},
		{"#", "anything", true},
		{"#", "a.b.c", true},
		{"job.#", "job", true},
		{"job.#", "job.a.b", true},
		{"job.#", "run.started", false},
	}
	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchTopic(tt.pattern, tt.key))
		})
	}
}

func payloadEnvelope(eventType string, n int) Envelope {
	return NewEnvelope(eventType, RunMeta{RunID: "r1", Mode: "baseline", Seed: 1, Scale: "mini"},
		float64(n), map[string]int{"n": n})
}

func TestExchange_RoutesByBinding(t *testing.T) {
	x := NewExchange()
	jobs := x.Bind("jobs", "job.*")
	all := x.Bind("all", "#")

	x.Publish(payloadEnvelope("job.created", 1))
	x.Publish(payloadEnvelope("robot.updated", 2))

	assert.Len(t, jobs.Drain(), 1)
	assert.Len(t, all.Drain(), 2)
}

func TestExchange_FIFOPerProducer(t *testing.T) {
	x := NewExchange()
	q := x.Bind("q", "#")
	for i := 0; i < 100; i++ {
		x.Publish(payloadEnvelope("snapshot.tick", i))
	}
	envs := q.Drain()
	require.Len(t, envs, 100)
	for i, env := range envs {
		var p map[string]int
		require.NoError(t, env.Decode(&p))
		assert.Equal(t, i, p["n"])
	}
}

func TestExchange_PerConsumerQueues(t *testing.T) {
	x := NewExchange()
	a := x.Bind("a", "job.*")
	b := x.Bind("b", "job.*")

	x.Publish(payloadEnvelope("job.created", 1))

	// Both consumers get their own copy; draining one does not affect
	// the other.
	assert.Len(t, a.Drain(), 1)
	assert.Len(t, b.Drain(), 1)
}

func TestExchange_Unbind(t *testing.T) {
	x := NewExchange()
	q := x.Bind("q", "#")
	x.Publish(payloadEnvelope("job.created", 1))
	x.Unbind(q)
	x.Publish(payloadEnvelope("job.created", 2))
	assert.Len(t, q.Drain(), 1, "nothing is delivered after unbind")
}

func TestExchange_LossyQueueShedsOldest(t *testing.T) {
	x := NewExchange()
	q := x.BindLossy("viewer", "#")

	total := defaultQueueDepth + 10
	for i := 0; i < total; i++ {
		x.Publish(payloadEnvelope("snapshot.tick", i))
	}
	envs := q.Drain()
	require.Len(t, envs, defaultQueueDepth)
	var first map[string]int
	require.NoError(t, envs[0].Decode(&first))
	assert.Equal(t, 10, first["n"], "the oldest envelopes are shed first")
}

func TestEnvelope_Fields(t *testing.T) {
	env := NewEnvelope("job.created", RunMeta{RunID: "run-9", Mode: "ga", Seed: 7, Scale: "demo"}, 3.2,
		map[string]string{"job_id": "job_1"})
	assert.Equal(t, "job.created", env.EventType)
	assert.Equal(t, "run-9", env.RunID)
	assert.Equal(t, "ga", env.Mode)
	assert.Equal(t, int64(7), env.Seed)
	assert.Equal(t, "demo", env.Scale)
	assert.Equal(t, 3.2, env.SimTimeS)
	assert.NotEmpty(t, env.EventID)
	assert.NotEmpty(t, env.TSUTC)
}

func TestEnvelope_DecodeMalformed(t *testing.T) {
	env := Envelope{EventType: "job.created", Payload: json.RawMessage(`{"broken":`)}
	var out map[string]any
	err := env.Decode(&out)
	require.Error(t, err)
	assert.Contains(t, fmt.Sprint(err), "job.created")
}
