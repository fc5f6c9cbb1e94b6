package bus

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"
)

// Routing keys published and consumed by the core components.
const (
	RunStarted        = "run.started"
	RunCompleted      = "run.completed"
	JobCreated        = "job.created"
	JobAssigned       = "job.assigned"
	JobCompleted      = "job.completed"
	JobFailed         = "job.failed"
	RobotUpdated      = "robot.updated"
	SnapshotTick      = "snapshot.tick"
	TelemetryReceived = "telemetry.received"
)

// Envelope is the wire format shared by every event on the exchange.
// EventType doubles as the routing key.
type Envelope struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	RunID     string          `json:"run_id"`
	Mode      string          `json:"mode"`
	Seed      int64           `json:"seed"`
	Scale     string          `json:"scale"`
	SimTimeS  float64         `json:"sim_time_s"`
	TSUTC     string          `json:"ts_utc"`
	Payload   json.RawMessage `json:"payload"`
}

// Decode unmarshals the envelope payload into v. A decode error means the
// payload is malformed; callers log and drop, never requeue.
func (e Envelope) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.EventType, err)
	}
	return nil
}

// RunMeta identifies the run an envelope belongs to. Producers hold one per
// run and stamp every envelope with it.
type RunMeta struct {
	RunID string
	Mode  string
	Seed  int64
	Scale string
}

var eventSeq atomic.Uint64

// NewEnvelope builds an envelope for the given routing key, stamping run
// metadata, simulation time, a process-unique event id, and the wall-clock
// publish time. The payload must marshal; a marshal failure is a programming
// error and panics.
func NewEnvelope(eventType string, meta RunMeta, simTimeS float64, payload any) Envelope {
	raw, err := json.Marshal(payload)
	if err != nil {
		panic(fmt.Sprintf("bus: marshal %s payload: %v", eventType, err))
	}
	return Envelope{
		EventID:   fmt.Sprintf("%s-%d", meta.RunID, eventSeq.Add(1)),
		EventType: eventType,
		RunID:     meta.RunID,
		Mode:      meta.Mode,
		Seed:      meta.Seed,
		Scale:     meta.Scale,
		SimTimeS:  simTimeS,
		TSUTC:     time.Now().UTC().Format(time.RFC3339Nano),
		Payload:   raw,
	}
}
