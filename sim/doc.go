// Package sim provides the deterministic world simulation for an AMR
// fleet: scenario generation, the discrete-time tick engine, and metrics.
//
// # Reading Guide
//
// Start with these three files to understand the engine:
//   - types.go: Robot and Job records and their state machines
//   - scenario.go: seeded world generation and the reproducibility hash
//   - simulator.go: the tick loop, kinematics, battery model, emissions
//
// # Architecture
//
// The simulator is the sole owner of world truth for a run. It consumes
// job.assigned commands from the bus and emits job/robot/snapshot/
// telemetry/run events; the dispatcher holds only a projection built from
// those events. Every random draw comes from a SeedBank stream (rng.go)
// so a run is a pure function of its seed and configuration.
package sim
