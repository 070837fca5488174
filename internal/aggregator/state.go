// Package aggregator runs refresh cycles: throttled adapter batches,
// fingerprinting, insert-if-absent ingestion and the CycleState update.
//
// Cycle lifecycle:
//
//	IDLE ──RunCycle──► RUNNING ──done / aborted──► IDLE
//
// A trigger that arrives while RUNNING is dropped with ErrCycleRunning.
package aggregator

import "fmt"

// State is the orchestrator's cycle state.
type State int32

const (
	StateIdle State = iota
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}
