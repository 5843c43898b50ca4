package events

import "time"

// EventType identifies the kind of event carried on the Bus.
type EventType string

const (
	// CircuitStarted is emitted when a circuit's irrigation worker begins execution.
	CircuitStarted EventType = "circuit_started"
	// CircuitFinished is emitted when a circuit's irrigation worker reaches a terminal outcome.
	CircuitFinished EventType = "circuit_finished"
	// ControllerStateChanged is emitted whenever refreshState derives a new controller state.
	ControllerStateChanged EventType = "controller_state_changed"
	// ExecutorFatal is emitted when the executor cannot guarantee a clean stop.
	ExecutorFatal EventType = "executor_fatal"
	// PersistenceFatal is emitted when the state manager exhausts its
	// persistence retry budget (§7: PersistenceError -> ERROR).
	PersistenceFatal EventType = "persistence_fatal"
)

// Event is a single occurrence published on the Bus.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      map[string]interface{}
	Module    string
}
