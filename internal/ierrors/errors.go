// Package ierrors collects the typed error kinds that cross controller
// subsystem boundaries (§7 Error Handling Design). Callers distinguish them
// with errors.As/errors.Is rather than string matching.
package ierrors

import (
	"errors"
	"fmt"
)

// ConfigError is returned by the config loader on any invariant violation.
// It is always fatal: the node refuses to start.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s: %s", e.Field, e.Msg)
}

// ValveHardwareError is raised by the relay driver when set_state exhausts
// its bounded retries.
type ValveHardwareError struct {
	Pin int
	Err error
}

func (e *ValveHardwareError) Error() string {
	return fmt.Sprintf("valve hardware error on pin %d: %v", e.Pin, e.Err)
}

func (e *ValveHardwareError) Unwrap() error { return e.Err }

// IllegalStateTransition is raised by the circuit state manager when an
// event does not apply to a snapshot's current state (§4.5 transitions
// table). It signals a programmer error upstream; the manager does not
// mutate the snapshot when this is returned.
type IllegalStateTransition struct {
	CircuitID int
	From      string
	Event     string
}

func (e *IllegalStateTransition) Error() string {
	return fmt.Sprintf("circuit %d: illegal transition %q from state %q", e.CircuitID, e.Event, e.From)
}

// WorkerAlreadyExists is returned by the thread manager when a start is
// requested for a (task_type, key) pair that is already registered.
type WorkerAlreadyExists struct {
	TaskType string
	Key      string
}

func (e *WorkerAlreadyExists) Error() string {
	return fmt.Sprintf("worker already exists for %s/%s", e.TaskType, e.Key)
}

// WorkerStopTimeout is returned by the thread manager when a stop does not
// observe termination within its deadline. The controller treats this as
// fatal and transitions to ERROR.
type WorkerStopTimeout struct {
	TaskType string
	Key      string
	Waited   string
}

func (e *WorkerStopTimeout) Error() string {
	return fmt.Sprintf("worker %s/%s did not stop within %s", e.TaskType, e.Key, e.Waited)
}

// PersistenceError wraps a failure to read or write durable state after the
// circuit state manager's retry budget (3 attempts, exponential backoff) is
// exhausted. The controller transitions to ERROR on this error.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// WeatherFetchError is returned internally by the weather provider's
// transport; it is always caught by the provider itself and converted to
// standard conditions before reaching a caller. It is exported so tests can
// assert on the fallback path.
type WeatherFetchError struct {
	Err error
}

func (e *WeatherFetchError) Error() string {
	return fmt.Sprintf("weather fetch failed: %v", e.Err)
}

func (e *WeatherFetchError) Unwrap() error { return e.Err }

// ErrCancelObserved is not a failure: the circuit execute loop converts an
// observed cancellation into a STOPPED outcome rather than propagating this
// as an error.
var ErrCancelObserved = errors.New("cancel observed")
