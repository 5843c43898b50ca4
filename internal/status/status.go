// Package status implements the status aggregator (C12): it composes each
// circuit's runtime status (if active), durable snapshot, and planned
// target volume (if any) into a single CircuitStatus for external
// MQTT/REST/CLI layers.
package status

import (
	"sort"

	circ "github.com/lukassojak/Smart-Irrigation-System/internal/circuit"
	"github.com/lukassojak/Smart-Irrigation-System/internal/model"
	"github.com/lukassojak/Smart-Irrigation-System/internal/statemanager"
)

// Aggregator composes CircuitStatus views from the live circuits and the
// durable state manager.
type Aggregator struct {
	circuits map[int]*circ.Circuit
	states   *statemanager.Manager
}

// New builds an Aggregator over the given circuits, keyed by circuit id.
func New(circuits map[int]*circ.Circuit, states *statemanager.Manager) *Aggregator {
	return &Aggregator{circuits: circuits, states: states}
}

// One composes the status for a single circuit id. plannedVolumeL is nil
// when no plan currently targets this circuit.
func (a *Aggregator) One(circuitID int, plannedVolumeL *float64) model.CircuitStatus {
	c, ok := a.circuits[circuitID]
	if !ok {
		return model.CircuitStatus{CircuitID: circuitID}
	}

	snap, _ := a.states.Get(circuitID)
	hasFault, faultReason := c.HasFault()

	out := model.CircuitStatus{
		CircuitID:      circuitID,
		Name:           c.Config().Name,
		State:          snap.CircuitState,
		LastOutcome:    snap.LastOutcome,
		LastIrrigation: snap.LastIrrigation,
		LastDurationS:  snap.LastDurationS,
		LastVolumeL:    snap.LastVolumeL,
		PlannedVolumeL: plannedVolumeL,
	}

	if snap.CircuitState == model.CircuitIrrigating {
		runtime := c.Runtime()
		out.Active = true
		out.Runtime = &runtime
	}
	if hasFault {
		if out.Runtime == nil {
			runtime := c.Runtime()
			out.Runtime = &runtime
		}
		out.Runtime.HasFault = true
		out.Runtime.FaultReason = faultReason
	}

	return out
}

// All composes the status for every known circuit, ordered by circuit id
// ascending.
func (a *Aggregator) All(plannedVolumes map[int]float64) []model.CircuitStatus {
	ids := make([]int, 0, len(a.circuits))
	for id := range a.circuits {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make([]model.CircuitStatus, 0, len(ids))
	for _, id := range ids {
		var planned *float64
		if v, ok := plannedVolumes[id]; ok {
			planned = &v
		}
		out = append(out, a.One(id, planned))
	}
	return out
}
