// Package planner implements the batch strategy (C7) and task planner (C8):
// deciding which enabled circuits are due today, pre-computing their
// weather-adjusted volumes, and grouping the survivors into batches.
package planner

import (
	"sort"

	"github.com/lukassojak/Smart-Irrigation-System/internal/model"
)

// Strategy groups a set of due circuits into ordered batches. The initial
// implementation (SingleBatch) runs everything in parallel in one batch;
// the interface leaves room for sequential or flow-capped strategies
// without the planner needing to change (§4.7).
type Strategy interface {
	Plan(circuits []model.CircuitRef) [][]model.CircuitRef
}

// SingleBatch places every due circuit into one batch, ordered by circuit
// id ascending (§4.7 tie-break rule).
type SingleBatch struct{}

// Plan implements Strategy.
func (SingleBatch) Plan(circuits []model.CircuitRef) [][]model.CircuitRef {
	if len(circuits) == 0 {
		return nil
	}

	ordered := make([]model.CircuitRef, len(circuits))
	copy(ordered, circuits)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	return [][]model.CircuitRef{ordered}
}
