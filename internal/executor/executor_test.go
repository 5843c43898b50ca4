package executor

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	circ "github.com/lukassojak/Smart-Irrigation-System/internal/circuit"
	"github.com/lukassojak/Smart-Irrigation-System/internal/events"
	"github.com/lukassojak/Smart-Irrigation-System/internal/model"
	"github.com/lukassojak/Smart-Irrigation-System/internal/relay"
	"github.com/lukassojak/Smart-Irrigation-System/internal/statemanager"
	"github.com/lukassojak/Smart-Irrigation-System/internal/threadmanager"
	"github.com/lukassojak/Smart-Irrigation-System/internal/weatherprovider"
)

func testCircuitConfig(id int) model.CircuitConfig {
	return model.CircuitConfig{
		ID: id, Name: "c", Enabled: true, AreaMode: true,
		TargetMM: 1, AreaM2: 1, // base volume 1L
		Drippers: model.DripperInventory{3600: 1}, // 1s duration
	}
}

func testCircuit(id int, bus *events.Bus) *circ.Circuit {
	driver := relay.NewSimulatedDriver(id, zerolog.Nop())
	return circ.New(testCircuitConfig(id), driver, bus, zerolog.Nop())
}

func testStates(t *testing.T, ids ...int) *statemanager.Manager {
	t.Helper()
	cfgs := make([]model.CircuitConfig, len(ids))
	for i, id := range ids {
		cfgs[i] = testCircuitConfig(id)
	}
	states := statemanager.New(t.TempDir(), zerolog.Nop())
	require.NoError(t, states.InitFromDisk(cfgs))
	return states
}

func TestRunBatches_RunsEachCircuitInBatch(t *testing.T) {
	threads := threadmanager.New(zerolog.Nop())
	bus := events.NewBus(zerolog.Nop())
	states := testStates(t, 1, 2)
	sim := weatherprovider.NewSimulator(model.StandardConditions{})
	global := model.GlobalConfig{Limits: model.IrrigationLimits{MinPercent: 20, MaxPercent: 300}}

	e := New(threads, states, bus, sim, global, zerolog.Nop())

	circuits := map[int]*circ.Circuit{1: testCircuit(1, bus), 2: testCircuit(2, bus)}
	batches := [][]model.CircuitRef{{{ID: 1}, {ID: 2}}}

	e.RunBatches(context.Background(), batches, circuits, model.ModeManual, map[int]float64{1: 1, 2: 1})

	assert.Empty(t, threads.ListActive(threadmanager.TaskIrrigation))
}

func TestRunBatches_RecordsResultAndTransitionsState(t *testing.T) {
	threads := threadmanager.New(zerolog.Nop())
	bus := events.NewBus(zerolog.Nop())
	states := testStates(t, 1)
	sim := weatherprovider.NewSimulator(model.StandardConditions{})
	global := model.GlobalConfig{Limits: model.IrrigationLimits{MinPercent: 20, MaxPercent: 300}}

	e := New(threads, states, bus, sim, global, zerolog.Nop())

	circuits := map[int]*circ.Circuit{1: testCircuit(1, bus)}
	batches := [][]model.CircuitRef{{{ID: 1}}}

	e.RunBatches(context.Background(), batches, circuits, model.ModeManual, map[int]float64{1: 1})

	snap, ok := states.Get(1)
	require.True(t, ok)
	assert.Equal(t, model.CircuitIdle, snap.CircuitState)
	require.NotNil(t, snap.LastOutcome)
	assert.Equal(t, model.OutcomeSuccess, *snap.LastOutcome)
	assert.Equal(t, 1.0, snap.LastVolumeL)
}

func TestRunBatches_SequentialBatchesDoNotOverlap(t *testing.T) {
	threads := threadmanager.New(zerolog.Nop())
	bus := events.NewBus(zerolog.Nop())
	states := testStates(t, 1, 2)
	sim := weatherprovider.NewSimulator(model.StandardConditions{})
	global := model.GlobalConfig{Limits: model.IrrigationLimits{MinPercent: 20, MaxPercent: 300}}

	e := New(threads, states, bus, sim, global, zerolog.Nop())

	circuits := map[int]*circ.Circuit{1: testCircuit(1, bus), 2: testCircuit(2, bus)}
	batches := [][]model.CircuitRef{{{ID: 1}}, {{ID: 2}}}

	start := time.Now()
	e.RunBatches(context.Background(), batches, circuits, model.ModeManual, map[int]float64{1: 1, 2: 1})
	elapsed := time.Since(start)

	// Each batch takes ~1s; sequential batches should take >= ~2s, not ~1s.
	assert.GreaterOrEqual(t, elapsed, 1800*time.Millisecond)
}

func TestStopAll_IsIdempotent(t *testing.T) {
	threads := threadmanager.New(zerolog.Nop())
	bus := events.NewBus(zerolog.Nop())
	states := testStates(t, 1)
	sim := weatherprovider.NewSimulator(model.StandardConditions{})
	global := model.GlobalConfig{}

	e := New(threads, states, bus, sim, global, zerolog.Nop())
	require.NotPanics(t, func() {
		e.StopAll()
		e.StopAll()
	})
}
