// Package executor implements the irrigation executor (C9): it runs planned
// batches sequentially, launching one IRRIGATION worker per circuit through
// the thread manager, and exposes on_start/on_finish/on_fatal lifecycle
// callbacks via the shared event bus.
package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lukassojak/Smart-Irrigation-System/internal/circuit"
	"github.com/lukassojak/Smart-Irrigation-System/internal/events"
	"github.com/lukassojak/Smart-Irrigation-System/internal/model"
	"github.com/lukassojak/Smart-Irrigation-System/internal/statemanager"
	"github.com/lukassojak/Smart-Irrigation-System/internal/threadmanager"
	"github.com/lukassojak/Smart-Irrigation-System/internal/weatherprovider"
)

// perWorkerJoinTimeout and stopAllTimeout match the join deadlines in §5
// Timeouts.
const (
	perWorkerJoinTimeout = 10 * time.Second
	stopAllTimeout       = 30 * time.Second
)

// Executor runs batches of circuits, one IRRIGATION worker per circuit at a
// time, via the thread manager.
type Executor struct {
	threads  *threadmanager.Manager
	states   *statemanager.Manager
	bus      *events.Bus
	weather  weatherprovider.Provider
	global   model.GlobalConfig
	log      zerolog.Logger

	mu       sync.Mutex
	stopping bool
	stopCh   chan struct{}
}

// New builds an Executor. threads is shared with the rest of the controller
// so ActiveCount/ListActive reflect executor-spawned workers too. states is
// the circuit state manager (C5); every dispatched worker drives it through
// start/complete so zones_state.json and irrigation_log.json reflect real
// irrigation runs, not just weather-skip decisions.
func New(threads *threadmanager.Manager, states *statemanager.Manager, bus *events.Bus, weather weatherprovider.Provider, global model.GlobalConfig, log zerolog.Logger) *Executor {
	return &Executor{
		threads: threads,
		states:  states,
		bus:     bus,
		weather: weather,
		global:  global,
		log:     log.With().Str("component", "executor").Logger(),
		stopCh:  make(chan struct{}),
	}
}

// resultEvent maps a terminal Outcome to the C5 transition that retires the
// circuit out of IRRIGATING (§4.5 transitions table). SKIPPED is not
// expected here — the planner filters skip decisions out before batching —
// but AUTO mode re-checks weather inside Circuit.Irrigate itself, so a late
// skip is treated as a fault rather than left unmapped.
func resultEvent(outcome model.Outcome) statemanager.Event {
	switch outcome {
	case model.OutcomeSuccess:
		return statemanager.EventComplete
	case model.OutcomeStopped:
		return statemanager.EventStop
	default:
		return statemanager.EventFault
	}
}

// RunBatches executes each batch in circuits sequentially; the next batch
// starts only after every worker in the prior batch has been joined (§5
// Ordering guarantees).
func (e *Executor) RunBatches(ctx context.Context, batches [][]model.CircuitRef, circuits map[int]*circuit.Circuit, mode model.IrrigationMode, requestedLiters map[int]float64) {
	for _, batch := range batches {
		e.runBatch(ctx, batch, circuits, mode, requestedLiters)
	}
}

func (e *Executor) runBatch(ctx context.Context, batch []model.CircuitRef, circuits map[int]*circuit.Circuit, mode model.IrrigationMode, requestedLiters map[int]float64) {
	var wg sync.WaitGroup

	for _, ref := range batch {
		if ctx.Err() != nil {
			e.log.Warn().Int("circuit_id", ref.ID).Err(ctx.Err()).Msg("batch dispatch cancelled before circuit started")
			break
		}

		c, ok := circuits[ref.ID]
		if !ok {
			continue
		}

		wg.Add(1)
		key := fmt.Sprintf("%d", ref.ID)
		liters := requestedLiters[ref.ID]

		err := e.threads.Start(threadmanager.TaskIrrigation, key, func(workerCtx context.Context) error {
			defer wg.Done()

			if err := e.states.Transition(ref.ID, statemanager.EventStart); err != nil {
				e.log.Error().Err(err).Int("circuit_id", ref.ID).Msg("failed to transition circuit to IRRIGATING")
			}

			result := c.Irrigate(workerCtx, mode, liters, e.weather, e.global.Standard, e.global.Corrections, e.global.Limits)

			if err := e.states.Transition(ref.ID, resultEvent(result.Outcome)); err != nil {
				e.log.Error().Err(err).Int("circuit_id", ref.ID).Str("outcome", string(result.Outcome)).
					Msg("failed to transition circuit out of IRRIGATING")
			}
			if err := e.states.RecordResult(ref.ID, result); err != nil {
				e.log.Error().Err(err).Int("circuit_id", ref.ID).Msg("failed to record irrigation result")
			}

			e.bus.Emit(events.CircuitFinished, "executor", map[string]interface{}{
				"circuit_id": ref.ID,
				"outcome":    string(result.Outcome),
			})
			return nil
		}, nil)

		if err != nil {
			wg.Done()
			e.log.Error().Err(err).Int("circuit_id", ref.ID).Msg("failed to start irrigation worker")
			continue
		}

		e.bus.Emit(events.CircuitStarted, "executor", map[string]interface{}{"circuit_id": ref.ID})
	}

	wg.Wait()
}

// StopAll sets the stop-event, signals cancellation to every running
// IRRIGATION worker and awaits bounded join. If join_all exceeds
// stopAllTimeout, it emits ExecutorFatal via the event bus so C13 can
// transition to ERROR (§4.8).
func (e *Executor) StopAll() {
	e.mu.Lock()
	if e.stopping {
		e.mu.Unlock()
		return
	}
	e.stopping = true
	close(e.stopCh)
	e.mu.Unlock()

	if err := e.joinAllBounded(); err != nil {
		e.log.Error().Err(err).Msg("stop_all exceeded join deadline")
		e.bus.Emit(events.ExecutorFatal, "executor", map[string]interface{}{"reason": err.Error()})
	}

	e.mu.Lock()
	e.stopping = false
	e.stopCh = make(chan struct{})
	e.mu.Unlock()
}

// joinAllBounded stops every IRRIGATION worker, capping each individual
// join at perWorkerJoinTimeout and the whole sweep at stopAllTimeout (§5
// Timeouts). It keeps going after a per-worker timeout so one stuck worker
// doesn't block cancellation of the rest; the first timeout is returned.
func (e *Executor) joinAllBounded() error {
	deadline := time.Now().Add(stopAllTimeout)
	var firstErr error

	for _, key := range e.threads.ListActive(threadmanager.TaskIrrigation) {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			remaining = 0
		}
		if remaining > perWorkerJoinTimeout {
			remaining = perWorkerJoinTimeout
		}

		if err := e.threads.Stop(threadmanager.TaskIrrigation, key, remaining); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
