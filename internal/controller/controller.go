// Package controller implements the controller core (C13): it owns every
// other subsystem, exposes the public start_auto_cycle/manual_irrigate/
// stop_all_irrigation/get_status API, and derives controller state from
// worker counts rather than persisting it.
package controller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	circ "github.com/lukassojak/Smart-Irrigation-System/internal/circuit"
	"github.com/lukassojak/Smart-Irrigation-System/internal/events"
	"github.com/lukassojak/Smart-Irrigation-System/internal/executor"
	"github.com/lukassojak/Smart-Irrigation-System/internal/ierrors"
	"github.com/lukassojak/Smart-Irrigation-System/internal/model"
	"github.com/lukassojak/Smart-Irrigation-System/internal/planner"
	"github.com/lukassojak/Smart-Irrigation-System/internal/relay"
	"github.com/lukassojak/Smart-Irrigation-System/internal/scheduler"
	"github.com/lukassojak/Smart-Irrigation-System/internal/statemanager"
	"github.com/lukassojak/Smart-Irrigation-System/internal/status"
	"github.com/lukassojak/Smart-Irrigation-System/internal/threadmanager"
	"github.com/lukassojak/Smart-Irrigation-System/internal/weathermodel"
	"github.com/lukassojak/Smart-Irrigation-System/internal/weatherprovider"
)

// shutdownJoinDeadline bounds how long Shutdown waits for outstanding
// workers before forcing relay-close regardless (§4.11, §5 Timeouts).
const shutdownJoinDeadline = 30 * time.Second

// Controller owns every subsystem instance for one running node (C13). A
// single Controller is constructed per process and passed explicitly to any
// bridge (HTTP, scheduler callbacks); no package-level singleton is used
// (§9 Design notes).
type Controller struct {
	global   model.GlobalConfig
	circuits map[int]*circ.Circuit
	drivers  map[int]relay.Driver

	threads  *threadmanager.Manager
	bus      *events.Bus
	states   *statemanager.Manager
	weather  weatherprovider.Provider
	planner  *planner.Planner
	executor *executor.Executor
	sched    *scheduler.Scheduler
	auto     *scheduler.AutoService
	agg      *status.Aggregator

	log zerolog.Logger

	mu         sync.Mutex
	state      model.ControllerState
	errorFlag  bool
	lastPlannedVolumes map[int]float64
}

// New wires a Controller from already-constructed subsystems. cmd/node
// builds those subsystems from a loaded configuration and calls New.
func New(
	global model.GlobalConfig,
	circuits map[int]*circ.Circuit,
	drivers map[int]relay.Driver,
	threads *threadmanager.Manager,
	bus *events.Bus,
	states *statemanager.Manager,
	weather weatherprovider.Provider,
	p *planner.Planner,
	exec *executor.Executor,
	sched *scheduler.Scheduler,
	log zerolog.Logger,
) *Controller {
	ctrl := &Controller{
		global:   global,
		circuits: circuits,
		drivers:  drivers,
		threads:  threads,
		bus:      bus,
		states:   states,
		weather:  weather,
		planner:  p,
		executor: exec,
		sched:    sched,
		agg:      status.New(circuits, states),
		log:      log.With().Str("component", "controller").Logger(),
		state:    model.ControllerIdle,
		lastPlannedVolumes: make(map[int]float64),
	}

	ctrl.auto = scheduler.NewAutoService(func(ctx context.Context) {
		ctrl.StartAutoCycle(ctx)
	}, log)

	bus.Subscribe(events.CircuitStarted, func(*events.Event) { ctrl.refreshState() })
	bus.Subscribe(events.CircuitFinished, func(*events.Event) { ctrl.refreshState() })
	bus.Subscribe(events.ExecutorFatal, func(e *events.Event) { ctrl.enterError(fmt.Sprintf("%v", e.Data["reason"])) })
	bus.Subscribe(events.PersistenceFatal, func(e *events.Event) {
		ctrl.enterError(fmt.Sprintf("persistence failure during %v: %v", e.Data["op"], e.Data["error"]))
	})

	return ctrl
}

// AutoService exposes the auto irrigation service for the scheduler wiring
// at bootstrap (pause/resume commands reach it through the controller so
// callers never need a second handle into the scheduler package).
func (c *Controller) AutoService() *scheduler.AutoService { return c.auto }

// State returns the current derived controller state (§3 Controller state).
func (c *Controller) State() model.ControllerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// refreshState is the pure derivation described in §4.11 _refresh_state: a
// function of active IRRIGATION worker count and the sticky error flag.
// ERROR is sticky until process restart.
func (c *Controller) refreshState() {
	c.mu.Lock()
	prev := c.state

	if c.errorFlag {
		c.state = model.ControllerError
		c.mu.Unlock()
		return
	}

	active := c.threads.ActiveCount(threadmanager.TaskIrrigation)

	switch {
	case active > 0:
		c.state = model.ControllerIrrigating
	default:
		c.state = model.ControllerIdle
	}
	next := c.state
	c.mu.Unlock()

	c.log.Debug().Int("active_irrigation_workers", active).Str("state", string(next)).Msg("controller state refreshed")
	if next != prev {
		c.bus.Emit(events.ControllerStateChanged, "controller", map[string]interface{}{"state": string(next)})
	}
}

func (c *Controller) enterError(reason string) {
	c.mu.Lock()
	c.errorFlag = true
	c.state = model.ControllerError
	c.mu.Unlock()

	c.log.Error().Str("reason", reason).Msg("controller entering ERROR state")
	c.bus.Emit(events.ControllerStateChanged, "controller", map[string]interface{}{"state": string(model.ControllerError), "reason": reason})
}

// StartAutoCycle builds a plan and dispatches it to the executor. It is a
// no-op when the controller is in ERROR (§4.11).
func (c *Controller) StartAutoCycle(ctx context.Context) {
	if c.State() == model.ControllerError {
		c.log.Warn().Msg("start_auto_cycle ignored: controller in ERROR state")
		return
	}

	configs := make([]model.CircuitConfig, 0, len(c.circuits))
	for _, one := range c.circuits {
		configs = append(configs, one.Config())
	}

	plan := c.planner.Build(ctx, configs, c.global, time.Now().UTC())

	plannedVolumes := make(map[int]float64)
	if len(plan.Batches) > 0 {
		observed := c.weather.GetRecent(ctx, 7)
		for _, batch := range plan.Batches {
			for _, ref := range batch {
				result := weathermodel.Plan(c.circuits[ref.ID].Config(), observed, c.global.Standard, c.global.Corrections, c.global.Limits)
				plannedVolumes[ref.ID] = result.TargetVolumeL
			}
		}
	}
	c.mu.Lock()
	c.lastPlannedVolumes = plannedVolumes
	c.mu.Unlock()

	if len(plan.Batches) == 0 {
		c.log.Info().Msg("auto cycle: no circuits due")
		return
	}

	go func() {
		c.executor.RunBatches(ctx, plan.Batches, c.circuits, model.ModeAuto, nil)
		c.refreshState()
	}()
}

// ManualIrrigate dispatches a single-circuit MANUAL batch. It returns
// *ierrors.WorkerAlreadyExists if the circuit is already irrigating, and is
// a no-op returning nil if the controller is in ERROR.
func (c *Controller) ManualIrrigate(ctx context.Context, circuitID int, liters float64) error {
	if c.State() == model.ControllerError {
		c.log.Warn().Msg("manual_irrigate ignored: controller in ERROR state")
		return nil
	}

	if _, ok := c.circuits[circuitID]; !ok {
		return fmt.Errorf("unknown circuit %d", circuitID)
	}

	active := c.threads.ListActive(threadmanager.TaskIrrigation)
	for _, key := range active {
		if key == fmt.Sprintf("%d", circuitID) {
			return &ierrors.WorkerAlreadyExists{TaskType: string(threadmanager.TaskIrrigation), Key: key}
		}
	}

	batches := [][]model.CircuitRef{{{ID: circuitID}}}
	requestedLiters := map[int]float64{circuitID: liters}

	go func() {
		c.executor.RunBatches(ctx, batches, c.circuits, model.ModeManual, requestedLiters)
		c.refreshState()
	}()

	return nil
}

// StopAllIrrigation invokes the executor's stop_all and refreshes state
// afterward (§4.11).
func (c *Controller) StopAllIrrigation() {
	c.executor.StopAll()
	c.refreshState()
}

// GetStatusMessage composes the structured status message (§6).
func (c *Controller) GetStatusMessage() model.StatusMessage {
	c.mu.Lock()
	planned := c.lastPlannedVolumes
	c.mu.Unlock()

	return model.StatusMessage{
		ControllerState: c.State(),
		AutoEnabled:     c.global.Automation.AutoEnabled,
		AutoPaused:      c.auto.Paused(),
		Zones:           c.agg.All(planned),
	}
}

// GetStatus returns the composed status for a single circuit.
func (c *Controller) GetStatus(circuitID int) model.CircuitStatus {
	c.mu.Lock()
	planned := c.lastPlannedVolumes
	c.mu.Unlock()

	var plannedVolume *float64
	if v, ok := planned[circuitID]; ok {
		plannedVolume = &v
	}
	return c.agg.One(circuitID, plannedVolume)
}

// Shutdown stops the scheduler and executor, joins every worker within
// shutdownJoinDeadline, force-closes every relay best-effort, and persists
// final state via the state manager (§4.11 shutdown).
func (c *Controller) Shutdown() {
	c.log.Info().Msg("controller shutting down")

	if err := c.sched.Stop(shutdownJoinDeadline); err != nil {
		c.log.Error().Err(err).Msg("scheduler failed to stop within deadline")
	}

	c.executor.StopAll()

	if err := c.threads.JoinAll(threadmanager.TaskIrrigation, shutdownJoinDeadline); err != nil {
		c.log.Error().Err(err).Msg("not every irrigation worker joined before shutdown deadline")
	}

	for id, driver := range c.drivers {
		c.log.Debug().Int("circuit_id", id).Msg("forcing relay closed at shutdown")
		driver.Close()
	}

	if err := c.states.Shutdown(); err != nil {
		c.log.Error().Err(err).Msg("state manager shutdown failed")
	}
}
