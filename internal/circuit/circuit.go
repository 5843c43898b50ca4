// Package circuit implements one irrigation circuit (C2): one relay, its
// configuration, its in-memory runtime status, and the init/execute/finalize
// irrigation loop.
package circuit

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lukassojak/Smart-Irrigation-System/internal/events"
	"github.com/lukassojak/Smart-Irrigation-System/internal/ierrors"
	"github.com/lukassojak/Smart-Irrigation-System/internal/model"
	"github.com/lukassojak/Smart-Irrigation-System/internal/relay"
	"github.com/lukassojak/Smart-Irrigation-System/internal/weathermodel"
	"github.com/lukassojak/Smart-Irrigation-System/internal/weatherprovider"
)

// progressStep bounds how long the execute loop sleeps between progress
// updates — also the worst-case cancellation latency (§5).
const progressStep = 1 * time.Second

// Circuit owns one relay, its configuration and a has_fault flag. At most
// one goroutine calls Irrigate on a given Circuit at a time; that exclusion
// is enforced by the thread manager (C6), not by this type.
type Circuit struct {
	config model.CircuitConfig
	driver relay.Driver
	bus    *events.Bus
	log    zerolog.Logger

	mu        sync.Mutex
	runtime   model.RuntimeStatus
	hasFault  bool
	faultText string
}

// New builds a Circuit bound to the given driver.
func New(config model.CircuitConfig, driver relay.Driver, bus *events.Bus, log zerolog.Logger) *Circuit {
	return &Circuit{
		config: config,
		driver: driver,
		bus:    bus,
		log:    log.With().Int("circuit_id", config.ID).Str("circuit_name", config.Name).Logger(),
	}
}

// Config returns the circuit's immutable configuration.
func (c *Circuit) Config() model.CircuitConfig {
	return c.config
}

// Runtime returns a copy of the circuit's current in-memory status.
func (c *Circuit) Runtime() model.RuntimeStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runtime
}

// HasFault reports whether the circuit is currently flagged faulty, and why.
func (c *Circuit) HasFault() (bool, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasFault, c.faultText
}

func (c *Circuit) setFault(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hasFault = true
	c.faultText = reason
}

// Irrigate runs one full init/execute/finalize cycle (§4.2). AUTO mode
// computes its target volume via the weather model using weatherProvider and
// globalCorrections/limits; MANUAL mode irrigates requestedLiters exactly,
// which must already have been validated by the caller against the safety
// maximum.
func (c *Circuit) Irrigate(ctx context.Context, mode model.IrrigationMode, requestedLiters float64, weatherProvider weatherprovider.Provider, standard model.StandardConditions, globalCorrections model.CorrectionFactors, limits model.IrrigationLimits) model.Result {
	startTime := time.Now().UTC()

	targetVolume, skip := c.planVolume(ctx, mode, requestedLiters, weatherProvider, standard, globalCorrections, limits)
	if skip {
		c.log.Info().Msg("weather model returned skip, circuit not irrigated")
		return model.Result{
			CircuitID:     c.config.ID,
			Success:       true,
			Outcome:       model.OutcomeSkipped,
			StartTime:     startTime,
			TargetVolumeL: targetVolume,
		}
	}

	flow := c.config.EffectiveFlowLPH()
	targetDurationS := durationSeconds(targetVolume, flow)

	c.initPhase(targetVolume, targetDurationS)

	outcome, actualVolume, elapsedS, execErr := c.executePhase(ctx, targetVolume, targetDurationS, flow)

	finalizeErr := c.finalizePhase()
	if finalizeErr != nil && outcome != model.OutcomeFailed {
		outcome = model.OutcomeFailed
	}

	result := model.Result{
		CircuitID:       c.config.ID,
		Success:         outcome == model.OutcomeSuccess,
		Outcome:         outcome,
		StartTime:       startTime,
		DurationS:       elapsedS,
		TargetDurationS: targetDurationS,
		VolumeL:         actualVolume,
		TargetVolumeL:   targetVolume,
	}
	if execErr != nil {
		result.ErrorMessage = execErr.Error()
	} else if finalizeErr != nil {
		result.ErrorMessage = finalizeErr.Error()
	}

	c.bus.Emit(events.CircuitFinished, "circuit", map[string]interface{}{
		"circuit_id": c.config.ID,
		"outcome":    string(outcome),
	})

	return result
}

func (c *Circuit) planVolume(ctx context.Context, mode model.IrrigationMode, requestedLiters float64, weatherProvider weatherprovider.Provider, standard model.StandardConditions, globalCorrections model.CorrectionFactors, limits model.IrrigationLimits) (volume float64, skip bool) {
	if mode == model.ModeManual {
		return requestedLiters, false
	}

	observed := weatherProvider.GetRecent(ctx, 7)
	plan := weathermodel.Plan(c.config, observed, standard, globalCorrections, limits)
	return plan.TargetVolumeL, plan.Skip
}

func (c *Circuit) initPhase(targetVolume float64, targetDurationS int) {
	c.mu.Lock()
	c.runtime = model.RuntimeStatus{
		TargetVolumeL:   targetVolume,
		TargetDurationS: targetDurationS,
	}
	c.hasFault = false
	c.faultText = ""
	c.mu.Unlock()

	c.bus.Emit(events.CircuitStarted, "circuit", map[string]interface{}{
		"circuit_id":     c.config.ID,
		"target_volume":  targetVolume,
		"target_seconds": targetDurationS,
	})
}

// executePhase opens the valve, steps the progress clock, and returns the
// observed outcome. It never closes the valve itself — that's finalizePhase.
func (c *Circuit) executePhase(ctx context.Context, targetVolume float64, targetDurationS int, flow float64) (outcome model.Outcome, actualVolume float64, elapsedS int, err error) {
	openCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if setErr := c.driver.SetState(openCtx, relay.Open); setErr != nil {
		c.setFault(setErr.Error())
		return model.OutcomeFailed, 0, 0, setErr
	}

	ticker := time.NewTicker(progressStep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			elapsed := elapsedS
			volume := math.Min(targetVolume, flow*float64(elapsed)/3600)
			c.updateProgress(volume, targetVolume, elapsed, targetDurationS)
			return model.OutcomeStopped, volume, elapsed, nil

		case <-ticker.C:
			elapsedS++
			volume := math.Min(targetVolume, flow*float64(elapsedS)/3600)
			c.updateProgress(volume, targetVolume, elapsedS, targetDurationS)

			if elapsedS >= targetDurationS {
				return model.OutcomeSuccess, volume, elapsedS, nil
			}
		}
	}
}

func (c *Circuit) updateProgress(currentVolume, targetVolume float64, elapsedS, targetDurationS int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runtime.CurrentVolumeL = currentVolume
	c.runtime.ElapsedS = elapsedS
	if targetDurationS > 0 {
		c.runtime.ProgressPercent = 100 * float64(elapsedS) / float64(targetDurationS)
	}
}

// finalizePhase always attempts to close the valve, flags the circuit as
// faulty (without panicking) if the close fails, and never leaves the
// failure unobserved (§4.2 finalize).
func (c *Circuit) finalizePhase() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := c.driver.SetState(ctx, relay.Closed); err != nil {
		c.setFault(err.Error())
		c.log.Error().Err(err).Msg("failed to close valve during finalize")
		return &ierrors.ValveHardwareError{Pin: c.config.RelayPin, Err: err}
	}
	return nil
}

// durationSeconds converts a target volume (liters) and flow (liters/hour)
// into whole seconds, rounding ties up (§4.2 Numeric semantics).
func durationSeconds(volumeL, flowLPH float64) int {
	if flowLPH <= 0 {
		return 0
	}
	seconds := 3600 * volumeL / flowLPH
	return int(math.Floor(seconds + 0.5))
}
