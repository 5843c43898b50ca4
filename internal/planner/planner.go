package planner

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/lukassojak/Smart-Irrigation-System/internal/model"
	"github.com/lukassojak/Smart-Irrigation-System/internal/statemanager"
	"github.com/lukassojak/Smart-Irrigation-System/internal/weathermodel"
	"github.com/lukassojak/Smart-Irrigation-System/internal/weatherprovider"
)

// Plan is the task planner's output: an ordered list of batches, each an
// ordered list of circuit references, ready to hand to the executor (C9).
type Plan struct {
	Batches [][]model.CircuitRef
}

// Planner builds a Plan from the current configuration, state-manager
// snapshots and weather conditions (C8).
type Planner struct {
	states   *statemanager.Manager
	weather  weatherprovider.Provider
	strategy Strategy
	log      zerolog.Logger
}

// New builds a Planner using strategy to group due circuits into batches.
func New(states *statemanager.Manager, weather weatherprovider.Provider, strategy Strategy, log zerolog.Logger) *Planner {
	return &Planner{
		states:   states,
		weather:  weather,
		strategy: strategy,
		log:      log.With().Str("component", "planner").Logger(),
	}
}

// Build selects every enabled circuit whose interval has elapsed (or which
// has never irrigated), pre-computes its weather-adjusted volume, records a
// SKIPPED decision for any circuit the weather model excludes, transitions
// every remaining due circuit to WAITING ("scheduled", §4.5), and groups it
// into batches (§4.7) ready for the executor to pick up with "start".
func (p *Planner) Build(ctx context.Context, configs []model.CircuitConfig, global model.GlobalConfig, now time.Time) Plan {
	observed := p.weather.GetRecent(ctx, 7)

	var due []model.CircuitRef

	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}

		snap, ok := p.states.Get(cfg.ID)
		if !ok {
			continue
		}

		if !isDue(snap, cfg, now) {
			continue
		}

		result := weathermodel.Plan(cfg, observed, global.Standard, global.Corrections, global.Limits)

		if err := p.states.RecordDecision(cfg.ID, now); err != nil {
			p.log.Error().Err(err).Int("circuit_id", cfg.ID).Msg("failed to record decision")
		}

		if result.Skip {
			p.log.Info().Int("circuit_id", cfg.ID).Str("details", result.Details).Msg("weather model skipped circuit")
			if err := p.states.Transition(cfg.ID, statemanager.EventSkipDecision); err != nil {
				p.log.Error().Err(err).Int("circuit_id", cfg.ID).Msg("failed to transition to skipped")
			}
			if err := p.states.RecordResult(cfg.ID, model.Result{
				CircuitID:     cfg.ID,
				Success:       true,
				Outcome:       model.OutcomeSkipped,
				StartTime:     now,
				TargetVolumeL: result.TargetVolumeL,
			}); err != nil {
				p.log.Error().Err(err).Int("circuit_id", cfg.ID).Msg("failed to record skipped result")
			}
			continue
		}

		if err := p.states.Transition(cfg.ID, statemanager.EventScheduled); err != nil {
			p.log.Error().Err(err).Int("circuit_id", cfg.ID).Msg("failed to transition circuit to WAITING")
		}

		due = append(due, model.CircuitRef{ID: cfg.ID, Name: cfg.Name})
	}

	return Plan{Batches: p.strategy.Plan(due)}
}

// isDue reports whether cfg's interval has elapsed since its last real
// irrigation (§4.7: (now - last_irrigation).days >= interval_days OR
// last_irrigation is null).
func isDue(snap model.Snapshot, cfg model.CircuitConfig, now time.Time) bool {
	if snap.LastIrrigation == nil {
		return true
	}
	elapsedDays := int(now.Sub(*snap.LastIrrigation).Hours() / 24)
	return elapsedDays >= cfg.IntervalDays
}
