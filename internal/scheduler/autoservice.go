package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// AutoService implements the auto irrigation service (C11): on each
// auto_irrigation_tick, it starts an auto cycle iff automation is enabled,
// not paused, and the current minute matches the configured schedule and
// has not already fired today.
type AutoService struct {
	startCycle func(ctx context.Context)
	log        zerolog.Logger

	mu            sync.Mutex
	paused        bool
	lastFiredDate string
}

// NewAutoService builds an AutoService that invokes startCycle when the
// daily schedule fires.
func NewAutoService(startCycle func(ctx context.Context), log zerolog.Logger) *AutoService {
	return &AutoService{
		startCycle: startCycle,
		log:        log.With().Str("component", "auto_irrigation_service").Logger(),
	}
}

// Pause suspends auto-firing without touching automation.auto_enabled. It is
// a volatile in-process flag (§9 Open Questions) that reverts to false on
// process restart.
func (a *AutoService) Pause() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.paused = true
}

// Resume clears a prior Pause.
func (a *AutoService) Resume() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.paused = false
}

// Paused reports the current pause flag.
func (a *AutoService) Paused() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.paused
}

// Tick is the auto_irrigation_tick task body (§4.9 C11). autoEnabled,
// scheduledHour and scheduledMinute come from the node's automation config.
func (a *AutoService) Tick(ctx context.Context, now time.Time, autoEnabled bool, scheduledHour, scheduledMinute int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	today := now.Format("2006-01-02")
	if today != a.lastFiredDate {
		// A new day resets the "fired" flag (§4.9).
		a.lastFiredDate = ""
	}

	if !autoEnabled || a.paused {
		return
	}
	if now.Hour() != scheduledHour || now.Minute() != scheduledMinute {
		return
	}
	if a.lastFiredDate == today {
		return
	}

	a.lastFiredDate = today
	a.log.Info().Time("fired_at", now).Msg("auto irrigation cycle firing")
	a.startCycle(ctx)
}
