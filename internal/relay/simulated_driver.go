package relay

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// SimulatedDriver is a Driver that only ever touches an in-memory flag. It
// backs development environments and tests where no relay board is present,
// and the node's "use_weather_simulator"-style environment switch
// (automation.environment, §3) selects it instead of GPIODriver.
type SimulatedDriver struct {
	pin int
	log zerolog.Logger

	mu    sync.Mutex
	state State
}

// NewSimulatedDriver returns a SimulatedDriver starting in the Closed state.
func NewSimulatedDriver(pin int, log zerolog.Logger) *SimulatedDriver {
	return &SimulatedDriver{
		pin: pin,
		log: log.With().Str("component", "simulated_driver").Int("pin", pin).Logger(),
	}
}

// SetState implements Driver. It succeeds unless ctx is already done, in
// which case it returns ctx.Err() and leaves the state unchanged.
func (d *SimulatedDriver) SetState(ctx context.Context, state State) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != state {
		d.log.Debug().Str("from", d.state.String()).Str("to", state.String()).Msg("simulated valve state change")
	}
	d.state = state
	return nil
}

// State implements Driver.
func (d *SimulatedDriver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Close implements Driver.
func (d *SimulatedDriver) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = Closed
}
