package relay

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lukassojak/Smart-Irrigation-System/internal/ierrors"
)

// maxSetStateAttempts bounds how many times GPIODriver retries a failed
// set_state RPC before giving up and reporting a hardware fault (§4.1).
const maxSetStateAttempts = 3

// setStateRetryBackoff is the base delay between retries; attempt n waits
// n * setStateRetryBackoff.
const setStateRetryBackoff = 200 * time.Millisecond

// GPIODriver drives a relay pin through the relay-board daemon over
// msgpack-rpc. It is the production Driver implementation; on an I/O failure
// SetState retries a bounded number of times and then returns a
// ValveHardwareError rather than panicking, since a stuck valve is
// recoverable by a later SetState call but a crashed controller is not.
type GPIODriver struct {
	pin int
	rpc *rpcClient
	log zerolog.Logger

	mu    sync.Mutex
	state State
}

// NewGPIODriver connects to the relay board at socketPath and returns a
// driver bound to the given pin. The valve is forced Closed as soon as the
// connection is available, matching the fail-safe default of §4.1.
func NewGPIODriver(pin int, socketPath string, log zerolog.Logger) (*GPIODriver, error) {
	client, err := newRPCClient(socketPath, log)
	if err != nil {
		return nil, err
	}

	d := &GPIODriver{
		pin:   pin,
		rpc:   client,
		log:   log.With().Str("component", "gpio_driver").Int("pin", pin).Logger(),
		state: Closed,
	}

	if err := d.SetState(context.Background(), Closed); err != nil {
		d.log.Warn().Err(err).Msg("failed to force valve closed at startup")
	}

	return d, nil
}

// SetState implements Driver.
func (d *GPIODriver) SetState(ctx context.Context, state State) error {
	var lastErr error

	for attempt := 1; attempt <= maxSetStateAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := d.rpc.SetRelay(d.pin, state == Open)
		if err == nil {
			d.mu.Lock()
			d.state = state
			d.mu.Unlock()
			return nil
		}

		lastErr = err
		d.log.Warn().Err(err).Int("attempt", attempt).Str("target_state", state.String()).
			Msg("set_state attempt failed")

		var rpcErr *RPCError
		if errors.As(err, &rpcErr) && !rpcErr.Retryable() {
			d.log.Error().Int("error_code", rpcErr.Code).Msg("relay board reported a non-retryable fault, failing fast")
			break
		}

		if attempt < maxSetStateAttempts {
			select {
			case <-time.After(time.Duration(attempt) * setStateRetryBackoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return &ierrors.ValveHardwareError{Pin: d.pin, Err: lastErr}
}

// State implements Driver.
func (d *GPIODriver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Close implements Driver.
func (d *GPIODriver) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := d.SetState(ctx, Closed); err != nil {
		d.log.Error().Err(err).Msg("failed to force valve closed on shutdown")
	}

	d.rpc.Close()
}
