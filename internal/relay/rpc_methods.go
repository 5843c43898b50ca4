package relay

// Relay-board error codes. The board returns these in the msgpack-rpc error
// slot; GPIODriver uses them to decide whether a retry can help at all
// (errCodeRelayStuck can't) versus whether it's a transient contention issue
// (errCodeBoardBusy often clears on the next attempt).
const (
	errCodePinOutOfRange = 1
	errCodeRelayStuck    = 2
	errCodeBoardBusy     = 3
)

// Retryable reports whether the relay board itself thinks another setRelay
// attempt might succeed. A pin configuration error or a stuck relay will not
// resolve by retrying; GPIODriver.SetState uses this to fail fast instead of
// burning its whole retry budget on a board that has already diagnosed the
// fault as permanent.
func (e *RPCError) Retryable() bool {
	return e.Code == errCodeBoardBusy
}

// SetRelay drives pin to the open or closed position. It is the only
// domain-specific call GPIODriver issues; everything below this method is
// generic msgpack-rpc transport shared with any other relay-board command.
func (c *rpcClient) SetRelay(pin int, open bool) error {
	_, err := c.Call("setRelay", pin, open)
	return err
}
