package relay

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulatedDriver_DefaultsClosed(t *testing.T) {
	d := NewSimulatedDriver(17, zerolog.Nop())
	assert.Equal(t, Closed, d.State())
}

func TestSimulatedDriver_SetStateOpensAndCloses(t *testing.T) {
	d := NewSimulatedDriver(17, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, d.SetState(ctx, Open))
	assert.Equal(t, Open, d.State())

	require.NoError(t, d.SetState(ctx, Closed))
	assert.Equal(t, Closed, d.State())
}

func TestSimulatedDriver_SetStateRespectsCancelledContext(t *testing.T) {
	d := NewSimulatedDriver(17, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := d.SetState(ctx, Open)
	assert.Error(t, err)
	assert.Equal(t, Closed, d.State())
}

func TestSimulatedDriver_CloseForcesClosed(t *testing.T) {
	d := NewSimulatedDriver(17, zerolog.Nop())
	require.NoError(t, d.SetState(context.Background(), Open))

	d.Close()
	assert.Equal(t, Closed, d.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "open", Open.String())
	assert.Equal(t, "closed", Closed.String())
}
