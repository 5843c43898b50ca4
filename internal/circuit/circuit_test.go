package circuit

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukassojak/Smart-Irrigation-System/internal/events"
	"github.com/lukassojak/Smart-Irrigation-System/internal/model"
	"github.com/lukassojak/Smart-Irrigation-System/internal/relay"
	"github.com/lukassojak/Smart-Irrigation-System/internal/weatherprovider"
)

func testConfig() model.CircuitConfig {
	return model.CircuitConfig{
		ID:       1,
		Name:     "test circuit",
		RelayPin: 17,
		Enabled:  true,
		AreaMode: true,
		TargetMM: 5,
		AreaM2:   2, // base volume 10L
		Drippers: model.DripperInventory{3600: 1}, // flow = 3600 L/h => duration = 1s per 1L
	}
}

func newTestCircuit(t *testing.T) *Circuit {
	t.Helper()
	driver := relay.NewSimulatedDriver(17, zerolog.Nop())
	bus := events.NewBus(zerolog.Nop())
	return New(testConfig(), driver, bus, zerolog.Nop())
}

func TestIrrigate_ManualCompletesSuccessfully(t *testing.T) {
	c := newTestCircuit(t)
	ctx := context.Background()

	result := c.Irrigate(ctx, model.ModeManual, 1.0, nil, model.StandardConditions{}, model.CorrectionFactors{}, model.IrrigationLimits{})

	assert.Equal(t, model.OutcomeSuccess, result.Outcome)
	assert.True(t, result.Success)
	assert.InDelta(t, 1.0, result.VolumeL, 0.01)
	assert.Equal(t, 1, result.TargetDurationS)
}

func TestIrrigate_CancelledBeforeFirstTickReportsZeroVolume(t *testing.T) {
	c := newTestCircuit(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := c.Irrigate(ctx, model.ModeManual, 100.0, nil, model.StandardConditions{}, model.CorrectionFactors{}, model.IrrigationLimits{})

	assert.Equal(t, model.OutcomeStopped, result.Outcome)
	assert.Equal(t, 0.0, result.VolumeL)
}

func TestIrrigate_CancelMidwayReportsStoppedWithValveClosed(t *testing.T) {
	c := newTestCircuit(t)
	// A large volume relative to flow so cancellation lands mid-execution.
	cfg := testConfig()
	cfg.AreaM2 = 200 // base volume 1000L, duration ~1000s at 3600 L/h
	driver := relay.NewSimulatedDriver(17, zerolog.Nop())
	bus := events.NewBus(zerolog.Nop())
	c = New(cfg, driver, bus, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 1200*time.Millisecond)
	defer cancel()

	result := c.Irrigate(ctx, model.ModeManual, 1000.0, nil, model.StandardConditions{}, model.CorrectionFactors{}, model.IrrigationLimits{})

	assert.Equal(t, model.OutcomeStopped, result.Outcome)
	assert.Equal(t, relay.Closed, driver.State())
}

func TestIrrigate_AutoSkipProducesSkippedOutcomeWithoutOpeningValve(t *testing.T) {
	driver := relay.NewSimulatedDriver(17, zerolog.Nop())
	bus := events.NewBus(zerolog.Nop())
	cfg := testConfig()
	c := New(cfg, driver, bus, zerolog.Nop())

	// Centred on 10 mm, the simulator reports about 8.9 mm of rain for a
	// 7-day window, against a 0 mm standard below.
	sim := weatherprovider.NewSimulator(model.StandardConditions{RainfallMM: 10})
	// min_percent=0 and a correction pushing adjusted below zero forces skip.
	limits := model.IrrigationLimits{MinPercent: 0, MaxPercent: 300}
	globalCorrections := model.CorrectionFactors{Rain: -100}

	result := c.Irrigate(context.Background(), model.ModeAuto, 0, sim, model.StandardConditions{RainfallMM: 0}, globalCorrections, limits)

	assert.Equal(t, model.OutcomeSkipped, result.Outcome)
	assert.Equal(t, relay.Closed, driver.State())
}

func TestIrrigate_EmitsStartedAndFinishedEvents(t *testing.T) {
	driver := relay.NewSimulatedDriver(17, zerolog.Nop())
	bus := events.NewBus(zerolog.Nop())
	c := New(testConfig(), driver, bus, zerolog.Nop())

	var started, finished bool
	bus.Subscribe(events.CircuitStarted, func(e *events.Event) { started = true })
	bus.Subscribe(events.CircuitFinished, func(e *events.Event) { finished = true })

	c.Irrigate(context.Background(), model.ModeManual, 1.0, nil, model.StandardConditions{}, model.CorrectionFactors{}, model.IrrigationLimits{})

	assert.True(t, started)
	assert.True(t, finished)
}

func TestDurationSeconds_RoundsTiesUp(t *testing.T) {
	// 0.5 L at flow 3600 L/h => 0.5 seconds -> rounds up to 1.
	require.Equal(t, 1, durationSeconds(0.5, 3600))
	require.Equal(t, 0, durationSeconds(0, 3600))
	require.Equal(t, 0, durationSeconds(5, 0))
}
