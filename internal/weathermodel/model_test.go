package weathermodel

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lukassojak/Smart-Irrigation-System/internal/model"
)

func baseCircuit() model.CircuitConfig {
	return model.CircuitConfig{
		ID:       1,
		AreaMode: true,
		TargetMM: 5,
		AreaM2:   2, // base volume = 10 L
		Drippers: model.DripperInventory{10: 1},
	}
}

func TestPlan_NoDeviationReturnsBaseVolume(t *testing.T) {
	circuit := baseCircuit()
	observed := model.WeatherConditions{}
	standard := model.StandardConditions{}
	limits := model.IrrigationLimits{MinPercent: 20, MaxPercent: 300}

	result := Plan(circuit, observed, standard, model.CorrectionFactors{}, limits)

	assert.False(t, result.Skip)
	assert.Equal(t, 10.0, result.TargetVolumeL)
}

func TestPlan_RainDeviationClampsToMinBoundNotSkipped(t *testing.T) {
	// S2: observed rainfall 10mm above standard, global rain factor -0.15.
	// combined_factor = 1 + 10*(-0.15) = -0.5 -> adjusted = -5L, clamped to
	// min_bound = 10 * 20/100 = 2L. min_percent=20 > 0, so NOT skipped.
	circuit := baseCircuit()
	observed := model.WeatherConditions{RainfallMM: 10}
	standard := model.StandardConditions{RainfallMM: 0}
	globalCorrections := model.CorrectionFactors{Rain: -0.15}
	limits := model.IrrigationLimits{MinPercent: 20, MaxPercent: 300}

	result := Plan(circuit, observed, standard, globalCorrections, limits)

	assert.False(t, result.Skip)
	assert.InDelta(t, 2.0, result.TargetVolumeL, 0.001)
}

func TestPlan_RainDeviationWithZeroMinPercentSkips(t *testing.T) {
	circuit := baseCircuit()
	observed := model.WeatherConditions{RainfallMM: 10}
	standard := model.StandardConditions{RainfallMM: 0}
	globalCorrections := model.CorrectionFactors{Rain: -0.15}
	limits := model.IrrigationLimits{MinPercent: 0, MaxPercent: 300}

	result := Plan(circuit, observed, standard, globalCorrections, limits)

	assert.True(t, result.Skip)
}

func TestPlan_AboveMaxPercentClampsToCap(t *testing.T) {
	circuit := baseCircuit()
	observed := model.WeatherConditions{SolarTotalKWhM2Day: 100}
	standard := model.StandardConditions{SolarTotalKWhM2Day: 0}
	globalCorrections := model.CorrectionFactors{Solar: 1.0}
	limits := model.IrrigationLimits{MinPercent: 20, MaxPercent: 150}

	result := Plan(circuit, observed, standard, globalCorrections, limits)

	assert.False(t, result.Skip)
	assert.InDelta(t, 15.0, result.TargetVolumeL, 0.001) // base*1.5
}

func TestPlan_VolumeAtMinBoundExactlyIsNotSkipped(t *testing.T) {
	circuit := baseCircuit()
	observed := model.WeatherConditions{}
	standard := model.StandardConditions{}
	limits := model.IrrigationLimits{MinPercent: 100, MaxPercent: 100}

	result := Plan(circuit, observed, standard, model.CorrectionFactors{}, limits)

	assert.False(t, result.Skip)
	assert.InDelta(t, 10.0, result.TargetVolumeL, 0.001)
}

func TestPlan_DripperModeBaseVolume(t *testing.T) {
	circuit := model.CircuitConfig{
		ID:                  2,
		AreaMode:            false,
		LitersPerMinDripper: 4,
		Drippers:            model.DripperInventory{10: 2, 20: 1}, // total=40, min=10
	}
	// base = 4 * (40/10) = 16L
	result := Plan(circuit, model.WeatherConditions{}, model.StandardConditions{}, model.CorrectionFactors{}, model.IrrigationLimits{MinPercent: 20, MaxPercent: 300})

	assert.False(t, result.Skip)
	assert.InDelta(t, 16.0, result.TargetVolumeL, 0.001)
}
