// Package weathermodel implements the weather-adjusted volume calculation
// (C3). It is a pure function package: no I/O, no clock reads, no shared
// state, so the controller and its tests can call it directly against any
// snapshot of observed conditions.
package weathermodel

import (
	"fmt"
	"math"

	"github.com/lukassojak/Smart-Irrigation-System/internal/model"
)

// Plan computes the weather-adjusted target volume for one circuit on one
// day, per spec.md §4.3.
//
// combined_factor = 1 + Σ over {solar, rain, temperature} of
//
//	(global_factor + local_factor) * (observed - standard)
//
// adjusted = base_volume * combined_factor, clamped to
// [base*min_percent/100, base*max_percent/100]. The result is marked Skip
// when the adjusted volume falls below the lower bound AND min_percent is
// zero — a zero floor means the model is allowed to decide "don't irrigate
// today" rather than clamp up to a nonzero minimum.
func Plan(circuit model.CircuitConfig, observed model.WeatherConditions, standard model.StandardConditions, globalCorrections model.CorrectionFactors, limits model.IrrigationLimits) model.PlanResult {
	base := circuit.BaseVolumeL()

	deltaSolar := observed.SolarTotalKWhM2Day - standard.SolarTotalKWhM2Day
	deltaRain := observed.RainfallMM - standard.RainfallMM
	deltaTemp := observed.TemperatureC - standard.TemperatureC

	combinedFactor := 1.0 +
		(globalCorrections.Solar+circuit.Corrections.Solar)*deltaSolar +
		(globalCorrections.Rain+circuit.Corrections.Rain)*deltaRain +
		(globalCorrections.Temperature+circuit.Corrections.Temperature)*deltaTemp

	adjusted := base * combinedFactor

	minBound := base * (limits.MinPercent / 100)
	maxBound := base * (limits.MaxPercent / 100)

	skip := adjusted < minBound && limits.MinPercent == 0

	clamped := adjusted
	if clamped < minBound {
		clamped = minBound
	}
	if clamped > maxBound {
		clamped = maxBound
	}
	clamped = math.Max(clamped, 0)

	details := fmt.Sprintf("combined_factor=%.3f base=%.2f adjusted=%.2f", combinedFactor, base, adjusted)

	return model.PlanResult{
		TargetVolumeL: clamped,
		MinBoundL:     minBound,
		MaxBoundL:     maxBound,
		Skip:          skip,
		Details:       details,
	}
}
