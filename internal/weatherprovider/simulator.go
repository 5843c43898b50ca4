package weatherprovider

import (
	"context"
	"math"

	"github.com/lukassojak/Smart-Irrigation-System/internal/model"
)

// Simulator deterministically produces bounded synthetic conditions. It is
// selected instead of Client iff automation.use_weather_simulator is true
// AND automation.environment is not "production" (§4.4).
//
// The synthetic signal is a fixed-phase sinusoid seeded by window_days so
// repeated calls within a process are stable without needing a persisted
// RNG state, and is bounded well inside typical sensor ranges so it never
// needs clamping by the weather model itself.
type Simulator struct {
	standard model.StandardConditions
}

// NewSimulator builds a Simulator centered on the given standard conditions.
func NewSimulator(standard model.StandardConditions) *Simulator {
	return &Simulator{standard: standard}
}

// GetRecent implements Provider.
func (s *Simulator) GetRecent(ctx context.Context, windowDays int) model.WeatherConditions {
	phase := float64(windowDays)

	return model.WeatherConditions{
		SolarTotalKWhM2Day: s.standard.SolarTotalKWhM2Day + 1.0*math.Sin(phase),
		TemperatureC:       s.standard.TemperatureC + 2.0*math.Cos(phase),
		RainfallMM:         math.Max(0, s.standard.RainfallMM+3.0*math.Sin(phase*0.5)),
	}
}
