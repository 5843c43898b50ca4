package config

import (
	"fmt"

	"github.com/lukassojak/Smart-Irrigation-System/internal/ierrors"
	"github.com/lukassojak/Smart-Irrigation-System/internal/model"
)

// Validate checks every configuration invariant from spec.md §3. It returns
// the first violation found as a *ierrors.ConfigError.
func Validate(global model.GlobalConfig, circuits []model.CircuitConfig) error {
	if err := validateGlobal(global); err != nil {
		return err
	}

	seen := make(map[int]bool, len(circuits))
	for _, c := range circuits {
		if seen[c.ID] {
			return &ierrors.ConfigError{Field: "circuits", Msg: fmt.Sprintf("duplicate circuit id %d", c.ID)}
		}
		seen[c.ID] = true

		if err := validateCircuit(c); err != nil {
			return err
		}
	}

	return nil
}

func validateGlobal(g model.GlobalConfig) error {
	if g.Limits.MinPercent > 100 {
		return &ierrors.ConfigError{Field: "irrigation_limits.min_percent", Msg: "min_percent must be <= 100"}
	}
	if g.Limits.MaxPercent < 100 {
		return &ierrors.ConfigError{Field: "irrigation_limits.max_percent", Msg: "max_percent must be >= 100"}
	}
	if g.Automation.ScheduledHour < 0 || g.Automation.ScheduledHour > 23 {
		return &ierrors.ConfigError{Field: "automation.scheduled_hour", Msg: "must be in [0,23]"}
	}
	if g.Automation.ScheduledMinute < 0 || g.Automation.ScheduledMinute > 59 {
		return &ierrors.ConfigError{Field: "automation.scheduled_minute", Msg: "must be in [0,59]"}
	}
	return nil
}

func validateCircuit(c model.CircuitConfig) error {
	field := fmt.Sprintf("circuit[%d]", c.ID)

	hasAreaFields := c.TargetMM > 0 && c.AreaM2 > 0
	hasDripperField := c.LitersPerMinDripper > 0

	if c.AreaMode && !hasAreaFields {
		return &ierrors.ConfigError{Field: field, Msg: "area_mode requires positive target_mm and area_m2"}
	}
	if c.AreaMode && hasDripperField {
		return &ierrors.ConfigError{Field: field, Msg: "area_mode set but liters_per_min_dripper also configured"}
	}
	if !c.AreaMode && !hasDripperField {
		return &ierrors.ConfigError{Field: field, Msg: "dripper mode requires positive liters_per_min_dripper"}
	}
	if !c.AreaMode && hasAreaFields {
		return &ierrors.ConfigError{Field: field, Msg: "dripper mode set but target_mm/area_m2 also configured"}
	}

	if len(c.Drippers) == 0 {
		return &ierrors.ConfigError{Field: field, Msg: "dripper inventory must not be empty"}
	}
	for rate, count := range c.Drippers {
		if rate <= 0 {
			return &ierrors.ConfigError{Field: field, Msg: "dripper flow rate must be a positive integer"}
		}
		if count <= 0 {
			return &ierrors.ConfigError{Field: field, Msg: "dripper count must be positive"}
		}
	}
	if c.Drippers.TotalFlowLPH() <= 0 {
		return &ierrors.ConfigError{Field: field, Msg: "effective flow is zero"}
	}

	if c.IntervalDays <= 0 {
		return &ierrors.ConfigError{Field: field, Msg: "interval_days must be positive"}
	}

	return nil
}
