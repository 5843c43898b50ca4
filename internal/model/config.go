/**
 * Package model provides the core domain models and value types shared by
 * every controller subsystem.
 *
 * These types are pure domain models with no infrastructure dependencies,
 * following clean architecture principles: configuration, runtime status,
 * durable snapshots and result records are defined here once and consumed
 * by config, relay, weather, circuit, state, planner, executor and
 * controller packages alike.
 */
package model

// IrrigationMode distinguishes a weather-driven automatic run from an
// operator-requested manual run.
type IrrigationMode string

const (
	ModeAuto   IrrigationMode = "AUTO"
	ModeManual IrrigationMode = "MANUAL"
)

// CircuitState is the persisted per-circuit state machine state (§4.5).
type CircuitState string

const (
	CircuitIdle       CircuitState = "IDLE"
	CircuitWaiting    CircuitState = "WAITING"
	CircuitIrrigating CircuitState = "IRRIGATING"
	CircuitDisabled   CircuitState = "DISABLED"
	CircuitShutdown   CircuitState = "SHUTDOWN"
)

// Outcome is the terminal classification of one irrigation attempt.
type Outcome string

const (
	OutcomeSuccess     Outcome = "SUCCESS"
	OutcomeFailed      Outcome = "FAILED"
	OutcomeStopped     Outcome = "STOPPED"
	OutcomeInterrupted Outcome = "INTERRUPTED"
	OutcomeSkipped     Outcome = "SKIPPED"
)

// ControllerState is derived, never persisted (§3 Controller state).
type ControllerState string

const (
	ControllerIdle       ControllerState = "IDLE"
	ControllerIrrigating ControllerState = "IRRIGATING"
	ControllerStopping   ControllerState = "STOPPING"
	ControllerError      ControllerState = "ERROR"
)

// DripperInventory maps a dripper's flow rate in liters/hour to how many
// drippers of that rate the circuit has. Flow rates are positive integers;
// the inventory is never empty for a valid circuit.
type DripperInventory map[int]int

// TotalFlowLPH returns the sum of flow_rate * count across the inventory.
func (d DripperInventory) TotalFlowLPH() float64 {
	var total float64
	for rate, count := range d {
		total += float64(rate * count)
	}
	return total
}

// MinFlowLPH returns the smallest configured dripper flow rate, used as the
// divisor in dripper-mode volume computation. Returns 0 for an empty
// inventory (rejected at config-load time, never expected at runtime).
func (d DripperInventory) MinFlowLPH() int {
	min := 0
	for rate := range d {
		if min == 0 || rate < min {
			min = rate
		}
	}
	return min
}

// CorrectionFactors holds the three weather correction coefficients used by
// the weather model (§4.3), at either global or per-circuit scope.
type CorrectionFactors struct {
	Solar       float64
	Rain        float64
	Temperature float64
}

// CircuitConfig is the immutable per-circuit configuration loaded once at
// bootstrap (§3 Circuit configuration).
type CircuitConfig struct {
	ID       int
	Name     string
	RelayPin int
	Enabled  bool

	// AreaMode selects even-area sizing (TargetMM + AreaM2) when true, or
	// dripper sizing (LitersPerMinDripper) when false. Exactly one of the
	// two sizing fields is meaningful, consistent with this flag.
	AreaMode bool

	TargetMM            float64 // even-area mode: target column height in mm
	AreaM2              float64 // even-area mode: wetted area in square meters
	LitersPerMinDripper float64 // dripper mode: liters per minimum-flow dripper

	IntervalDays int // whole days between irrigations

	Drippers    DripperInventory
	Corrections CorrectionFactors
}

// StandardConditions are the reference weather values the weather model
// measures deviation against (§3 Global configuration).
type StandardConditions struct {
	SolarTotalKWhM2Day float64
	TemperatureC       float64
	RainfallMM         float64
}

// IrrigationLimits bounds how far weather adjustment may move a circuit's
// target volume away from its basal volume.
type IrrigationLimits struct {
	MinPercent        float64
	MaxPercent        float64
	MainValveMaxFlow  float64 // L/h, informational cap (max_flow_monitoring is a declared, non-functioning extension point per §9)
}

// AutomationConfig governs the daily auto-irrigation cycle (C11).
type AutomationConfig struct {
	AutoEnabled          bool
	ScheduledHour        int // 0-23
	ScheduledMinute      int // 0-59
	Environment          string
	UseWeatherSimulator  bool
	MaxFlowMonitoring    bool // declared, not implemented (§9 Open Questions)
}

// WeatherEndpoints holds the live weather API connection details.
type WeatherEndpoints struct {
	BaseURL string
	APIKey  string
}

// GlobalConfig is the immutable node-wide configuration loaded once at
// bootstrap (§3 Global configuration).
type GlobalConfig struct {
	Standard          StandardConditions
	Corrections       CorrectionFactors
	Limits            IrrigationLimits
	Automation        AutomationConfig
	WeatherEndpoints  WeatherEndpoints
	WeatherCacheTTLS  int // seconds; weather provider freshness policy (C4)
}
