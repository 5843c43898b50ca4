// Package config loads the node's configuration from YAML files on disk.
//
// Configuration is read once at bootstrap and held immutably by the
// controller core for the lifetime of the process (§3 Ownership/lifecycle).
// Malformed input is always a fatal bootstrap error (spec.md §6
// "Configuration files").
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/lukassojak/Smart-Irrigation-System/internal/ierrors"
	"github.com/lukassojak/Smart-Irrigation-System/internal/model"
)

// DefaultDataDir is used when neither IRRIGATION_DATA_DIR nor DATA_DIR is
// set in the environment.
const DefaultDataDir = "/home/irrigation/data"

// NodeConfig wraps the validated global and per-circuit configuration plus
// the infrastructure settings a running node needs (C14).
type NodeConfig struct {
	DataDir  string
	LogLevel string

	HTTPAddr string

	Global   model.GlobalConfig
	Circuits []model.CircuitConfig
}

// rawGlobal/rawCircuit mirror the on-disk YAML shape. Keeping them distinct
// from model.GlobalConfig/model.CircuitConfig lets the YAML tags stay close
// to the file format without polluting the domain model with serialization
// concerns.
type rawGlobal struct {
	LogLevel string `yaml:"log_level"`
	HTTPAddr string `yaml:"http_addr"`

	Standard struct {
		SolarTotalKWhM2Day float64 `yaml:"solar_total"`
		TemperatureC       float64 `yaml:"temperature"`
		RainfallMM         float64 `yaml:"rainfall"`
	} `yaml:"standard_conditions"`

	Corrections struct {
		Solar       float64 `yaml:"solar"`
		Rain        float64 `yaml:"rain"`
		Temperature float64 `yaml:"temperature"`
	} `yaml:"correction_factors"`

	Limits struct {
		MinPercent       float64 `yaml:"min_percent"`
		MaxPercent       float64 `yaml:"max_percent"`
		MainValveMaxFlow float64 `yaml:"main_valve_max_flow"`
	} `yaml:"irrigation_limits"`

	Automation struct {
		AutoEnabled         bool   `yaml:"auto_enabled"`
		ScheduledHour       int    `yaml:"scheduled_hour"`
		ScheduledMinute     int    `yaml:"scheduled_minute"`
		Environment         string `yaml:"environment"`
		UseWeatherSimulator bool   `yaml:"use_weather_simulator"`
		MaxFlowMonitoring   bool   `yaml:"max_flow_monitoring"`
	} `yaml:"automation"`

	Weather struct {
		BaseURL      string `yaml:"base_url"`
		APIKey       string `yaml:"api_key"`
		CacheTTLSecs int    `yaml:"cache_ttl_seconds"`
	} `yaml:"weather"`
}

type rawCircuit struct {
	ID       int    `yaml:"id"`
	Name     string `yaml:"name"`
	RelayPin int    `yaml:"relay_pin"`
	Enabled  bool   `yaml:"enabled"`
	AreaMode bool   `yaml:"area_mode"`

	TargetMM            float64 `yaml:"target_mm"`
	AreaM2              float64 `yaml:"area_m2"`
	LitersPerMinDripper float64 `yaml:"liters_per_min_dripper"`

	IntervalDays int `yaml:"interval_days"`

	Drippers map[int]int `yaml:"drippers"`

	Corrections struct {
		Solar       float64 `yaml:"solar"`
		Rain        float64 `yaml:"rain"`
		Temperature float64 `yaml:"temperature"`
	} `yaml:"correction_factors"`
}

// Load resolves the data directory from IRRIGATION_DATA_DIR (falling back
// to DATA_DIR, then DefaultDataDir), then reads config.yaml and
// circuits.yaml from it. Every invariant in spec.md §3 is validated before
// Load returns; any violation is a *ierrors.ConfigError.
func Load() (*NodeConfig, error) {
	dataDir := os.Getenv("IRRIGATION_DATA_DIR")
	if dataDir == "" {
		dataDir = os.Getenv("DATA_DIR")
	}
	if dataDir == "" {
		dataDir = DefaultDataDir
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return LoadFrom(absDataDir)
}

// LoadFrom loads config.yaml and circuits.yaml from the given directory.
// Exported separately from Load so tests can point at a fixture directory
// without touching environment variables.
func LoadFrom(dataDir string) (*NodeConfig, error) {
	var rg rawGlobal
	if err := readYAML(filepath.Join(dataDir, "config.yaml"), &rg); err != nil {
		return nil, err
	}

	var rawCircuits []rawCircuit
	if err := readYAML(filepath.Join(dataDir, "circuits.yaml"), &rawCircuits); err != nil {
		return nil, err
	}

	global := model.GlobalConfig{
		Standard: model.StandardConditions{
			SolarTotalKWhM2Day: rg.Standard.SolarTotalKWhM2Day,
			TemperatureC:       rg.Standard.TemperatureC,
			RainfallMM:         rg.Standard.RainfallMM,
		},
		Corrections: model.CorrectionFactors{
			Solar:       rg.Corrections.Solar,
			Rain:        rg.Corrections.Rain,
			Temperature: rg.Corrections.Temperature,
		},
		Limits: model.IrrigationLimits{
			MinPercent:       rg.Limits.MinPercent,
			MaxPercent:       rg.Limits.MaxPercent,
			MainValveMaxFlow: rg.Limits.MainValveMaxFlow,
		},
		Automation: model.AutomationConfig{
			AutoEnabled:         rg.Automation.AutoEnabled,
			ScheduledHour:       rg.Automation.ScheduledHour,
			ScheduledMinute:     rg.Automation.ScheduledMinute,
			Environment:         rg.Automation.Environment,
			UseWeatherSimulator: rg.Automation.UseWeatherSimulator,
			MaxFlowMonitoring:   rg.Automation.MaxFlowMonitoring,
		},
		WeatherEndpoints: model.WeatherEndpoints{
			BaseURL: rg.Weather.BaseURL,
			APIKey:  rg.Weather.APIKey,
		},
		WeatherCacheTTLS: rg.Weather.CacheTTLSecs,
	}

	circuits := make([]model.CircuitConfig, 0, len(rawCircuits))
	for _, rc := range rawCircuits {
		circuits = append(circuits, model.CircuitConfig{
			ID:                  rc.ID,
			Name:                rc.Name,
			RelayPin:            rc.RelayPin,
			Enabled:             rc.Enabled,
			AreaMode:            rc.AreaMode,
			TargetMM:            rc.TargetMM,
			AreaM2:              rc.AreaM2,
			LitersPerMinDripper: rc.LitersPerMinDripper,
			IntervalDays:        rc.IntervalDays,
			Drippers:            model.DripperInventory(rc.Drippers),
			Corrections: model.CorrectionFactors{
				Solar:       rc.Corrections.Solar,
				Rain:        rc.Corrections.Rain,
				Temperature: rc.Corrections.Temperature,
			},
		})
	}

	if err := Validate(global, circuits); err != nil {
		return nil, err
	}

	logLevel := rg.LogLevel
	if logLevel == "" {
		logLevel = "info"
	}
	httpAddr := rg.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}

	return &NodeConfig{
		DataDir:  dataDir,
		LogLevel: logLevel,
		HTTPAddr: httpAddr,
		Global:   global,
		Circuits: circuits,
	}, nil
}

func readYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &ierrors.ConfigError{Field: path, Msg: err.Error()}
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return &ierrors.ConfigError{Field: path, Msg: fmt.Sprintf("invalid yaml: %v", err)}
	}
	return nil
}
