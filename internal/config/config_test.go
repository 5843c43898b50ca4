package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validGlobalYAML = `
log_level: info
standard_conditions:
  solar_total: 5.0
  temperature: 20.0
  rainfall: 0.0
correction_factors:
  solar: 0.0
  rain: -0.15
  temperature: 0.0
irrigation_limits:
  min_percent: 20
  max_percent: 300
  main_valve_max_flow: 1000
automation:
  auto_enabled: true
  scheduled_hour: 6
  scheduled_minute: 0
  environment: production
  use_weather_simulator: false
weather:
  base_url: https://example.invalid
  cache_ttl_seconds: 1800
`

const validCircuitsYAML = `
- id: 1
  name: "front lawn"
  relay_pin: 17
  enabled: true
  area_mode: true
  target_mm: 5
  area_m2: 2
  interval_days: 1
  drippers:
    10: 1
`

func writeFixture(t *testing.T, dir, globalYAML, circuitsYAML string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(globalYAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "circuits.yaml"), []byte(circuitsYAML), 0o644))
}

func TestLoadFrom_Valid(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, validGlobalYAML, validCircuitsYAML)

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)
	require.Len(t, cfg.Circuits, 1)
	assert.Equal(t, 1, cfg.Circuits[0].ID)
	assert.Equal(t, 20.0, cfg.Global.Limits.MinPercent)
	assert.Equal(t, 300.0, cfg.Global.Limits.MaxPercent)
}

func TestLoadFrom_RejectsMinPercentAbove100(t *testing.T) {
	dir := t.TempDir()
	bad := `
irrigation_limits:
  min_percent: 150
  max_percent: 300
automation:
  scheduled_hour: 6
  scheduled_minute: 0
`
	writeFixture(t, dir, bad, validCircuitsYAML)

	_, err := LoadFrom(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_percent")
}

func TestLoadFrom_RejectsInvalidScheduledHour(t *testing.T) {
	dir := t.TempDir()
	bad := `
irrigation_limits:
  min_percent: 20
  max_percent: 300
automation:
  scheduled_hour: 24
  scheduled_minute: 0
`
	writeFixture(t, dir, bad, validCircuitsYAML)

	_, err := LoadFrom(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scheduled_hour")
}

func TestValidateCircuit_RejectsInconsistentMode(t *testing.T) {
	dir := t.TempDir()
	inconsistent := `
- id: 1
  name: "bad"
  relay_pin: 1
  enabled: true
  area_mode: true
  liters_per_min_dripper: 2
  interval_days: 1
  drippers:
    10: 1
`
	writeFixture(t, dir, validGlobalYAML, inconsistent)

	_, err := LoadFrom(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "area_mode requires positive target_mm")
}

func TestValidateCircuit_RejectsEmptyDripperInventory(t *testing.T) {
	dir := t.TempDir()
	noDrippers := `
- id: 1
  name: "bad"
  relay_pin: 1
  enabled: true
  area_mode: true
  target_mm: 5
  area_m2: 2
  interval_days: 1
`
	writeFixture(t, dir, validGlobalYAML, noDrippers)

	_, err := LoadFrom(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dripper inventory")
}

func TestValidateCircuit_RejectsDuplicateIDs(t *testing.T) {
	dir := t.TempDir()
	dup := validCircuitsYAML + `
- id: 1
  name: "dup"
  relay_pin: 18
  enabled: true
  area_mode: true
  target_mm: 5
  area_m2: 2
  interval_days: 1
  drippers:
    10: 1
`
	writeFixture(t, dir, validGlobalYAML, dup)

	_, err := LoadFrom(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}
