package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/VectorBarks/smart-climate-sub002/internal/model"
)

func TestCalibration_StableStateCachesOffset(t *testing.T) {
	e := New(testConfig(), nil)

	// Idle unit with converged sensors: the raw difference is trusted.
	input := testInput(24.0, 25.0)
	input.PowerConsumption = fp(30.0)
	res := e.CalculateOffset(input)

	assert.InDelta(t, -1.0, res.Offset, 1e-9)
	assert.Equal(t, calibrationConfidence, res.Confidence)
	assert.Equal(t,
		fmt.Sprintf("Calibration (Stable): Updated offset to -1.0°C. (0/%d samples)", MinSamplesForActiveControl),
		res.Reason)
}

func TestCalibration_ActiveStateUsesCachedOffset(t *testing.T) {
	e := New(testConfig(), nil)

	// Stable reading first.
	input := testInput(24.0, 25.0)
	input.PowerConsumption = fp(30.0)
	e.CalculateOffset(input)

	// Unit now cooling: the internal sensor reads the evaporator coil, so
	// the raw difference is garbage and the cached offset is used instead.
	input = testInput(15.0, 25.0)
	input.PowerConsumption = fp(800.0)
	res := e.CalculateOffset(input)

	assert.InDelta(t, -1.0, res.Offset, 1e-9)
	assert.Equal(t, "Calibration (Active): Using cached stable offset of -1.0°C.", res.Reason)
	assert.Equal(t, calibrationConfidence, res.Confidence)
}

func TestCalibration_InitialStateWithoutCache(t *testing.T) {
	e := New(testConfig(), nil)

	// First calculation with the unit already running: nothing cached yet.
	input := testInput(18.0, 25.0)
	input.PowerConsumption = fp(800.0)
	res := e.CalculateOffset(input)

	assert.InDelta(t, -5.0, res.Offset, 1e-9, "raw difference -7 clamps to the limit")
	assert.True(t, res.Clamped)
	assert.Equal(t, "Calibration (Initial): No cached offset, using temperature difference of -5.0°C.", res.Reason)
	assert.Equal(t, calibrationConfidence, res.Confidence)
}

func TestCalibration_DivergedIdleSensorsNotCached(t *testing.T) {
	e := New(testConfig(), nil)

	// Idle but 3°C apart: outside the stable band, nothing cached, so the
	// next active-phase reading falls back to the initial state.
	input := testInput(22.0, 25.0)
	input.PowerConsumption = fp(30.0)
	res := e.CalculateOffset(input)
	assert.Contains(t, res.Reason, "Calibration (Initial)")

	input = testInput(15.0, 25.0)
	input.PowerConsumption = fp(800.0)
	res = e.CalculateOffset(input)
	assert.Contains(t, res.Reason, "Calibration (Initial)")
}

func TestCalibration_NoPowerSensorAlwaysStable(t *testing.T) {
	cfg := testConfig()
	cfg.PowerSensor = ""
	e := New(cfg, nil)

	// Without a power sensor there is no way to tell coil readings from
	// converged ones; every calculation updates the offset directly.
	res := e.CalculateOffset(testInput(21.0, 25.0))
	assert.InDelta(t, -4.0, res.Offset, 1e-9)
	assert.Contains(t, res.Reason, "Calibration (Stable)")
}

func TestCalibration_ReasonTracksSampleProgress(t *testing.T) {
	e := New(testConfig(), nil)
	train(t, e, 4)

	input := testInput(24.0, 25.0)
	input.PowerConsumption = fp(30.0)
	res := e.CalculateOffset(input)
	assert.Contains(t, res.Reason, fmt.Sprintf("(4/%d samples)", MinSamplesForActiveControl))
}

func TestCalibration_HysteresisStateWithoutPowerSensor(t *testing.T) {
	cfg := testConfig()
	cfg.PowerSensor = ""
	e := New(cfg, nil)
	state := e.classifyHysteresis(nil, 25.0)
	assert.Equal(t, model.HysteresisNoPowerSensor, state)
}
