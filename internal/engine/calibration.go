package engine

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/VectorBarks/smart-climate-sub002/internal/model"
)

// calibrationConfidence is the fixed confidence reported while bootstrapping.
const calibrationConfidence = 0.2

// calibrate implements the bootstrap phase used until the learner has
// collected MinSamplesForActiveControl samples.
//
// Stable state: the unit is idle (or has no power sensor) and the two
// temperature sensors have converged, so the raw difference is a trustworthy
// offset. It is cached for the active state, where the unit is running and
// the internal sensor reads the evaporator coil rather than the room.
func (e *Engine) calibrate(acTemp, roomTemp float64, power *float64) model.OffsetResult {
	diff := acTemp - roomTemp
	samples := e.learner.Len()

	powerAbsent := e.cfg.PowerSensor == "" || power == nil
	idle := !powerAbsent && *power < e.cfg.PowerIdleThreshold
	converged := math.Abs(diff) < e.cfg.CalibrationStableBand

	if powerAbsent || (idle && converged) {
		offset, clamped := e.clampOffset(diff)
		e.stableCalibrationOffset = &offset
		e.log.Debug("calibration stable state",
			zap.Float64("offset", offset), zap.Int("samples", samples))
		return model.OffsetResult{
			Offset:  offset,
			Clamped: clamped,
			Reason: fmt.Sprintf("Calibration (Stable): Updated offset to %.1f°C. (%d/%d samples)",
				offset, samples, MinSamplesForActiveControl),
			Confidence: calibrationConfidence,
		}
	}

	if e.stableCalibrationOffset != nil {
		return model.OffsetResult{
			Offset: *e.stableCalibrationOffset,
			Reason: fmt.Sprintf("Calibration (Active): Using cached stable offset of %.1f°C.",
				*e.stableCalibrationOffset),
			Confidence: calibrationConfidence,
		}
	}

	// First calculation with the unit already running: no trustworthy cache
	// yet, fall back to the raw difference.
	offset, clamped := e.clampOffset(diff)
	return model.OffsetResult{
		Offset:  offset,
		Clamped: clamped,
		Reason: fmt.Sprintf("Calibration (Initial): No cached offset, using temperature difference of %.1f°C.",
			offset),
		Confidence: calibrationConfidence,
	}
}
