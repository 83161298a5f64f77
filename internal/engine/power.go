package engine

import (
	"go.uber.org/zap"

	"github.com/VectorBarks/smart-climate-sub002/internal/hysteresis"
	"github.com/VectorBarks/smart-climate-sub002/internal/model"
)

// powerState buckets a power reading using the configured thresholds.
func (e *Engine) powerState(watts float64) model.PowerState {
	switch {
	case watts < e.cfg.PowerIdleThreshold:
		return model.PowerIdle
	case watts < e.cfg.PowerMinThreshold:
		return model.PowerLow
	case watts < e.cfg.PowerMaxThreshold:
		return model.PowerModerate
	default:
		return model.PowerHigh
	}
}

// detectPowerTransition records a hysteresis transition when the power
// bucket crosses the idle boundary in either direction. Transitions entirely
// within the non-idle range record nothing; only the immediately previous
// bucket is tracked. Outlier power readings neither record transitions nor
// advance the tracked bucket.
func (e *Engine) detectPowerTransition(power *float64, roomTemp float64) {
	if e.cfg.PowerSensor == "" || power == nil {
		return
	}
	if e.powerOutliers.IsOutlier(*power) {
		e.log.Debug("power reading rejected as outlier", zap.Float64("watts", *power))
		return
	}
	e.powerOutliers.Record(*power)

	current := e.powerState(*power)
	previous := e.lastPowerState
	e.lastPowerState = current

	if previous == "" || previous == current {
		return
	}

	switch {
	case previous == model.PowerIdle && current != model.PowerIdle:
		e.hyst.RecordTransition(hysteresis.TransitionStart, roomTemp)
		e.countTransition("start")
		e.log.Debug("cooling start transition",
			zap.Float64("room_temp", roomTemp), zap.String("bucket", string(current)))
	case previous != model.PowerIdle && current == model.PowerIdle:
		e.hyst.RecordTransition(hysteresis.TransitionStop, roomTemp)
		e.countTransition("stop")
		e.log.Debug("cooling stop transition",
			zap.Float64("room_temp", roomTemp), zap.String("bucket", string(previous)))
	}
}

func (e *Engine) countTransition(kind string) {
	if e.met != nil {
		e.met.TransitionsTotal.WithLabelValues(kind).Inc()
	}
}

// powerPhrase names the current power state for the reason string, empty
// when no power reading is available.
func powerPhrase(cfg Config, power *float64) string {
	if cfg.PowerSensor == "" || power == nil {
		return ""
	}
	switch {
	case *power < cfg.PowerIdleThreshold:
		return string(model.PowerIdle)
	case *power < cfg.PowerMinThreshold:
		return string(model.PowerLow)
	case *power < cfg.PowerMaxThreshold:
		return string(model.PowerModerate)
	default:
		return string(model.PowerHigh)
	}
}
