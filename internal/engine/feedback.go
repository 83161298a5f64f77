package engine

import (
	"time"

	"go.uber.org/zap"

	"github.com/VectorBarks/smart-climate-sub002/internal/learner"
	"github.com/VectorBarks/smart-climate-sub002/internal/model"
	"github.com/VectorBarks/smart-climate-sub002/internal/sanitize"
)

// learningEligibleHVACModes are the HVAC modes under which feedback is a
// meaningful training signal. A nil HVAC mode on the input is accepted (the
// sensor is optional).
var learningEligibleHVACModes = map[string]bool{
	"cool":      true,
	"heat":      true,
	"heat_cool": true,
	"dry":       true,
	"auto":      true,
}

// RecordActualPerformance reports the offset that turned out to be needed
// for a snapshot the engine previously predicted on. Every rejection path is
// a silent (logged) early return; nothing propagates to the caller.
func (e *Engine) RecordActualPerformance(predicted, actual float64, input model.OffsetInput, when time.Time) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("feedback recording failed, sample discarded",
				zap.Any("panic", r))
		}
	}()

	if !e.cfg.EnableLearning || e.learner == nil {
		return
	}
	if e.learningPaused {
		e.log.Debug("feedback ignored: learning paused")
		return
	}
	if e.adjustmentSource == SourcePrediction {
		// The adjustment being reported came from our own prediction.
		// Learning from it would close a feedback loop and oscillate.
		e.log.Debug("feedback ignored: prediction-sourced adjustment")
		e.rejectFeedback("prediction_source")
		return
	}
	if input.ACInternalTemp == nil || input.RoomTemp == nil {
		e.log.Debug("feedback ignored: critical sensor unavailable")
		e.rejectFeedback("missing_sensor")
		return
	}
	if input.HVACMode != nil && !learningEligibleHVACModes[*input.HVACMode] {
		e.log.Debug("feedback ignored: HVAC mode not learning-eligible",
			zap.String("hvac_mode", *input.HVACMode))
		e.rejectFeedback("hvac_mode")
		return
	}
	if !e.validateFeedback(actual, *input.RoomTemp, when) {
		e.rejectFeedback("validation")
		return
	}
	if e.tempOutliers.IsOutlier(*input.RoomTemp) {
		e.log.Warn("feedback ignored: room temperature flagged as outlier",
			zap.Float64("room_temp", *input.RoomTemp))
		e.rejectFeedback("outlier")
		return
	}
	e.tempOutliers.Record(*input.RoomTemp)

	sample := learner.Sample{
		Predicted:       predicted,
		Actual:          actual,
		ACTemp:          *input.ACInternalTemp,
		RoomTemp:        *input.RoomTemp,
		OutdoorTemp:     sanitize.Float(input.OutdoorTemp),
		Mode:            input.Mode,
		Power:           sanitize.Float(input.PowerConsumption),
		HysteresisState: e.classifyHysteresis(input.PowerConsumption, *input.RoomTemp),
		IndoorHumidity:  sanitize.Humidity(input.IndoorHumidity),
		OutdoorHumidity: sanitize.Humidity(input.OutdoorHumidity),
		Timestamp:       when,
	}
	e.learner.AddSample(sample)

	if e.met != nil {
		e.met.FeedbackAccepted.Inc()
		e.met.SamplesCollected.WithLabelValues(e.cfg.EntityID).Set(float64(e.learner.Len()))
	}
	e.dashboard.invalidate(metricGeneral)
	e.log.Debug("feedback sample recorded",
		zap.Float64("predicted", predicted),
		zap.Float64("actual", actual),
		zap.Int("samples", e.learner.Len()))
}

// validateFeedback applies numeric, range, chronology and rate-limit checks
// to a feedback triple. It logs a warning and returns false on rejection. The
// accepted-timestamp watermark only moves forward.
func (e *Engine) validateFeedback(offset, roomTemp float64, when time.Time) bool {
	offsetVal := sanitize.Number(offset)
	roomVal := sanitize.Number(roomTemp)
	if offsetVal == nil || roomVal == nil || when.IsZero() {
		e.log.Warn("feedback rejected: missing or non-numeric value")
		return false
	}
	if *offsetVal < e.cfg.ValidationOffsetMin || *offsetVal > e.cfg.ValidationOffsetMax {
		e.log.Warn("feedback rejected: offset out of bounds",
			zap.Float64("offset", *offsetVal),
			zap.Float64("min", e.cfg.ValidationOffsetMin),
			zap.Float64("max", e.cfg.ValidationOffsetMax))
		return false
	}
	if *roomVal < e.cfg.ValidationTempMin || *roomVal > e.cfg.ValidationTempMax {
		e.log.Warn("feedback rejected: room temperature out of bounds",
			zap.Float64("room_temp", *roomVal),
			zap.Float64("min", e.cfg.ValidationTempMin),
			zap.Float64("max", e.cfg.ValidationTempMax))
		return false
	}
	if when.After(e.now()) {
		e.log.Warn("feedback rejected: timestamp in the future",
			zap.Time("timestamp", when))
		return false
	}
	// Rate limiting only applies to chronologically newer feedback.
	// Out-of-order timestamps bypass it, a deliberate leniency for replay.
	if !e.lastAcceptedFeedback.IsZero() && when.After(e.lastAcceptedFeedback) {
		if when.Sub(e.lastAcceptedFeedback) < e.cfg.ValidationRateLimit {
			e.log.Warn("feedback rejected: rate limited",
				zap.Time("timestamp", when),
				zap.Time("last_accepted", e.lastAcceptedFeedback),
				zap.Duration("limit", e.cfg.ValidationRateLimit))
			return false
		}
	}
	if when.After(e.lastAcceptedFeedback) {
		e.lastAcceptedFeedback = when
	}
	return true
}

func (e *Engine) rejectFeedback(reason string) {
	if e.met != nil {
		e.met.FeedbackRejected.WithLabelValues(reason).Inc()
	}
}
