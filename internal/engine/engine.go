// Package engine orchestrates adaptive offset correction for one climate
// entity: rule-based calculation, calibration bootstrapping, hysteresis
// classification, learned-offset blending, confidence scoring, feedback
// recording and state snapshots. Every public operation returns a well-formed
// result; no failure propagates past this package.
package engine

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/VectorBarks/smart-climate-sub002/internal/history"
	"github.com/VectorBarks/smart-climate-sub002/internal/hysteresis"
	"github.com/VectorBarks/smart-climate-sub002/internal/learner"
	"github.com/VectorBarks/smart-climate-sub002/internal/metrics"
	"github.com/VectorBarks/smart-climate-sub002/internal/model"
	"github.com/VectorBarks/smart-climate-sub002/internal/outlier"
)

// AdjustmentSource tags where the most recent temperature adjustment came
// from. Feedback recorded while the source is a prediction is discarded so
// the engine never learns from its own output.
type AdjustmentSource string

const (
	SourceNone       AdjustmentSource = ""
	SourcePrediction AdjustmentSource = "prediction"
	SourceManual     AdjustmentSource = "manual"
	SourceExternal   AdjustmentSource = "external"
)

// ReasonSafeFallback is returned when a critical sensor is unavailable.
const ReasonSafeFallback = "Critical sensor unavailable, using safe fallback"

// ReasonErrorFallback is returned when the calculation itself failed.
const ReasonErrorFallback = "Error in calculation, using safe fallback"

// predictionConfidenceWeight is the fixed blend weight given to a learned
// prediction over the rule-based offset.
const predictionConfidenceWeight = 0.8

// minBlendWeight gates blending: predictions below this weight are ignored.
const minBlendWeight = 0.1

// humidityReasonThreshold is the minimum |contribution| shown numerically.
const humidityReasonThreshold = 0.05

// OffsetPredictor is the learning sub-component owned by the engine.
// Replaced wholesale on reset.
type OffsetPredictor interface {
	AddSample(s learner.Sample)
	Predict(q learner.Query) (float64, error)
	Statistics() learner.Statistics
	Len() int
	SerializeForPersistence() map[string]any
	RestoreFromPersistence(data any) bool
}

// HysteresisDetector is the power-transition learner owned by the engine.
type HysteresisDetector interface {
	RecordTransition(kind hysteresis.TransitionKind, roomTemp float64)
	State(power model.PowerState, roomTemp float64) model.HysteresisState
	HasSufficientData() bool
	Thresholds() (start, stop *float64)
	SampleCounts() (starts, stops int)
	SerializeForPersistence() map[string]any
	RestoreFromPersistence(data any)
}

// SeasonalAdjuster is an external collaborator that replaces the plain
// temperature difference with an outdoor-aware base offset.
type SeasonalAdjuster interface {
	AdjustedBaseOffset(acTemp, roomTemp, outdoorTemp float64) (float64, error)
	ConfidenceBoost() float64
}

// Engine is the per-entity offset orchestrator. Operations are not safe for
// concurrent use; the host serializes entity callbacks.
type Engine struct {
	cfg Config
	log *zap.Logger
	met *metrics.Metrics

	learner OffsetPredictor
	hyst    HysteresisDetector

	tempOutliers  *outlier.Detector
	powerOutliers *outlier.Detector

	seasonal SeasonalAdjuster
	hist     *history.Store

	stableCalibrationOffset *float64
	lastPowerState          model.PowerState
	adjustmentSource        AdjustmentSource
	learningPaused          bool
	lastAcceptedFeedback    time.Time

	lastSaveDuration *time.Duration

	dashboard *metricCache

	now func() time.Time
}

// New constructs an engine. The config is normalized with clamp-and-warn.
func New(cfg Config, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	cfg.normalize(log)

	e := &Engine{
		cfg:       cfg,
		log:       log.With(zap.String("entity", cfg.EntityID)),
		dashboard: newMetricCache(),
		now:       time.Now,
	}
	e.learner = learner.New(cfg.LearnerSampleCap)
	e.hyst = hysteresis.New(cfg.HysteresisSampleCap, cfg.HysteresisMinSamples)
	e.tempOutliers = outlier.New(100, 10, 3.5, -40, 60)
	// Power draw is bimodal (idle vs cooling), so only plausibility bounds
	// apply; statistical scoring would reject one of the modes.
	e.powerOutliers = outlier.NewBounds(0, 10000)
	return e
}

// Config returns the normalized configuration.
func (e *Engine) Config() Config { return e.cfg }

// UseMetrics attaches Prometheus collectors. Optional.
func (e *Engine) UseMetrics(m *metrics.Metrics) { e.met = m }

// UseSeasonal attaches the seasonal adjustment collaborator. Optional.
func (e *Engine) UseSeasonal(s SeasonalAdjuster) { e.seasonal = s }

// UseHistory attaches the observation history store feeding trend metrics.
func (e *Engine) UseHistory(h *history.Store) { e.hist = h }

// SetEnableLearning toggles learning at runtime.
func (e *Engine) SetEnableLearning(enabled bool) {
	e.cfg.EnableLearning = enabled
}

// LearningEnabled reports the current learning flag.
func (e *Engine) LearningEnabled() bool { return e.cfg.EnableLearning }

// SetAdjustmentSource records where the latest setpoint adjustment came
// from. See AdjustmentSource.
func (e *Engine) SetAdjustmentSource(src AdjustmentSource) {
	e.adjustmentSource = src
}

// PauseLearning suspends feedback recording without discarding state.
func (e *Engine) PauseLearning() { e.learningPaused = true }

// ResumeLearning re-enables feedback recording.
func (e *Engine) ResumeLearning() { e.learningPaused = false }

// Reset discards all learned state by constructing fresh sub-learners and
// clearing cached calibration and transition tracking.
func (e *Engine) Reset() {
	e.learner = learner.New(e.cfg.LearnerSampleCap)
	e.hyst = hysteresis.New(e.cfg.HysteresisSampleCap, e.cfg.HysteresisMinSamples)
	e.stableCalibrationOffset = nil
	e.lastPowerState = ""
	e.lastAcceptedFeedback = time.Time{}
	e.adjustmentSource = SourceNone
	e.dashboard.invalidateAll()
	e.log.Info("learning state reset")
}

// InCalibration reports whether the engine is still bootstrapping.
// Exiting calibration is purely a function of collected samples.
func (e *Engine) InCalibration() bool {
	return e.learner.Len() < MinSamplesForActiveControl
}

// CalculateOffset turns a sensor snapshot into a corrected offset. It never
// fails: missing critical sensors or internal errors yield the safe fallback
// result (offset 0, confidence 0). A panic anywhere in the pipeline,
// collaborators included, is recovered into the error fallback.
func (e *Engine) CalculateOffset(input model.OffsetInput) (res model.OffsetResult) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("offset calculation failed, using safe fallback",
				zap.Any("panic", r))
			if e.met != nil {
				e.met.SafeFallbackTotal.Inc()
			}
			res = model.OffsetResult{Reason: ReasonErrorFallback}
		}
	}()

	res = e.calculate(input)

	if e.met != nil {
		phase := "active"
		if e.InCalibration() {
			phase = "calibration"
		}
		e.met.CalculationsTotal.WithLabelValues(e.cfg.EntityID, phase).Inc()
		if res.Clamped {
			e.met.ClampedTotal.Inc()
		}
		if res.Confidence == 0 {
			e.met.SafeFallbackTotal.Inc()
		}
		e.met.LearningConfidence.WithLabelValues(e.cfg.EntityID).Set(res.Confidence)
	}
	return res
}

func (e *Engine) calculate(input model.OffsetInput) model.OffsetResult {
	if input.ACInternalTemp == nil || input.RoomTemp == nil {
		e.log.Warn("critical sensor unavailable",
			zap.Bool("ac_temp", input.ACInternalTemp != nil),
			zap.Bool("room_temp", input.RoomTemp != nil))
		return model.OffsetResult{Reason: ReasonSafeFallback}
	}

	acTemp := *input.ACInternalTemp
	roomTemp := *input.RoomTemp

	// Transition detection always runs, even during calibration, so the
	// hysteresis learner sees every idle boundary crossing.
	e.detectPowerTransition(input.PowerConsumption, roomTemp)

	if e.InCalibration() {
		return e.calibrate(acTemp, roomTemp, input.PowerConsumption)
	}
	return e.activePipeline(input, acTemp, roomTemp)
}

func (e *Engine) activePipeline(input model.OffsetInput, acTemp, roomTemp float64) model.OffsetResult {
	var r reasonParts

	ruleBased, seasonalUsed := e.baseOffset(acTemp, roomTemp, input.OutdoorTemp)
	r.seasonal = seasonalUsed

	ruleBased *= modeMultiplier(input.Mode)
	ruleBased *= e.contextMultiplier(input, roomTemp)

	hystState := e.classifyHysteresis(input.PowerConsumption, roomTemp)

	final := ruleBased
	learningUsed := false
	if e.cfg.EnableLearning && e.learner.Len() > 0 {
		query := queryFromInput(input, acTemp, roomTemp, hystState)
		predicted, err := e.learner.Predict(query)
		if err != nil {
			e.log.Debug("prediction unavailable, using rule-based offset", zap.Error(err))
			r.learningErr = err
		} else if predictionConfidenceWeight > minBlendWeight {
			final = (1-predictionConfidenceWeight)*ruleBased + predictionConfidenceWeight*predicted
			learningUsed = true
			r.learningSamples = e.learner.Len()
		}
	}

	// The humidity phrase follows humidity presence, not learning: without a
	// usable prediction the contribution is simply zero.
	r.humidityPresent = humidityPresent(input)
	if r.humidityPresent && learningUsed {
		r.humidityContribution = e.humidityContribution(input, acTemp, roomTemp, hystState)
	}

	offset, clamped := e.clampOffset(final)
	r.clamped = clamped

	confidence := e.confidence(input, learningUsed)

	r.diff = acTemp - roomTemp
	r.mode = input.Mode
	r.power = powerPhrase(e.cfg, input.PowerConsumption)
	r.outdoorDiff = outdoorDifferential(input.OutdoorTemp, roomTemp)
	r.maxOffset = e.cfg.MaxOffset

	return model.OffsetResult{
		Offset:     offset,
		Clamped:    clamped,
		Reason:     r.build(),
		Confidence: confidence,
	}
}

// baseOffset computes the rule-based offset, delegating to the seasonal
// collaborator when outdoor-driven features are enabled. A collaborator
// failure degrades to the plain temperature difference.
func (e *Engine) baseOffset(acTemp, roomTemp float64, outdoorTemp *float64) (float64, bool) {
	if e.seasonal != nil && e.cfg.OutdoorSensor != "" && outdoorTemp != nil {
		base, err := e.seasonal.AdjustedBaseOffset(acTemp, roomTemp, *outdoorTemp)
		if err == nil {
			return base, true
		}
		e.log.Warn("seasonal adjustment failed, using temperature difference", zap.Error(err))
	}
	return acTemp - roomTemp, false
}

func modeMultiplier(mode model.Mode) float64 {
	switch mode {
	case model.ModeAway:
		return 0.5
	case model.ModeSleep:
		return 0.8
	case model.ModeBoost:
		return 1.2
	default:
		return 1.0
	}
}

// contextMultiplier composes the outdoor-differential and power multipliers,
// in this fixed order. The order compounds multiplicatively and is pinned by
// regression tests; do not reorder.
func (e *Engine) contextMultiplier(input model.OffsetInput, roomTemp float64) float64 {
	m := 1.0
	if d := outdoorDifferential(input.OutdoorTemp, roomTemp); d != nil {
		if *d > 10 {
			m *= 1.1
		} else if *d < -10 {
			m *= 0.9
		}
	}
	if input.PowerConsumption != nil {
		switch e.powerState(*input.PowerConsumption) {
		case model.PowerHigh:
			m *= 0.9
		case model.PowerLow, model.PowerIdle:
			m *= 1.1
		}
	}
	return m
}

// classifyHysteresis maps current power and room temperature onto the
// learned control band. With no power sensor configured the state is the
// explicit not-applicable variant rather than a classification.
func (e *Engine) classifyHysteresis(power *float64, roomTemp float64) model.HysteresisState {
	if e.cfg.PowerSensor == "" {
		return model.HysteresisNoPowerSensor
	}
	bucket := model.PowerIdle
	if power != nil {
		bucket = e.powerState(*power)
	}
	return e.hyst.State(bucket, roomTemp)
}

// humidityContribution reports, for diagnostics only, how much the humidity
// fields moved the prediction: the delta between predicting with and without
// them. Failures zero the contribution and never affect the main result.
func (e *Engine) humidityContribution(input model.OffsetInput, acTemp, roomTemp float64, hystState model.HysteresisState) float64 {
	with := queryFromInput(input, acTemp, roomTemp, hystState)
	without := with
	without.IndoorHumidity = nil
	without.OutdoorHumidity = nil

	pWith, err1 := e.learner.Predict(with)
	pWithout, err2 := e.learner.Predict(without)
	if err1 != nil || err2 != nil {
		return 0
	}
	return pWith - pWithout
}

// confidence scores trust in the result from sensor availability, blended
// with the learner's accuracy when a prediction was used.
func (e *Engine) confidence(input model.OffsetInput, learningUsed bool) float64 {
	c := 0.5
	if input.OutdoorTemp != nil {
		c += 0.2
	}
	if input.PowerConsumption != nil {
		c += 0.2
	}
	if input.Mode != model.ModeNone && input.Mode != "" {
		c += 0.1
	}
	if e.seasonal != nil && e.cfg.OutdoorSensor != "" {
		c += e.seasonal.ConfidenceBoost()
	}
	if learningUsed {
		c = 0.6*c + 0.4*e.learner.Statistics().AvgAccuracy
	}
	return math.Min(1, math.Max(0, c))
}

// clampOffset limits offset to ±MaxOffset, reporting whether it was clamped.
func (e *Engine) clampOffset(offset float64) (float64, bool) {
	if offset > e.cfg.MaxOffset {
		return e.cfg.MaxOffset, true
	}
	if offset < -e.cfg.MaxOffset {
		return -e.cfg.MaxOffset, true
	}
	return offset, false
}

func queryFromInput(input model.OffsetInput, acTemp, roomTemp float64, hystState model.HysteresisState) learner.Query {
	return learner.Query{
		ACTemp:          acTemp,
		RoomTemp:        roomTemp,
		OutdoorTemp:     input.OutdoorTemp,
		Mode:            input.Mode,
		Power:           input.PowerConsumption,
		HysteresisState: hystState,
		IndoorHumidity:  input.IndoorHumidity,
		OutdoorHumidity: input.OutdoorHumidity,
	}
}

func humidityPresent(input model.OffsetInput) bool {
	return (input.IndoorHumidity != nil && *input.IndoorHumidity != 0) ||
		(input.OutdoorHumidity != nil && *input.OutdoorHumidity != 0)
}

// outdoorDifferential is outdoor minus room temperature, nil without an
// outdoor reading.
func outdoorDifferential(outdoorTemp *float64, roomTemp float64) *float64 {
	if outdoorTemp == nil {
		return nil
	}
	d := *outdoorTemp - roomTemp
	return &d
}

// Statistics returns the learner statistics for dashboards and persistence.
func (e *Engine) Statistics() learner.Statistics {
	return e.learner.Statistics()
}

// HysteresisThresholds returns the learned control band bounds, nil while
// insufficient data exists.
func (e *Engine) HysteresisThresholds() (start, stop *float64) {
	return e.hyst.Thresholds()
}

func (e *Engine) String() string {
	return fmt.Sprintf("OffsetEngine(%s)", e.cfg.EntityID)
}
