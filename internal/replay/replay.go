// Package replay drives recorded observations through an offset engine in
// time order, simulating the feedback loop offline. It reports how the
// learner converges, which is the main evaluation tool for tuning engine
// configuration against real household data.
package replay

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/VectorBarks/smart-climate-sub002/internal/engine"
	"github.com/VectorBarks/smart-climate-sub002/internal/model"
)

// Step is one replayed calculation.
type Step struct {
	Index     int               `json:"index"`
	Timestamp time.Time         `json:"timestamp"`
	Result    model.OffsetResult `json:"result"`
	// NaiveOffset is the raw temperature difference, the zero-learning
	// baseline the result is judged against.
	NaiveOffset float64 `json:"naive_offset"`
}

// Summary aggregates a full replay run.
type Summary struct {
	Steps            int `json:"steps"`
	SafeFallbacks    int `json:"safe_fallbacks"`
	FeedbackAccepted int `json:"feedback_accepted"`
	// CalibrationExitStep is the index of the first non-calibration
	// calculation, -1 if calibration never ended.
	CalibrationExitStep int     `json:"calibration_exit_step"`
	FinalSamples        int     `json:"final_samples"`
	MeanAbsError        float64 `json:"mean_abs_error"`
}

// Callback receives replay events. Implementations must not block.
type Callback interface {
	OnStep(s Step)
	OnSummary(s Summary)
}

// Runner replays observations through one engine.
type Runner struct {
	engine *engine.Engine
	log    *zap.Logger

	// FeedbackDelay is how far ahead of each observation the runner looks
	// for the stabilized reading used as ground-truth feedback.
	FeedbackDelay time.Duration

	callback Callback
}

// New creates a runner. callback may be nil.
func New(eng *engine.Engine, log *zap.Logger, callback Callback) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		engine:        eng,
		log:           log,
		FeedbackDelay: 15 * time.Minute,
		callback:      callback,
	}
}

// Run replays observations in order and returns the run summary.
// Observations must be sorted by timestamp; rows missing either critical
// temperature still go through the engine to exercise its fallback path.
func (r *Runner) Run(observations []model.Observation) Summary {
	summary := Summary{CalibrationExitStep: -1}
	samplesBefore := r.engine.Statistics().SamplesCollected

	var errSum float64
	errCount := 0

	for i, obs := range observations {
		input := inputFromObservation(obs)
		if summary.CalibrationExitStep < 0 && !r.engine.InCalibration() {
			summary.CalibrationExitStep = i
			r.log.Info("calibration phase ended", zap.Int("step", i))
		}

		result := r.engine.CalculateOffset(input)
		summary.Steps++
		if result.Confidence == 0 {
			summary.SafeFallbacks++
		}

		step := Step{Index: i, Timestamp: obs.Timestamp, Result: result}
		if obs.ACInternalTemp != nil && obs.RoomTemp != nil {
			step.NaiveOffset = *obs.ACInternalTemp - *obs.RoomTemp
		}
		if r.callback != nil {
			r.callback.OnStep(step)
		}

		// Ground truth: the temperature difference once the unit has had
		// time to stabilize after this observation.
		if actual, ok := stabilizedOffset(observations, i, r.FeedbackDelay); ok {
			r.engine.SetAdjustmentSource(engine.SourceExternal)
			before := r.engine.Statistics().SamplesCollected
			r.engine.RecordActualPerformance(result.Offset, actual, input, obs.Timestamp)
			if r.engine.Statistics().SamplesCollected > before {
				summary.FeedbackAccepted++
				errSum += math.Abs(result.Offset - actual)
				errCount++
			}
		}
	}

	summary.FinalSamples = r.engine.Statistics().SamplesCollected
	if errCount > 0 {
		summary.MeanAbsError = errSum / float64(errCount)
	}
	r.log.Info("replay finished",
		zap.Int("steps", summary.Steps),
		zap.Int("feedback_accepted", summary.FeedbackAccepted),
		zap.Int("samples_gained", summary.FinalSamples-samplesBefore),
		zap.Float64("mean_abs_error", summary.MeanAbsError))

	if r.callback != nil {
		r.callback.OnSummary(summary)
	}
	return summary
}

// stabilizedOffset finds the first observation at least delay after index i
// that carries both temperatures, and returns its temperature difference.
func stabilizedOffset(observations []model.Observation, i int, delay time.Duration) (float64, bool) {
	target := observations[i].Timestamp.Add(delay)
	for j := i + 1; j < len(observations); j++ {
		obs := observations[j]
		if obs.Timestamp.Before(target) {
			continue
		}
		if obs.ACInternalTemp == nil || obs.RoomTemp == nil {
			continue
		}
		return *obs.ACInternalTemp - *obs.RoomTemp, true
	}
	return 0, false
}

func inputFromObservation(obs model.Observation) model.OffsetInput {
	return model.OffsetInput{
		ACInternalTemp:   obs.ACInternalTemp,
		RoomTemp:         obs.RoomTemp,
		OutdoorTemp:      obs.OutdoorTemp,
		Mode:             model.ModeNone,
		PowerConsumption: obs.PowerW,
		Hour:             obs.Timestamp.Hour(),
		Weekday:          obs.Timestamp.Weekday(),
		IndoorHumidity:   obs.IndoorHumidity,
		OutdoorHumidity:  obs.OutdoorHumidity,
	}
}
