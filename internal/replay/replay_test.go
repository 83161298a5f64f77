package replay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VectorBarks/smart-climate-sub002/internal/engine"
	"github.com/VectorBarks/smart-climate-sub002/internal/model"
)

func fp(v float64) *float64 { return &v }

// steadyObservations builds n observations two minutes apart ending in the
// past, with a constant -1.0 temperature offset.
func steadyObservations(n int) []model.Observation {
	base := time.Now().Add(-48 * time.Hour)
	out := make([]model.Observation, n)
	for i := range out {
		out[i] = model.Observation{
			Timestamp:      base.Add(time.Duration(i) * 2 * time.Minute),
			EntityID:       "climate.test",
			ACInternalTemp: fp(24.0),
			RoomTemp:       fp(25.0),
		}
	}
	return out
}

func newTestEngine() *engine.Engine {
	cfg := engine.DefaultConfig("climate.test")
	cfg.EnableLearning = true
	return engine.New(cfg, nil)
}

type recordingCallback struct {
	steps     []Step
	summaries []Summary
}

func (r *recordingCallback) OnStep(s Step)       { r.steps = append(r.steps, s) }
func (r *recordingCallback) OnSummary(s Summary) { r.summaries = append(r.summaries, s) }

func TestRunner_ConvergesOnSteadyData(t *testing.T) {
	eng := newTestEngine()
	runner := New(eng, nil, nil)

	summary := runner.Run(steadyObservations(40))

	assert.Equal(t, 40, summary.Steps)
	assert.Equal(t, 0, summary.SafeFallbacks)
	assert.Greater(t, summary.FinalSamples, 10)
	assert.Greater(t, summary.FeedbackAccepted, 10)
	assert.Less(t, summary.MeanAbsError, 0.2, "steady data converges quickly")
	assert.False(t, eng.InCalibration())
}

func TestRunner_CalibrationExitStep(t *testing.T) {
	eng := newTestEngine()
	runner := New(eng, nil, nil)

	summary := runner.Run(steadyObservations(40))
	// One feedback sample lands per step; ten samples end calibration, so
	// the first active calculation happens one step later.
	assert.Equal(t, 10, summary.CalibrationExitStep)
}

func TestRunner_CalibrationNeverEndsOnShortRun(t *testing.T) {
	eng := newTestEngine()
	runner := New(eng, nil, nil)

	summary := runner.Run(steadyObservations(5))
	assert.Equal(t, -1, summary.CalibrationExitStep)
	assert.True(t, eng.InCalibration())
}

func TestRunner_MissingSensorsCountSafeFallbacks(t *testing.T) {
	observations := steadyObservations(8)
	observations[2].RoomTemp = nil
	observations[5].ACInternalTemp = nil

	eng := newTestEngine()
	summary := New(eng, nil, nil).Run(observations)
	assert.Equal(t, 2, summary.SafeFallbacks)
	assert.Equal(t, 8, summary.Steps)
}

func TestRunner_CallbackReceivesStepsAndSummary(t *testing.T) {
	cb := &recordingCallback{}
	eng := newTestEngine()
	summary := New(eng, nil, cb).Run(steadyObservations(12))

	require.Len(t, cb.steps, 12)
	assert.Equal(t, 0, cb.steps[0].Index)
	assert.InDelta(t, -1.0, cb.steps[0].NaiveOffset, 1e-9)
	require.Len(t, cb.summaries, 1)
	assert.Equal(t, summary, cb.summaries[0])
}

func TestRunner_NoFeedbackWithoutLookahead(t *testing.T) {
	eng := newTestEngine()
	runner := New(eng, nil, nil)
	runner.FeedbackDelay = time.Hour

	// 10 observations spanning 18 minutes: no observation lies an hour past
	// any other, so no ground truth exists.
	summary := runner.Run(steadyObservations(10))
	assert.Equal(t, 0, summary.FeedbackAccepted)
	assert.Equal(t, 0, summary.FinalSamples)
}

func TestRunner_EmptyInput(t *testing.T) {
	eng := newTestEngine()
	summary := New(eng, nil, nil).Run(nil)
	assert.Equal(t, 0, summary.Steps)
	assert.Equal(t, -1, summary.CalibrationExitStep)
}
