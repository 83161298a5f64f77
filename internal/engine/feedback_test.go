package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VectorBarks/smart-climate-sub002/internal/model"
)

func feedbackInput() model.OffsetInput {
	input := testInput(24.0, 25.0)
	input.PowerConsumption = fp(30.0)
	return input
}

func pastTime(offset time.Duration) time.Time {
	return time.Now().Add(-time.Hour).Add(offset)
}

func TestFeedback_Accepted(t *testing.T) {
	e := New(testConfig(), nil)
	e.RecordActualPerformance(-1.0, -1.2, feedbackInput(), pastTime(0))
	assert.Equal(t, 1, e.Statistics().SamplesCollected)
}

func TestFeedback_IgnoredWhenLearningDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.EnableLearning = false
	e := New(cfg, nil)

	e.RecordActualPerformance(-1.0, -1.2, feedbackInput(), pastTime(0))
	assert.Equal(t, 0, e.Statistics().SamplesCollected)
}

func TestFeedback_IgnoredWhilePaused(t *testing.T) {
	e := New(testConfig(), nil)
	e.PauseLearning()
	e.RecordActualPerformance(-1.0, -1.2, feedbackInput(), pastTime(0))
	assert.Equal(t, 0, e.Statistics().SamplesCollected)

	e.ResumeLearning()
	e.RecordActualPerformance(-1.0, -1.2, feedbackInput(), pastTime(0))
	assert.Equal(t, 1, e.Statistics().SamplesCollected)
}

func TestFeedback_PredictionSourceRejected(t *testing.T) {
	e := New(testConfig(), nil)

	// A prediction-sourced adjustment is the engine's own output; learning
	// from it would close a feedback loop.
	e.SetAdjustmentSource(SourcePrediction)
	e.RecordActualPerformance(-1.0, -1.2, feedbackInput(), pastTime(0))
	assert.Equal(t, 0, e.Statistics().SamplesCollected)

	e.SetAdjustmentSource(SourceManual)
	e.RecordActualPerformance(-1.0, -1.2, feedbackInput(), pastTime(0))
	assert.Equal(t, 1, e.Statistics().SamplesCollected)

	e.SetAdjustmentSource(SourceExternal)
	e.RecordActualPerformance(-1.0, -1.2, feedbackInput(), pastTime(2*time.Minute))
	assert.Equal(t, 2, e.Statistics().SamplesCollected)
}

func TestFeedback_MissingCriticalSensorRejected(t *testing.T) {
	e := New(testConfig(), nil)

	input := feedbackInput()
	input.RoomTemp = nil
	e.RecordActualPerformance(-1.0, -1.2, input, pastTime(0))

	input = feedbackInput()
	input.ACInternalTemp = nil
	e.RecordActualPerformance(-1.0, -1.2, input, pastTime(time.Minute))

	assert.Equal(t, 0, e.Statistics().SamplesCollected)
}

func TestFeedback_HVACModeEligibility(t *testing.T) {
	e := New(testConfig(), nil)

	rejected := []string{"fan_only", "off"}
	for i, mode := range rejected {
		input := feedbackInput()
		input.HVACMode = &rejected[i]
		e.RecordActualPerformance(-1.0, -1.2, input, pastTime(time.Duration(i)*2*time.Minute))
		assert.Equal(t, 0, e.Statistics().SamplesCollected, "mode %s must be rejected", mode)
	}

	accepted := []string{"cool", "heat", "heat_cool", "dry", "auto"}
	for i := range accepted {
		input := feedbackInput()
		input.HVACMode = &accepted[i]
		e.RecordActualPerformance(-1.0, -1.2, input, pastTime(time.Duration(10+2*i)*time.Minute))
	}
	assert.Equal(t, len(accepted), e.Statistics().SamplesCollected)

	// A nil HVAC mode means the sensor is not configured, not an exclusion.
	e.RecordActualPerformance(-1.0, -1.2, feedbackInput(), pastTime(40*time.Minute))
	assert.Equal(t, len(accepted)+1, e.Statistics().SamplesCollected)
}

func TestFeedback_ValidationBounds(t *testing.T) {
	e := New(testConfig(), nil)

	// Offset outside [-10, 10].
	e.RecordActualPerformance(-1.0, 10.5, feedbackInput(), pastTime(0))
	e.RecordActualPerformance(-1.0, -10.5, feedbackInput(), pastTime(time.Minute))
	assert.Equal(t, 0, e.Statistics().SamplesCollected)

	// Room temperature outside [10, 40].
	input := testInput(24.0, 9.5)
	e.RecordActualPerformance(-1.0, -1.2, input, pastTime(2*time.Minute))
	input = testInput(24.0, 40.5)
	e.RecordActualPerformance(-1.0, -1.2, input, pastTime(3*time.Minute))
	assert.Equal(t, 0, e.Statistics().SamplesCollected)

	// Boundary values are valid.
	e.RecordActualPerformance(-1.0, 10.0, feedbackInput(), pastTime(4*time.Minute))
	assert.Equal(t, 1, e.Statistics().SamplesCollected)
}

func TestFeedback_FutureTimestampRejected(t *testing.T) {
	e := New(testConfig(), nil)
	e.RecordActualPerformance(-1.0, -1.2, feedbackInput(), time.Now().Add(time.Hour))
	assert.Equal(t, 0, e.Statistics().SamplesCollected)

	e.RecordActualPerformance(-1.0, -1.2, feedbackInput(), time.Time{})
	assert.Equal(t, 0, e.Statistics().SamplesCollected, "zero timestamp rejected")
}

func TestFeedback_RateLimit(t *testing.T) {
	e := New(testConfig(), nil)

	e.RecordActualPerformance(-1.0, -1.2, feedbackInput(), pastTime(0))
	require.Equal(t, 1, e.Statistics().SamplesCollected)

	// 30 seconds later: under the 60-second limit.
	e.RecordActualPerformance(-1.0, -1.2, feedbackInput(), pastTime(30*time.Second))
	assert.Equal(t, 1, e.Statistics().SamplesCollected)

	// Exactly one limit later is accepted.
	e.RecordActualPerformance(-1.0, -1.2, feedbackInput(), pastTime(60*time.Second))
	assert.Equal(t, 2, e.Statistics().SamplesCollected)
}

func TestFeedback_OutOfOrderBypassesRateLimit(t *testing.T) {
	e := New(testConfig(), nil)

	e.RecordActualPerformance(-1.0, -1.2, feedbackInput(), pastTime(10*time.Minute))
	require.Equal(t, 1, e.Statistics().SamplesCollected)

	// Replayed history arrives with older timestamps; the rate limit only
	// applies to chronologically newer feedback.
	e.RecordActualPerformance(-1.0, -1.2, feedbackInput(), pastTime(9*time.Minute))
	assert.Equal(t, 2, e.Statistics().SamplesCollected)

	// The watermark stayed at the newest accepted timestamp: 30 seconds
	// past it is still rate limited.
	e.RecordActualPerformance(-1.0, -1.2, feedbackInput(), pastTime(10*time.Minute+30*time.Second))
	assert.Equal(t, 2, e.Statistics().SamplesCollected)

	e.RecordActualPerformance(-1.0, -1.2, feedbackInput(), pastTime(11*time.Minute))
	assert.Equal(t, 3, e.Statistics().SamplesCollected)
}

func TestFeedback_RoomTemperatureOutlierRejected(t *testing.T) {
	e := New(testConfig(), nil)

	// Build up a flat history around 25°C.
	for i := 0; i < 12; i++ {
		e.RecordActualPerformance(-1.0, -1.2, feedbackInput(), pastTime(time.Duration(i)*2*time.Minute))
	}
	require.Equal(t, 12, e.Statistics().SamplesCollected)

	// 39°C passes range validation but is 14°C from every recorded reading.
	input := testInput(24.0, 39.0)
	input.PowerConsumption = fp(30.0)
	e.RecordActualPerformance(-1.0, -1.2, input, pastTime(30*time.Minute))
	assert.Equal(t, 12, e.Statistics().SamplesCollected)
}
