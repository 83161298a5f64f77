package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VectorBarks/smart-climate-sub002/internal/history"
	"github.com/VectorBarks/smart-climate-sub002/internal/learner"
	"github.com/VectorBarks/smart-climate-sub002/internal/model"
)

func TestMetricCache_TTLExpiry(t *testing.T) {
	c := newMetricCache()
	base := time.Now()
	calls := 0
	compute := func() (any, error) {
		calls++
		return calls, nil
	}

	v := c.get("m", time.Minute, base, compute)
	assert.Equal(t, 1, v)

	// Within TTL: cached.
	v = c.get("m", time.Minute, base.Add(30*time.Second), compute)
	assert.Equal(t, 1, v)
	assert.Equal(t, 1, calls)

	// Past TTL: recomputed.
	v = c.get("m", time.Minute, base.Add(61*time.Second), compute)
	assert.Equal(t, 2, v)
}

func TestMetricCache_ZeroTTLOnlyInvalidationRefreshes(t *testing.T) {
	c := newMetricCache()
	base := time.Now()
	calls := 0
	compute := func() (any, error) {
		calls++
		return calls, nil
	}

	c.get("m", 0, base, compute)
	v := c.get("m", 0, base.Add(24*time.Hour), compute)
	assert.Equal(t, 1, v, "no time-based expiry")

	c.invalidate("m")
	v = c.get("m", 0, base.Add(24*time.Hour), compute)
	assert.Equal(t, 2, v)
}

func TestMetricCache_ComputeErrorServesStaleValue(t *testing.T) {
	c := newMetricCache()
	base := time.Now()

	v := c.get("m", time.Minute, base, func() (any, error) { return 42, nil })
	require.Equal(t, 42, v)

	// Recompute fails after expiry: last-known-good wins.
	v = c.get("m", time.Minute, base.Add(2*time.Minute), func() (any, error) {
		return nil, errors.New("source unavailable")
	})
	assert.Equal(t, 42, v)

	// No previous value at all: nil.
	v = c.get("fresh", time.Minute, base, func() (any, error) {
		return nil, errors.New("source unavailable")
	})
	assert.Nil(t, v)
}

func TestDashboard_Snapshot(t *testing.T) {
	e := New(testConfig(), nil)
	train(t, e, 12)

	snap := e.Dashboard()
	assert.Equal(t, "climate.living_room", snap.EntityID)
	assert.True(t, snap.LearningEnabled)
	assert.False(t, snap.LearningPaused)
	assert.False(t, snap.CalibrationPhase)
	assert.Equal(t, "10/10", snap.CalibrationProgress)
	assert.Equal(t, 12, snap.SamplesCollected)
	assert.InDelta(t, 1.0, snap.AvgAccuracy, 1e-9)
	require.NotNil(t, snap.LastSampleTime)
	assert.Greater(t, snap.MemoryAllocKB, 0.0)
	assert.Nil(t, snap.LastSaveMillis, "no save recorded yet")
	assert.Nil(t, snap.Trend, "no history store attached")
}

func TestDashboard_CalibrationProgress(t *testing.T) {
	e := New(testConfig(), nil)
	train(t, e, 3)

	snap := e.Dashboard()
	assert.True(t, snap.CalibrationPhase)
	assert.Equal(t, "3/10", snap.CalibrationProgress)
}

func TestDashboard_GeneralCacheInvalidatedByFeedback(t *testing.T) {
	e := New(testConfig(), nil)
	train(t, e, 2)

	snap := e.Dashboard()
	require.Equal(t, 2, snap.SamplesCollected)

	// New feedback invalidates the cached general stats even though the
	// one-minute TTL has not expired.
	train(t, e, 1)
	snap = e.Dashboard()
	assert.Equal(t, 3, snap.SamplesCollected)
}

func TestDashboard_GeneralCacheServesWithinTTL(t *testing.T) {
	e := New(testConfig(), nil)
	base := time.Now()
	e.now = func() time.Time { return base }
	train(t, e, 2)
	require.Equal(t, 2, e.Dashboard().SamplesCollected)

	// Adding a sample directly bypasses the feedback invalidation path; the
	// cached stats survive within the TTL and refresh after it.
	e.learner.AddSample(learner.Sample{Predicted: -1, Actual: -1, ACTemp: 24, RoomTemp: 25})
	assert.Equal(t, 2, e.Dashboard().SamplesCollected)

	e.now = func() time.Time { return base.Add(2 * time.Minute) }
	assert.Equal(t, 3, e.Dashboard().SamplesCollected)
}

func TestDashboard_SaveLatency(t *testing.T) {
	e := New(testConfig(), nil)

	e.RecordSaveDuration(42 * time.Millisecond)
	snap := e.Dashboard()
	require.NotNil(t, snap.LastSaveMillis)
	assert.Equal(t, 42.0, *snap.LastSaveMillis)

	// A new save invalidates the cached latency immediately.
	e.RecordSaveDuration(7 * time.Millisecond)
	snap = e.Dashboard()
	require.NotNil(t, snap.LastSaveMillis)
	assert.Equal(t, 7.0, *snap.LastSaveMillis)
}

func TestDashboard_TrendFromHistory(t *testing.T) {
	e := New(testConfig(), nil)
	hist := history.New(1000)
	e.UseHistory(hist)

	base := time.Now().Add(-2 * time.Hour)
	for i := 0; i < 24; i++ {
		temp := 24.0 + float64(i)*0.05
		ac := temp - 1.0
		hist.Add(model.Observation{
			Timestamp:      base.Add(time.Duration(i) * 5 * time.Minute),
			EntityID:       "climate.living_room",
			RoomTemp:       &temp,
			ACInternalTemp: &ac,
		})
	}

	snap := e.Dashboard()
	require.NotNil(t, snap.Trend)
	assert.Greater(t, snap.Trend.SlopePerHour, 0.0, "room is warming")
}
