package outlier

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetector_AbsoluteBoundsApplyImmediately(t *testing.T) {
	d := New(100, 10, 3.5, -40, 60)

	assert.True(t, d.IsOutlier(-41), "below hard minimum")
	assert.True(t, d.IsOutlier(61), "above hard maximum")
	assert.False(t, d.IsOutlier(-40), "bounds are inclusive")
	assert.False(t, d.IsOutlier(60))
	assert.False(t, d.IsOutlier(22.5))
}

func TestDetector_NonFiniteAlwaysRejected(t *testing.T) {
	d := New(100, 10, 3.5, -40, 60)
	assert.True(t, d.IsOutlier(math.NaN()))
	assert.True(t, d.IsOutlier(math.Inf(1)))
	assert.True(t, d.IsOutlier(math.Inf(-1)))
}

func TestDetector_StatisticalGateNeedsMinSamples(t *testing.T) {
	d := New(100, 10, 3.5, -40, 60)
	for i := 0; i < 9; i++ {
		d.Record(22.0)
	}
	// Window still below minimum: only bounds apply.
	assert.False(t, d.IsOutlier(55.0))

	d.Record(22.0)
	// Flat history at 22.0 with a 10°C flat band: 55 deviates by 33.
	assert.True(t, d.IsOutlier(55.0))
	assert.False(t, d.IsOutlier(22.0))
}

func TestDetector_ModifiedZScore(t *testing.T) {
	d := New(100, 10, 3.5, -40, 60)
	// Alternating readings around 22 give median 22, MAD 0.5.
	for i := 0; i < 10; i++ {
		if i%2 == 0 {
			d.Record(21.5)
		} else {
			d.Record(22.5)
		}
	}

	// z = 0.6745*(v-22)/0.5; threshold 3.5 crosses at |v-22| ≈ 2.594.
	assert.False(t, d.IsOutlier(24.5))
	assert.True(t, d.IsOutlier(25.0))
	assert.True(t, d.IsOutlier(19.0))
	assert.False(t, d.IsOutlier(20.0))
}

func TestDetector_RejectedValuesDoNotPoisonWindow(t *testing.T) {
	d := New(100, 5, 3.5, -40, 60)
	for i := 0; i < 10; i++ {
		d.Record(22.0)
	}

	// A rejected spike is never recorded, so the window stays flat and the
	// same spike keeps being rejected.
	for i := 0; i < 5; i++ {
		assert.True(t, d.IsOutlier(45.0))
	}
	assert.Equal(t, 10, d.Len())
}

func TestBoundsDetector_NeverScoresStatistically(t *testing.T) {
	d := NewBounds(0, 10000)

	// A bimodal signal: long idle stretches must not make the cooling level
	// an outlier.
	for i := 0; i < 50; i++ {
		require.False(t, d.IsOutlier(30.0))
		d.Record(30.0)
	}
	assert.False(t, d.IsOutlier(800.0))

	assert.True(t, d.IsOutlier(-1.0))
	assert.True(t, d.IsOutlier(10001.0))
	assert.True(t, d.IsOutlier(math.NaN()))
}

func TestDetector_RecordIgnoresNonFinite(t *testing.T) {
	d := New(10, 3, 3.5, -40, 60)
	d.Record(math.NaN())
	d.Record(math.Inf(1))
	assert.Equal(t, 0, d.Len())
}
