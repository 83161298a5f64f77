// Package outlier flags individual sensor samples as statistical outliers
// using a rolling history window. The engine treats it as a pluggable gate in
// front of hysteresis learning and feedback recording.
package outlier

import (
	"math"

	"github.com/VectorBarks/smart-climate-sub002/internal/ring"
)

// Detector keeps a bounded rolling window of accepted samples and scores new
// values with a modified z-score (median absolute deviation). Until the
// window holds minSamples entries only the absolute bounds apply.
type Detector struct {
	window     *ring.Buffer[float64]
	minSamples int
	zThreshold float64
	absMin     float64
	absMax     float64
	boundsOnly bool
}

// New creates a detector. windowSize bounds the rolling history, minSamples
// gates statistical scoring, and [absMin, absMax] is the hard plausibility
// band applied from the first sample.
func New(windowSize, minSamples int, zThreshold, absMin, absMax float64) *Detector {
	if minSamples < 3 {
		minSamples = 3
	}
	return &Detector{
		window:     ring.New[float64](windowSize),
		minSamples: minSamples,
		zThreshold: zThreshold,
		absMin:     absMin,
		absMax:     absMax,
	}
}

// NewBounds creates a detector that applies only the absolute plausibility
// band. For signals whose healthy distribution is bimodal, like AC power
// draw alternating between idle and cooling levels, median-based scoring
// would flag whichever mode is currently in the minority.
func NewBounds(absMin, absMax float64) *Detector {
	return &Detector{
		window:     ring.New[float64](1),
		absMin:     absMin,
		absMax:     absMax,
		boundsOnly: true,
	}
}

// IsOutlier reports whether v should be rejected. It does not record v;
// callers record accepted values via Record so that outliers never poison
// the window.
func (d *Detector) IsOutlier(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return true
	}
	if v < d.absMin || v > d.absMax {
		return true
	}
	if d.boundsOnly {
		return false
	}
	if d.window.Len() < d.minSamples {
		return false
	}

	values := d.window.Values()
	med, _ := ring.Median(values)

	deviations := make([]float64, len(values))
	for i, x := range values {
		deviations[i] = math.Abs(x - med)
	}
	mad, _ := ring.Median(deviations)
	if mad == 0 {
		// Flat history: fall back to a small absolute deviation band.
		return math.Abs(v-med) > 1e-9 && math.Abs(v-med) > d.flatBand()
	}

	z := 0.6745 * (v - med) / mad
	return math.Abs(z) > d.zThreshold
}

// Record appends an accepted sample to the rolling window.
func (d *Detector) Record(v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	d.window.Push(v)
}

// Len returns the number of samples in the rolling window.
func (d *Detector) Len() int { return d.window.Len() }

// flatBand is the tolerated deviation when the history has zero spread.
// Sized for the sensor class: a tenth of the hard plausibility band.
func (d *Detector) flatBand() float64 {
	return (d.absMax - d.absMin) / 10
}
