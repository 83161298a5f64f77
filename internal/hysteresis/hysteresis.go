// Package hysteresis learns the temperature control band of an AC unit from
// power-transition events. Each time the unit starts or stops cooling, the
// room temperature at that moment is recorded; the medians of the two sample
// buffers become the start and stop thresholds that bound the control band.
package hysteresis

import (
	"github.com/VectorBarks/smart-climate-sub002/internal/model"
	"github.com/VectorBarks/smart-climate-sub002/internal/ring"
	"github.com/VectorBarks/smart-climate-sub002/internal/sanitize"
)

// TransitionKind marks which boundary of the control band was crossed.
type TransitionKind string

const (
	TransitionStart TransitionKind = "start" // unit began cooling
	TransitionStop  TransitionKind = "stop"  // unit stopped cooling
)

const (
	// DefaultMaxSamples bounds each transition buffer.
	DefaultMaxSamples = 50
	// DefaultMinSamples is the per-buffer count required before thresholds
	// are considered reliable.
	DefaultMinSamples = 5
)

// Learner accumulates transition temperatures and derives the control-band
// thresholds. The zero value is not usable; construct with New.
type Learner struct {
	maxSamples int
	minSamples int

	startTemps *ring.Buffer[float64]
	stopTemps  *ring.Buffer[float64]

	startThreshold *float64
	stopThreshold  *float64
}

// New creates a learner with the given buffer bound and reliability minimum.
// Non-positive arguments fall back to the defaults.
func New(maxSamples, minSamples int) *Learner {
	if maxSamples <= 0 {
		maxSamples = DefaultMaxSamples
	}
	if minSamples <= 0 {
		minSamples = DefaultMinSamples
	}
	return &Learner{
		maxSamples: maxSamples,
		minSamples: minSamples,
		startTemps: ring.New[float64](maxSamples),
		stopTemps:  ring.New[float64](maxSamples),
	}
}

// RecordTransition appends roomTemp to the buffer matching kind and
// recomputes the thresholds. Unknown kinds are ignored.
func (l *Learner) RecordTransition(kind TransitionKind, roomTemp float64) {
	switch kind {
	case TransitionStart:
		l.startTemps.Push(roomTemp)
	case TransitionStop:
		l.stopTemps.Push(roomTemp)
	default:
		return
	}
	l.recomputeThresholds()
}

// HasSufficientData reports whether both buffers satisfy the minimum and
// thresholds are available.
func (l *Learner) HasSufficientData() bool {
	return l.startThreshold != nil && l.stopThreshold != nil
}

// Thresholds returns the learned start and stop thresholds, nil until both
// buffers individually reach the minimum sample count.
func (l *Learner) Thresholds() (start, stop *float64) {
	return l.startThreshold, l.stopThreshold
}

// SampleCounts returns the current buffer lengths.
func (l *Learner) SampleCounts() (starts, stops int) {
	return l.startTemps.Len(), l.stopTemps.Len()
}

// State classifies the current conditions against the learned band.
// Unknown power states are treated as idle. Boundary temperatures belong to
// the stable zone, not the adjacent categories.
func (l *Learner) State(power model.PowerState, roomTemp float64) model.HysteresisState {
	if l.startThreshold == nil || l.stopThreshold == nil {
		return model.HysteresisLearning
	}

	switch power {
	case model.PowerModerate, model.PowerHigh:
		return model.HysteresisActivePhase
	}

	// idle, low, or anything unrecognized
	switch {
	case roomTemp > *l.startThreshold:
		return model.HysteresisAboveStart
	case roomTemp < *l.stopThreshold:
		return model.HysteresisBelowStop
	default:
		return model.HysteresisStableZone
	}
}

// SerializeForPersistence returns a JSON-safe snapshot of the buffers.
func (l *Learner) SerializeForPersistence() map[string]any {
	return map[string]any{
		"start_temps": l.startTemps.Values(),
		"stop_temps":  l.stopTemps.Values(),
	}
}

// RestoreFromPersistence rebuilds the buffers from previously serialized
// data. Malformed input degrades instead of failing: a non-map top level is a
// no-op, missing keys are treated as empty, non-list values are ignored, and
// non-numeric list entries are skipped individually. Thresholds are
// recomputed from whatever validly restored.
func (l *Learner) RestoreFromPersistence(data any) {
	m, ok := data.(map[string]any)
	if !ok {
		return
	}
	l.restoreBuffer(l.startTemps, m["start_temps"])
	l.restoreBuffer(l.stopTemps, m["stop_temps"])
	l.recomputeThresholds()
}

func (l *Learner) restoreBuffer(buf *ring.Buffer[float64], raw any) {
	entries, ok := asList(raw)
	if !ok {
		return
	}
	buf.Clear()
	for _, entry := range entries {
		if v := sanitize.Float(entry); v != nil {
			buf.Push(*v)
		}
	}
}

func (l *Learner) recomputeThresholds() {
	if l.startTemps.Len() < l.minSamples || l.stopTemps.Len() < l.minSamples {
		l.startThreshold = nil
		l.stopThreshold = nil
		return
	}
	start, okStart := ring.Median(l.startTemps.Values())
	stop, okStop := ring.Median(l.stopTemps.Values())
	if !okStart || !okStop {
		l.startThreshold = nil
		l.stopThreshold = nil
		return
	}
	l.startThreshold = &start
	l.stopThreshold = &stop
}

func asList(raw any) ([]any, bool) {
	switch v := raw.(type) {
	case []any:
		return v, true
	case []float64:
		out := make([]any, len(v))
		for i, f := range v {
			out[i] = f
		}
		return out, true
	default:
		return nil, false
	}
}
