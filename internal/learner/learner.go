// Package learner implements the online offset predictor. It keeps a bounded
// history of observed (context, predicted, actual) samples and predicts an
// offset for a new context as the similarity-weighted average of the actual
// offsets of comparable past samples.
package learner

import (
	"errors"
	"math"
	"time"

	"github.com/VectorBarks/smart-climate-sub002/internal/model"
	"github.com/VectorBarks/smart-climate-sub002/internal/ring"
)

// ErrNoSamples is returned by Predict when the history is empty.
var ErrNoSamples = errors.New("learner: no samples collected")

// ErrNoSimilarSamples is returned when no stored sample resembles the query
// context. The engine decides the fallback, not this package.
var ErrNoSimilarSamples = errors.New("learner: no similar samples")

const (
	// DefaultSampleCap bounds the sample ring buffer.
	DefaultSampleCap = 1000

	// defaultPowerWindow is the power-closeness window in watts.
	defaultPowerWindow = 100.0
	// defaultTempScale normalizes temperature distance in °C.
	defaultTempScale = 5.0
	// accuracyScale normalizes prediction error when computing accuracy.
	accuracyScale = 5.0
	// accuracyWindow is how many recent samples feed the accuracy statistic.
	accuracyWindow = 50

	// minSimilarity is the weight floor below which a sample does not
	// contribute to a prediction.
	minSimilarity = 0.1
)

// Sample is one observed learning example.
type Sample struct {
	Predicted float64
	Actual    float64

	ACTemp   float64
	RoomTemp float64

	OutdoorTemp     *float64
	Mode            model.Mode
	Power           *float64
	HysteresisState model.HysteresisState
	IndoorHumidity  *float64
	OutdoorHumidity *float64

	Timestamp time.Time
}

// Query is a prediction context. It mirrors Sample minus the outcome fields.
type Query struct {
	ACTemp   float64
	RoomTemp float64

	OutdoorTemp     *float64
	Mode            model.Mode
	Power           *float64
	HysteresisState model.HysteresisState
	IndoorHumidity  *float64
	OutdoorHumidity *float64
}

// Statistics summarizes the learner state for dashboards and persistence.
type Statistics struct {
	SamplesCollected int        `json:"samples_collected"`
	AvgAccuracy      float64    `json:"avg_accuracy"`
	LastSampleTime   *time.Time `json:"last_sample_time,omitempty"`
}

// Learner is the online predictor. Not safe for concurrent use; the host
// serializes entity callbacks.
type Learner struct {
	samples     *ring.Buffer[Sample]
	powerWindow float64
	tempScale   float64
	now         func() time.Time
}

// New creates a learner with the given sample capacity. Non-positive
// capacity falls back to DefaultSampleCap.
func New(sampleCap int) *Learner {
	if sampleCap <= 0 {
		sampleCap = DefaultSampleCap
	}
	return &Learner{
		samples:     ring.New[Sample](sampleCap),
		powerWindow: defaultPowerWindow,
		tempScale:   defaultTempScale,
		now:         time.Now,
	}
}

// AddSample appends a timestamped sample, evicting the oldest beyond
// capacity. A zero timestamp is stamped with the current time.
func (l *Learner) AddSample(s Sample) {
	if s.Timestamp.IsZero() {
		s.Timestamp = l.now()
	}
	l.samples.Push(s)
}

// Len returns the number of stored samples.
func (l *Learner) Len() int { return l.samples.Len() }

// Predict returns the similarity-weighted offset for the query context.
func (l *Learner) Predict(q Query) (float64, error) {
	if l.samples.Len() == 0 {
		return 0, ErrNoSamples
	}

	var weightSum, weighted float64
	for _, s := range l.samples.Values() {
		w := l.similarity(q, s)
		if w < minSimilarity {
			continue
		}
		weightSum += w
		weighted += w * s.Actual
	}
	if weightSum == 0 {
		return 0, ErrNoSimilarSamples
	}
	return weighted / weightSum, nil
}

// similarity scores s against q in [0, 1] as a weighted composite of
// temperature closeness, power closeness, mode equality, hysteresis-state
// equality, and (when both sides carry it) humidity closeness.
func (l *Learner) similarity(q Query, s Sample) float64 {
	tempDist := math.Abs(q.ACTemp-s.ACTemp) + math.Abs(q.RoomTemp-s.RoomTemp)
	tempSim := math.Max(0, 1-tempDist/(2*l.tempScale))

	powerSim := 0.5 // one side missing: neutral
	switch {
	case q.Power == nil && s.Power == nil:
		powerSim = 1
	case q.Power != nil && s.Power != nil:
		dp := math.Abs(*q.Power - *s.Power)
		if dp >= l.powerWindow {
			powerSim = 0
		} else {
			powerSim = 1 - dp/l.powerWindow
		}
	}

	modeSim := 0.0
	if q.Mode == s.Mode {
		modeSim = 1
	}

	hystSim := 0.0
	if q.HysteresisState == s.HysteresisState {
		hystSim = 1
	}

	score := 0.4*tempSim + 0.2*powerSim + 0.2*modeSim + 0.2*hystSim
	total := 1.0

	if q.IndoorHumidity != nil && s.IndoorHumidity != nil {
		dh := math.Abs(*q.IndoorHumidity - *s.IndoorHumidity)
		humSim := math.Max(0, 1-dh/30.0)
		score += 0.15 * humSim
		total += 0.15
	}

	return score / total
}

// Statistics returns sample count, average accuracy over recent samples, and
// the timestamp of the newest sample. Accuracy is 1 minus the normalized
// absolute error between predicted and actual offsets.
func (l *Learner) Statistics() Statistics {
	stats := Statistics{SamplesCollected: l.samples.Len()}
	if stats.SamplesCollected == 0 {
		return stats
	}

	values := l.samples.Values()
	recent := values
	if len(recent) > accuracyWindow {
		recent = recent[len(recent)-accuracyWindow:]
	}

	var accSum float64
	for _, s := range recent {
		err := math.Abs(s.Predicted - s.Actual)
		accSum += math.Max(0, 1-err/accuracyScale)
	}
	stats.AvgAccuracy = accSum / float64(len(recent))

	last := values[len(values)-1].Timestamp
	stats.LastSampleTime = &last
	return stats
}
