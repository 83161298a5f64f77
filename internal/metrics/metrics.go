// Package metrics exposes Prometheus collectors for the offset engine and
// persistence layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the collectors registered for one process.
type Metrics struct {
	CalculationsTotal    *prometheus.CounterVec
	ClampedTotal         prometheus.Counter
	SafeFallbackTotal    prometheus.Counter
	FeedbackAccepted     prometheus.Counter
	FeedbackRejected     *prometheus.CounterVec
	TransitionsTotal     *prometheus.CounterVec
	SamplesCollected     *prometheus.GaugeVec
	SaveFailuresTotal    prometheus.Counter
	SaveDurationSeconds  prometheus.Histogram
	LearningConfidence   *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg. A nil reg registers
// with the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		CalculationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smart_climate",
			Name:      "offset_calculations_total",
			Help:      "Offset calculations by phase (calibration or active).",
		}, []string{"entity", "phase"}),
		ClampedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "smart_climate",
			Name:      "offset_clamped_total",
			Help:      "Offsets clamped to the configured limit.",
		}),
		SafeFallbackTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "smart_climate",
			Name:      "offset_safe_fallback_total",
			Help:      "Calculations that returned the safe fallback result.",
		}),
		FeedbackAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "smart_climate",
			Name:      "feedback_accepted_total",
			Help:      "Feedback samples accepted into the learner.",
		}),
		FeedbackRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smart_climate",
			Name:      "feedback_rejected_total",
			Help:      "Feedback samples rejected before learning.",
		}, []string{"reason"}),
		TransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smart_climate",
			Name:      "power_transitions_total",
			Help:      "Detected idle boundary crossings by kind.",
		}, []string{"kind"}),
		SamplesCollected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "smart_climate",
			Name:      "learner_samples",
			Help:      "Samples currently held by the learner.",
		}, []string{"entity"}),
		SaveFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "smart_climate",
			Name:      "persistence_save_failures_total",
			Help:      "Persistence saves that failed.",
		}),
		SaveDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "smart_climate",
			Name:      "persistence_save_duration_seconds",
			Help:      "Wall time of persistence saves.",
			Buckets:   prometheus.DefBuckets,
		}),
		LearningConfidence: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "smart_climate",
			Name:      "learning_confidence",
			Help:      "Confidence of the most recent offset result.",
		}, []string{"entity"}),
	}

	reg.MustRegister(
		m.CalculationsTotal,
		m.ClampedTotal,
		m.SafeFallbackTotal,
		m.FeedbackAccepted,
		m.FeedbackRejected,
		m.TransitionsTotal,
		m.SamplesCollected,
		m.SaveFailuresTotal,
		m.SaveDurationSeconds,
		m.LearningConfidence,
	)
	return m
}
