package engine

import (
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/VectorBarks/smart-climate-sub002/internal/history"
	"github.com/VectorBarks/smart-climate-sub002/internal/learner"
)

// Dashboard metric names and their cache TTLs. Persistence latency has no
// TTL; it is invalidated explicitly on save.
const (
	metricMemory      = "memory"
	metricTrends      = "trends"
	metricGeneral     = "general"
	metricPersistence = "persistence_latency"

	ttlMemory  = 5 * time.Minute
	ttlTrends  = 30 * time.Minute
	ttlGeneral = 1 * time.Minute
)

type cacheEntry struct {
	value any
	at    time.Time
}

// metricCache memoizes dashboard metric computations with per-name TTLs. A
// compute failure returns the last-known-good value when present.
type metricCache struct {
	entries map[string]cacheEntry
}

func newMetricCache() *metricCache {
	return &metricCache{entries: make(map[string]cacheEntry)}
}

// get returns the cached value when fresh, otherwise recomputes and stores.
// ttl <= 0 means the entry never expires by time and is only replaced by
// invalidate. On compute error the stale value is returned if one exists.
func (c *metricCache) get(name string, ttl time.Duration, now time.Time, compute func() (any, error)) any {
	entry, ok := c.entries[name]
	if ok && (ttl <= 0 || now.Sub(entry.at) < ttl) {
		return entry.value
	}

	value, err := compute()
	if err != nil {
		if ok {
			return entry.value
		}
		return nil
	}
	c.entries[name] = cacheEntry{value: value, at: now}
	return value
}

func (c *metricCache) invalidate(name string) {
	delete(c.entries, name)
}

func (c *metricCache) invalidateAll() {
	c.entries = make(map[string]cacheEntry)
}

// DashboardSnapshot aggregates the metrics surfaced to operators.
type DashboardSnapshot struct {
	EntityID string `json:"entity_id"`

	LearningEnabled bool `json:"learning_enabled"`
	LearningPaused  bool `json:"learning_paused"`

	CalibrationPhase    bool   `json:"calibration_phase"`
	CalibrationProgress string `json:"calibration_progress"`

	SamplesCollected int        `json:"samples_collected"`
	AvgAccuracy      float64    `json:"avg_accuracy"`
	LastSampleTime   *time.Time `json:"last_sample_time,omitempty"`

	HysteresisStart *float64 `json:"hysteresis_start,omitempty"`
	HysteresisStop  *float64 `json:"hysteresis_stop,omitempty"`
	StartSamples    int      `json:"start_samples"`
	StopSamples     int      `json:"stop_samples"`

	MemoryAllocKB float64             `json:"memory_alloc_kb"`
	Trend         *history.TrendStats `json:"trend,omitempty"`

	LastSaveMillis *float64 `json:"last_save_millis,omitempty"`
}

// RecordSaveDuration stores the latency of the most recent persistence save
// and invalidates the cached dashboard entry.
func (e *Engine) RecordSaveDuration(d time.Duration) {
	e.lastSaveDuration = &d
	e.dashboard.invalidate(metricPersistence)
}

// Dashboard builds the metrics snapshot. Each metric group is cached with
// its own TTL; a failed recompute serves the last-known-good value and never
// propagates.
func (e *Engine) Dashboard() DashboardSnapshot {
	now := e.now()

	snap := DashboardSnapshot{
		EntityID:         e.cfg.EntityID,
		LearningEnabled:  e.cfg.EnableLearning,
		LearningPaused:   e.learningPaused,
		CalibrationPhase: e.InCalibration(),
	}

	general := e.dashboard.get(metricGeneral, ttlGeneral, now, func() (any, error) {
		return e.learner.Statistics(), nil
	})
	if stats, ok := general.(learner.Statistics); ok {
		snap.SamplesCollected = stats.SamplesCollected
		snap.AvgAccuracy = stats.AvgAccuracy
		snap.LastSampleTime = stats.LastSampleTime
	}
	snap.CalibrationProgress = fmt.Sprintf("%d/%d",
		min(snap.SamplesCollected, MinSamplesForActiveControl), MinSamplesForActiveControl)

	snap.HysteresisStart, snap.HysteresisStop = e.hyst.Thresholds()
	snap.StartSamples, snap.StopSamples = e.hyst.SampleCounts()

	memory := e.dashboard.get(metricMemory, ttlMemory, now, func() (any, error) {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		return float64(ms.HeapAlloc) / 1024, nil
	})
	if kb, ok := memory.(float64); ok {
		snap.MemoryAllocKB = kb
	}

	if e.hist != nil {
		trend := e.dashboard.get(metricTrends, ttlTrends, now, func() (any, error) {
			stats, ok := e.hist.Trend(e.cfg.EntityID, 24*time.Hour)
			if !ok {
				return nil, fmt.Errorf("insufficient trend data for %s", e.cfg.EntityID)
			}
			return stats, nil
		})
		if stats, ok := trend.(history.TrendStats); ok {
			snap.Trend = &stats
		}
	}

	latency := e.dashboard.get(metricPersistence, 0, now, func() (any, error) {
		if e.lastSaveDuration == nil {
			return nil, fmt.Errorf("no save recorded yet")
		}
		return float64(e.lastSaveDuration.Milliseconds()), nil
	})
	if ms, ok := latency.(float64); ok {
		snap.LastSaveMillis = &ms
	}

	e.log.Debug("dashboard snapshot built",
		zap.Int("samples", snap.SamplesCollected),
		zap.Bool("calibration", snap.CalibrationPhase))
	return snap
}
