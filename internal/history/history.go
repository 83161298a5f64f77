// Package history holds sanitized climate observations in memory, one series
// per entity, sorted by timestamp. It backs dashboard trend metrics, replay,
// and rolling-window diagnostics.
package history

import (
	"sort"
	"sync"
	"time"

	"github.com/VectorBarks/smart-climate-sub002/internal/model"
)

// Store is an in-memory observation time series keyed by entity ID.
type Store struct {
	mu           sync.RWMutex
	observations map[string][]model.Observation
	maxPerEntity int
}

// New creates a store keeping at most maxPerEntity observations per entity.
// Non-positive means unbounded.
func New(maxPerEntity int) *Store {
	return &Store{
		observations: make(map[string][]model.Observation),
		maxPerEntity: maxPerEntity,
	}
}

// Add inserts an observation, keeping the entity's series sorted and bounded.
func (s *Store) Add(obs model.Observation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	series := append(s.observations[obs.EntityID], obs)
	// Common case: appended in order. Only sort when out of order.
	if len(series) > 1 && series[len(series)-2].Timestamp.After(obs.Timestamp) {
		sort.Slice(series, func(i, j int) bool {
			return series[i].Timestamp.Before(series[j].Timestamp)
		})
	}
	if s.maxPerEntity > 0 && len(series) > s.maxPerEntity {
		series = series[len(series)-s.maxPerEntity:]
	}
	s.observations[obs.EntityID] = series
}

// AddBatch inserts observations, sorting each affected entity's series once.
func (s *Store) AddBatch(observations []model.Observation) {
	if len(observations) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	affected := make(map[string]bool)
	for _, obs := range observations {
		s.observations[obs.EntityID] = append(s.observations[obs.EntityID], obs)
		affected[obs.EntityID] = true
	}
	for id := range affected {
		series := s.observations[id]
		sort.Slice(series, func(i, j int) bool {
			return series[i].Timestamp.Before(series[j].Timestamp)
		})
		if s.maxPerEntity > 0 && len(series) > s.maxPerEntity {
			series = series[len(series)-s.maxPerEntity:]
		}
		s.observations[id] = series
	}
}

// Count returns the number of observations stored for an entity.
func (s *Store) Count(entityID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.observations[entityID])
}

// Entities returns the IDs with at least one observation.
func (s *Store) Entities() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.observations))
	for id := range s.observations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// TimeRange returns the interval covered by an entity's observations.
func (s *Store) TimeRange(entityID string) (model.TimeRange, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series := s.observations[entityID]
	if len(series) == 0 {
		return model.TimeRange{}, false
	}
	return model.TimeRange{
		Start: series[0].Timestamp,
		End:   series[len(series)-1].Timestamp,
	}, true
}

// Range returns observations in [start, end), oldest first.
func (s *Store) Range(entityID string, start, end time.Time) []model.Observation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series := s.observations[entityID]
	if len(series) == 0 {
		return nil
	}

	startIdx := sort.Search(len(series), func(i int) bool {
		return !series[i].Timestamp.Before(start)
	})
	endIdx := sort.Search(len(series), func(i int) bool {
		return !series[i].Timestamp.Before(end)
	})
	if startIdx >= endIdx {
		return nil
	}

	out := make([]model.Observation, endIdx-startIdx)
	copy(out, series[startIdx:endIdx])
	return out
}

// RecentWindow returns the observations from the trailing window ending at
// the entity's newest observation.
func (s *Store) RecentWindow(entityID string, window time.Duration) []model.Observation {
	tr, ok := s.TimeRange(entityID)
	if !ok {
		return nil
	}
	return s.Range(entityID, tr.End.Add(-window), tr.End.Add(time.Nanosecond))
}

// TrendStats summarizes the room-temperature trend over a window.
type TrendStats struct {
	Samples     int     `json:"samples"`
	MeanRoom    float64 `json:"mean_room_temp"`
	MeanACDelta float64 `json:"mean_ac_delta"`
	// SlopePerHour is the least-squares room-temperature slope in °C/h.
	SlopePerHour float64 `json:"slope_per_hour"`
}

// Trend computes trend statistics for an entity over the trailing window.
// The second return is false when fewer than two usable observations exist.
func (s *Store) Trend(entityID string, window time.Duration) (TrendStats, bool) {
	observations := s.RecentWindow(entityID, window)

	var xs, ys []float64
	var stats TrendStats
	var deltaSum float64
	deltaCount := 0
	for _, obs := range observations {
		if obs.RoomTemp == nil {
			continue
		}
		xs = append(xs, obs.Timestamp.Sub(observations[0].Timestamp).Hours())
		ys = append(ys, *obs.RoomTemp)
		if obs.ACInternalTemp != nil {
			deltaSum += *obs.ACInternalTemp - *obs.RoomTemp
			deltaCount++
		}
	}
	if len(ys) < 2 {
		return TrendStats{}, false
	}

	stats.Samples = len(ys)
	var sumX, sumY float64
	for i := range ys {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX := sumX / float64(len(xs))
	stats.MeanRoom = sumY / float64(len(ys))

	var num, den float64
	for i := range ys {
		num += (xs[i] - meanX) * (ys[i] - stats.MeanRoom)
		den += (xs[i] - meanX) * (xs[i] - meanX)
	}
	if den > 0 {
		stats.SlopePerHour = num / den
	}
	if deltaCount > 0 {
		stats.MeanACDelta = deltaSum / float64(deltaCount)
	}
	return stats, true
}
