package learner

import (
	"time"

	"github.com/VectorBarks/smart-climate-sub002/internal/model"
	"github.com/VectorBarks/smart-climate-sub002/internal/sanitize"
)

// SerializeForPersistence returns a JSON-safe snapshot of the sample history.
func (l *Learner) SerializeForPersistence() map[string]any {
	samples := make([]map[string]any, 0, l.samples.Len())
	for _, s := range l.samples.Values() {
		entry := map[string]any{
			"predicted":        s.Predicted,
			"actual":           s.Actual,
			"ac_temp":          s.ACTemp,
			"room_temp":        s.RoomTemp,
			"mode":             string(s.Mode),
			"hysteresis_state": string(s.HysteresisState),
			"timestamp":        s.Timestamp.UTC().Format(time.RFC3339),
		}
		putOptional(entry, "outdoor_temp", s.OutdoorTemp)
		putOptional(entry, "power", s.Power)
		putOptional(entry, "indoor_humidity", s.IndoorHumidity)
		putOptional(entry, "outdoor_humidity", s.OutdoorHumidity)
		samples = append(samples, entry)
	}
	return map[string]any{"samples": samples}
}

// RestoreFromPersistence rebuilds the sample history from serialized data.
// It returns false when the top-level shape is unusable (nil, non-map, or a
// non-list samples value); individual invalid sample entries are skipped
// without failing the restore.
func (l *Learner) RestoreFromPersistence(data any) bool {
	m, ok := data.(map[string]any)
	if !ok {
		return false
	}
	rawSamples, ok := m["samples"].([]any)
	if !ok {
		// Tolerate the concrete type produced by our own serializer.
		typed, isTyped := m["samples"].([]map[string]any)
		if !isTyped {
			return false
		}
		rawSamples = make([]any, len(typed))
		for i, entry := range typed {
			rawSamples[i] = entry
		}
	}

	l.samples.Clear()
	for _, raw := range rawSamples {
		if s, ok := decodeSample(raw); ok {
			l.samples.Push(s)
		}
	}
	return true
}

func decodeSample(raw any) (Sample, bool) {
	entry, ok := raw.(map[string]any)
	if !ok {
		return Sample{}, false
	}

	predicted := sanitize.Float(entry["predicted"])
	actual := sanitize.Float(entry["actual"])
	acTemp := sanitize.Float(entry["ac_temp"])
	roomTemp := sanitize.Float(entry["room_temp"])
	if predicted == nil || actual == nil || acTemp == nil || roomTemp == nil {
		return Sample{}, false
	}

	s := Sample{
		Predicted:       *predicted,
		Actual:          *actual,
		ACTemp:          *acTemp,
		RoomTemp:        *roomTemp,
		OutdoorTemp:     sanitize.Float(entry["outdoor_temp"]),
		Power:           sanitize.Float(entry["power"]),
		IndoorHumidity:  sanitize.Humidity(entry["indoor_humidity"]),
		OutdoorHumidity: sanitize.Humidity(entry["outdoor_humidity"]),
	}
	if mode, ok := entry["mode"].(string); ok {
		s.Mode = model.Mode(mode)
	} else {
		s.Mode = model.ModeNone
	}
	if hyst, ok := entry["hysteresis_state"].(string); ok {
		s.HysteresisState = model.HysteresisState(hyst)
	} else {
		s.HysteresisState = model.HysteresisLearning
	}
	if ts := sanitize.Timestamp(entry["timestamp"]); ts != nil {
		s.Timestamp = *ts
	}
	return s, true
}

func putOptional(entry map[string]any, key string, v *float64) {
	if v != nil {
		entry[key] = *v
	}
}
