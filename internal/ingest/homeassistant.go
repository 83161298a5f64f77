package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/VectorBarks/smart-climate-sub002/internal/model"
	"github.com/VectorBarks/smart-climate-sub002/internal/sanitize"
)

// HomeAssistantParser reads a Home Assistant history export for one sensor:
// a CSV with header entity_id,state,last_changed. Placeholder states
// ("unavailable", "unknown") are skipped, not errors.
type HomeAssistantParser struct {
	entityID string
	field    Field
}

// NewHomeAssistantParser creates a parser attributing readings to entityID
// and mapping the state column onto field.
func NewHomeAssistantParser(entityID string, field Field) *HomeAssistantParser {
	return &HomeAssistantParser{entityID: entityID, field: field}
}

// Parse reads all rows, returning one partial observation per usable row.
func (p *HomeAssistantParser) Parse(r io.Reader) ([]model.Observation, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) < 3 || header[0] != "entity_id" {
		return nil, fmt.Errorf("unexpected header %v, want entity_id,state,last_changed", header)
	}

	var observations []model.Observation
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if len(row) < 3 {
			continue
		}

		value := sanitize.Float(row[1])
		if value == nil {
			continue
		}
		ts, err := parseHATimestamp(row[2])
		if err != nil {
			continue
		}

		obs := model.Observation{Timestamp: ts, EntityID: p.entityID}
		setField(&obs, p.field, value)
		observations = append(observations, obs)
	}
	return observations, nil
}

// parseHATimestamp accepts the millisecond-precision UTC format of HA
// exports as well as plain RFC3339.
func parseHATimestamp(s string) (time.Time, error) {
	if ts, err := time.Parse("2006-01-02T15:04:05.000Z", s); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339, s)
}

func setField(obs *model.Observation, field Field, value *float64) {
	switch field {
	case FieldACTemp:
		obs.ACInternalTemp = value
	case FieldRoomTemp:
		obs.RoomTemp = value
	case FieldOutdoorTemp:
		obs.OutdoorTemp = value
	case FieldPower:
		obs.PowerW = value
	case FieldIndoorHumidity:
		obs.IndoorHumidity = sanitize.Humidity(value)
	case FieldOutdoorHumidity:
		obs.OutdoorHumidity = sanitize.Humidity(value)
	}
}

// Merge combines partial per-sensor observations into full snapshots,
// bucketing timestamps to the given resolution. Later values win within a
// bucket. The result is sorted by timestamp.
func Merge(partials []model.Observation, resolution time.Duration) []model.Observation {
	if resolution <= 0 {
		resolution = time.Minute
	}

	buckets := make(map[time.Time]*model.Observation)
	for _, p := range partials {
		key := p.Timestamp.Truncate(resolution)
		merged, ok := buckets[key]
		if !ok {
			merged = &model.Observation{Timestamp: key, EntityID: p.EntityID}
			buckets[key] = merged
		}
		if p.ACInternalTemp != nil {
			merged.ACInternalTemp = p.ACInternalTemp
		}
		if p.RoomTemp != nil {
			merged.RoomTemp = p.RoomTemp
		}
		if p.OutdoorTemp != nil {
			merged.OutdoorTemp = p.OutdoorTemp
		}
		if p.PowerW != nil {
			merged.PowerW = p.PowerW
		}
		if p.IndoorHumidity != nil {
			merged.IndoorHumidity = p.IndoorHumidity
		}
		if p.OutdoorHumidity != nil {
			merged.OutdoorHumidity = p.OutdoorHumidity
		}
	}

	out := make([]model.Observation, 0, len(buckets))
	for _, obs := range buckets {
		out = append(out, *obs)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}
