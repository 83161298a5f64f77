package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/VectorBarks/smart-climate-sub002/internal/model"
	"github.com/VectorBarks/smart-climate-sub002/internal/sanitize"
)

// ObservationParser reads the combined observation CSV written by this
// project's tooling. Header: timestamp,ac_temp,room_temp followed by any of
// outdoor_temp,power,indoor_humidity,outdoor_humidity in any order. Empty
// cells and placeholder states mean absent.
type ObservationParser struct {
	entityID string
}

// NewObservationParser creates a parser attributing rows to entityID.
func NewObservationParser(entityID string) *ObservationParser {
	return &ObservationParser{entityID: entityID}
}

// Parse reads all rows. Rows with an unparseable timestamp are skipped.
func (p *ObservationParser) Parse(r io.Reader) ([]model.Observation, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(strings.ToLower(name))] = i
	}
	if _, ok := columns["timestamp"]; !ok {
		return nil, fmt.Errorf("missing timestamp column in header %v", header)
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

		ts, err := parseObservationTimestamp(cell(row, columns, "timestamp"))
		if err != nil {
			continue
		}

		obs := model.Observation{
			Timestamp:       ts,
			EntityID:        p.entityID,
			ACInternalTemp:  sanitize.Float(cell(row, columns, "ac_temp")),
			RoomTemp:        sanitize.Float(cell(row, columns, "room_temp")),
			OutdoorTemp:     sanitize.Float(cell(row, columns, "outdoor_temp")),
			PowerW:          sanitize.Float(cell(row, columns, "power")),
			IndoorHumidity:  sanitize.Humidity(cell(row, columns, "indoor_humidity")),
			OutdoorHumidity: sanitize.Humidity(cell(row, columns, "outdoor_humidity")),
		}
		observations = append(observations, obs)
	}
	return observations, nil
}

func parseObservationTimestamp(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	return time.Parse("2006-01-02 15:04:05", s)
}

func cell(row []string, columns map[string]int, name string) string {
	idx, ok := columns[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return row[idx]
}
