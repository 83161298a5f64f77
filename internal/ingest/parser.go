// Package ingest parses recorded climate data into observations. Two input
// shapes are supported: Home Assistant per-entity history exports
// (entity_id,state,last_changed) and combined observation CSVs produced by
// this project's own tooling.
package ingest

import (
	"io"

	"github.com/VectorBarks/smart-climate-sub002/internal/model"
)

// Parser reads climate data from a source and returns observations.
type Parser interface {
	Parse(r io.Reader) ([]model.Observation, error)
}

// Field identifies which observation field a single-sensor export feeds.
type Field string

const (
	FieldACTemp          Field = "ac_temp"
	FieldRoomTemp        Field = "room_temp"
	FieldOutdoorTemp     Field = "outdoor_temp"
	FieldPower           Field = "power"
	FieldIndoorHumidity  Field = "indoor_humidity"
	FieldOutdoorHumidity Field = "outdoor_humidity"
)
