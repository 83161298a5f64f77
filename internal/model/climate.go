package model

import "time"

// Mode is a user-selected comfort preset applied on top of the base offset.
type Mode string

const (
	ModeNone  Mode = "none"
	ModeAway  Mode = "away"
	ModeSleep Mode = "sleep"
	ModeBoost Mode = "boost"
)

// PowerState is the bucketed power-consumption level of the AC unit.
type PowerState string

const (
	PowerIdle     PowerState = "idle"
	PowerLow      PowerState = "low"
	PowerModerate PowerState = "moderate"
	PowerHigh     PowerState = "high"
)

// HysteresisState classifies where the room sits relative to the learned
// control band of the AC.
type HysteresisState string

const (
	HysteresisLearning        HysteresisState = "learning_hysteresis"
	HysteresisActivePhase     HysteresisState = "active_phase"
	HysteresisAboveStart      HysteresisState = "idle_above_start_threshold"
	HysteresisBelowStop       HysteresisState = "idle_below_stop_threshold"
	HysteresisStableZone      HysteresisState = "idle_stable_zone"
	HysteresisDisabled        HysteresisState = "disabled"
	HysteresisNoPowerSensor   HysteresisState = "no_power_sensor"
)

// OffsetInput is a single sensor snapshot handed to the offset engine.
// Optional fields are nil when the backing sensor is absent or unavailable.
// Derived fields (dew points, heat index, humidity differential) are filled
// by a feature-enrichment step before the snapshot reaches the engine.
type OffsetInput struct {
	ACInternalTemp *float64
	RoomTemp       *float64
	OutdoorTemp    *float64

	Mode             Mode
	PowerConsumption *float64
	HVACMode         *string

	Hour    int
	Weekday time.Weekday

	IndoorHumidity  *float64
	OutdoorHumidity *float64

	HumidityDifferential *float64
	IndoorDewPoint       *float64
	OutdoorDewPoint      *float64
	HeatIndex            *float64
}

// OffsetResult is the outcome of one offset calculation.
type OffsetResult struct {
	Offset     float64 `json:"offset"`
	Clamped    bool    `json:"clamped"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

// Observation is a timestamped climate reading used by the history store,
// CSV ingestion and replay.
type Observation struct {
	Timestamp       time.Time
	EntityID        string
	ACInternalTemp  *float64
	RoomTemp        *float64
	OutdoorTemp     *float64
	PowerW          *float64
	IndoorHumidity  *float64
	OutdoorHumidity *float64
}

// TimeRange is a closed interval of observation timestamps.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Float returns a pointer to v. Convenience for building inputs.
func Float(v float64) *float64 { return &v }

// String returns a pointer to s.
func String(s string) *string { return &s }
