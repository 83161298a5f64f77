package mqtt

import (
	"strings"
	"sync"
	"time"

	"github.com/VectorBarks/smart-climate-sub002/internal/model"
	"github.com/VectorBarks/smart-climate-sub002/internal/sanitize"
)

// Sensor field names accepted on the sensors topic.
const (
	FieldACTemp          = "ac_temp"
	FieldRoomTemp        = "room_temp"
	FieldOutdoorTemp     = "outdoor_temp"
	FieldPower           = "power"
	FieldIndoorHumidity  = "indoor_humidity"
	FieldOutdoorHumidity = "outdoor_humidity"
	FieldMode            = "mode"
	FieldHVACMode        = "hvac_mode"
)

// staleAfter is how long a reading stays usable without an update.
const staleAfter = 15 * time.Minute

type reading struct {
	value any
	at    time.Time
}

// Assembler folds per-field sensor messages into whole OffsetInput
// snapshots, one per entity. Values pass through the sanitizer; stale
// readings drop out of the snapshot rather than lingering forever.
type Assembler struct {
	mu       sync.Mutex
	entities map[string]map[string]reading
	now      func() time.Time
}

// NewAssembler creates an empty assembler.
func NewAssembler() *Assembler {
	return &Assembler{
		entities: make(map[string]map[string]reading),
		now:      time.Now,
	}
}

// ParseTopic extracts (entityID, field) from a sensors topic. ok is false
// for topics outside the expected layout.
func ParseTopic(topic string) (entityID, field string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != TopicPrefix || parts[2] != "sensors" {
		return "", "", false
	}
	return parts[1], parts[3], true
}

// Update records a field value for an entity and returns the current
// snapshot. ready is true once both critical temperatures are present.
func (a *Assembler) Update(entityID, field string, payload string) (model.OffsetInput, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	fields, ok := a.entities[entityID]
	if !ok {
		fields = make(map[string]reading)
		a.entities[entityID] = fields
	}
	fields[field] = reading{value: payload, at: a.now()}

	return a.snapshotLocked(entityID)
}

// Snapshot returns the current snapshot for an entity without updating it.
func (a *Assembler) Snapshot(entityID string) (model.OffsetInput, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked(entityID)
}

func (a *Assembler) snapshotLocked(entityID string) (model.OffsetInput, bool) {
	fields := a.entities[entityID]
	now := a.now()

	fresh := func(name string) any {
		r, ok := fields[name]
		if !ok || now.Sub(r.at) > staleAfter {
			return nil
		}
		return r.value
	}

	input := model.OffsetInput{
		ACInternalTemp:   sanitize.Float(fresh(FieldACTemp)),
		RoomTemp:         sanitize.Float(fresh(FieldRoomTemp)),
		OutdoorTemp:      sanitize.Float(fresh(FieldOutdoorTemp)),
		PowerConsumption: sanitize.Float(fresh(FieldPower)),
		IndoorHumidity:   sanitize.Humidity(fresh(FieldIndoorHumidity)),
		OutdoorHumidity:  sanitize.Humidity(fresh(FieldOutdoorHumidity)),
		Mode:             model.ModeNone,
		Hour:             now.Hour(),
		Weekday:          now.Weekday(),
	}

	if raw, ok := fresh(FieldMode).(string); ok {
		switch mode := model.Mode(strings.ToLower(strings.TrimSpace(raw))); mode {
		case model.ModeAway, model.ModeSleep, model.ModeBoost, model.ModeNone:
			input.Mode = mode
		}
	}
	if raw, ok := fresh(FieldHVACMode).(string); ok && raw != "" {
		hvac := strings.ToLower(strings.TrimSpace(raw))
		input.HVACMode = &hvac
	}

	ready := input.ACInternalTemp != nil && input.RoomTemp != nil
	return input, ready
}
