// Package mqtt connects the offset engine to the home-automation bus:
// sensor state messages come in per entity and field, offset results and
// lifecycle events go out. A fake implementation backs tests.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/VectorBarks/smart-climate-sub002/internal/model"
)

// Topic layout. Incoming sensor state:
//
//	smart_climate/<entity>/sensors/<field>
//
// Outgoing results and lifecycle events:
//
//	smart_climate/<entity>/offset
//	smart_climate/status
const (
	TopicPrefix  = "smart_climate"
	TopicSystem  = "smart_climate/status"
	sensorFilter = TopicPrefix + "/+/sensors/+"
)

// ResultTopic returns the publish topic for an entity's offset results.
func ResultTopic(entityID string) string {
	return fmt.Sprintf("%s/%s/offset", TopicPrefix, entityID)
}

// Publisher publishes engine output to the broker.
type Publisher interface {
	// PublishResult sends an offset result. Errors are reported, never fatal.
	PublishResult(entityID string, at time.Time, result model.OffsetResult) error

	// PublishSystem sends a lifecycle event (startup, shutdown, save failure).
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// SnapshotHandler receives an assembled sensor snapshot whenever an entity's
// readings change.
type SnapshotHandler func(entityID string, input model.OffsetInput)

// Subscriber feeds sensor state into the snapshot assembler.
type Subscriber interface {
	// Subscribe starts delivering snapshots to handler.
	Subscribe(handler SnapshotHandler) error
	Close() error
}

// SystemEvent is a lifecycle event published to TopicSystem.
type SystemEvent struct {
	Timestamp time.Time
	Event     string // STARTUP, SHUTDOWN, SAVE_FAILED, RECONNECTED
	Reason    string
}

// ResultPayload is the JSON shape of an offset result message.
type ResultPayload struct {
	EntityID   string  `json:"entity_id"`
	Timestamp  string  `json:"timestamp"`
	Offset     float64 `json:"offset"`
	Clamped    bool    `json:"clamped"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// FormatResult builds the JSON payload for an offset result.
func FormatResult(entityID string, at time.Time, result model.OffsetResult) ([]byte, error) {
	return json.Marshal(ResultPayload{
		EntityID:   entityID,
		Timestamp:  at.UTC().Format(time.RFC3339),
		Offset:     result.Offset,
		Clamped:    result.Clamped,
		Confidence: result.Confidence,
		Reason:     result.Reason,
	})
}

// SystemPayload is the JSON shape of a lifecycle message.
type SystemPayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystem builds the JSON payload for a lifecycle event.
func FormatSystem(event SystemEvent) ([]byte, error) {
	return json.Marshal(SystemPayload{
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
		Event:     event.Event,
		Reason:    event.Reason,
	})
}
