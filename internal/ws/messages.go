package ws

import (
	"encoding/json"

	"github.com/VectorBarks/smart-climate-sub002/internal/engine"
	"github.com/VectorBarks/smart-climate-sub002/internal/model"
	"github.com/VectorBarks/smart-climate-sub002/internal/replay"
)

// Envelope wraps all WebSocket messages with a type discriminator.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message type constants.
const (
	// Client -> Server
	TypeDashboardGet = "dashboard:get"
	TypeLearningSet  = "learning:set"
	TypeEngineReset  = "engine:reset"

	// Server -> Client
	TypeOffsetResult    = "offset:result"
	TypeDashboardUpdate = "dashboard:update"
	TypeReplayStep      = "replay:step"
	TypeReplaySummary   = "replay:summary"
	TypeError           = "error"
)

// Client -> Server payloads

type DashboardGetPayload struct {
	EntityID string `json:"entity_id"`
}

type LearningSetPayload struct {
	EntityID string `json:"entity_id"`
	Enabled  bool   `json:"enabled"`
}

type EngineResetPayload struct {
	EntityID string `json:"entity_id"`
}

// Server -> Client payloads

type OffsetResultPayload struct {
	EntityID  string             `json:"entity_id"`
	Timestamp string             `json:"timestamp"`
	Result    model.OffsetResult `json:"result"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// DashboardUpdatePayload reuses the engine snapshot wholesale; it is already
// JSON-shaped for operators.
type DashboardUpdatePayload = engine.DashboardSnapshot

type ReplayStepPayload = replay.Step

type ReplaySummaryPayload = replay.Summary

// NewEnvelope marshals a typed message.
func NewEnvelope(msgType string, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}
