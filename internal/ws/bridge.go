package ws

import (
	"time"

	"go.uber.org/zap"

	"github.com/VectorBarks/smart-climate-sub002/internal/engine"
	"github.com/VectorBarks/smart-climate-sub002/internal/model"
	"github.com/VectorBarks/smart-climate-sub002/internal/replay"
)

// Bridge translates engine and replay events into hub broadcasts. It
// implements replay.Callback.
type Bridge struct {
	hub *Hub
	log *zap.Logger
}

// NewBridge creates a bridge over hub.
func NewBridge(hub *Hub, log *zap.Logger) *Bridge {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bridge{hub: hub, log: log}
}

// OnResult broadcasts a fresh offset result for an entity.
func (b *Bridge) OnResult(entityID string, at time.Time, result model.OffsetResult) {
	b.broadcast(TypeOffsetResult, OffsetResultPayload{
		EntityID:  entityID,
		Timestamp: at.UTC().Format(time.RFC3339),
		Result:    result,
	})
}

// OnDashboard broadcasts a dashboard snapshot.
func (b *Bridge) OnDashboard(snap engine.DashboardSnapshot) {
	b.broadcast(TypeDashboardUpdate, snap)
}

// OnStep implements replay.Callback.
func (b *Bridge) OnStep(s replay.Step) {
	b.broadcast(TypeReplayStep, s)
}

// OnSummary implements replay.Callback.
func (b *Bridge) OnSummary(s replay.Summary) {
	b.broadcast(TypeReplaySummary, s)
}

func (b *Bridge) broadcast(msgType string, payload any) {
	msg, err := NewEnvelope(msgType, payload)
	if err != nil {
		b.log.Error("marshal ws message failed",
			zap.String("type", msgType), zap.Error(err))
		return
	}
	b.hub.Broadcast(msg)
}
