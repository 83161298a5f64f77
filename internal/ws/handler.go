package ws

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/VectorBarks/smart-climate-sub002/internal/engine"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// EngineRegistry resolves entity IDs to their engines. Satisfied by the
// service's engine map.
type EngineRegistry interface {
	Engine(entityID string) (*engine.Engine, bool)
}

// Handler upgrades connections and routes client commands to engines.
type Handler struct {
	hub      *Hub
	engines  EngineRegistry
	log      *zap.Logger
}

// NewHandler creates a handler over hub and the engine registry.
func NewHandler(hub *Hub, engines EngineRegistry, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{hub: hub, engines: engines, log: log}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}

	client := newClient(h.hub, conn)
	h.hub.Register(client)
	go client.writePump()
	h.readPump(client)
}

func (h *Handler) readPump(c *Client) {
	defer func() {
		h.hub.Unregister(c)
		c.conn.Close()
	}()

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("ws read failed",
					zap.String("client", c.id), zap.Error(err))
			}
			return
		}
		h.handleMessage(c, msg)
	}
}

func (h *Handler) handleMessage(c *Client, msg []byte) {
	var env Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		h.sendError(c, "invalid message")
		return
	}

	switch env.Type {
	case TypeDashboardGet:
		var p DashboardGetPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			h.sendError(c, "invalid dashboard:get payload")
			return
		}
		eng, ok := h.engines.Engine(p.EntityID)
		if !ok {
			h.sendError(c, "unknown entity "+p.EntityID)
			return
		}
		h.sendTo(c, TypeDashboardUpdate, eng.Dashboard())

	case TypeLearningSet:
		var p LearningSetPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			h.sendError(c, "invalid learning:set payload")
			return
		}
		eng, ok := h.engines.Engine(p.EntityID)
		if !ok {
			h.sendError(c, "unknown entity "+p.EntityID)
			return
		}
		eng.SetEnableLearning(p.Enabled)
		h.log.Info("learning toggled via ws",
			zap.String("entity", p.EntityID), zap.Bool("enabled", p.Enabled))
		h.sendTo(c, TypeDashboardUpdate, eng.Dashboard())

	case TypeEngineReset:
		var p EngineResetPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			h.sendError(c, "invalid engine:reset payload")
			return
		}
		eng, ok := h.engines.Engine(p.EntityID)
		if !ok {
			h.sendError(c, "unknown entity "+p.EntityID)
			return
		}
		eng.Reset()
		h.sendTo(c, TypeDashboardUpdate, eng.Dashboard())

	default:
		h.log.Debug("unknown ws message type", zap.String("type", env.Type))
	}
}

func (h *Handler) sendTo(c *Client, msgType string, payload any) {
	msg, err := NewEnvelope(msgType, payload)
	if err != nil {
		h.log.Error("marshal ws message failed", zap.Error(err))
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

func (h *Handler) sendError(c *Client, message string) {
	h.sendTo(c, TypeError, ErrorPayload{Message: message})
}
