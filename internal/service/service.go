// Package service wires the per-entity offset engines to their transports:
// MQTT sensor intake and result publishing, the HTTP diagnostics API, the
// WebSocket dashboard feed, Prometheus metrics and periodic persistence.
package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/VectorBarks/smart-climate-sub002/internal/config"
	"github.com/VectorBarks/smart-climate-sub002/internal/engine"
	"github.com/VectorBarks/smart-climate-sub002/internal/history"
	"github.com/VectorBarks/smart-climate-sub002/internal/metrics"
	"github.com/VectorBarks/smart-climate-sub002/internal/model"
	"github.com/VectorBarks/smart-climate-sub002/internal/mqtt"
	"github.com/VectorBarks/smart-climate-sub002/internal/persistence"
	"github.com/VectorBarks/smart-climate-sub002/internal/ws"
)

// historyCap bounds the in-memory observation series per entity.
const historyCap = 10000

// Client is the MQTT surface the service needs.
type Client interface {
	mqtt.Publisher
	mqtt.Subscriber
}

// entityRuntime pairs an engine with its persistence coordinator. The mutex
// serializes engine access across transport goroutines; within one entity
// the engine then runs strictly sequentially, as it requires.
type entityRuntime struct {
	mu          sync.Mutex
	engine      *engine.Engine
	coordinator *persistence.Coordinator
	lastSave    time.Time
}

// Service owns all entity runtimes for one process.
type Service struct {
	cfg *config.Config
	log *zap.Logger

	registry *prometheus.Registry
	met      *metrics.Metrics

	hub    *ws.Hub
	bridge *ws.Bridge
	hist   *history.Store
	client Client

	mu       sync.RWMutex
	entities map[string]*entityRuntime
}

// New builds a service from configuration. client carries both MQTT
// directions; tests pass a fake.
func New(cfg *config.Config, client Client, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	registry := prometheus.NewRegistry()
	met := metrics.New(registry)
	hub := ws.NewHub(log)

	s := &Service{
		cfg:      cfg,
		log:      log,
		registry: registry,
		met:      met,
		hub:      hub,
		bridge:   ws.NewBridge(hub, log),
		hist:     history.New(historyCap),
		client:   client,
		entities: make(map[string]*entityRuntime),
	}

	for _, entity := range cfg.Entities {
		eng := engine.New(entity.EngineConfig(), log)
		eng.UseMetrics(met)
		eng.UseHistory(s.hist)

		statePath := filepath.Join(cfg.DataDir, fmt.Sprintf("%s_learning.json", entity.ID))
		coordinator := persistence.NewCoordinator(statePath, entity.ID, log)
		coordinator.UseMetrics(met)

		s.entities[entity.ID] = &entityRuntime{
			engine:      eng,
			coordinator: coordinator,
		}
	}
	return s
}

// Engine implements ws.EngineRegistry.
func (s *Service) Engine(entityID string) (*engine.Engine, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rt, ok := s.entities[entityID]
	if !ok {
		return nil, false
	}
	return rt.engine, true
}

// EntityIDs returns the configured entity IDs.
func (s *Service) EntityIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.entities))
	for id := range s.entities {
		ids = append(ids, id)
	}
	return ids
}

// Hub returns the WebSocket hub for the HTTP layer.
func (s *Service) Hub() *ws.Hub { return s.hub }

// Start restores persisted state, subscribes to sensor topics and launches
// the periodic save loop. It returns once startup is complete; the save loop
// stops when ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	for id, rt := range s.entities {
		data, err := rt.coordinator.Load()
		if err != nil {
			// Keep the fresh in-memory state; a corrupt file must not stop
			// the entity from serving.
			s.log.Warn("state load failed, starting fresh",
				zap.String("entity", id), zap.Error(err))
			continue
		}
		rt.engine.RestoreLearningData(data)
	}

	if err := s.client.Subscribe(s.handleSnapshot); err != nil {
		return fmt.Errorf("subscribe to sensor topics: %w", err)
	}

	if err := s.client.PublishSystem(mqtt.SystemEvent{
		Timestamp: time.Now(),
		Event:     "STARTUP",
	}); err != nil {
		s.log.Warn("startup event publish failed", zap.Error(err))
	}

	go s.saveLoop(ctx)
	s.log.Info("service started", zap.Int("entities", len(s.entities)))
	return nil
}

// handleSnapshot runs one full calculation round for an assembled snapshot.
func (s *Service) handleSnapshot(entityID string, input model.OffsetInput) {
	s.mu.RLock()
	rt, ok := s.entities[entityID]
	s.mu.RUnlock()
	if !ok {
		s.log.Debug("snapshot for unconfigured entity", zap.String("entity", entityID))
		return
	}

	now := time.Now()
	s.hist.Add(model.Observation{
		Timestamp:       now,
		EntityID:        entityID,
		ACInternalTemp:  input.ACInternalTemp,
		RoomTemp:        input.RoomTemp,
		OutdoorTemp:     input.OutdoorTemp,
		PowerW:          input.PowerConsumption,
		IndoorHumidity:  input.IndoorHumidity,
		OutdoorHumidity: input.OutdoorHumidity,
	})

	rt.mu.Lock()
	result := rt.engine.CalculateOffset(input)
	// The setpoint adjustment that follows this result is our own output.
	rt.engine.SetAdjustmentSource(engine.SourcePrediction)
	snap := rt.engine.Dashboard()
	rt.mu.Unlock()

	if err := s.client.PublishResult(entityID, now, result); err != nil {
		s.log.Warn("result publish failed",
			zap.String("entity", entityID), zap.Error(err))
	}
	s.bridge.OnResult(entityID, now, result)
	s.bridge.OnDashboard(snap)
}

// RecordFeedback feeds an externally observed correction into an entity's
// learner. source tags the origin for feedback-loop prevention.
func (s *Service) RecordFeedback(entityID string, predicted, actual float64, input model.OffsetInput, when time.Time, source engine.AdjustmentSource) error {
	s.mu.RLock()
	rt, ok := s.entities[entityID]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown entity %q", entityID)
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.engine.SetAdjustmentSource(source)
	rt.engine.RecordActualPerformance(predicted, actual, input, when)
	return nil
}

// saveLoop periodically persists each engine whose save interval elapsed.
func (s *Service) saveLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.saveDue(time.Now())
		}
	}
}

func (s *Service) saveDue(now time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for id, rt := range s.entities {
		rt.mu.Lock()
		interval := rt.engine.Config().SaveInterval
		due := rt.lastSave.IsZero() || now.Sub(rt.lastSave) >= interval
		if due {
			s.saveLocked(id, rt)
		}
		rt.mu.Unlock()
	}
}

// saveLocked persists one entity. Caller holds rt.mu.
func (s *Service) saveLocked(id string, rt *entityRuntime) {
	if err := rt.coordinator.Save(rt.engine.SerializeLearningData()); err != nil {
		if pubErr := s.client.PublishSystem(mqtt.SystemEvent{
			Timestamp: time.Now(),
			Event:     "SAVE_FAILED",
			Reason:    err.Error(),
		}); pubErr != nil {
			s.log.Warn("save-failed event publish failed", zap.Error(pubErr))
		}
		return
	}
	rt.lastSave = time.Now()
	rt.engine.RecordSaveDuration(rt.coordinator.LastSaveDuration())
}

// SaveAll persists every entity immediately, used on shutdown and when a
// user toggles learning.
func (s *Service) SaveAll() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, rt := range s.entities {
		rt.mu.Lock()
		s.saveLocked(id, rt)
		rt.mu.Unlock()
	}
}

// ApplyConfig applies a live-reloaded configuration. Only runtime-tunable
// per-entity flags are applied; topology changes (new entities, different
// data dir) require a restart and are logged as such.
func (s *Service) ApplyConfig(cfg *config.Config) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, entity := range cfg.Entities {
		rt, ok := s.entities[entity.ID]
		if !ok {
			s.log.Info("new entity in reloaded config requires restart",
				zap.String("entity", entity.ID))
			continue
		}
		rt.mu.Lock()
		if rt.engine.LearningEnabled() != entity.EnableLearning {
			rt.engine.SetEnableLearning(entity.EnableLearning)
			s.log.Info("learning toggled via config reload",
				zap.String("entity", entity.ID), zap.Bool("enabled", entity.EnableLearning))
			s.saveLocked(entity.ID, rt)
		}
		rt.mu.Unlock()
	}
}

// Shutdown saves all state and announces the shutdown on the bus.
func (s *Service) Shutdown(reason string) {
	s.SaveAll()
	if err := s.client.PublishSystem(mqtt.SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    reason,
	}); err != nil {
		s.log.Warn("shutdown event publish failed", zap.Error(err))
	}
	if err := s.client.Close(); err != nil {
		s.log.Warn("mqtt close failed", zap.Error(err))
	}
	s.log.Info("service stopped", zap.String("reason", reason))
}
