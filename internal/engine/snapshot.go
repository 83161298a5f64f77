package engine

import (
	"go.uber.org/zap"

	"github.com/VectorBarks/smart-climate-sub002/internal/persistence"
)

// SerializeLearningData snapshots the engine and sub-learner state for
// persistence.
func (e *Engine) SerializeLearningData() persistence.LearningData {
	return persistence.LearningData{
		EngineState:    persistence.EngineState{EnableLearning: e.cfg.EnableLearning},
		LearnerData:    e.learner.SerializeForPersistence(),
		HysteresisData: e.hyst.SerializeForPersistence(),
	}
}

// RestoreLearningData applies a previously persisted snapshot. Each section
// restores independently: a malformed learner payload does not block the
// hysteresis restore, and vice versa.
func (e *Engine) RestoreLearningData(data *persistence.LearningData) {
	if data == nil {
		return
	}

	e.cfg.EnableLearning = data.EngineState.EnableLearning

	if data.LearnerData != nil {
		if !e.learner.RestoreFromPersistence(data.LearnerData) {
			e.log.Warn("learner state restore failed, starting empty")
		}
	}
	if data.HysteresisData != nil {
		e.hyst.RestoreFromPersistence(data.HysteresisData)
	}
	e.dashboard.invalidateAll()

	start, stop := e.hyst.Thresholds()
	e.log.Info("learning state restored",
		zap.Int("samples", e.learner.Len()),
		zap.Bool("learning_enabled", e.cfg.EnableLearning),
		zap.Bool("hysteresis_ready", start != nil && stop != nil))
}
