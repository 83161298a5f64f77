package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/VectorBarks/smart-climate-sub002/internal/model"
)

func TestReplayEngineConfig_PowerColumnEnablesPowerSensor(t *testing.T) {
	obs := []model.Observation{
		{Timestamp: time.Now(), RoomTemp: model.Float(25.0)},
		{Timestamp: time.Now(), RoomTemp: model.Float(25.0), PowerW: model.Float(800.0)},
	}
	cfg := replayEngineConfig("climate.living_room", true, obs)

	assert.Equal(t, "climate.living_room", cfg.EntityID)
	assert.True(t, cfg.EnableLearning)
	assert.Equal(t, "power", cfg.PowerSensor)
}

func TestReplayEngineConfig_NoPowerColumn(t *testing.T) {
	obs := []model.Observation{
		{Timestamp: time.Now(), RoomTemp: model.Float(25.0)},
	}
	cfg := replayEngineConfig("climate.bedroom", false, obs)

	assert.False(t, cfg.EnableLearning)
	assert.Empty(t, cfg.PowerSensor)
}
