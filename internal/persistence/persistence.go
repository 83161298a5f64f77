// Package persistence stores per-entity learning state as a versioned JSON
// file. Legacy schema versions are accepted on load and rewritten in the
// current shape on the next save. Saves are atomic (temp file + rename) and
// keep a backup of the previous file alongside.
package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/VectorBarks/smart-climate-sub002/internal/metrics"
)

// SchemaVersion is the current on-disk schema.
const SchemaVersion = "2.1"

// BackupSuffix is appended to the file path for the pre-save backup.
const BackupSuffix = ".backup"

// EngineState is the persisted slice of engine configuration.
type EngineState struct {
	EnableLearning bool `json:"enable_learning"`
}

// LearningData is the persisted learning payload. The learner and hysteresis
// payloads stay schemaless maps: their owners implement tolerant restore and
// the coordinator passes them through without interpretation.
type LearningData struct {
	EngineState    EngineState    `json:"engine_state"`
	LearnerData    map[string]any `json:"learner_data,omitempty"`
	HysteresisData map[string]any `json:"hysteresis_data,omitempty"`
	SeasonalData   map[string]any `json:"seasonal_data,omitempty"`
}

// File is the top-level v2.1 schema.
type File struct {
	Version      string         `json:"version"`
	EntityID     string         `json:"entity_id"`
	LastUpdated  string         `json:"last_updated"`
	LearningData LearningData   `json:"learning_data"`
	ThermalData  map[string]any `json:"thermal_data,omitempty"`
}

// Coordinator serializes and restores one entity's state file. Thermal data
// belongs to an unrelated subsystem and is passed through opaquely via the
// optional callbacks.
type Coordinator struct {
	path     string
	entityID string
	log      *zap.Logger
	met      *metrics.Metrics

	getThermal     func() map[string]any
	restoreThermal func(map[string]any)

	failedSaves  int
	lastDuration time.Duration

	now func() time.Time
}

// NewCoordinator creates a coordinator writing to path.
func NewCoordinator(path, entityID string, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{
		path:     path,
		entityID: entityID,
		log:      log.With(zap.String("entity", entityID)),
		now:      time.Now,
	}
}

// UseThermalCallbacks wires the thermal subsystem's opaque data into the
// state file.
func (c *Coordinator) UseThermalCallbacks(get func() map[string]any, restore func(map[string]any)) {
	c.getThermal = get
	c.restoreThermal = restore
}

// UseMetrics attaches Prometheus collectors. Optional.
func (c *Coordinator) UseMetrics(m *metrics.Metrics) { c.met = m }

// FailedSaves returns the number of failed save attempts.
func (c *Coordinator) FailedSaves() int { return c.failedSaves }

// LastSaveDuration returns the wall time of the most recent successful save.
func (c *Coordinator) LastSaveDuration() time.Duration { return c.lastDuration }

// Save writes the current state atomically, backing up the previous file
// first. Failures are logged and counted, never raised past the returned
// error.
func (c *Coordinator) Save(data LearningData) error {
	start := c.now()
	err := c.save(data, start)
	if err != nil {
		c.failedSaves++
		if c.met != nil {
			c.met.SaveFailuresTotal.Inc()
		}
		c.log.Error("state save failed",
			zap.Error(err), zap.Int("failed_saves", c.failedSaves))
		return err
	}

	c.lastDuration = c.now().Sub(start)
	if c.met != nil {
		c.met.SaveDurationSeconds.Observe(c.lastDuration.Seconds())
	}
	c.log.Debug("state saved",
		zap.String("path", c.path), zap.Duration("duration", c.lastDuration))
	return nil
}

func (c *Coordinator) save(data LearningData, now time.Time) error {
	file := File{
		Version:      SchemaVersion,
		EntityID:     c.entityID,
		LastUpdated:  now.UTC().Format(time.RFC3339),
		LearningData: data,
	}
	if c.getThermal != nil {
		file.ThermalData = c.getThermal()
	}

	payload, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	// Keep the previous content reachable as <path>.backup. The backup is
	// best-effort: a failure here must not block the save itself.
	if previous, err := os.ReadFile(c.path); err == nil {
		if err := os.WriteFile(c.path+BackupSuffix, previous, 0o644); err != nil {
			c.log.Warn("backup write failed", zap.Error(err))
		}
	}

	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// Load reads and migrates the state file. A missing file returns (nil, nil):
// the caller keeps its in-memory state. Corrupt files return an error; the
// caller likewise keeps going. Thermal data is handed to the restore
// callback in isolation so a thermal failure never poisons learning data.
func (c *Coordinator) Load() (*LearningData, error) {
	payload, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}

	version, _ := raw["version"].(string)
	var data *LearningData
	if version == SchemaVersion {
		data = decodeLearningData(raw["learning_data"])
		if c.restoreThermal != nil {
			if thermal, ok := raw["thermal_data"].(map[string]any); ok {
				c.restoreThermal(thermal)
			}
		}
	} else {
		// v1/v2 files carried the learning payload at the top level and had
		// no seasonal or thermal sections. Accepted as-is; rewritten in the
		// current shape on the next save.
		c.log.Info("migrating legacy state file",
			zap.String("found_version", version))
		data = decodeLearningData(raw)
	}

	if data == nil {
		return nil, fmt.Errorf("state file has no usable learning data")
	}
	return data, nil
}

func decodeLearningData(raw any) *LearningData {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil
	}

	var data LearningData
	if engineState, ok := m["engine_state"].(map[string]any); ok {
		if enabled, ok := engineState["enable_learning"].(bool); ok {
			data.EngineState.EnableLearning = enabled
		}
	}
	if learnerData, ok := m["learner_data"].(map[string]any); ok {
		data.LearnerData = learnerData
	}
	if hysteresisData, ok := m["hysteresis_data"].(map[string]any); ok {
		data.HysteresisData = hysteresisData
	}
	if seasonalData, ok := m["seasonal_data"].(map[string]any); ok {
		data.SeasonalData = seasonalData
	}
	return &data
}
