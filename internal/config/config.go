// Package config loads the TOML service configuration and supports live
// reload of the file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/VectorBarks/smart-climate-sub002/internal/engine"
)

// Entity configures one climate entity's offset engine.
type Entity struct {
	ID             string  `toml:"id"`
	MaxOffset      float64 `toml:"max_offset,omitempty"`
	EnableLearning bool    `toml:"enable_learning,omitempty"`

	PowerSensor   string `toml:"power_sensor,omitempty"`
	OutdoorSensor string `toml:"outdoor_sensor,omitempty"`

	PowerIdleThreshold float64 `toml:"power_idle_threshold,omitempty"`
	PowerMinThreshold  float64 `toml:"power_min_threshold,omitempty"`
	PowerMaxThreshold  float64 `toml:"power_max_threshold,omitempty"`

	SaveIntervalSeconds int `toml:"save_interval_seconds,omitempty"`

	ValidationOffsetMin float64 `toml:"validation_offset_min,omitempty"`
	ValidationOffsetMax float64 `toml:"validation_offset_max,omitempty"`
	ValidationTempMin   float64 `toml:"validation_temp_min,omitempty"`
	ValidationTempMax   float64 `toml:"validation_temp_max,omitempty"`

	ValidationRateLimitSeconds int `toml:"validation_rate_limit_seconds,omitempty"`

	CalibrationStableBand float64 `toml:"calibration_stable_band,omitempty"`
}

// Config is the service configuration.
type Config struct {
	ListenAddr string   `toml:"listen_address,omitempty"`
	MQTTBroker string   `toml:"mqtt_broker,omitempty"`
	DataDir    string   `toml:"data_dir,omitempty"`
	Entities   []Entity `toml:"entities"`
}

// Load reads and decodes the config file, applying service-level defaults.
// Unknown entity-level values are clamped later by engine config
// normalization.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8099"
	}
	if cfg.MQTTBroker == "" {
		cfg.MQTTBroker = "tcp://localhost:1883"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if len(cfg.Entities) == 0 {
		return nil, fmt.Errorf("config declares no entities")
	}
	for i, e := range cfg.Entities {
		if e.ID == "" {
			return nil, fmt.Errorf("entity %d has no id", i)
		}
	}
	return &cfg, nil
}

// EngineConfig converts an entity block to an engine configuration. Zero
// values defer to the engine defaults.
func (e Entity) EngineConfig() engine.Config {
	cfg := engine.DefaultConfig(e.ID)
	cfg.EnableLearning = e.EnableLearning
	cfg.PowerSensor = e.PowerSensor
	cfg.OutdoorSensor = e.OutdoorSensor

	if e.MaxOffset != 0 {
		cfg.MaxOffset = e.MaxOffset
	}
	if e.PowerIdleThreshold != 0 {
		cfg.PowerIdleThreshold = e.PowerIdleThreshold
	}
	if e.PowerMinThreshold != 0 {
		cfg.PowerMinThreshold = e.PowerMinThreshold
	}
	if e.PowerMaxThreshold != 0 {
		cfg.PowerMaxThreshold = e.PowerMaxThreshold
	}
	if e.SaveIntervalSeconds != 0 {
		cfg.SaveInterval = time.Duration(e.SaveIntervalSeconds) * time.Second
	}
	if e.ValidationOffsetMin != 0 || e.ValidationOffsetMax != 0 {
		cfg.ValidationOffsetMin = e.ValidationOffsetMin
		cfg.ValidationOffsetMax = e.ValidationOffsetMax
	}
	if e.ValidationTempMin != 0 || e.ValidationTempMax != 0 {
		cfg.ValidationTempMin = e.ValidationTempMin
		cfg.ValidationTempMax = e.ValidationTempMax
	}
	if e.ValidationRateLimitSeconds != 0 {
		cfg.ValidationRateLimit = time.Duration(e.ValidationRateLimitSeconds) * time.Second
	}
	if e.CalibrationStableBand != 0 {
		cfg.CalibrationStableBand = e.CalibrationStableBand
	}
	return cfg
}
