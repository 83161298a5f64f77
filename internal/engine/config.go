package engine

import (
	"time"

	"go.uber.org/zap"
)

// Defaults for Config fields. Kept as construction-time constants so tests
// and the TOML config layer share one source of truth.
const (
	DefaultMaxOffset          = 5.0
	DefaultPowerIdleThreshold = 50.0
	DefaultPowerMinThreshold  = 100.0
	DefaultPowerMaxThreshold  = 250.0

	DefaultSaveInterval = 60 * time.Minute
	MinSaveInterval     = 5 * time.Minute
	MaxSaveInterval     = 60 * time.Minute

	DefaultValidationOffsetMin = -10.0
	DefaultValidationOffsetMax = 10.0
	DefaultValidationTempMin   = 10.0
	DefaultValidationTempMax   = 40.0
	DefaultValidationRateLimit = 60 * time.Second

	// DefaultCalibrationStableBand is the |ac - room| band within which an
	// idle unit is considered converged during calibration. Coupled to
	// evaporator-coil sensor behavior; override per hardware.
	DefaultCalibrationStableBand = 2.0

	// MinSamplesForActiveControl is the learner sample count that ends the
	// calibration phase.
	MinSamplesForActiveControl = 10
)

// Config is the engine configuration, validated once at construction.
type Config struct {
	EntityID string

	MaxOffset      float64
	EnableLearning bool

	// PowerSensor is the entity ID of the power sensor; presence enables
	// hysteresis learning.
	PowerSensor string
	// OutdoorSensor presence enables seasonal features (external).
	OutdoorSensor string

	PowerIdleThreshold float64
	PowerMinThreshold  float64
	PowerMaxThreshold  float64

	SaveInterval time.Duration

	ValidationOffsetMin float64
	ValidationOffsetMax float64
	ValidationTempMin   float64
	ValidationTempMax   float64
	ValidationRateLimit time.Duration

	CalibrationStableBand float64

	LearnerSampleCap     int
	HysteresisSampleCap  int
	HysteresisMinSamples int
}

// DefaultConfig returns a config with every field at its default.
func DefaultConfig(entityID string) Config {
	return Config{
		EntityID:              entityID,
		MaxOffset:             DefaultMaxOffset,
		PowerIdleThreshold:    DefaultPowerIdleThreshold,
		PowerMinThreshold:     DefaultPowerMinThreshold,
		PowerMaxThreshold:     DefaultPowerMaxThreshold,
		SaveInterval:          DefaultSaveInterval,
		ValidationOffsetMin:   DefaultValidationOffsetMin,
		ValidationOffsetMax:   DefaultValidationOffsetMax,
		ValidationTempMin:     DefaultValidationTempMin,
		ValidationTempMax:     DefaultValidationTempMax,
		ValidationRateLimit:   DefaultValidationRateLimit,
		CalibrationStableBand: DefaultCalibrationStableBand,
	}
}

// normalize clamps out-of-range values back to safe ones, warning for each
// adjustment rather than rejecting the config.
func (c *Config) normalize(log *zap.Logger) {
	if c.MaxOffset <= 0 {
		log.Warn("max_offset must be positive, using default",
			zap.Float64("given", c.MaxOffset), zap.Float64("default", DefaultMaxOffset))
		c.MaxOffset = DefaultMaxOffset
	}
	if c.PowerIdleThreshold <= 0 {
		c.PowerIdleThreshold = DefaultPowerIdleThreshold
	}
	if c.PowerMinThreshold <= c.PowerIdleThreshold {
		log.Warn("power_min_threshold must exceed idle threshold, adjusting",
			zap.Float64("idle", c.PowerIdleThreshold), zap.Float64("min", c.PowerMinThreshold))
		c.PowerMinThreshold = c.PowerIdleThreshold * 2
	}
	if c.PowerMaxThreshold <= c.PowerMinThreshold {
		log.Warn("power_max_threshold must exceed min threshold, adjusting",
			zap.Float64("min", c.PowerMinThreshold), zap.Float64("max", c.PowerMaxThreshold))
		c.PowerMaxThreshold = c.PowerMinThreshold * 2
	}
	if c.SaveInterval == 0 {
		c.SaveInterval = DefaultSaveInterval
	}
	if c.SaveInterval < MinSaveInterval {
		log.Warn("save_interval below minimum, clamping",
			zap.Duration("given", c.SaveInterval), zap.Duration("min", MinSaveInterval))
		c.SaveInterval = MinSaveInterval
	}
	if c.SaveInterval > MaxSaveInterval {
		log.Warn("save_interval above maximum, clamping",
			zap.Duration("given", c.SaveInterval), zap.Duration("max", MaxSaveInterval))
		c.SaveInterval = MaxSaveInterval
	}
	if c.ValidationOffsetMin == 0 && c.ValidationOffsetMax == 0 {
		c.ValidationOffsetMin = DefaultValidationOffsetMin
		c.ValidationOffsetMax = DefaultValidationOffsetMax
	}
	if c.ValidationTempMin == 0 && c.ValidationTempMax == 0 {
		c.ValidationTempMin = DefaultValidationTempMin
		c.ValidationTempMax = DefaultValidationTempMax
	}
	if c.ValidationOffsetMin >= c.ValidationOffsetMax {
		log.Warn("invalid validation offset bounds, using defaults")
		c.ValidationOffsetMin = DefaultValidationOffsetMin
		c.ValidationOffsetMax = DefaultValidationOffsetMax
	}
	if c.ValidationTempMin >= c.ValidationTempMax {
		log.Warn("invalid validation temperature bounds, using defaults")
		c.ValidationTempMin = DefaultValidationTempMin
		c.ValidationTempMax = DefaultValidationTempMax
	}
	if c.ValidationRateLimit <= 0 {
		c.ValidationRateLimit = DefaultValidationRateLimit
	}
	if c.CalibrationStableBand <= 0 {
		c.CalibrationStableBand = DefaultCalibrationStableBand
	}
}
