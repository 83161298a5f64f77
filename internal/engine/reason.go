package engine

import (
	"fmt"
	"math"
	"strings"

	"github.com/VectorBarks/smart-climate-sub002/internal/model"
)

// reasonParts collects the independent phrases of the diagnostic reason
// string. Each phrase is present or absent on its own; the join order is
// fixed and asserted by tests.
type reasonParts struct {
	diff float64

	seasonal        bool
	learningSamples int
	learningErr     error

	humidityPresent      bool
	humidityContribution float64

	mode        model.Mode
	power       string
	outdoorDiff *float64

	clamped   bool
	maxOffset float64
}

func (r *reasonParts) build() string {
	var parts []string

	switch {
	case r.diff > 0:
		parts = append(parts, "AC sensor reads above room temperature")
	case r.diff < 0:
		parts = append(parts, "AC sensor reads below room temperature")
	default:
		parts = append(parts, "AC sensor matches room temperature")
	}

	if r.seasonal {
		parts = append(parts, "seasonally adjusted")
	}

	if r.learningErr != nil {
		parts = append(parts, fmt.Sprintf("learning unavailable (%v)", r.learningErr))
	} else if r.learningSamples > 0 {
		parts = append(parts, fmt.Sprintf("learning-adjusted (%d samples)", r.learningSamples))
	}

	if r.humidityPresent {
		if math.Abs(r.humidityContribution) >= humidityReasonThreshold {
			parts = append(parts, fmt.Sprintf("humidity-adjusted (%+.2f°C from humidity)", r.humidityContribution))
		} else {
			parts = append(parts, "humidity-adjusted")
		}
	}

	if r.mode != model.ModeNone && r.mode != "" {
		parts = append(parts, fmt.Sprintf("%s mode", r.mode))
	}

	if r.power != "" {
		parts = append(parts, fmt.Sprintf("power state %s", r.power))
	}

	if r.outdoorDiff != nil {
		if *r.outdoorDiff > 10 {
			parts = append(parts, "hot outdoor conditions")
		} else if *r.outdoorDiff < -10 {
			parts = append(parts, "cold outdoor conditions")
		}
	}

	if r.clamped {
		parts = append(parts, fmt.Sprintf("clamped to ±%.1f°C limit", r.maxOffset))
	}

	return strings.Join(parts, "; ")
}
