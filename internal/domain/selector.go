package domain

import (
	"sort"
	"strconv"
)

// MinimumSpanHours is the shortest record that resolves any constituent.
const MinimumSpanHours = 13.0

// DefaultRayleighFactor scales every tier threshold.
const DefaultRayleighFactor = 1.0

// rayleighTiers are the record lengths, in hours, at which new groups of
// constituents become resolvable.
var rayleighTiers = []float64{13, 24, 25, 26, 235, 328, 355, 651, 656, 662, 764, 4383, 4942, 8766, 8767, 11326, 77554}

// RayleighTiers returns the tier thresholds in ascending order.
func RayleighTiers() []float64 {
	out := make([]float64, len(rayleighTiers))
	copy(out, rayleighTiers)
	return out
}

// SelectConstituents returns, sorted by name, every constituent whose tier
// threshold scaled by rayleigh is at most spanHours.
func SelectConstituents(spanHours, rayleigh float64) ([]string, error) {
	if rayleigh <= 0 {
		return nil, NewConfigurationError("rayleigh", strconv.FormatFloat(rayleigh, 'g', -1, 64), "factor must be positive")
	}
	if spanHours < MinimumSpanHours {
		return nil, NewInputError("select", "record of %.2f hours is shorter than %.0f hours",
			spanHours, MinimumSpanHours)
	}

	var names []string
	for _, c := range DefaultCatalog().All() {
		if spanHours >= c.MinSpanHours*rayleigh {
			names = append(names, c.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}
