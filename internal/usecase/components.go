package usecase

import (
	"sort"
	"time"

	"go.ngs.io/tides-analysis/internal/domain"
)

// ComponentSeries is the contribution of every constituent of a model on a
// set of timestamps, plus their sum with mean level and trend.
type ComponentSeries struct {
	Times      []time.Time
	Names      []string // Sorted.
	Components map[string][]float64
	Total      []float64
}

// Columns returns the component columns in Names order followed by the total.
func (c *ComponentSeries) Columns() ([]string, [][]float64) {
	names := append(append([]string{}, c.Names...), "total")
	cols := make([][]float64, 0, len(names))
	for _, n := range c.Names {
		cols = append(cols, c.Components[n])
	}
	return names, append(cols, c.Total)
}

// BuildComponents synthesizes each constituent of m separately.
func BuildComponents(m domain.Model, times []time.Time) (*ComponentSeries, error) {
	comps, err := m.Components(times)
	if err != nil {
		return nil, err
	}
	total, err := m.Predict(times)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(comps))
	for n := range comps {
		names = append(names, n)
	}
	sort.Strings(names)
	return &ComponentSeries{Times: times, Names: names, Components: comps, Total: total}, nil
}

// EphemerisRow holds the slowly varying astronomical arguments at one time.
type EphemerisRow struct {
	Time time.Time `json:"time"`
	JD   float64   `json:"jd"`
	S    float64   `json:"s"`
	P    float64   `json:"p"`
	H    float64   `json:"h"`
	P1   float64   `json:"p1"`
	N    float64   `json:"n"`
}

// EphemerisTable evaluates the astronomical arguments at every timestamp.
func EphemerisTable(times []time.Time, eph domain.Ephemeris) []EphemerisRow {
	out := make([]EphemerisRow, len(times))
	for i, t := range times {
		a := domain.ComputeArguments(t, eph)
		out[i] = EphemerisRow{Time: t, JD: a.JD, S: a.S, P: a.P, H: a.H, P1: a.P1, N: a.N}
	}
	return out
}
