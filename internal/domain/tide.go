package domain

import (
	"math"
	"sort"
	"time"
)

// TideLevel represents a single tide height at a specific time.
type TideLevel struct {
	Time    time.Time
	HeightM float64
}

// Extrema represents high and low tide events.
type Extrema struct {
	Highs []TideLevel
	Lows  []TideLevel
}

// Model is a harmonic description of a station: mean level, optional trend
// and constituents whose phases are Greenwich lags relative to Reference.
type Model struct {
	Reference    time.Time
	Z0           float64
	Slope        float64 // Meters per hour.
	Constituents []ConstituentParam
	Ephemeris    Ephemeris
}

// AttachEquilibrium fills speed and VAUDeg of every constituent at reference.
func AttachEquilibrium(params []ConstituentParam, reference time.Time, eph Ephemeris) error {
	if len(params) == 0 {
		return nil
	}
	cat := DefaultCatalog()
	names := make([]string, len(params))
	for i, p := range params {
		canon, ok := cat.Canonical(p.Name)
		if !ok {
			return NewConfigurationError("constituent", p.Name, "not in catalog")
		}
		names[i] = canon
	}
	vau, err := EquilibriumAt(names, reference, eph)
	if err != nil {
		return err
	}
	for i := range params {
		k, _ := cat.Lookup(names[i])
		params[i].Name = names[i]
		params[i].SpeedDegPerHr = k.SpeedDegPerHr
		params[i].VAUDeg = vau[names[i]]
	}
	return nil
}

// Synthesize evaluates Σ H·F·cos(speed·t − (φ − V+u)) at each timestamp, with t
// in hours from the model reference. When names are given only those
// constituents contribute. Mean level and trend are not included.
func Synthesize(m Model, times []time.Time, names ...string) ([]float64, error) {
	out := make([]float64, len(times))
	if len(times) == 0 {
		return out, nil
	}

	params := m.Constituents
	if len(names) > 0 {
		want := make(map[string]bool, len(names))
		for _, n := range names {
			want[n] = true
		}
		params = nil
		for _, c := range m.Constituents {
			if want[c.Name] {
				params = append(params, c)
			}
		}
	}
	if len(params) == 0 {
		return out, nil
	}

	list := make([]string, len(params))
	for i, c := range params {
		list[i] = c.Name
	}
	table, err := ComputeEquilibrium(list, times, m.Ephemeris)
	if err != nil {
		return nil, err
	}

	hours := HoursSince(times, m.Reference)
	for i, c := range params {
		f := table.Entries[i].NodeFactors
		w := Deg2Rad(c.SpeedDegPerHr)
		lag := Deg2Rad(c.PhaseDeg - c.VAUDeg)
		for j, t := range hours {
			out[j] += c.AmplitudeM * f[j] * math.Cos(w*t-lag)
		}
	}
	return out, nil
}

// Predict returns Z0 + slope·t plus the synthesized tide at each timestamp.
func (m Model) Predict(times []time.Time) ([]float64, error) {
	tide, err := Synthesize(m, times)
	if err != nil {
		return nil, err
	}
	for j, t := range times {
		tide[j] += m.Z0 + m.Slope*t.Sub(m.Reference).Hours()
	}
	return tide, nil
}

// Components returns the contribution of each constituent at each timestamp.
func (m Model) Components(times []time.Time) (map[string][]float64, error) {
	out := make(map[string][]float64, len(m.Constituents))
	for _, c := range m.Constituents {
		series, err := Synthesize(m, times, c.Name)
		if err != nil {
			return nil, err
		}
		out[c.Name] = series
	}
	return out, nil
}

// CalculateTideHeight computes the tide height at a specific time.
func CalculateTideHeight(t time.Time, m Model) (float64, error) {
	h, err := m.Predict([]time.Time{t})
	if err != nil {
		return 0, err
	}
	return h[0], nil
}

// GeneratePredictions creates a time series of tide predictions.
func GeneratePredictions(start, end time.Time, interval time.Duration, m Model) ([]TideLevel, error) {
	if interval <= 0 {
		return nil, NewInputError("predict", "interval must be positive")
	}
	var times []time.Time
	for t := start; !t.After(end); t = t.Add(interval) {
		times = append(times, t)
	}

	heights, err := m.Predict(times)
	if err != nil {
		return nil, err
	}

	predictions := make([]TideLevel, len(times))
	for i, t := range times {
		predictions[i] = TideLevel{Time: t, HeightM: heights[i]}
	}
	return predictions, nil
}

// FindExtrema identifies high and low tides from a time series.
// Uses first derivative sign change to detect peaks and troughs.
func FindExtrema(predictions []TideLevel) Extrema {
	if len(predictions) < 3 {
		return Extrema{
			Highs: []TideLevel{},
			Lows:  []TideLevel{},
		}
	}

	highs := make([]TideLevel, 0)
	lows := make([]TideLevel, 0)

	for i := 1; i < len(predictions)-1; i++ {
		prev := predictions[i-1].HeightM
		curr := predictions[i].HeightM
		next := predictions[i+1].HeightM

		if curr > prev && curr > next {
			highs = append(highs, predictions[i])
		}
		if curr < prev && curr < next {
			lows = append(lows, predictions[i])
		}
	}

	return Extrema{
		Highs: highs,
		Lows:  lows,
	}
}

// RefineExtremum fits a parabola through three points around a discrete
// extremum and returns the vertex time and height.
func RefineExtremum(before, peak, after TideLevel) (time.Time, float64) {
	dt1 := peak.Time.Sub(before.Time).Hours()
	dt2 := after.Time.Sub(peak.Time).Hours()

	// Non-uniform spacing.
	if math.Abs(dt1-dt2) > 1e-6 {
		return peak.Time, peak.HeightM
	}

	h0, h1, h2 := before.HeightM, peak.HeightM, after.HeightM
	a := (h2 - 2*h1 + h0) / (2 * dt1 * dt1)
	b := (h2 - h0) / (2 * dt1)

	if math.Abs(a) < 1e-10 {
		return peak.Time, peak.HeightM
	}

	dtVertex := -b / (2 * a)
	if math.Abs(dtVertex) > dt1 {
		return peak.Time, peak.HeightM
	}

	refinedTime := peak.Time.Add(time.Duration(dtVertex * float64(time.Hour)))
	refinedHeight := h1 + b*dtVertex + a*dtVertex*dtVertex

	return refinedTime, refinedHeight
}

// RefineExtrema applies parabolic interpolation to all extrema.
func RefineExtrema(predictions []TideLevel, extrema Extrema) Extrema {
	if len(predictions) < 3 {
		return extrema
	}

	index := make(map[time.Time]int, len(predictions))
	for i, p := range predictions {
		index[p.Time] = i
	}

	refine := func(levels []TideLevel) []TideLevel {
		out := make([]TideLevel, 0, len(levels))
		for _, l := range levels {
			idx, ok := index[l.Time]
			if !ok || idx < 1 || idx >= len(predictions)-1 {
				out = append(out, l)
				continue
			}
			t, h := RefineExtremum(predictions[idx-1], predictions[idx], predictions[idx+1])
			out = append(out, TideLevel{Time: t, HeightM: h})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
		return out
	}

	return Extrema{
		Highs: refine(extrema.Highs),
		Lows:  refine(extrema.Lows),
	}
}
