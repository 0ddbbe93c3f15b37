package domain

import (
	"sort"
	"time"
)

type minorRatio struct {
	Name      string
	Reference string // Parent whose amplitude the ratio scales.
	Ratio     float64
}

// inferencePair lists the minors unlocked when both parents were fitted.
// Phases interpolate linearly in frequency between Parent1 and Parent2.
type inferencePair struct {
	Parent1 string
	Parent2 string
	Minors  []minorRatio
}

// Equilibrium tide amplitude ratios (Cartwright and Tayler).
var inferencePairs = []inferencePair{
	{
		Parent1: "O1",
		Parent2: "K1",
		Minors: []minorRatio{
			{Name: "J1", Reference: "K1", Ratio: 0.0559},
			{Name: "OO1", Reference: "K1", Ratio: 0.0306},
			{Name: "P1", Reference: "K1", Ratio: 0.3309},
			{Name: "Q1", Reference: "O1", Ratio: 0.1914},
			{Name: "2Q1", Reference: "O1", Ratio: 0.0254},
			{Name: "RHO1", Reference: "O1", Ratio: 0.0363},
		},
	},
	{
		Parent1: "M2",
		Parent2: "S2",
		Minors: []minorRatio{
			{Name: "K2", Reference: "S2", Ratio: 0.2720},
			{Name: "L2", Reference: "M2", Ratio: 0.0282},
			{Name: "N2", Reference: "M2", Ratio: 0.1915},
			{Name: "2N2", Reference: "M2", Ratio: 0.0253},
			{Name: "R2", Reference: "S2", Ratio: 0.0084},
			{Name: "T2", Reference: "S2", Ratio: 0.0584},
			{Name: "LAMBDA2", Reference: "M2", Ratio: 0.0074},
			{Name: "MU2", Reference: "M2", Ratio: 0.0305},
			{Name: "NU2", Reference: "M2", Ratio: 0.0364},
		},
	},
}

// InferMinor derives minor constituents that were not fitted from the fitted
// parents. A pair contributes nothing unless both parents are present. Phases
// of fitted constituents are Greenwich lags carrying VAUDeg at reference.
func InferMinor(fitted []ConstituentParam, reference time.Time, eph Ephemeris) ([]ConstituentParam, error) {
	byName := make(map[string]ConstituentParam, len(fitted))
	for _, c := range fitted {
		byName[c.Name] = c
	}

	type pending struct {
		name      string
		amplitude float64
		rawPhase  float64
	}
	var todo []pending

	for _, pair := range inferencePairs {
		p1, ok1 := byName[pair.Parent1]
		p2, ok2 := byName[pair.Parent2]
		if !ok1 || !ok2 {
			continue
		}
		raw1 := p1.PhaseDeg - p1.VAUDeg
		raw2 := p2.PhaseDeg - p2.VAUDeg
		dPhase := wrapSigned(raw2 - raw1)
		dSpeed := p2.SpeedDegPerHr - p1.SpeedDegPerHr

		for _, m := range pair.Minors {
			if _, done := byName[m.Name]; done {
				continue
			}
			speed, _ := GetConstituentSpeed(m.Name)
			coeff := (speed - p2.SpeedDegPerHr) / dSpeed
			todo = append(todo, pending{
				name:      m.Name,
				amplitude: m.Ratio * byName[m.Reference].AmplitudeM,
				rawPhase:  raw2 + coeff*dPhase,
			})
		}
	}
	if len(todo) == 0 {
		return nil, nil
	}

	names := make([]string, len(todo))
	for i, p := range todo {
		names[i] = p.name
	}
	vau, err := EquilibriumAt(names, reference, eph)
	if err != nil {
		return nil, err
	}

	out := make([]ConstituentParam, 0, len(todo))
	for _, p := range todo {
		amp, raw := NormalizeAmplitude(p.amplitude, p.rawPhase)
		speed, _ := GetConstituentSpeed(p.name)
		out = append(out, ConstituentParam{
			Name:          p.name,
			AmplitudeM:    amp,
			PhaseDeg:      fixAngle(raw + vau[p.name]),
			SpeedDegPerHr: speed,
			VAUDeg:        vau[p.name],
			Inferred:      true,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// wrapSigned wraps degrees into (-180, 180].
func wrapSigned(deg float64) float64 {
	d := fixAngle(deg)
	if d > 180 {
		d -= 360
	}
	return d
}
