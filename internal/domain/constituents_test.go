package domain

import (
	"math"
	"testing"
)

func TestConstituentSpeeds(t *testing.T) {
	tests := []struct {
		name     string
		expected float64
	}{
		{"M2", 28.9841042},
		{"S2", 30.0},
		{"N2", 28.4397295},
		{"K2", 30.0821373},
		{"K1", 15.0410686},
		{"O1", 13.9430356},
		{"P1", 14.9589314},
		{"Q1", 13.3986609},
		{"J1", 15.5854433},
		{"M4", 57.9682084},
		{"M6", 86.9523127},
		{"MK3", 44.0251729},
		{"2MK3", 42.9271398},
		{"MS4", 58.9841042},
		{"Mf", 1.0980331},
		{"Mm", 0.5443747},
		{"Ssa", 0.0821373},
		{"Sa", 0.0410686},
	}

	for _, tt := range tests {
		speed, ok := GetConstituentSpeed(tt.name)
		if !ok {
			t.Errorf("%s: not in catalog", tt.name)
			continue
		}
		if math.Abs(speed-tt.expected) > 1e-6 {
			t.Errorf("%s: expected %.7f, got %.7f", tt.name, tt.expected, speed)
		}
	}
}

func TestCatalogIntegrity(t *testing.T) {
	cat := DefaultCatalog()
	all := cat.All()
	if len(all) != 56 {
		t.Errorf("expected 56 constituents, got %d", len(all))
	}

	tiers := make(map[float64]bool)
	for _, v := range RayleighTiers() {
		tiers[v] = true
	}

	for _, c := range all {
		if !tiers[c.MinSpanHours] {
			t.Errorf("%s: tier %.0f is not a Rayleigh tier", c.Name, c.MinSpanHours)
		}
		if c.NodeFactor.Eval == nil && len(c.NodeFactor.Terms) == 0 {
			t.Errorf("%s: no node factor formula", c.Name)
		}
		var refs []Term
		refs = append(refs, c.Argument.Terms...)
		refs = append(refs, c.NodeFactor.Terms...)
		for _, term := range refs {
			if _, ok := cat.Lookup(term.Name); !ok {
				t.Errorf("%s: references unknown constituent %s", c.Name, term.Name)
			}
		}
		if c.SpeedDegPerHr < 0 {
			t.Errorf("%s: negative speed %.7f", c.Name, c.SpeedDegPerHr)
		}
	}
}

func TestCatalogLookup(t *testing.T) {
	cat := DefaultCatalog()
	tests := []struct {
		in       string
		expected string
		ok       bool
	}{
		{"M2", "M2", true},
		{"m2", "M2", true},
		{"MF", "Mf", true},
		{"msf", "MSf", true},
		{"rho1", "RHO1", true},
		{"X9", "", false},
	}
	for _, tt := range tests {
		got, ok := cat.Canonical(tt.in)
		if ok != tt.ok || got != tt.expected {
			t.Errorf("Canonical(%q): expected (%q, %v), got (%q, %v)", tt.in, tt.expected, tt.ok, got, ok)
		}
	}
}

func TestNormalizeAmplitude(t *testing.T) {
	tests := []struct {
		amp, phase       float64
		expAmp, expPhase float64
	}{
		{-2.0, 30, 2.0, 210},
		{2.0, 30, 2.0, 30},
		{-0.5, 270, 0.5, 90},
		{1.0, -45, 1.0, 315},
	}
	for _, tt := range tests {
		a, p := NormalizeAmplitude(tt.amp, tt.phase)
		if math.Abs(a-tt.expAmp) > 1e-12 || math.Abs(p-tt.expPhase) > 1e-9 {
			t.Errorf("NormalizeAmplitude(%g, %g): expected (%g, %g), got (%g, %g)",
				tt.amp, tt.phase, tt.expAmp, tt.expPhase, a, p)
		}
	}
}
