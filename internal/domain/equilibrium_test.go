package domain

import (
	"errors"
	"math"
	"testing"
	"time"
)

func hourlyTimes(start time.Time, n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.Add(time.Duration(i) * time.Hour)
	}
	return out
}

func TestComputeEquilibrium_DerivedConsistency(t *testing.T) {
	times := hourlyTimes(time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC), 48)
	names := []string{"M2", "K1", "K2", "M4", "M6", "MK3", "2MK3", "MK4", "S2", "S4"}
	table, err := ComputeEquilibrium(names, times, nil)
	if err != nil {
		t.Fatalf("ComputeEquilibrium: %v", err)
	}

	get := func(name string) EquilibriumEntry {
		e, ok := table.Entry(name)
		if !ok {
			t.Fatalf("missing entry %s", name)
		}
		return e
	}
	m2, k1, k2 := get("M2"), get("K1"), get("K2")

	vauTests := []struct {
		name     string
		expected float64
	}{
		{"M4", 2 * m2.VAUDeg},
		{"M6", 3 * m2.VAUDeg},
		{"MK3", m2.VAUDeg + k1.VAUDeg},
		{"2MK3", 2*m2.VAUDeg - k1.VAUDeg},
		{"MK4", m2.VAUDeg + k2.VAUDeg},
		{"S4", 2 * get("S2").VAUDeg},
	}
	for _, tt := range vauTests {
		if d := angleDiff(get(tt.name).VAUDeg, tt.expected); d > 1e-9 {
			t.Errorf("%s V+u: expected %.10f, got %.10f", tt.name, fixAngle(tt.expected), get(tt.name).VAUDeg)
		}
	}

	for j := range times {
		fm2 := m2.NodeFactors[j]
		nodeTests := []struct {
			name     string
			expected float64
		}{
			{"M4", fm2 * fm2},
			{"M6", fm2 * fm2 * fm2},
			{"MK3", fm2 * k1.NodeFactors[j]},
			{"2MK3", fm2 * fm2 * k1.NodeFactors[j]},
			{"MK4", fm2 * k2.NodeFactors[j]},
			{"S2", 1},
			{"S4", 1},
		}
		for _, tt := range nodeTests {
			if got := get(tt.name).NodeFactors[j]; math.Abs(got-tt.expected) > 1e-12 {
				t.Errorf("%s F at %d: expected %.12f, got %.12f", tt.name, j, tt.expected, got)
			}
		}
	}
}

func TestComputeEquilibrium_Ranges(t *testing.T) {
	times := []time.Time{
		time.Date(1997, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2006, 4, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2015, 7, 1, 0, 0, 0, 0, time.UTC),
	}
	names := DefaultCatalog().Names()
	for _, at := range times {
		table, err := ComputeEquilibrium(names, []time.Time{at}, nil)
		if err != nil {
			t.Fatalf("ComputeEquilibrium: %v", err)
		}
		for _, e := range table.Entries {
			if e.VAUDeg < 0 || e.VAUDeg >= 360 {
				t.Errorf("%s: V+u not wrapped: %.6f", e.Name, e.VAUDeg)
			}
			if f := e.NodeFactors[0]; f <= 0 || f > 2.5 {
				t.Errorf("%s: implausible node factor %.6f", e.Name, f)
			}
		}
		m2, _ := table.Entry("M2")
		if f := m2.NodeFactors[0]; f < 0.95 || f > 1.05 {
			t.Errorf("M2 node factor out of range at %s: %.6f", at.Format("2006"), f)
		}
		k1, _ := table.Entry("K1")
		if f := k1.NodeFactors[0]; f < 0.87 || f > 1.13 {
			t.Errorf("K1 node factor out of range at %s: %.6f", at.Format("2006"), f)
		}
	}
}

func TestComputeEquilibrium_SolarArgument(t *testing.T) {
	// S2 V+u is 2T; six hours after the J2000 epoch T = 90.
	at := time.Date(2000, 1, 1, 18, 0, 0, 0, time.UTC)
	vau, err := EquilibriumAt([]string{"S2", "s1"}, at, nil)
	if err != nil {
		t.Fatalf("EquilibriumAt: %v", err)
	}
	if d := angleDiff(vau["S2"], 180); d > 1e-4 {
		t.Errorf("S2: expected 180, got %.6f", vau["S2"])
	}
	if d := angleDiff(vau["S1"], 90); d > 1e-4 {
		t.Errorf("S1: expected 90, got %.6f", vau["S1"])
	}
}

func TestComputeEquilibrium_ParallelMatchesSerial(t *testing.T) {
	times := hourlyTimes(time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC), parallelThreshold+904)
	names := []string{"K1", "L2", "M1", "M2", "O1"}
	table, err := ComputeEquilibrium(names, times, nil)
	if err != nil {
		t.Fatalf("ComputeEquilibrium: %v", err)
	}
	for _, idx := range []int{0, 1234, parallelThreshold - 1, len(times) - 1} {
		single, err := ComputeEquilibrium(names, []time.Time{times[idx]}, nil)
		if err != nil {
			t.Fatalf("ComputeEquilibrium: %v", err)
		}
		for i := range names {
			if table.Entries[i].NodeFactors[idx] != single.Entries[i].NodeFactors[0] {
				t.Errorf("%s at %d: parallel %.15f != serial %.15f", names[i], idx,
					table.Entries[i].NodeFactors[idx], single.Entries[i].NodeFactors[0])
			}
		}
	}
}

func TestComputeEquilibrium_Errors(t *testing.T) {
	at := []time.Time{time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)}

	_, err := ComputeEquilibrium([]string{"M2", "ZZ9"}, at, nil)
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Errorf("unknown constituent: expected ConfigurationError, got %v", err)
	}

	_, err = ComputeEquilibrium([]string{"M2", "m2"}, at, nil)
	if !errors.As(err, &cfgErr) {
		t.Errorf("duplicate constituent: expected ConfigurationError, got %v", err)
	}

	_, err = ComputeEquilibrium([]string{"M2"}, nil, nil)
	var inErr *InputError
	if !errors.As(err, &inErr) {
		t.Errorf("no timestamps: expected InputError, got %v", err)
	}
}
