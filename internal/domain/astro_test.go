package domain

import (
	"math"
	"testing"
	"time"
)

func angleDiff(a, b float64) float64 {
	return math.Abs(wrapSigned(a - b))
}

func TestComputeArguments_J2000(t *testing.T) {
	// Six hours after the J2000 epoch: c is tiny and T is a quarter turn.
	at := time.Date(2000, 1, 1, 18, 0, 0, 0, time.UTC)
	args := ComputeArguments(at, nil)

	if math.Abs(args.JD-2451545.25) > 1e-6 {
		t.Fatalf("JD: expected 2451545.25, got %.8f", args.JD)
	}

	days := 0.25
	tests := []struct {
		name     string
		got      float64
		expected float64
		tol      float64
	}{
		{"T", args.T, 90, 1e-4},
		{"s", args.S, 218.3164477 + 13.176396*days, 1e-4},
		{"h", args.H, 280.46646 + 0.98564736*days, 1e-4},
		{"p", args.P, 83.3532465 + 0.11140353*days, 1e-4},
		{"N", args.N, 125.0445479 - 0.05295377*days, 1e-4},
	}
	for _, tt := range tests {
		if angleDiff(tt.got, tt.expected) > tt.tol {
			t.Errorf("%s: expected %.6f, got %.6f", tt.name, tt.expected, tt.got)
		}
	}
}

func TestComputeArguments_Ranges(t *testing.T) {
	start := time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 240; i++ {
		at := start.Add(time.Duration(i) * 37 * 24 * time.Hour)
		args := ComputeArguments(at, MeanEphemeris{})

		// I oscillates between 18.3 and 28.6 degrees over the nodal cycle.
		if args.I < 18.2 || args.I > 28.7 {
			t.Errorf("%s: I out of range: %.4f", at.Format("2006-01-02"), args.I)
		}
		for name, v := range map[string]float64{"T": args.T, "s": args.S, "h": args.H, "p": args.P, "p1": args.P1, "N": args.N, "P": args.KappaP, "Q": args.Q} {
			if v < 0 || v >= 360 {
				t.Errorf("%s: %s not wrapped: %.6f", at.Format("2006-01-02"), name, v)
			}
		}
		if math.Abs(args.Xi) > 13 || math.Abs(args.Nu) > 14 {
			t.Errorf("%s: xi/nu out of range: %.4f %.4f", at.Format("2006-01-02"), args.Xi, args.Nu)
		}
	}
}

func TestComputeArguments_NodeBranchContinuity(t *testing.T) {
	// ν is an odd function of N and must not jump across N = 180.
	start := time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)
	prev := ComputeArguments(start, nil)
	for i := 1; i < 400; i++ {
		cur := ComputeArguments(start.Add(time.Duration(i)*10*24*time.Hour), nil)
		if math.Abs(cur.Nu-prev.Nu) > 0.5 || math.Abs(cur.Xi-prev.Xi) > 0.5 {
			t.Fatalf("discontinuity at step %d: nu %.4f -> %.4f, xi %.4f -> %.4f",
				i, prev.Nu, cur.Nu, prev.Xi, cur.Xi)
		}
		prev = cur
	}
}

func TestFixAngle(t *testing.T) {
	tests := []struct {
		in       float64
		expected float64
	}{
		{0, 0},
		{360, 0},
		{-90, 270},
		{725, 5},
		{-1e-20, 0},
	}
	for _, tt := range tests {
		got := fixAngle(tt.in)
		if math.Abs(got-tt.expected) > 1e-9 || got >= 360 || got < 0 {
			t.Errorf("fixAngle(%g): expected %g, got %g", tt.in, tt.expected, got)
		}
	}
}
