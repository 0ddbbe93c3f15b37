package interp

import (
	"math"
	"testing"
)

// TestLinearInterpolate_Midpoint tests interpolation halfway along a segment
func TestLinearInterpolate_Midpoint(t *testing.T) {
	seg := Segment{X0: 0.0, X1: 2.0, V0: 1.0, V1: 3.0}

	result, err := LinearInterpolate(seg, 1.0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	expected := 2.0
	if math.Abs(result-expected) > 1e-9 {
		t.Errorf("Midpoint: expected %.10f, got %.10f", expected, result)
	}
}

// TestLinearInterpolate_Endpoints tests that anchors return exact values
func TestLinearInterpolate_Endpoints(t *testing.T) {
	seg := Segment{X0: -5.0, X1: 10.0, V0: 1.5, V1: -4.0}

	tests := []struct {
		x        float64
		expected float64
		name     string
	}{
		{-5.0, 1.5, "start"},
		{10.0, -4.0, "end"},
		{0.0, 1.5 - 5.5/3, "one third"},
	}

	for _, tt := range tests {
		result, err := LinearInterpolate(seg, tt.x)
		if err != nil {
			t.Fatalf("Unexpected error for %s: %v", tt.name, err)
		}
		if math.Abs(result-tt.expected) > 1e-9 {
			t.Errorf("%s: expected %.10f, got %.10f", tt.name, tt.expected, result)
		}
	}
}

// TestLinearInterpolate_Invalid tests error cases
func TestLinearInterpolate_Invalid(t *testing.T) {
	if _, err := LinearInterpolate(Segment{X0: 1, X1: 1}, 1); err == nil {
		t.Error("Expected error for degenerate segment")
	}
	if _, err := LinearInterpolate(Segment{X0: 0, X1: 1}, 1.5); err == nil {
		t.Error("Expected error for point outside segment")
	}
}

// TestSeries1D_InterpolateAt tests piecewise evaluation and end holding
func TestSeries1D_InterpolateAt(t *testing.T) {
	s := &Series1D{
		X:      []float64{0, 1, 3, 7},
		Values: []float64{0, 2, 2, -2},
	}

	tests := []struct {
		x        float64
		expected float64
	}{
		{-1, 0},
		{0, 0},
		{0.5, 1},
		{2, 2},
		{5, 0},
		{7, -2},
		{9, -2},
	}

	for _, tt := range tests {
		result, err := s.InterpolateAt(tt.x)
		if err != nil {
			t.Fatalf("Unexpected error at %.1f: %v", tt.x, err)
		}
		if math.Abs(result-tt.expected) > 1e-9 {
			t.Errorf("x=%.1f: expected %.10f, got %.10f", tt.x, tt.expected, result)
		}
	}
}

// TestSeries1D_Validate tests series validation
func TestSeries1D_Validate(t *testing.T) {
	tests := []struct {
		name    string
		series  Series1D
		wantErr bool
	}{
		{"single point", Series1D{X: []float64{1}, Values: []float64{4}}, false},
		{"empty", Series1D{}, true},
		{"length mismatch", Series1D{X: []float64{1, 2}, Values: []float64{4}}, true},
		{"unsorted", Series1D{X: []float64{2, 1}, Values: []float64{4, 5}}, true},
	}

	for _, tt := range tests {
		err := tt.series.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: wantErr=%v, got %v", tt.name, tt.wantErr, err)
		}
	}
}
