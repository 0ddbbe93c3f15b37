package interp

import (
	"fmt"
	"math"
)

// Segment is a straight line between two anchor points.
type Segment struct {
	X0, X1 float64 // Anchor positions.
	V0, V1 float64 // Values at X0 and X1.
}

// LinearInterpolate evaluates the segment at x.
// Formula:
//
//	f(x) ≈ (1-t)·V0 + t·V1
//
// where t = (x - X0) / (X1 - X0).
func LinearInterpolate(seg Segment, x float64) (float64, error) {
	if seg.X1 <= seg.X0 {
		return 0, fmt.Errorf("invalid segment: X1 must be > X0")
	}

	const epsilon = 1e-9
	if x < seg.X0-epsilon || x > seg.X1+epsilon {
		return 0, fmt.Errorf("x coordinate %.6f is outside segment [%.6f, %.6f]", x, seg.X0, seg.X1)
	}

	t := (x - seg.X0) / (seg.X1 - seg.X0)
	t = math.Max(0, math.Min(1, t))

	return (1-t)*seg.V0 + t*seg.V1, nil
}

// Series1D is a piecewise-linear function through ordered anchor points.
type Series1D struct {
	X      []float64
	Values []float64
}

// Validate checks if the series is usable.
func (s *Series1D) Validate() error {
	if len(s.X) == 0 {
		return fmt.Errorf("series must have at least 1 point")
	}
	if len(s.Values) != len(s.X) {
		return fmt.Errorf("number of values (%d) must match X coordinates (%d)", len(s.Values), len(s.X))
	}
	for i := 1; i < len(s.X); i++ {
		if s.X[i] <= s.X[i-1] {
			return fmt.Errorf("X coordinates must be strictly increasing")
		}
	}
	return nil
}

// InterpolateAt evaluates the series at x. Outside the anchor range the
// nearest end value is held constant.
func (s *Series1D) InterpolateAt(x float64) (float64, error) {
	if err := s.Validate(); err != nil {
		return 0, fmt.Errorf("invalid series: %w", err)
	}

	n := len(s.X)
	if x <= s.X[0] {
		return s.Values[0], nil
	}
	if x >= s.X[n-1] {
		return s.Values[n-1], nil
	}

	// Binary search for the segment containing x.
	lo, hi := 0, n-1
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		if s.X[mid] <= x {
			lo = mid
		} else {
			hi = mid
		}
	}

	return LinearInterpolate(Segment{
		X0: s.X[lo],
		X1: s.X[hi],
		V0: s.Values[lo],
		V1: s.Values[hi],
	}, x)
}
