package filter

import (
	"context"

	"gonum.org/v1/gonum/stat"
)

// smoothKalman runs a scalar random-walk Kalman filter forward and a
// Rauch-Tung-Striebel pass backward. q is the process variance and r the
// measurement variance.
func smoothKalman(z []float64, q, r float64) []float64 {
	n := len(z)
	xf := make([]float64, n) // Filtered state.
	pf := make([]float64, n) // Filtered variance.

	x, p := z[0], r
	for k := 0; k < n; k++ {
		if k > 0 {
			p += q
		}
		gain := p / (p + r)
		x += gain * (z[k] - x)
		p *= 1 - gain
		xf[k], pf[k] = x, p
	}

	out := make([]float64, n)
	out[n-1] = xf[n-1]
	for k := n - 2; k >= 0; k-- {
		c := pf[k] / (pf[k] + q)
		out[k] = xf[k] + c*(out[k+1]-xf[k])
	}
	return out
}

func applyKalman(ctx context.Context, s *sampled, opts Options) ([]float64, error) {
	n := opts.PadLength
	if n <= 0 && opts.Padding != PadNone {
		n = s.len() / 4
	}
	padded, off, err := pad(ctx, s, opts.Padding, n, opts)
	if err != nil {
		return nil, err
	}

	r := stat.Variance(s.series.Values, nil)
	if r == 0 {
		out := make([]float64, s.len())
		copy(out, s.series.Values)
		return out, nil
	}
	q := opts.ProcessVariance
	if q <= 0 {
		q = 1e-5 * r
	}

	out := smoothKalman(padded, q, r)
	return out[off : off+s.len()], nil
}
