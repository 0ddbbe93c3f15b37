package filter

import (
	"context"
	"time"

	"gonum.org/v1/gonum/floats"

	"go.ngs.io/tides-analysis/internal/domain"
)

// doodsonKernel is the Doodson X0 filter: 39 hourly integer weights over 30.
func doodsonKernel() []float64 {
	w := []float64{1, 0, 1, 0, 0, 1, 0, 1, 1, 0, 2, 0, 1, 1, 0, 2, 1, 1, 2, 0, 2, 1, 1, 2, 0, 1, 1, 0, 2, 0, 1, 1, 0, 1, 0, 0, 1, 0, 1}
	floats.Scale(1.0/30.0, w)
	return w
}

// usgsHalfKernel holds the published USGS 33-hour lowpass weights for hourly
// values, from the outermost tap to the centre.
var usgsHalfKernel = [...]float64{
	-0.00027, -0.00114, -0.00211, -0.00317, -0.00427,
	-0.00537, -0.00641, -0.00735, -0.00811, -0.00864,
	-0.00887, -0.00872, -0.00816, -0.00714, -0.00560,
	-0.00355, -0.00097, 0.00213, 0.00574, 0.00980,
	0.01425, 0.01902, 0.02400, 0.02911, 0.03423,
	0.03923, 0.04399, 0.04842, 0.05237, 0.05576,
	0.05850, 0.06051, 0.06174, 0.06215,
}

// usgsKernel mirrors usgsHalfKernel about the centre tap. The tabulated
// weights are rounded to five decimals, so the result is rescaled to unit sum.
func usgsKernel() []float64 {
	half := len(usgsHalfKernel) - 1
	w := make([]float64, 2*half+1)
	for i, v := range usgsHalfKernel {
		w[i] = v
		w[2*half-i] = v
	}
	floats.Scale(1/floats.Sum(w), w)
	return w
}

// boxcarKernel is a 25-tap running mean.
func boxcarKernel() []float64 {
	return uniformKernel(25)
}

func uniformKernel(taps int) []float64 {
	w := make([]float64, taps)
	for i := range w {
		w[i] = 1 / float64(taps)
	}
	return w
}

// applyKernel builds a filter that convolves with a fixed kernel. Hourly
// kernels reject records sampled at any other interval.
func applyKernel(kernel func() []float64, hourly bool) applyFunc {
	return func(ctx context.Context, s *sampled, opts Options) ([]float64, error) {
		if hourly && s.interval != time.Hour {
			return nil, domain.NewInputError("filter", "kernel is defined for hourly values, record is sampled every %s", s.interval)
		}
		k := kernel()
		n := opts.PadLength
		if n <= 0 {
			n = len(k) / 2
		}
		padded, off, err := pad(ctx, s, opts.Padding, n, opts)
		if err != nil {
			return nil, err
		}
		out := convolve(padded, k)
		return out[off : off+s.len()], nil
	}
}

// convolve returns the centred, same-length convolution of x with an
// odd-length kernel. Samples outside x count as zero.
func convolve(x, kernel []float64) []float64 {
	half := len(kernel) / 2
	out := make([]float64, len(x))
	for i := range x {
		var acc float64
		for j, w := range kernel {
			idx := i + j - half
			if idx < 0 || idx >= len(x) {
				continue
			}
			acc += w * x[idx]
		}
		out[i] = acc
	}
	return out
}
