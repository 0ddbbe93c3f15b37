package filter

import (
	"context"

	"gonum.org/v1/gonum/dsp/fourier"

	"go.ngs.io/tides-analysis/internal/domain"
)

const (
	defaultPassPeriodHours = 40.0
	defaultStopPeriodHours = 30.0
)

// rampWeight returns the gain for a frequency in cycles per hour.
func rampWeight(freq, pass, stop float64) float64 {
	switch {
	case freq <= pass:
		return 1
	case freq >= stop:
		return 0
	default:
		return (stop - freq) / (stop - pass)
	}
}

func applyTransform(ctx context.Context, s *sampled, opts Options) ([]float64, error) {
	passPeriod := opts.PassPeriodHours
	if passPeriod == 0 {
		passPeriod = defaultPassPeriodHours
	}
	stopPeriod := opts.StopPeriodHours
	if stopPeriod == 0 {
		stopPeriod = defaultStopPeriodHours
	}
	if stopPeriod <= 0 || passPeriod <= stopPeriod {
		return nil, domain.NewConfigurationError("transform", "cutoffs",
			"pass period %.2fh must exceed stop period %.2fh", passPeriod, stopPeriod)
	}

	n := opts.PadLength
	if n <= 0 && opts.Padding != PadNone {
		n = s.len() / 4
	}
	padded, off, err := pad(ctx, s, opts.Padding, n, opts)
	if err != nil {
		return nil, err
	}

	size := len(padded)
	fft := fourier.NewFFT(size)
	coeffs := fft.Coefficients(nil, padded)

	dt := s.hours()
	pass, stop := 1/passPeriod, 1/stopPeriod
	for i := range coeffs {
		// Freq is in cycles per sample.
		coeffs[i] *= complex(rampWeight(fft.Freq(i)/dt, pass, stop), 0)
	}

	out := fft.Sequence(nil, coeffs)
	scale := 1 / float64(size)
	for i := range out {
		out[i] *= scale
	}
	return out[off : off+s.len()], nil
}
