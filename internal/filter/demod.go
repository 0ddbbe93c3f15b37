package filter

import (
	"context"
	"math"
	"math/cmplx"

	"go.ngs.io/tides-analysis/internal/domain"
)

// demodWindowHours is the length of the boxcar applied after heterodyning.
const demodWindowHours = 25.0

// Envelope is the slowly varying amplitude and phase of one constituent.
type Envelope struct {
	Constituent string
	Amplitude   []float64 // Meters, node factor removed.
	Phase       []float64 // Greenwich phase lag in degrees, [0, 360).
	Component   []float64 // Reconstructed constituent signal.
}

// Demodulate removes every other fitted constituent, the mean level and the
// trend, heterodynes the remainder at the target speed and lowpasses the
// real and imaginary parts with a 25 hour boxcar.
func Demodulate(ctx context.Context, series domain.TimeSeries, opts Options) (*Envelope, error) {
	s, err := newSampled(series)
	if err != nil {
		return nil, err
	}
	if opts.Padding == "" {
		opts.Padding = PadNone
	}
	return demodulate(ctx, s, opts)
}

func applyDemodulation(ctx context.Context, s *sampled, opts Options) ([]float64, error) {
	env, err := demodulate(ctx, s, opts)
	if err != nil {
		return nil, err
	}
	return env.Component, nil
}

func demodulate(ctx context.Context, s *sampled, opts Options) (*Envelope, error) {
	if opts.Constituent == "" {
		return nil, domain.NewConfigurationError("constituent", "", "demodulation needs a target constituent")
	}
	name, ok := domain.DefaultCatalog().Canonical(opts.Constituent)
	if !ok {
		return nil, domain.NewConfigurationError("constituent", opts.Constituent, "not in catalog")
	}

	res, err := s.model(ctx, opts)
	if err != nil {
		return nil, err
	}
	var target *domain.ConstituentParam
	var others []string
	for i, c := range res.Constituents {
		if c.Name == name {
			target = &res.Constituents[i]
		} else {
			others = append(others, c.Name)
		}
	}
	if target == nil {
		return nil, domain.NewConfigurationError("constituent", name, "not part of the fitted set")
	}

	times := s.series.Times
	model := res.Model(opts.Ephemeris)
	background := make([]float64, len(times))
	if len(others) > 0 {
		background, err = domain.Synthesize(model, times, others...)
		if err != nil {
			return nil, err
		}
	}
	table, err := domain.ComputeEquilibrium([]string{name}, times, opts.Ephemeris)
	if err != nil {
		return nil, err
	}
	node := table.Entries[0].NodeFactors

	hours := domain.HoursSince(times, res.Reference)
	w := domain.Deg2Rad(target.SpeedDegPerHr)
	re := make([]float64, len(times))
	im := make([]float64, len(times))
	for k, t := range hours {
		v := s.series.Values[k] - background[k] - res.Z0 - res.Slope*t
		sin, cos := math.Sincos(w * t)
		re[k] = v * cos
		im[k] = -v * sin
	}

	taps := int(math.Round(demodWindowHours / s.hours()))
	if taps%2 == 0 {
		taps++
	}
	kernel := uniformKernel(taps)
	reLow, err := convolvePadded(ctx, s, re, kernel, opts)
	if err != nil {
		return nil, err
	}
	imLow, err := convolvePadded(ctx, s, im, kernel, opts)
	if err != nil {
		return nil, err
	}

	env := &Envelope{
		Constituent: name,
		Amplitude:   make([]float64, len(times)),
		Phase:       make([]float64, len(times)),
		Component:   make([]float64, len(times)),
	}
	for k, t := range hours {
		z := complex(reLow[k], imLow[k])
		amp := 2 * cmplx.Abs(z) / node[k]
		lag := -cmplx.Phase(z)
		env.Amplitude[k] = amp
		env.Phase[k] = domain.WrapPhase(domain.Rad2Deg(lag) + target.VAUDeg)
		env.Component[k] = amp * node[k] * math.Cos(w*t-lag)
	}
	return env, nil
}

// convolvePadded lowpasses an arbitrary channel of the record using the
// record's padding rule. Tide padding has no meaning for a heterodyned
// channel, so it falls back to reflection.
func convolvePadded(ctx context.Context, s *sampled, values []float64, kernel []float64, opts Options) ([]float64, error) {
	channel := &sampled{
		series:   domain.TimeSeries{Times: s.series.Times, Values: values},
		interval: s.interval,
	}
	policy := opts.Padding
	if policy == PadTide {
		policy = PadReflect
	}
	n := opts.PadLength
	if n <= 0 {
		n = len(kernel) / 2
	}
	padded, off, err := pad(ctx, channel, policy, n, opts)
	if err != nil {
		return nil, err
	}
	out := convolve(padded, kernel)
	return out[off : off+len(values)], nil
}
