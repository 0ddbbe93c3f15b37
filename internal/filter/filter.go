// Package filter separates tidal from non-tidal energy in a uniformly
// sampled elevation record.
package filter

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"go.ngs.io/tides-analysis/internal/domain"
	"go.ngs.io/tides-analysis/internal/fit"
)

// Filter names.
const (
	Doodson      = "doodson"
	USGS         = "usgs"
	Boxcar       = "boxcar"
	Transform    = "transform"
	Kalman       = "kalman"
	Demodulation = "demodulation"
)

// Options configure a filter run. Zero values select defaults.
type Options struct {
	Padding   Padding
	PadLength int // Samples added at each end; 0 selects a per-filter default.

	// Transform: periods at and above PassPeriodHours pass unchanged, periods
	// at and below StopPeriodHours are removed, with a linear ramp between.
	PassPeriodHours float64
	StopPeriodHours float64

	// Kalman process variance. Zero selects 1e-5 times the sample variance.
	ProcessVariance float64

	// Demodulation target.
	Constituent string

	// Prior harmonic fit used by tide padding and demodulation. When nil the
	// record is analyzed with Rayleigh and Ephemeris.
	Fit       *fit.Result
	Rayleigh  float64
	Ephemeris domain.Ephemeris
}

type applyFunc func(ctx context.Context, s *sampled, opts Options) ([]float64, error)

var registry = map[string]applyFunc{
	Doodson:      applyKernel(doodsonKernel, true),
	USGS:         applyKernel(usgsKernel, true),
	Boxcar:       applyKernel(boxcarKernel, false),
	Transform:    applyTransform,
	Kalman:       applyKalman,
	Demodulation: applyDemodulation,
}

// Names lists the available filters.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Lookup validates a filter name.
func Lookup(name string) (string, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if _, ok := registry[n]; !ok {
		return "", domain.NewConfigurationError("filter", name, "expected one of %s", strings.Join(Names(), ", "))
	}
	return n, nil
}

// Apply runs the named filter and returns a series of the same length: the
// non-tidal component for the lowpass filters, the reconstructed constituent
// for demodulation.
func Apply(ctx context.Context, name string, series domain.TimeSeries, opts Options) ([]float64, error) {
	n, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	if opts.Padding == "" {
		opts.Padding = PadNone
	}
	if _, err := ParsePadding(string(opts.Padding)); err != nil {
		return nil, err
	}
	s, err := newSampled(series)
	if err != nil {
		return nil, err
	}
	return registry[n](ctx, s, opts)
}

// sampled is a validated, uniformly spaced record.
type sampled struct {
	series   domain.TimeSeries
	interval time.Duration
}

func newSampled(series domain.TimeSeries) (*sampled, error) {
	if err := series.Validate(); err != nil {
		return nil, err
	}
	if series.Len() < 2 {
		return nil, domain.NewInputError("filter", "need at least 2 samples, got %d", series.Len())
	}
	interval := series.NominalInterval()
	tol := float64(interval) * 0.01
	for i := 1; i < series.Len(); i++ {
		d := series.Times[i].Sub(series.Times[i-1])
		if math.Abs(float64(d-interval)) > tol {
			return nil, domain.NewInputError("filter", "irregular sampling at %s: %s instead of %s; fill gaps first",
				series.Times[i].Format(time.RFC3339), d, interval)
		}
	}
	return &sampled{series: series, interval: interval}, nil
}

func (s *sampled) len() int { return s.series.Len() }

func (s *sampled) hours() float64 { return s.interval.Hours() }

// model returns the prior fit or analyzes the record.
func (s *sampled) model(ctx context.Context, opts Options) (*fit.Result, error) {
	if opts.Fit != nil {
		return opts.Fit, nil
	}
	rayleigh := opts.Rayleigh
	if rayleigh == 0 {
		rayleigh = domain.DefaultRayleighFactor
	}
	return fit.Analyze(ctx, s.series, rayleigh, opts.Ephemeris, fit.Options{})
}
