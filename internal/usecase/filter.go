package usecase

import (
	"context"
	"time"

	"go.ngs.io/tides-analysis/internal/domain"
	"go.ngs.io/tides-analysis/internal/filter"
	"go.ngs.io/tides-analysis/internal/log"
)

// FilterRequest selects a filter and its parameters. Zero fields take the
// use case defaults.
type FilterRequest struct {
	Name            string
	Series          domain.TimeSeries
	Padding         string
	PassPeriodHours float64
	StopPeriodHours float64
	ProcessVariance float64
	Constituent     string
	Rayleigh        float64
}

// FilterResponse is a filtered record.
type FilterResponse struct {
	Filter    string          `json:"filter"`
	Padding   string          `json:"padding"`
	Points    []FilteredPoint `json:"points"`
	Amplitude []float64       `json:"amplitude_m,omitempty"`
	Phase     []float64       `json:"phase_deg,omitempty"`
}

// FilteredPoint pairs an observation with its filtered value.
type FilteredPoint struct {
	Time     string  `json:"time"`
	Observed float64 `json:"observed_m"`
	Filtered float64 `json:"filtered_m"`
}

// FilterUseCase runs the filter bank.
type FilterUseCase struct {
	defaults  filter.Options
	ephemeris domain.Ephemeris
}

// NewFilterUseCase creates a filter use case. defaults supplies padding,
// cutoffs and process variance when a request leaves them unset.
func NewFilterUseCase(defaults filter.Options, eph domain.Ephemeris) *FilterUseCase {
	return &FilterUseCase{defaults: defaults, ephemeris: eph}
}

// Execute filters req.Series.
func (uc *FilterUseCase) Execute(ctx context.Context, req FilterRequest) (*FilterResponse, error) {
	name, err := filter.Lookup(req.Name)
	if err != nil {
		return nil, err
	}
	opts := uc.options(req)
	padding, err := filter.ParsePadding(string(opts.Padding))
	if err != nil {
		return nil, err
	}
	opts.Padding = padding

	started := time.Now()
	resp := &FilterResponse{Filter: name, Padding: string(padding)}
	var filtered []float64
	if name == filter.Demodulation {
		env, err := filter.Demodulate(ctx, req.Series, opts)
		if err != nil {
			return nil, err
		}
		filtered = env.Component
		resp.Amplitude = roundAll(env.Amplitude, 6)
		resp.Phase = roundAll(env.Phase, 4)
	} else {
		if filtered, err = filter.Apply(ctx, name, req.Series, opts); err != nil {
			return nil, err
		}
	}

	resp.Points = make([]FilteredPoint, len(filtered))
	for i, v := range filtered {
		resp.Points[i] = FilteredPoint{
			Time:     req.Series.Times[i].UTC().Format(time.RFC3339),
			Observed: req.Series.Values[i],
			Filtered: roundToDecimal(v, 6),
		}
	}
	log.Infow("filter applied", "filter", name, "padding", padding,
		"samples", len(filtered), "elapsed", time.Since(started))
	return resp, nil
}

func (uc *FilterUseCase) options(req FilterRequest) filter.Options {
	opts := uc.defaults
	opts.Ephemeris = uc.ephemeris
	if req.Padding != "" {
		opts.Padding = filter.Padding(req.Padding)
	}
	if req.PassPeriodHours != 0 {
		opts.PassPeriodHours = req.PassPeriodHours
	}
	if req.StopPeriodHours != 0 {
		opts.StopPeriodHours = req.StopPeriodHours
	}
	if req.ProcessVariance != 0 {
		opts.ProcessVariance = req.ProcessVariance
	}
	if req.Rayleigh != 0 {
		opts.Rayleigh = req.Rayleigh
	}
	opts.Constituent = req.Constituent
	return opts
}

func roundAll(values []float64, precision int) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = roundToDecimal(v, precision)
	}
	return out
}
