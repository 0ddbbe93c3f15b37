package fit

import (
	"context"

	"go.ngs.io/tides-analysis/internal/domain"
)

// Analyze selects the resolvable constituents for the record, evaluates
// their equilibrium arguments and node factors, and fits them.
func Analyze(ctx context.Context, series domain.TimeSeries, rayleigh float64, eph domain.Ephemeris, opts Options) (*Result, error) {
	if err := series.Validate(); err != nil {
		return nil, err
	}
	names, err := domain.SelectConstituents(series.SpanHours(), rayleigh)
	if err != nil {
		return nil, err
	}
	return FitConstituents(ctx, series, names, eph, opts)
}

// FitConstituents fits a fixed constituent list.
func FitConstituents(ctx context.Context, series domain.TimeSeries, names []string, eph domain.Ephemeris, opts Options) (*Result, error) {
	table, err := domain.ComputeEquilibrium(names, series.Times, eph)
	if err != nil {
		return nil, err
	}
	return Fit(ctx, series, table, opts)
}
