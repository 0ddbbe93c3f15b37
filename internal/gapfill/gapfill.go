// Package gapfill applies a missing-data policy to an elevation record.
package gapfill

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.ngs.io/tides-analysis/internal/adapter/interp"
	"go.ngs.io/tides-analysis/internal/domain"
	"go.ngs.io/tides-analysis/internal/fit"
)

// Policy selects how gaps are handled.
type Policy string

const (
	PolicyFail   Policy = "fail"
	PolicyIgnore Policy = "ignore"
	PolicyFill   Policy = "fill"
)

// DefaultIavg is the number of residual samples averaged on each side of a gap.
const DefaultIavg = 5

// gapTolerance is the multiple of the nominal interval above which a spacing
// counts as a gap.
const gapTolerance = 1.5

// ParsePolicy maps a name to a Policy.
func ParsePolicy(name string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(name))); p {
	case PolicyFail, PolicyIgnore, PolicyFill:
		return p, nil
	case "":
		return PolicyFail, nil
	default:
		return "", domain.NewConfigurationError("missing_data", name, "expected fail, ignore or fill")
	}
}

// Options configure the fill pass.
type Options struct {
	Iavg      int
	Rayleigh  float64
	Ephemeris domain.Ephemeris
	Fit       fit.Options
}

// Result is the output of a fill.
type Result struct {
	Series    domain.TimeSeries // Uniform grid, synthetic + interpolated residual.
	Synthetic []float64         // Fitted tide on the grid.
	Residual  []float64         // Residual on the grid; interpolated inside gaps.
	Observed  []bool            // Whether a grid point carries an observed sample.
	Interval  time.Duration
	Gaps      int // Number of unresolved runs.
}

// Fill applies policy to series. Under fail it reports the first gap; under
// ignore it returns the series unchanged.
func Fill(ctx context.Context, series domain.TimeSeries, policy Policy, opts Options) (domain.TimeSeries, error) {
	switch policy {
	case PolicyIgnore:
		if err := series.Validate(); err != nil {
			return domain.TimeSeries{}, err
		}
		return series, nil
	case PolicyFail:
		if err := CheckGaps(series); err != nil {
			return domain.TimeSeries{}, err
		}
		return series, nil
	case PolicyFill:
		res, err := FillDetailed(ctx, series, opts)
		if err != nil {
			return domain.TimeSeries{}, err
		}
		return res.Series, nil
	default:
		return domain.TimeSeries{}, domain.NewConfigurationError("missing_data", string(policy), "expected fail, ignore or fill")
	}
}

// CheckGaps returns an InputError for the first spacing that exceeds the
// nominal sampling interval.
func CheckGaps(series domain.TimeSeries) error {
	if err := series.Validate(); err != nil {
		return err
	}
	interval := series.NominalInterval()
	limit := time.Duration(float64(interval) * gapTolerance)
	for i := 1; i < series.Len(); i++ {
		if d := series.Times[i].Sub(series.Times[i-1]); d > limit {
			return domain.NewInputError("missing data", "gap of %s after %s exceeds sampling interval %s",
				d, series.Times[i-1].Format(time.RFC3339), interval)
		}
	}
	return nil
}

// FillDetailed fits the observed record, interpolates the residual across
// every unresolved run of a uniform grid and returns synthetic + residual.
func FillDetailed(ctx context.Context, series domain.TimeSeries, opts Options) (*Result, error) {
	if err := series.Validate(); err != nil {
		return nil, err
	}
	if opts.Iavg <= 0 {
		opts.Iavg = DefaultIavg
	}
	if opts.Rayleigh == 0 {
		opts.Rayleigh = domain.DefaultRayleighFactor
	}

	interval := series.NominalInterval()
	if interval <= 0 {
		return nil, domain.NewInputError("fill", "cannot determine a sampling interval from %d samples", series.Len())
	}

	first := series.Times[0]
	steps := int(math.Round(float64(series.Times[series.Len()-1].Sub(first)) / float64(interval)))
	grid := make([]time.Time, steps+1)
	for i := range grid {
		grid[i] = first.Add(time.Duration(i) * interval)
	}

	res, err := fit.Analyze(ctx, series, opts.Rayleigh, opts.Ephemeris, opts.Fit)
	if err != nil {
		return nil, fmt.Errorf("fitting observed record: %w", err)
	}
	model := res.Model(opts.Ephemeris)

	atObs, err := model.Predict(series.Times)
	if err != nil {
		return nil, err
	}
	synthetic, err := model.Predict(grid)
	if err != nil {
		return nil, err
	}

	residual := make([]float64, len(grid))
	observed := make([]bool, len(grid))
	for k, t := range series.Times {
		idx := int(math.Round(float64(t.Sub(first)) / float64(interval)))
		if idx < 0 || idx >= len(grid) || observed[idx] {
			continue
		}
		observed[idx] = true
		residual[idx] = series.Values[k] - atObs[k]
	}

	gaps := 0
	for i := 0; i < len(grid); {
		if observed[i] {
			i++
			continue
		}
		j := i
		for j < len(grid) && !observed[j] {
			j++
		}
		if err := fillRun(residual, observed, i, j-1, opts.Iavg); err != nil {
			return nil, err
		}
		gaps++
		i = j
	}

	values := make([]float64, len(grid))
	for i := range grid {
		values[i] = synthetic[i] + residual[i]
	}

	return &Result{
		Series:    domain.TimeSeries{Times: grid, Values: values},
		Synthetic: synthetic,
		Residual:  residual,
		Observed:  observed,
		Interval:  interval,
		Gaps:      gaps,
	}, nil
}

// fillRun interpolates residual[a..b] between the mean of up to iavg observed
// samples before a and up to iavg observed samples after b. A run touching an
// end of the grid holds the one available side constant.
func fillRun(residual []float64, observed []bool, a, b, iavg int) error {
	before, okBefore := windowMean(residual, observed, a-1, -1, iavg)
	after, okAfter := windowMean(residual, observed, b+1, 1, iavg)

	var anchors interp.Series1D
	if okBefore {
		anchors.X = append(anchors.X, before.x)
		anchors.Values = append(anchors.Values, before.v)
	}
	if okAfter {
		anchors.X = append(anchors.X, after.x)
		anchors.Values = append(anchors.Values, after.v)
	}
	if len(anchors.X) == 0 {
		return domain.NewInputError("fill", "no observed samples to anchor grid points %d-%d", a, b)
	}

	for i := a; i <= b; i++ {
		v, err := anchors.InterpolateAt(float64(i))
		if err != nil {
			return fmt.Errorf("interpolating residual at grid point %d: %w", i, err)
		}
		residual[i] = v
	}
	return nil
}

type anchor struct {
	x, v float64
}

// windowMean averages up to n observed samples walking from start in
// direction dir, returning the mean position and value.
func windowMean(residual []float64, observed []bool, start, dir, n int) (anchor, bool) {
	var sumX, sumV float64
	count := 0
	for i := start; i >= 0 && i < len(residual) && count < n; i += dir {
		if !observed[i] {
			continue
		}
		sumX += float64(i)
		sumV += residual[i]
		count++
	}
	if count == 0 {
		return anchor{}, false
	}
	return anchor{x: sumX / float64(count), v: sumV / float64(count)}, true
}
