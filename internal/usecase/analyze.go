package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.ngs.io/tides-analysis/internal/adapter/store"
	"go.ngs.io/tides-analysis/internal/domain"
	"go.ngs.io/tides-analysis/internal/filter"
	"go.ngs.io/tides-analysis/internal/fit"
	"go.ngs.io/tides-analysis/internal/gapfill"
	"go.ngs.io/tides-analysis/internal/log"
)

// extremeSigma is the clipping distance used by RemoveExtreme.
const extremeSigma = 2.0

// AnalysisOptions control one analysis run.
type AnalysisOptions struct {
	Rayleigh      float64
	Trend         bool
	MissingData   gapfill.Policy
	Iavg          int
	RemoveExtreme bool // Drop samples beyond mean ± 2σ first.
	Detrend       bool // Subtract a 25-sample running mean before fitting.
	Infer         bool
	MaxIterations int
	Tolerance     float64
}

// AnalysisRequest is a record to analyze.
type AnalysisRequest struct {
	Station string
	Series  domain.TimeSeries
	Options AnalysisOptions
}

// AnalysisResult is a completed analysis.
type AnalysisResult struct {
	ID           string                    `json:"id,omitempty"`
	Station      string                    `json:"station,omitempty"`
	CreatedAt    time.Time                 `json:"created_at"`
	Reference    time.Time                 `json:"reference"`
	SpanHours    float64                   `json:"span_hours"`
	Rayleigh     float64                   `json:"rayleigh"`
	Z0           float64                   `json:"z0_m"`
	Slope        float64                   `json:"slope_m_per_hr"`
	ResidualRMS  float64                   `json:"residual_rms_m"`
	Iterations   int                       `json:"iterations"`
	Observations int                       `json:"observations"`
	Removed      int                       `json:"removed_extremes,omitempty"`
	Filled       int                       `json:"filled_gaps,omitempty"`
	Constituents []ConstituentResult       `json:"constituents"`
	Inferred     []ConstituentResult       `json:"inferred,omitempty"`
	params       []domain.ConstituentParam // Fitted and inferred, for synthesis.
}

// ConstituentResult is one constituent in a response.
type ConstituentResult struct {
	Name          string  `json:"name"`
	AmplitudeM    float64 `json:"amplitude_m"`
	PhaseDeg      float64 `json:"phase_deg"`
	SpeedDegPerHr float64 `json:"speed_deg_per_hr"`
	VAUDeg        float64 `json:"vau_deg"`
	Inferred      bool    `json:"inferred,omitempty"`
}

// Model returns the harmonic model of the result, inferred constituents
// included.
func (r *AnalysisResult) Model(eph domain.Ephemeris) domain.Model {
	params := make([]domain.ConstituentParam, len(r.params))
	copy(params, r.params)
	return domain.Model{Reference: r.Reference, Z0: r.Z0, Slope: r.Slope, Constituents: params, Ephemeris: eph}
}

// Params returns fitted and inferred constituents.
func (r *AnalysisResult) Params() []domain.ConstituentParam {
	out := make([]domain.ConstituentParam, len(r.params))
	copy(out, r.params)
	return out
}

// AnalysisUseCase runs the analysis pipeline: extreme removal, missing data
// policy, optional detrend, constituent selection and fit, minor inference
// and archiving.
type AnalysisUseCase struct {
	archive   store.AnalysisStore
	ephemeris domain.Ephemeris
	defaults  AnalysisOptions
	now       func() time.Time
}

// NewAnalysisUseCase creates a new analysis use case. archive may be nil.
func NewAnalysisUseCase(archive store.AnalysisStore, eph domain.Ephemeris, defaults AnalysisOptions) *AnalysisUseCase {
	return &AnalysisUseCase{archive: archive, ephemeris: eph, defaults: defaults, now: time.Now}
}

// Defaults returns the options applied to unset request fields.
func (uc *AnalysisUseCase) Defaults() AnalysisOptions {
	return uc.defaults
}

// Execute analyzes req.Series.
func (uc *AnalysisUseCase) Execute(ctx context.Context, req AnalysisRequest) (*AnalysisResult, error) {
	opts := req.Options
	if opts.Rayleigh == 0 {
		opts.Rayleigh = uc.defaults.Rayleigh
	}
	if opts.Rayleigh == 0 {
		opts.Rayleigh = domain.DefaultRayleighFactor
	}
	if opts.MissingData == "" {
		opts.MissingData = uc.defaults.MissingData
	}
	if opts.Iavg == 0 {
		opts.Iavg = uc.defaults.Iavg
	}
	if opts.MaxIterations == 0 {
		opts.MaxIterations = uc.defaults.MaxIterations
	}
	if opts.Tolerance == 0 {
		opts.Tolerance = uc.defaults.Tolerance
	}
	policy, err := gapfill.ParsePolicy(string(opts.MissingData))
	if err != nil {
		return nil, err
	}

	series := req.Series
	if err := series.Validate(); err != nil {
		return nil, err
	}
	started := time.Now()

	removed := 0
	if opts.RemoveExtreme {
		kept := series.RemoveExtremes(extremeSigma)
		removed = series.Len() - kept.Len()
		series = kept
		log.Debugw("removed extreme values", "station", req.Station, "removed", removed)
	}

	fitOpts := fit.Options{Trend: opts.Trend, MaxIterations: opts.MaxIterations, Tolerance: opts.Tolerance}

	filled := 0
	switch policy {
	case gapfill.PolicyFill:
		res, err := gapfill.FillDetailed(ctx, series, gapfill.Options{
			Iavg: opts.Iavg, Rayleigh: opts.Rayleigh, Ephemeris: uc.ephemeris, Fit: fitOpts,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to fill missing data: %w", err)
		}
		series, filled = res.Series, res.Gaps
	default:
		if series, err = gapfill.Fill(ctx, series, policy, gapfill.Options{}); err != nil {
			return nil, err
		}
	}

	if opts.Detrend {
		low, err := filter.Apply(ctx, filter.Boxcar, series, filter.Options{Padding: filter.PadReflect})
		if err != nil {
			return nil, fmt.Errorf("failed to detrend: %w", err)
		}
		detrended := series.Clone()
		for i := range detrended.Values {
			detrended.Values[i] -= low[i]
		}
		series = detrended
	}

	res, err := fit.Analyze(ctx, series, opts.Rayleigh, uc.ephemeris, fitOpts)
	if err != nil {
		return nil, err
	}

	var inferred []domain.ConstituentParam
	if opts.Infer {
		if inferred, err = domain.InferMinor(res.Constituents, res.Reference, uc.ephemeris); err != nil {
			return nil, fmt.Errorf("failed to infer minor constituents: %w", err)
		}
	}

	log.Infow("analysis complete",
		"station", req.Station,
		"samples", series.Len(),
		"constituents", len(res.Constituents),
		"inferred", len(inferred),
		"iterations", res.Iterations,
		"rms", res.ResidualRMS,
		"elapsed", time.Since(started))

	out := &AnalysisResult{
		Station:      req.Station,
		CreatedAt:    uc.now().UTC(),
		Reference:    res.Reference,
		SpanHours:    series.SpanHours(),
		Rayleigh:     opts.Rayleigh,
		Z0:           res.Z0,
		Slope:        res.Slope,
		ResidualRMS:  res.ResidualRMS,
		Iterations:   res.Iterations,
		Observations: res.Observations,
		Removed:      removed,
		Filled:       filled,
		Constituents: toResults(res.Constituents),
		Inferred:     toResults(inferred),
		params:       append(append([]domain.ConstituentParam{}, res.Constituents...), inferred...),
	}

	if uc.archive != nil {
		rec := out.record()
		id, err := uc.archive.SaveAnalysis(ctx, rec)
		if err != nil {
			return nil, fmt.Errorf("failed to archive analysis: %w", err)
		}
		out.ID = id
		out.CreatedAt = rec.CreatedAt
	}
	return out, nil
}

// Get loads an archived analysis.
func (uc *AnalysisUseCase) Get(ctx context.Context, id string) (*AnalysisResult, error) {
	if uc.archive == nil {
		return nil, store.ErrNotFound
	}
	rec, err := uc.archive.GetAnalysis(ctx, id)
	if err != nil {
		return nil, err
	}
	return fromRecord(rec), nil
}

// List returns recent archived analyses.
func (uc *AnalysisUseCase) List(ctx context.Context, station string, limit int) ([]*AnalysisResult, error) {
	if uc.archive == nil {
		return nil, nil
	}
	recs, err := uc.archive.ListAnalyses(ctx, station, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*AnalysisResult, len(recs))
	for i := range recs {
		out[i] = fromRecord(&recs[i])
	}
	return out, nil
}

// IsNotFound reports whether err means an unknown analysis id.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

func (r *AnalysisResult) record() *store.AnalysisRecord {
	return &store.AnalysisRecord{
		Station:      r.Station,
		CreatedAt:    r.CreatedAt,
		Reference:    r.Reference,
		SpanHours:    r.SpanHours,
		Rayleigh:     r.Rayleigh,
		Z0:           r.Z0,
		Slope:        r.Slope,
		ResidualRMS:  r.ResidualRMS,
		Iterations:   r.Iterations,
		Observations: r.Observations,
		Constituents: r.Params(),
	}
}

func fromRecord(rec *store.AnalysisRecord) *AnalysisResult {
	out := &AnalysisResult{
		ID:           rec.ID,
		Station:      rec.Station,
		CreatedAt:    rec.CreatedAt,
		Reference:    rec.Reference,
		SpanHours:    rec.SpanHours,
		Rayleigh:     rec.Rayleigh,
		Z0:           rec.Z0,
		Slope:        rec.Slope,
		ResidualRMS:  rec.ResidualRMS,
		Iterations:   rec.Iterations,
		Observations: rec.Observations,
		params:       append([]domain.ConstituentParam{}, rec.Constituents...),
	}
	var fitted, inferred []domain.ConstituentParam
	for _, c := range rec.Constituents {
		if c.Inferred {
			inferred = append(inferred, c)
		} else {
			fitted = append(fitted, c)
		}
	}
	out.Constituents = toResults(fitted)
	out.Inferred = toResults(inferred)
	return out
}

func toResults(params []domain.ConstituentParam) []ConstituentResult {
	if len(params) == 0 {
		return nil
	}
	out := make([]ConstituentResult, len(params))
	for i, p := range params {
		out[i] = ConstituentResult{
			Name:          p.Name,
			AmplitudeM:    roundToDecimal(p.AmplitudeM, 6),
			PhaseDeg:      roundToDecimal(p.PhaseDeg, 4),
			SpeedDegPerHr: p.SpeedDegPerHr,
			VAUDeg:        roundToDecimal(p.VAUDeg, 4),
			Inferred:      p.Inferred,
		}
	}
	return out
}
