package usecase

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.ngs.io/tides-analysis/internal/adapter/store"
	"go.ngs.io/tides-analysis/internal/domain"
	"go.ngs.io/tides-analysis/internal/log"
)

// PredictionRequest encapsulates a tide prediction request.
type PredictionRequest struct {
	// Exactly one constituent source: a station with stored constants, an
	// archived analysis or inline constants.
	StationID    string
	AnalysisID   string
	Constituents []domain.ConstituentParam

	// Mean level added to inline or station constants.
	Z0 float64

	// Time range
	Start time.Time
	End   time.Time

	// Interval for predictions (e.g., 10 minutes)
	Interval time.Duration

	// Epoch the phases are referred to; defaults to Start.
	Reference time.Time
}

// PredictionResponse contains the tide prediction results.
type PredictionResponse struct {
	Source       string            `json:"source"`
	Datum        string            `json:"datum"`
	Timezone     string            `json:"timezone"`
	Constituents []string          `json:"constituents"`
	Predictions  []PredictionPoint `json:"predictions"`
	Extrema      ExtremaResponse   `json:"extrema"`
	Meta         map[string]string `json:"meta"`
}

// PredictionPoint represents a single tide height prediction.
type PredictionPoint struct {
	Time    string  `json:"time"`
	HeightM float64 `json:"height_m"`
}

// ExtremaResponse contains high and low tides.
type ExtremaResponse struct {
	Highs []PredictionPoint `json:"highs"`
	Lows  []PredictionPoint `json:"lows"`
}

// PredictionUseCase orchestrates tide prediction.
type PredictionUseCase struct {
	stations  store.ConstituentLoader
	analyses  *AnalysisUseCase
	ephemeris domain.Ephemeris
}

// NewPredictionUseCase creates a new prediction use case. Either loader may
// be nil.
func NewPredictionUseCase(stations store.ConstituentLoader, analyses *AnalysisUseCase, eph domain.Ephemeris) *PredictionUseCase {
	return &PredictionUseCase{stations: stations, analyses: analyses, ephemeris: eph}
}

// Validate checks if the request is valid.
func (r *PredictionRequest) Validate() error {
	sources := 0
	if r.StationID != "" {
		sources++
	}
	if r.AnalysisID != "" {
		sources++
	}
	if len(r.Constituents) > 0 {
		sources++
	}
	if sources == 0 {
		return domain.NewInputError("predict", "one of station_id, analysis_id or constituents must be provided")
	}
	if sources > 1 {
		return domain.NewInputError("predict", "station_id, analysis_id and constituents are mutually exclusive")
	}

	// Validate time range
	if !r.Start.Before(r.End) {
		return domain.NewInputError("predict", "start time must be before end time")
	}

	// Validate interval
	if r.Interval < time.Minute {
		return domain.NewInputError("predict", "interval must be at least 1 minute")
	}
	if r.Interval > 6*time.Hour {
		return domain.NewInputError("predict", "interval must be at most 6 hours")
	}

	// Check that time range is reasonable
	duration := r.End.Sub(r.Start)
	if duration > 365*24*time.Hour {
		return domain.NewInputError("predict", "time range must be at most 365 days")
	}

	// Check that number of points is reasonable
	numPoints := int(duration / r.Interval)
	if numPoints > 10000 {
		return domain.NewInputError("predict", "too many prediction points (%d) - reduce time range or increase interval", numPoints)
	}

	return nil
}

// Execute performs the tide prediction.
func (uc *PredictionUseCase) Execute(ctx context.Context, req PredictionRequest) (*PredictionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	model, source, err := uc.model(ctx, req)
	if err != nil {
		return nil, err
	}

	predictions, err := domain.GeneratePredictions(req.Start, req.End, req.Interval, model)
	if err != nil {
		return nil, err
	}

	extrema := domain.FindExtrema(predictions)
	extrema = domain.RefineExtrema(predictions, extrema)

	names := make([]string, len(model.Constituents))
	for i, c := range model.Constituents {
		names[i] = c.Name
	}

	log.Debugw("predictions generated", "source", source, "points", len(predictions),
		"highs", len(extrema.Highs), "lows", len(extrema.Lows))

	return &PredictionResponse{
		Source:       source,
		Datum:        "MSL",
		Timezone:     "+00:00",
		Constituents: names,
		Predictions:  toPoints(predictions),
		Extrema: ExtremaResponse{
			Highs: toPoints(extrema.Highs),
			Lows:  toPoints(extrema.Lows),
		},
		Meta: map[string]string{
			"model":     "harmonic_v1",
			"reference": model.Reference.UTC().Format(time.RFC3339),
		},
	}, nil
}

func (uc *PredictionUseCase) model(ctx context.Context, req PredictionRequest) (domain.Model, string, error) {
	if req.AnalysisID != "" {
		if uc.analyses == nil {
			return domain.Model{}, "", store.ErrNotFound
		}
		res, err := uc.analyses.Get(ctx, req.AnalysisID)
		if err != nil {
			return domain.Model{}, "", err
		}
		return res.Model(uc.ephemeris), "analysis", nil
	}

	var params []domain.ConstituentParam
	source := "inline"
	if req.StationID != "" {
		if uc.stations == nil {
			return domain.Model{}, "", domain.NewConfigurationError("station_id", req.StationID, "no constituent store configured")
		}
		loaded, err := uc.stations.LoadForStation(req.StationID)
		if err != nil {
			return domain.Model{}, "", fmt.Errorf("failed to load constituents for station %s: %w", req.StationID, err)
		}
		params, source = loaded, "csv"
	} else {
		params = make([]domain.ConstituentParam, len(req.Constituents))
		copy(params, req.Constituents)
	}

	ref := req.Reference
	if ref.IsZero() {
		ref = req.Start
	}
	if err := domain.AttachEquilibrium(params, ref, uc.ephemeris); err != nil {
		return domain.Model{}, "", err
	}
	return domain.Model{Reference: ref, Z0: req.Z0, Constituents: params, Ephemeris: uc.ephemeris}, source, nil
}

// GetAllConstituents returns all available constituents.
func (uc *PredictionUseCase) GetAllConstituents() []domain.Constituent {
	return domain.GetAllConstituents()
}

func toPoints(levels []domain.TideLevel) []PredictionPoint {
	out := make([]PredictionPoint, len(levels))
	for i, l := range levels {
		out[i] = PredictionPoint{
			Time:    l.Time.UTC().Format(time.RFC3339),
			HeightM: roundToDecimal(l.HeightM, 3),
		}
	}
	return out
}

// Helper function to round to decimal places.
func roundToDecimal(val float64, precision int) float64 {
	multiplier := math.Pow(10, float64(precision))
	return math.Round(val*multiplier) / multiplier
}
