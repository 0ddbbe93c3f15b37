// Package store defines the persistence boundaries of the analysis service.
package store

import (
	"context"
	"errors"
	"time"

	"go.ngs.io/tides-analysis/internal/domain"
)

// ErrNotFound is returned when an archived analysis does not exist.
var ErrNotFound = errors.New("analysis not found")

// ConstituentLoader loads harmonic constants for a named station.
type ConstituentLoader interface {
	LoadForStation(stationID string) ([]domain.ConstituentParam, error)
}

// SeriesLoader reads an elevation record from a file.
type SeriesLoader interface {
	LoadSeries(ctx context.Context, path string) (domain.TimeSeries, error)
}

// AnalysisRecord is an archived harmonic analysis.
type AnalysisRecord struct {
	ID           string
	Station      string
	CreatedAt    time.Time
	Reference    time.Time
	SpanHours    float64
	Rayleigh     float64
	Z0           float64
	Slope        float64
	ResidualRMS  float64
	Iterations   int
	Observations int
	Constituents []domain.ConstituentParam
}

// AnalysisStore archives analyses.
type AnalysisStore interface {
	SaveAnalysis(ctx context.Context, rec *AnalysisRecord) (string, error)
	GetAnalysis(ctx context.Context, id string) (*AnalysisRecord, error)
	ListAnalyses(ctx context.Context, station string, limit int) ([]AnalysisRecord, error)
	Close() error
}
