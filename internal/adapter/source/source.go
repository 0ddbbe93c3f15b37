// Package source picks the series loader for an input file.
package source

import (
	"path/filepath"
	"strings"

	"go.ngs.io/tides-analysis/internal/adapter/store"
	"go.ngs.io/tides-analysis/internal/adapter/store/csv"
	"go.ngs.io/tides-analysis/internal/adapter/store/ncseries"
	"go.ngs.io/tides-analysis/internal/domain"
	"go.ngs.io/tides-analysis/internal/jma"
)

// Input formats.
const (
	CSV    = "csv"
	JMA    = "jma"
	NetCDF = "netcdf"
)

// Options describe an input record.
type Options struct {
	Kind    string // csv, jma or netcdf; empty guesses from the extension.
	Station string // Required for jma.

	// jma date bounds, YYYY-MM-DD in JST.
	StartDate string
	EndDate   string

	// csv layout.
	TimeColumn  string
	ValueColumn string
	TimeLayout  string

	// netcdf variable.
	Variable string
}

// Detect guesses the input format of path.
func Detect(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".nc", ".nc4", ".cdf":
		return NetCDF
	case ".txt":
		return JMA
	default:
		return CSV
	}
}

// New returns the loader for path.
func New(path string, o Options) (store.SeriesLoader, error) {
	kind := strings.ToLower(strings.TrimSpace(o.Kind))
	if kind == "" {
		kind = Detect(path)
	}
	switch kind {
	case CSV:
		return csv.SeriesFile{Format: csv.SeriesFormat{
			TimeColumn:  o.TimeColumn,
			ValueColumn: o.ValueColumn,
			TimeLayout:  o.TimeLayout,
		}}, nil
	case JMA:
		if o.Station == "" {
			return nil, domain.NewConfigurationError("station", "", "jma input needs a station code")
		}
		from, to, err := jma.ParseDateRange(o.StartDate, o.EndDate)
		if err != nil {
			return nil, domain.NewInputError("jma", "%v", err)
		}
		return jma.Source{Station: o.Station, From: from, To: to}, nil
	case NetCDF:
		return ncseries.Reader{Variable: o.Variable}, nil
	default:
		return nil, domain.NewConfigurationError("source", o.Kind, "expected csv, jma or netcdf")
	}
}
