// Package main fits harmonic constituents to an observed water level record
// and writes the constituent table, optional component series, a filtered
// series and an ephemeris table.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"go.ngs.io/tides-analysis/internal/adapter/source"
	"go.ngs.io/tides-analysis/internal/adapter/store/csv"
	"go.ngs.io/tides-analysis/internal/adapter/store/ncseries"
	"go.ngs.io/tides-analysis/internal/config"
	"go.ngs.io/tides-analysis/internal/domain"
	"go.ngs.io/tides-analysis/internal/filter"
	"go.ngs.io/tides-analysis/internal/gapfill"
	"go.ngs.io/tides-analysis/internal/log"
	"go.ngs.io/tides-analysis/internal/usecase"
)

type options struct {
	input       string
	source      string
	station     string
	startDate   string
	endDate     string
	timeColumn  string
	valueColumn string
	timeLayout  string
	variable    string

	rayleigh      float64
	trend         bool
	missingData   string
	iavg          int
	removeExtreme bool
	detrend       bool
	infer         bool

	format           string
	out              string
	componentsDir    string
	componentsFormat string
	ephemeris        string
	filterName       string
	filterOut        string
	padding          string
	constituent      string
	debug            bool
}

func main() {
	cfg, err := config.Load(os.Getenv("TIDES_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	var o options
	flag.StringVar(&o.input, "input", "", "Path (or URL for jma) of the observed record")
	flag.StringVar(&o.source, "source", "", "Input format: csv, jma or netcdf (default: from the file extension)")
	flag.StringVar(&o.station, "station", "", "Station code (required for jma; recorded with the result)")
	flag.StringVar(&o.startDate, "start_date", "", "Optional start date for jma input (YYYY-MM-DD, JST)")
	flag.StringVar(&o.endDate, "end_date", "", "Optional end date for jma input (YYYY-MM-DD, JST)")
	flag.StringVar(&o.timeColumn, "time-column", "", "CSV time column name (default: first column)")
	flag.StringVar(&o.valueColumn, "value-column", "", "CSV elevation column name (default: second column)")
	flag.StringVar(&o.timeLayout, "time-layout", "", "CSV time layout in Go reference form (default: RFC 3339)")
	flag.StringVar(&o.variable, "variable", "", "NetCDF elevation variable (default: first of water_level, elevation, sea_level, ...)")

	flag.Float64Var(&o.rayleigh, "rayleigh", cfg.Analysis.Rayleigh, "Rayleigh factor for constituent selection")
	flag.BoolVar(&o.trend, "trend", cfg.Analysis.Trend, "Fit a linear trend")
	flag.StringVar(&o.missingData, "missing-data", cfg.Analysis.MissingData, "Missing data policy: fail, ignore or fill")
	flag.IntVar(&o.iavg, "iavg", cfg.Analysis.Iavg, "Samples averaged at each side of a gap when filling")
	flag.BoolVar(&o.removeExtreme, "remove-extreme", cfg.Analysis.RemoveExtreme, "Drop samples beyond mean ± 2σ")
	flag.BoolVar(&o.detrend, "detrend", cfg.Analysis.Detrend, "Subtract a 25 hour running mean before fitting")
	flag.BoolVar(&o.infer, "infer", cfg.Analysis.Infer, "Infer minor constituents from their reference constituents")

	flag.StringVar(&o.format, "format", "json", "Constituent table format: json, csv or msgpack")
	flag.StringVar(&o.out, "out", "", "Constituent table output path (default: stdout)")
	flag.StringVar(&o.componentsDir, "components", "", "Directory for per-constituent component series and total")
	flag.StringVar(&o.componentsFormat, "components-format", "csv", "Component series format: csv or netcdf")
	flag.StringVar(&o.ephemeris, "ephemeris", "", "Path of a CSV table of astronomical arguments per sample")
	flag.StringVar(&o.filterName, "filter", "", "Filter to apply: "+strings.Join(filter.Names(), ", "))
	flag.StringVar(&o.filterOut, "filter-out", "filtered.csv", "Filtered series output path")
	flag.StringVar(&o.padding, "padding", cfg.Filter.Padding, "Filter padding")
	flag.StringVar(&o.constituent, "constituent", "M2", "Target constituent for demodulation")
	flag.BoolVar(&o.debug, "debug", cfg.Logging.Debug, "Development logging")
	flag.Parse()

	if o.input == "" {
		fmt.Fprintln(os.Stderr, "Usage: tides-analyze -input <path|url> [-source csv|jma|netcdf] [-station KZ] [options]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	if err := log.Init(o.debug); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(context.Background(), o, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "tides-analyze: %v\n", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, o options, cfg *config.Config) error {
	loader, err := source.New(o.input, source.Options{
		Kind:        o.source,
		Station:     o.station,
		StartDate:   o.startDate,
		EndDate:     o.endDate,
		TimeColumn:  o.timeColumn,
		ValueColumn: o.valueColumn,
		TimeLayout:  o.timeLayout,
		Variable:    o.variable,
	})
	if err != nil {
		return err
	}
	series, err := loader.LoadSeries(ctx, o.input)
	if err != nil {
		return err
	}
	log.Infow("loaded record", "input", o.input, "samples", series.Len(), "span_hours", series.SpanHours())

	policy, err := gapfill.ParsePolicy(o.missingData)
	if err != nil {
		return err
	}
	analysisUC := usecase.NewAnalysisUseCase(nil, nil, usecase.AnalysisOptions{})
	result, err := analysisUC.Execute(ctx, usecase.AnalysisRequest{
		Station: o.station,
		Series:  series,
		Options: usecase.AnalysisOptions{
			Rayleigh:      o.rayleigh,
			Trend:         o.trend,
			MissingData:   policy,
			Iavg:          o.iavg,
			RemoveExtreme: o.removeExtreme,
			Detrend:       o.detrend,
			Infer:         o.infer,
			MaxIterations: cfg.Analysis.MaxIterations,
			Tolerance:     cfg.Analysis.Tolerance,
		},
	})
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	if err := writeTable(o, result); err != nil {
		return err
	}

	if o.componentsDir != "" {
		comps, err := usecase.BuildComponents(result.Model(nil), series.Times)
		if err != nil {
			return fmt.Errorf("failed to synthesize components: %w", err)
		}
		if err := writeComponents(o, comps, series); err != nil {
			return err
		}
	}

	if o.ephemeris != "" {
		if err := writeEphemeris(o.ephemeris, usecase.EphemerisTable(series.Times, nil)); err != nil {
			return err
		}
	}

	if o.filterName != "" {
		filterUC := usecase.NewFilterUseCase(filter.Options{
			Padding:         filter.Padding(o.padding),
			PassPeriodHours: cfg.Filter.PassPeriodHours,
			StopPeriodHours: cfg.Filter.StopPeriodHours,
			ProcessVariance: cfg.Filter.ProcessVariance,
			Rayleigh:        o.rayleigh,
		}, nil)
		resp, err := filterUC.Execute(ctx, usecase.FilterRequest{
			Name:        o.filterName,
			Series:      series,
			Constituent: o.constituent,
		})
		if err != nil {
			return fmt.Errorf("filter failed: %w", err)
		}
		if err := writeFiltered(o.filterOut, series, resp); err != nil {
			return err
		}
	}
	return nil
}

func create(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.Create(path) //nolint:gosec // Operator-supplied output path.
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func writeTable(o options, result *usecase.AnalysisResult) error {
	w, err := create(o.out)
	if err != nil {
		return err
	}
	switch o.format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		err = enc.Encode(result)
	case "msgpack":
		enc := msgpack.NewEncoder(w)
		enc.SetCustomStructTag("json")
		err = enc.Encode(result)
	case "csv":
		err = csv.WriteConstituents(w, result.Params())
	default:
		err = domain.NewConfigurationError("format", o.format, "expected json, csv or msgpack")
	}
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write constituent table: %w", err)
	}
	return nil
}

func writeComponents(o options, comps *usecase.ComponentSeries, series domain.TimeSeries) error {
	if err := os.MkdirAll(o.componentsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create components directory: %w", err)
	}
	names, cols := comps.Columns()
	names = append([]string{"observed"}, names...)
	cols = append([][]float64{series.Values}, cols...)

	switch o.componentsFormat {
	case "netcdf":
		vars := make([]ncseries.Variable, len(names))
		for i, n := range names {
			vars[i] = ncseries.Variable{Name: n, Units: "m", Values: cols[i]}
		}
		vars[0].LongName = "observed water level"
		vars[len(vars)-1].LongName = "mean level, trend and all constituents"
		path := filepath.Join(o.componentsDir, "components.nc")
		if err := ncseries.WriteSeries(path, comps.Times, vars, "tidal components"); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		log.Infof("wrote %d component series to %s", len(comps.Names), path)
	case "csv":
		path := filepath.Join(o.componentsDir, "components.csv")
		w, err := create(path)
		if err != nil {
			return err
		}
		err = csv.WriteSeries(w, comps.Times, names, cols)
		if cerr := w.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		log.Infof("wrote %d component series to %s", len(comps.Names), path)
	default:
		return domain.NewConfigurationError("components-format", o.componentsFormat, "expected csv or netcdf")
	}
	return nil
}

func writeEphemeris(path string, rows []usecase.EphemerisRow) error {
	cols := make([][]float64, 6)
	ts := make([]time.Time, len(rows))
	for i, r := range rows {
		ts[i] = r.Time
		for j, v := range []float64{r.JD, r.S, r.P, r.H, r.P1, r.N} {
			cols[j] = append(cols[j], v)
		}
	}
	w, err := create(path)
	if err != nil {
		return err
	}
	err = csv.WriteSeries(w, ts, []string{"jd", "s", "p", "h", "p1", "n"}, cols)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write ephemeris table: %w", err)
	}
	return nil
}

func writeFiltered(path string, series domain.TimeSeries, resp *usecase.FilterResponse) error {
	names := []string{"observed", resp.Filter}
	filtered := make([]float64, len(resp.Points))
	for i, p := range resp.Points {
		filtered[i] = p.Filtered
	}
	cols := [][]float64{series.Values, filtered}
	if resp.Amplitude != nil {
		names = append(names, "amplitude", "phase")
		cols = append(cols, resp.Amplitude, resp.Phase)
	}
	w, err := create(path)
	if err != nil {
		return err
	}
	err = csv.WriteSeries(w, series.Times, names, cols)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write filtered series: %w", err)
	}
	log.Infof("wrote %s output to %s", resp.Filter, path)
	return nil
}
