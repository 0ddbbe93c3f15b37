// Package main predicts a water level series from a station constituent
// table and writes it, with one series per constituent, to NetCDF or CSV.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.ngs.io/tides-analysis/internal/adapter/store/csv"
	"go.ngs.io/tides-analysis/internal/adapter/store/ncseries"
	"go.ngs.io/tides-analysis/internal/domain"
	"go.ngs.io/tides-analysis/internal/log"
	"go.ngs.io/tides-analysis/internal/usecase"
)

func main() {
	// Command line flags
	csvPath := flag.String("csv", "./data/mock_tokyo_constituents.csv", "Path to CSV file with constituent data")
	outPath := flag.String("out", "./data/prediction.nc", "Output file (.nc for NetCDF, otherwise CSV)")
	startStr := flag.String("start", "", "Start time (RFC3339, default: today 00:00 UTC)")
	endStr := flag.String("end", "", "End time (RFC3339, default: start + 30 days)")
	interval := flag.Duration("interval", 10*time.Minute, "Sampling interval")
	z0 := flag.Float64("z0", 0, "Mean level added to the prediction, meters")
	components := flag.Bool("components", true, "Also write one series per constituent")
	debug := flag.Bool("debug", false, "Development logging")
	flag.Parse()

	if err := log.Init(*debug); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	start := time.Now().UTC().Truncate(24 * time.Hour)
	if *startStr != "" {
		t, err := time.Parse(time.RFC3339, *startStr)
		if err != nil {
			log.Fatalf("invalid start time (expected RFC3339): %v", err)
		}
		start = t.UTC()
	}
	end := start.Add(30 * 24 * time.Hour)
	if *endStr != "" {
		t, err := time.Parse(time.RFC3339, *endStr)
		if err != nil {
			log.Fatalf("invalid end time (expected RFC3339): %v", err)
		}
		end = t.UTC()
	}
	if !start.Before(end) || *interval <= 0 {
		log.Fatalf("need start before end and a positive interval")
	}

	// Read constituent data from CSV
	params, err := readConstituents(*csvPath)
	if err != nil {
		log.Fatalf("failed to read CSV: %v", err)
	}
	log.Infof("loaded %d constituents from %s", len(params), *csvPath)

	if err := domain.AttachEquilibrium(params, start, nil); err != nil {
		log.Fatalf("failed to compute equilibrium arguments: %v", err)
	}
	model := domain.Model{Reference: start, Z0: *z0, Constituents: params}

	var times []time.Time
	for t := start; !t.After(end); t = t.Add(*interval) {
		times = append(times, t)
	}
	comps, err := usecase.BuildComponents(model, times)
	if err != nil {
		log.Fatalf("failed to synthesize prediction: %v", err)
	}

	levels := make([]domain.TideLevel, len(times))
	for i, t := range times {
		levels[i] = domain.TideLevel{Time: t, HeightM: comps.Total[i]}
	}
	extrema := domain.RefineExtrema(levels, domain.FindExtrema(levels))
	log.Infof("predicted %d points, %d highs, %d lows", len(times), len(extrema.Highs), len(extrema.Lows))

	names := []string{"tide"}
	cols := [][]float64{comps.Total}
	if *components {
		for _, n := range comps.Names {
			names = append(names, n)
			cols = append(cols, comps.Components[n])
		}
	}

	if err := os.MkdirAll(filepath.Dir(*outPath), 0o755); err != nil {
		log.Fatalf("failed to create output directory: %v", err)
	}
	if ext := strings.ToLower(filepath.Ext(*outPath)); ext == ".nc" || ext == ".nc4" {
		vars := make([]ncseries.Variable, len(names))
		for i, n := range names {
			vars[i] = ncseries.Variable{Name: n, Units: "m", Values: cols[i]}
		}
		vars[0].LongName = "predicted water level"
		if err := ncseries.WriteSeries(*outPath, times, vars, "harmonic tide prediction"); err != nil {
			log.Fatalf("failed to write NetCDF: %v", err)
		}
	} else {
		f, err := os.Create(*outPath) //nolint:gosec // Operator-supplied output path.
		if err != nil {
			log.Fatalf("failed to create %s: %v", *outPath, err)
		}
		err = csv.WriteSeries(f, times, names, cols)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			log.Fatalf("failed to write CSV: %v", err)
		}
	}
	log.Infof("wrote %s", *outPath)
}

// readConstituents reads a constituent,amplitude_m,phase_deg table.
func readConstituents(path string) ([]domain.ConstituentParam, error) {
	f, err := os.Open(path) //nolint:gosec // Operator-supplied input path.
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return csv.ReadConstituents(f)
}
