// Command tides-compare compares an observed record against harmonic
// predictions, either computed locally from a constituent table or fetched
// from a running server, and reports the mean offset (recommended z0) and
// the RMSE around that mean.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"go.ngs.io/tides-analysis/internal/adapter/source"
	"go.ngs.io/tides-analysis/internal/adapter/store/csv"
	"go.ngs.io/tides-analysis/internal/domain"
)

const fetchTimeout = 15 * time.Second

type apiPrediction struct {
	Time    string  `json:"time"`
	HeightM float64 `json:"height_m"`
}

type apiResponse struct {
	Predictions []apiPrediction `json:"predictions"`
	Error       string          `json:"error"`
}

type apiRequest struct {
	StationID  string  `json:"station_id,omitempty"`
	AnalysisID string  `json:"analysis_id,omitempty"`
	Z0         float64 `json:"z0"`
	Start      string  `json:"start"`
	End        string  `json:"end"`
	Interval   string  `json:"interval"`
}

func fetch(ctx context.Context, url string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	client := &http.Client{Timeout: fetchTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("HTTP %d (failed to read body: %w)", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return b, nil
}

// fetchAPIData asks the server for predictions over the record and indexes
// them by RFC 3339 time.
func fetchAPIData(ctx context.Context, apiURL string, req apiRequest) (map[string]float64, error) {
	body, err := fetch(ctx, strings.TrimRight(apiURL, "/")+"/v1/predictions", req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch API: %w", err)
	}
	var api apiResponse
	if err := json.Unmarshal(body, &api); err != nil {
		return nil, fmt.Errorf("invalid API JSON: %w", err)
	}

	apiMap := make(map[string]float64, len(api.Predictions))
	for _, p := range api.Predictions {
		apiMap[p.Time] = p.HeightM
	}
	return apiMap, nil
}

// localPredictions evaluates a constituent table at every observation time.
func localPredictions(path string, z0 float64, series domain.TimeSeries) ([]float64, error) {
	f, err := os.Open(path) //nolint:gosec // Operator-supplied input path.
	if err != nil {
		return nil, fmt.Errorf("failed to open constituents: %w", err)
	}
	defer func() { _ = f.Close() }()
	params, err := csv.ReadConstituents(f)
	if err != nil {
		return nil, err
	}
	ref := series.Times[0]
	if err := domain.AttachEquilibrium(params, ref, nil); err != nil {
		return nil, err
	}
	return domain.Model{Reference: ref, Z0: z0, Constituents: params}.Predict(series.Times)
}

// compareData pairs observations with predictions by time.
func compareData(series domain.TimeSeries, apiMap map[string]float64) []float64 {
	diffs := make([]float64, 0, series.Len())
	for i, t := range series.Times {
		if h, ok := apiMap[t.UTC().Format(time.RFC3339)]; ok {
			diffs = append(diffs, series.Values[i]-h)
		}
	}
	return diffs
}

// calculateStats returns the mean difference and the RMSE around it.
func calculateStats(diffs []float64) (mean, rmse float64) {
	if len(diffs) == 0 {
		return 0, 0
	}
	mean, variance := stat.PopMeanVariance(diffs, nil)
	return mean, math.Sqrt(variance)
}

func main() {
	var (
		input      string
		kind       string
		station    string
		startDate  string
		endDate    string
		constCSV   string
		z0         float64
		apiURL     string
		stationID  string
		analysisID string
	)
	flag.StringVar(&input, "input", "", "Path (or URL for jma) of the observed record")
	flag.StringVar(&kind, "source", "", "Input format: csv, jma or netcdf (default: from the file extension)")
	flag.StringVar(&station, "station", "", "JMA station code (e.g., KZ)")
	flag.StringVar(&startDate, "start_date", "", "Optional start date for jma input (YYYY-MM-DD, JST)")
	flag.StringVar(&endDate, "end_date", "", "Optional end date for jma input (YYYY-MM-DD, JST)")
	flag.StringVar(&constCSV, "constituents", "", "Constituent CSV to predict from locally")
	flag.Float64Var(&z0, "z0", 0, "Mean level added to the prediction, meters")
	flag.StringVar(&apiURL, "api_url", "", "Server base URL to fetch predictions from instead (e.g., http://localhost:8080)")
	flag.StringVar(&stationID, "station_id", "", "Station constants to predict from on the server")
	flag.StringVar(&analysisID, "analysis_id", "", "Archived analysis to predict from on the server")
	flag.Parse()

	if input == "" || (constCSV == "" && apiURL == "") {
		fmt.Fprintln(os.Stderr, "Usage: tides-compare -input <path|url> [-station KZ] (-constituents table.csv | -api_url <url> -station_id ID | -analysis_id ID)")
		os.Exit(2)
	}

	ctx := context.Background()
	loader, err := source.New(input, source.Options{Kind: kind, Station: station, StartDate: startDate, EndDate: endDate})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	series, err := loader.LoadSeries(ctx, input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load observations: %v\n", err)
		os.Exit(1)
	}

	var diffs []float64
	if constCSV != "" {
		predicted, err := localPredictions(constCSV, z0, series)
		if err != nil {
			fmt.Fprintf(os.Stderr, "prediction failed: %v\n", err)
			os.Exit(1)
		}
		diffs = make([]float64, series.Len())
		for i := range diffs {
			diffs[i] = series.Values[i] - predicted[i]
		}
	} else {
		apiMap, err := fetchAPIData(ctx, apiURL, apiRequest{
			StationID:  stationID,
			AnalysisID: analysisID,
			Z0:         z0,
			Start:      series.Times[0].UTC().Format(time.RFC3339),
			End:        series.Times[series.Len()-1].UTC().Format(time.RFC3339),
			Interval:   series.NominalInterval().String(),
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		diffs = compareData(series, apiMap)
	}
	if len(diffs) == 0 {
		fmt.Fprintln(os.Stderr, "no paired points")
		os.Exit(1)
	}

	mean, rmse := calculateStats(diffs)

	fmt.Printf("Paired points: %d\n", len(diffs))
	fmt.Printf("Mean(observed-predicted) [m]: %.3f\n", mean)
	fmt.Printf("RMSE around mean [m]: %.3f\n", rmse)
	fmt.Printf("\nRecommended z0: %.3f\n", z0+mean)
}
