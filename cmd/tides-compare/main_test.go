package main

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.ngs.io/tides-analysis/internal/domain"
)

func TestCalculateStats(t *testing.T) {
	mean, rmse := calculateStats([]float64{0.1, 0.3, 0.1, 0.3})
	if math.Abs(mean-0.2) > 1e-12 || math.Abs(rmse-0.1) > 1e-12 {
		t.Errorf("got mean %v rmse %v", mean, rmse)
	}
	if mean, rmse := calculateStats(nil); mean != 0 || rmse != 0 {
		t.Errorf("expected zeros for no data")
	}
}

func TestFetchAndCompare(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/predictions" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var req apiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.StationID != "KZ" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(apiResponse{Predictions: []apiPrediction{
			{Time: start.Format(time.RFC3339), HeightM: 1.0},
			{Time: start.Add(time.Hour).Format(time.RFC3339), HeightM: 1.2},
		}})
	}))
	defer srv.Close()

	apiMap, err := fetchAPIData(context.Background(), srv.URL+"/", apiRequest{StationID: "KZ"})
	if err != nil {
		t.Fatalf("fetchAPIData: %v", err)
	}
	series := domain.TimeSeries{
		Times:  []time.Time{start, start.Add(time.Hour), start.Add(2 * time.Hour)},
		Values: []float64{1.1, 1.3, 9},
	}
	diffs := compareData(series, apiMap)
	if len(diffs) != 2 || math.Abs(diffs[0]-0.1) > 1e-12 || math.Abs(diffs[1]-0.1) > 1e-12 {
		t.Errorf("unexpected diffs %v", diffs)
	}

	if _, err := fetchAPIData(context.Background(), srv.URL, apiRequest{StationID: "XX"}); err == nil {
		t.Error("expected error for a rejected request")
	}
}
