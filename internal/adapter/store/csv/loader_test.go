package csv

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.ngs.io/tides-analysis/internal/domain"
)

func TestConstituentStore_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := NewConstituentStore(dir)
	params := []domain.ConstituentParam{
		{Name: "M2", AmplitudeM: 1.234567, PhaseDeg: 123.4567},
		{Name: "K1", AmplitudeM: 0.25, PhaseDeg: 300},
	}
	if err := s.SaveForStation("Tokyo", params); err != nil {
		t.Fatal(err)
	}

	got, err := s.LoadForStation("tokyo")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 constituents, got %d", len(got))
	}
	if got[0].Name != "M2" || math.Abs(got[0].AmplitudeM-1.234567) > 1e-9 || math.Abs(got[0].PhaseDeg-123.4567) > 1e-9 {
		t.Errorf("unexpected M2 row: %+v", got[0])
	}
	if math.Abs(got[0].SpeedDegPerHr-28.9841042) > 1e-6 {
		t.Errorf("expected catalog speed, got %v", got[0].SpeedDegPerHr)
	}

	stations, err := s.ListStations()
	if err != nil {
		t.Fatal(err)
	}
	if len(stations) != 1 || stations[0] != "tokyo" {
		t.Errorf("unexpected stations: %v", stations)
	}
}

func TestLoadForStation_RejectsPaths(t *testing.T) {
	s := NewConstituentStore(t.TempDir())
	var inErr *domain.InputError
	if _, err := s.LoadForStation("../etc"); !errors.As(err, &inErr) {
		t.Errorf("expected InputError, got %v", err)
	}
}

func TestReadConstituents_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"bad header", "name,amp,phase\nM2,1,2\n"},
		{"bad amplitude", "constituent,amplitude_m,phase_deg\nM2,x,2\n"},
		{"unknown constituent", "constituent,amplitude_m,phase_deg\nZZ9,1,2\n"},
		{"empty", "constituent,amplitude_m,phase_deg\n"},
	}
	for _, tt := range tests {
		if _, err := ReadConstituents(strings.NewReader(tt.input)); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestReadSeries(t *testing.T) {
	input := `# station 42
time,elevation
2024-01-01T00:00:00Z,1.25
2024-01-01 01:00:00,1.50
2024-01-01T02:00:00Z,
2024-01-01T03:00:00Z,NaN
2024-01-01T04:00:00Z,0.75
`
	s, err := ReadSeries(context.Background(), strings.NewReader(input), SeriesFormat{})
	if err != nil {
		t.Fatal(err)
	}
	if s.Len() != 3 {
		t.Fatalf("expected 3 samples, got %d", s.Len())
	}
	want := time.Date(2024, 1, 1, 4, 0, 0, 0, time.UTC)
	if !s.Times[2].Equal(want) || s.Values[2] != 0.75 {
		t.Errorf("unexpected last sample: %v %v", s.Times[2], s.Values[2])
	}
}

func TestReadSeries_NamedColumnsAndLayout(t *testing.T) {
	input := "station;stamp;wl\nA;01/02/2024 00:00;1.0\nA;01/02/2024 00:30;2.0\n"
	format := SeriesFormat{TimeColumn: "stamp", ValueColumn: "WL", TimeLayout: "02/01/2006 15:04", Comma: ';'}
	s, err := ReadSeries(context.Background(), strings.NewReader(input), format)
	if err != nil {
		t.Fatal(err)
	}
	if s.Len() != 2 || s.Times[0].Month() != time.February || s.Times[0].Day() != 1 {
		t.Errorf("unexpected series: %+v", s)
	}
}

func TestReadSeries_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unordered", "time,elevation\n2024-01-01T01:00:00Z,1\n2024-01-01T00:00:00Z,2\n"},
		{"bad time", "time,elevation\nyesterday,1\n"},
		{"bad value", "time,elevation\n2024-01-01T00:00:00Z,high\n"},
		{"missing column", "time,elevation\n2024-01-01T00:00:00Z\n"},
	}
	for _, tt := range tests {
		_, err := ReadSeries(context.Background(), strings.NewReader(tt.input), SeriesFormat{})
		var inErr *domain.InputError
		if !errors.As(err, &inErr) {
			t.Errorf("%s: expected InputError, got %v", tt.name, err)
		}
	}
}

func TestWriteSeries(t *testing.T) {
	times := []time.Time{
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC),
	}
	var buf bytes.Buffer
	err := WriteSeries(&buf, times, []string{"total", "M2"}, [][]float64{{1, 2}, {0.5, -0.5}})
	if err != nil {
		t.Fatal(err)
	}
	want := "time,total,M2\n2024-01-01T00:00:00Z,1.0000,0.5000\n2024-01-01T01:00:00Z,2.0000,-0.5000\n"
	if buf.String() != want {
		t.Errorf("got\n%s\nwant\n%s", buf.String(), want)
	}

	if err := WriteSeries(&buf, times, []string{"total"}, [][]float64{{1}}); err == nil {
		t.Error("expected length mismatch error")
	}
}

func TestSeriesFile_LoadSeries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "obs.csv")
	if err := os.WriteFile(path, []byte("time,elevation\n2024-01-01T00:00:00Z,1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	s, err := SeriesFile{}.LoadSeries(context.Background(), path)
	if err != nil || s.Len() != 1 {
		t.Fatalf("unexpected result: %v %v", s, err)
	}
}
