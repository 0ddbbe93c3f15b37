package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.ngs.io/tides-analysis/internal/adapter/store/csv"
	"go.ngs.io/tides-analysis/internal/adapter/store/ncseries"
	"go.ngs.io/tides-analysis/internal/domain"
	"go.ngs.io/tides-analysis/internal/jma"
)

func TestDetect(t *testing.T) {
	tests := map[string]string{
		"obs.csv":     CSV,
		"obs.nc":      NetCDF,
		"OBS.NC4":     NetCDF,
		"2024_KZ.txt": JMA,
		"noext":       CSV,
	}
	for path, want := range tests {
		if got := Detect(path); got != want {
			t.Errorf("Detect(%q) = %s, expected %s", path, got, want)
		}
	}
}

func TestNew(t *testing.T) {
	l, err := New("x.nc", Options{Variable: "zeta"})
	if err != nil {
		t.Fatal(err)
	}
	if r, ok := l.(ncseries.Reader); !ok || r.Variable != "zeta" {
		t.Errorf("expected netcdf reader, got %T", l)
	}

	l, err = New("x.dat", Options{Kind: "CSV", TimeLayout: "2006/01/02 15:04"})
	if err != nil {
		t.Fatal(err)
	}
	if f, ok := l.(csv.SeriesFile); !ok || f.Format.TimeLayout != "2006/01/02 15:04" {
		t.Errorf("expected csv loader, got %T", l)
	}

	l, err = New("x.txt", Options{Station: "KZ", StartDate: "2024-01-01"})
	if err != nil {
		t.Fatal(err)
	}
	if s, ok := l.(jma.Source); !ok || s.Station != "KZ" || s.From.IsZero() {
		t.Errorf("expected jma source, got %#v", l)
	}
}

func TestNew_Errors(t *testing.T) {
	var cfgErr *domain.ConfigurationError
	if _, err := New("x.txt", Options{}); !errors.As(err, &cfgErr) {
		t.Errorf("expected ConfigurationError without station, got %v", err)
	}
	if _, err := New("x", Options{Kind: "parquet"}); !errors.As(err, &cfgErr) {
		t.Errorf("expected ConfigurationError for unknown kind, got %v", err)
	}
	var inErr *domain.InputError
	if _, err := New("x.txt", Options{Station: "KZ", EndDate: "tomorrow"}); !errors.As(err, &inErr) {
		t.Errorf("expected InputError for a bad date, got %v", err)
	}
}

func TestNew_LoadsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "obs.csv")
	data := "time,elevation\n2024-01-01T00:00:00Z,1.0\n2024-01-01T01:00:00Z,1.5\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	l, err := New(path, Options{})
	if err != nil {
		t.Fatal(err)
	}
	s, err := l.LoadSeries(context.Background(), path)
	if err != nil {
		t.Fatalf("LoadSeries: %v", err)
	}
	if s.Len() != 2 || s.Values[1] != 1.5 {
		t.Errorf("unexpected series %+v", s)
	}
}
