// Package csv reads and writes constituent tables and elevation records as
// CSV.
package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.ngs.io/tides-analysis/internal/domain"
)

const stationSuffix = "_constituents.csv"

var constituentHeader = []string{"constituent", "amplitude_m", "phase_deg"}

// ConstituentStore provides access to per-station constituent tables stored
// as <station>_constituents.csv in a directory.
type ConstituentStore struct {
	dataDir string
}

// NewConstituentStore creates a new CSV-based constituent store.
func NewConstituentStore(dataDir string) *ConstituentStore {
	return &ConstituentStore{
		dataDir: dataDir,
	}
}

// LoadForStation loads constituent parameters for a named station.
func (s *ConstituentStore) LoadForStation(stationID string) ([]domain.ConstituentParam, error) {
	if stationID == "" || strings.ContainsAny(stationID, `/\`) || strings.Contains(stationID, "..") {
		return nil, domain.NewInputError("station", "invalid station id %q", stationID)
	}
	filename := filepath.Join(s.dataDir, strings.ToLower(stationID)+stationSuffix)

	//nolint:gosec // G304: File path constructed from dataDir (config) and stationID (validated).
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file for station %s: %w", stationID, err)
	}
	defer func() { _ = file.Close() }()

	params, err := ReadConstituents(file)
	if err != nil {
		return nil, fmt.Errorf("station %s: %w", stationID, err)
	}
	return params, nil
}

// SaveForStation writes a constituent table for a station.
func (s *ConstituentStore) SaveForStation(stationID string, params []domain.ConstituentParam) error {
	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	filename := filepath.Join(s.dataDir, strings.ToLower(stationID)+stationSuffix)
	file, err := os.Create(filename) //nolint:gosec // Path built from config and station id.
	if err != nil {
		return fmt.Errorf("failed to create CSV file for station %s: %w", stationID, err)
	}
	if err := WriteConstituents(file, params); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// ListStations returns available station IDs.
func (s *ConstituentStore) ListStations() ([]string, error) {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}

	stations := make([]string, 0)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, stationSuffix) {
			stations = append(stations, strings.TrimSuffix(name, stationSuffix))
		}
	}
	return stations, nil
}

// ReadConstituents parses a constituent,amplitude_m,phase_deg table. Speeds
// come from the catalog; phases are Greenwich lags.
func ReadConstituents(r io.Reader) ([]domain.ConstituentParam, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	if len(header) != len(constituentHeader) {
		return nil, fmt.Errorf("invalid CSV header: expected %v, got %v", constituentHeader, header)
	}
	for i, h := range header {
		if strings.TrimSpace(h) != constituentHeader[i] {
			return nil, fmt.Errorf("invalid CSV header: expected column %d to be %s, got %s", i, constituentHeader[i], h)
		}
	}

	cat := domain.DefaultCatalog()
	constituents := make([]domain.ConstituentParam, 0)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}
		if len(record) != 3 {
			return nil, fmt.Errorf("invalid CSV record: expected 3 columns, got %d", len(record))
		}

		name := strings.TrimSpace(record[0])
		amplitude, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid amplitude for constituent %s: %w", name, err)
		}
		phase, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid phase for constituent %s: %w", name, err)
		}

		k, ok := cat.Lookup(name)
		if !ok {
			return nil, domain.NewConfigurationError("constituent", name, "not in catalog")
		}
		constituents = append(constituents, domain.ConstituentParam{
			Name:          k.Name,
			AmplitudeM:    amplitude,
			PhaseDeg:      phase,
			SpeedDegPerHr: k.SpeedDegPerHr,
		})
	}

	if len(constituents) == 0 {
		return nil, fmt.Errorf("no constituents found in CSV")
	}
	return constituents, nil
}

// WriteConstituents writes params in the format ReadConstituents accepts.
func WriteConstituents(w io.Writer, params []domain.ConstituentParam) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(constituentHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, p := range params {
		row := []string{
			p.Name,
			strconv.FormatFloat(p.AmplitudeM, 'f', 6, 64),
			strconv.FormatFloat(p.PhaseDeg, 'f', 4, 64),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
