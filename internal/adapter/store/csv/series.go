package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"go.ngs.io/tides-analysis/internal/domain"
)

// SeriesFormat describes a delimited elevation record.
type SeriesFormat struct {
	TimeColumn  string // Header name; empty selects column 0.
	ValueColumn string // Header name; empty selects column 1.
	TimeLayout  string // time.Parse layout; empty accepts RFC 3339 and "2006-01-02 15:04:05".
	Location    *time.Location
	Comma       rune
}

var defaultLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02 15:04"}

// SeriesFile loads records in one format from disk.
type SeriesFile struct {
	Format SeriesFormat
}

// LoadSeries reads path.
func (f SeriesFile) LoadSeries(ctx context.Context, path string) (domain.TimeSeries, error) {
	file, err := os.Open(path) //nolint:gosec // Operator-supplied input path.
	if err != nil {
		return domain.TimeSeries{}, fmt.Errorf("failed to open series %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()
	return ReadSeries(ctx, file, f.Format)
}

// ReadSeries parses a header row followed by time,value rows. Rows whose
// value is empty or not finite are treated as missing and skipped.
func ReadSeries(ctx context.Context, r io.Reader, format SeriesFormat) (domain.TimeSeries, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	if format.Comma != 0 {
		reader.Comma = format.Comma
	}
	loc := format.Location
	if loc == nil {
		loc = time.UTC
	}

	header, err := reader.Read()
	if err != nil {
		return domain.TimeSeries{}, fmt.Errorf("failed to read CSV header: %w", err)
	}
	timeCol, err := column(header, format.TimeColumn, 0)
	if err != nil {
		return domain.TimeSeries{}, err
	}
	valueCol, err := column(header, format.ValueColumn, 1)
	if err != nil {
		return domain.TimeSeries{}, err
	}

	var series domain.TimeSeries
	for line := 2; ; line++ {
		if line%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return domain.TimeSeries{}, err
			}
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.TimeSeries{}, fmt.Errorf("failed to read CSV record: %w", err)
		}
		if timeCol >= len(record) || valueCol >= len(record) {
			return domain.TimeSeries{}, domain.NewInputError("csv", "line %d: expected at least %d columns", line, max(timeCol, valueCol)+1)
		}

		raw := strings.TrimSpace(record[valueCol])
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return domain.TimeSeries{}, domain.NewInputError("csv", "line %d: invalid elevation %q", line, raw)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		t, err := parseTime(strings.TrimSpace(record[timeCol]), format.TimeLayout, loc)
		if err != nil {
			return domain.TimeSeries{}, domain.NewInputError("csv", "line %d: %v", line, err)
		}
		series.Times = append(series.Times, t.UTC())
		series.Values = append(series.Values, v)
	}

	if err := series.Validate(); err != nil {
		return domain.TimeSeries{}, err
	}
	return series, nil
}

// WriteSeries writes a time column followed by one column per named series.
func WriteSeries(w io.Writer, times []time.Time, names []string, columns [][]float64) error {
	if len(names) != len(columns) {
		return fmt.Errorf("got %d column names for %d columns", len(names), len(columns))
	}
	for i, c := range columns {
		if len(c) != len(times) {
			return fmt.Errorf("column %s has %d values, expected %d", names[i], len(c), len(times))
		}
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"time"}, names...)); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	row := make([]string, len(columns)+1)
	for i, t := range times {
		row[0] = t.UTC().Format(time.RFC3339)
		for j, c := range columns {
			row[j+1] = strconv.FormatFloat(c[i], 'f', 4, 64)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func column(header []string, name string, fallback int) (int, error) {
	if name == "" {
		if fallback >= len(header) {
			return 0, domain.NewInputError("csv", "header has %d columns", len(header))
		}
		return fallback, nil
	}
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i, nil
		}
	}
	return 0, domain.NewInputError("csv", "column %q not in header %v", name, header)
}

func parseTime(s, layout string, loc *time.Location) (time.Time, error) {
	if layout != "" {
		return time.ParseInLocation(layout, s, loc)
	}
	for _, l := range defaultLayouts {
		if t, err := time.ParseInLocation(l, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}
