// Package jma reads the fixed-width hourly tide observation files published
// by the Japan Meteorological Agency.
package jma

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.ngs.io/tides-analysis/internal/domain"
)

// JSTLocation is a fixed +09:00 zone used by JMA hourly records.
var JSTLocation = time.FixedZone("JST", 9*60*60)

const fetchTimeout = 20 * time.Second

// HourlyRecord represents a single day of 24 hourly heights in meters.
type HourlyRecord struct {
	Station string
	Time    time.Time // start of day in JST.
	Hourly  [24]float64
	Valid   [24]bool
}

// ParseHourlyLine parses a single fixed-width JMA line into an HourlyRecord.
func ParseHourlyLine(line string) (*HourlyRecord, error) {
	if len(line) < 80 {
		return nil, fmt.Errorf("line too short: %d", len(line))
	}
	var rec HourlyRecord

	for i := 0; i < 24; i++ {
		start := 3 * i
		chunk := strings.ReplaceAll(strings.TrimSpace(line[start:start+3]), " ", "")
		if chunk == "" || chunk == "999" {
			continue
		}
		v, err := strconv.Atoi(chunk)
		if err != nil {
			return nil, fmt.Errorf("invalid hourly value '%s' at %d: %w", chunk, i, err)
		}
		rec.Hourly[i] = float64(v) / 100.0
		rec.Valid[i] = true
	}

	yearStr := strings.TrimSpace(line[72:74])
	monthStr := strings.TrimSpace(line[74:76])
	dayStr := strings.TrimSpace(line[76:78])

	yearVal, err := strconv.Atoi(yearStr)
	if err != nil {
		return nil, fmt.Errorf("invalid year '%s': %w", yearStr, err)
	}
	monthVal, err := strconv.Atoi(monthStr)
	if err != nil {
		return nil, fmt.Errorf("invalid month '%s': %w", monthStr, err)
	}
	dayVal, err := strconv.Atoi(dayStr)
	if err != nil {
		return nil, fmt.Errorf("invalid day '%s': %w", dayStr, err)
	}
	if monthVal < 1 || monthVal > 12 || dayVal < 1 || dayVal > 31 {
		return nil, fmt.Errorf("invalid date %02d-%02d", monthVal, dayVal)
	}

	year := 2000 + yearVal
	if yearVal >= 70 {
		year = 1900 + yearVal
	}

	rec.Station = strings.TrimSpace(line[78:80])
	rec.Time = time.Date(year, time.Month(monthVal), dayVal, 0, 0, 0, 0, JSTLocation)
	return &rec, nil
}

// LoadStationRecords scans reader for lines belonging to the given station code.
func LoadStationRecords(r io.Reader, station string) ([]HourlyRecord, error) {
	station = strings.TrimSpace(station)
	scanner := bufio.NewScanner(r)
	records := make([]HourlyRecord, 0, 366)

	for scanner.Scan() {
		rec, err := ParseHourlyLine(scanner.Text())
		if err != nil {
			continue
		}
		if rec.Station == station {
			records = append(records, *rec)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan JMA data: %w", err)
	}
	if len(records) == 0 {
		return nil, domain.NewInputError("jma", "no records found for station %s", station)
	}
	return records, nil
}

// LoadStationRecordsFromPath loads data from a local path or HTTP URL.
func LoadStationRecordsFromPath(ctx context.Context, pathOrURL, station string) ([]HourlyRecord, error) {
	data, err := loadBytes(ctx, pathOrURL)
	if err != nil {
		return nil, err
	}
	return LoadStationRecords(bytes.NewReader(data), station)
}

// ToSeries flattens daily records into an hourly UTC series, dropping
// invalid hours and anything outside [from, to). Zero bounds are open.
func ToSeries(records []HourlyRecord, from, to time.Time) (domain.TimeSeries, error) {
	type sample struct {
		t time.Time
		v float64
	}
	samples := make([]sample, 0, len(records)*24)
	seen := make(map[int64]bool, len(records)*24)
	for _, rec := range records {
		for hour := 0; hour < 24; hour++ {
			if !rec.Valid[hour] {
				continue
			}
			jst := rec.Time.Add(time.Duration(hour) * time.Hour)
			if !from.IsZero() && jst.Before(from) {
				continue
			}
			if !to.IsZero() && !jst.Before(to) {
				continue
			}
			key := jst.Unix()
			if seen[key] {
				continue
			}
			seen[key] = true
			samples = append(samples, sample{t: jst.UTC(), v: rec.Hourly[hour]})
		}
	}
	if len(samples) == 0 {
		return domain.TimeSeries{}, domain.NewInputError("jma", "no valid hourly samples in the requested window")
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i].t.Before(samples[j].t) })

	series := domain.TimeSeries{
		Times:  make([]time.Time, len(samples)),
		Values: make([]float64, len(samples)),
	}
	for i, s := range samples {
		series.Times[i] = s.t
		series.Values[i] = s.v
	}
	return series, nil
}

// Source loads one station's record as a series.
type Source struct {
	Station  string
	From, To time.Time
}

// LoadSeries reads a local file or URL.
func (s Source) LoadSeries(ctx context.Context, pathOrURL string) (domain.TimeSeries, error) {
	records, err := LoadStationRecordsFromPath(ctx, pathOrURL, s.Station)
	if err != nil {
		return domain.TimeSeries{}, fmt.Errorf("failed to load JMA data: %w", err)
	}
	return ToSeries(records, s.From, s.To)
}

// ParseDateRange parses optional YYYY-MM-DD bounds in JST. The end date is
// inclusive.
func ParseDateRange(fromStr, toStr string) (time.Time, time.Time, error) {
	var from, to time.Time
	var err error
	if fromStr != "" {
		from, err = time.ParseInLocation("2006-01-02", fromStr, JSTLocation)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start_date: %w", err)
		}
	}
	if toStr != "" {
		to, err = time.ParseInLocation("2006-01-02", toStr, JSTLocation)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end_date: %w", err)
		}
		to = to.Add(24 * time.Hour)
	}
	return from, to, nil
}

func loadBytes(ctx context.Context, path string) ([]byte, error) {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, http.NoBody)
		if err != nil {
			return nil, err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
		}
		return io.ReadAll(resp.Body)
	}
	return os.ReadFile(path) //nolint:gosec // Operator-supplied input path.
}
