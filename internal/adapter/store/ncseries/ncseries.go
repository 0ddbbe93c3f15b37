// Package ncseries reads and writes elevation time series as CF-style
// NetCDF files: a "time" coordinate in "<unit> since <epoch>" plus one or
// more data variables on that dimension.
package ncseries

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/fhs/go-netcdf/netcdf"

	"go.ngs.io/tides-analysis/internal/domain"
)

const (
	timeVarName = "time"
	fillValue   = -99999.0
)

// valueNames are tried in order when no variable name is configured.
var valueNames = []string{"water_level", "elevation", "sea_level", "zeta", "ssh", "height"}

// Reader loads one variable from NetCDF files.
type Reader struct {
	// Variable is the data variable name. Empty tries common names.
	Variable string
}

// LoadSeries reads path. Samples equal to the variable's _FillValue or
// missing_value, or not finite after scaling, are dropped.
func (r Reader) LoadSeries(_ context.Context, path string) (domain.TimeSeries, error) {
	ds, err := netcdf.OpenFile(path, netcdf.NOWRITE)
	if err != nil {
		return domain.TimeSeries{}, fmt.Errorf("failed to open NetCDF file: %w", err)
	}
	defer func() { _ = ds.Close() }()

	tv, err := ds.Var(timeVarName)
	if err != nil {
		return domain.TimeSeries{}, domain.NewInputError("netcdf", "time variable not found: %v", err)
	}
	offsets, err := readFloat64Var(tv)
	if err != nil {
		return domain.TimeSeries{}, fmt.Errorf("failed to read time: %w", err)
	}
	units, err := readStringAttr(tv.Attr("units"))
	if err != nil {
		return domain.TimeSeries{}, domain.NewInputError("netcdf", "time units: %v", err)
	}
	step, epoch, err := ParseTimeUnits(units)
	if err != nil {
		return domain.TimeSeries{}, err
	}

	names := valueNames
	if r.Variable != "" {
		names = []string{r.Variable}
	}
	var (
		dataVar netcdf.Var
		found   bool
	)
	for _, name := range names {
		if v, err := ds.Var(name); err == nil {
			dataVar, found = v, true
			break
		}
	}
	if !found {
		return domain.TimeSeries{}, domain.NewInputError("netcdf", "data variable not found (tried: %v)", names)
	}
	values, err := readFloat64Var(dataVar)
	if err != nil {
		return domain.TimeSeries{}, fmt.Errorf("failed to read data: %w", err)
	}
	if len(values) != len(offsets) {
		return domain.TimeSeries{}, domain.NewInputError("netcdf", "data has %d values for %d times", len(values), len(offsets))
	}

	fv, hasFill := getFillValue(dataVar)
	scale, offset := scaling(dataVar)

	var series domain.TimeSeries
	for i, raw := range values {
		if hasFill && raw == fv {
			continue
		}
		v := raw*scale + offset
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		d := time.Duration(math.Round(offsets[i] * float64(step)))
		series.Times = append(series.Times, epoch.Add(d))
		series.Values = append(series.Values, v)
	}
	if err := series.Validate(); err != nil {
		return domain.TimeSeries{}, err
	}
	return series, nil
}

// Variable is one output column.
type Variable struct {
	Name     string
	Units    string
	LongName string
	Values   []float64
}

// WriteSeries writes a time coordinate in hours since the first timestamp
// and one double variable per column. NaN values are stored as the fill
// value.
func WriteSeries(path string, times []time.Time, vars []Variable, title string) error {
	if len(times) == 0 {
		return domain.NewInputError("netcdf", "no timestamps to write")
	}
	for _, v := range vars {
		if len(v.Values) != len(times) {
			return domain.NewInputError("netcdf", "variable %s has %d values for %d times", v.Name, len(v.Values), len(times))
		}
	}

	ds, err := netcdf.CreateFile(path, netcdf.CLOBBER|netcdf.NETCDF4)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() { _ = ds.Close() }()

	timeDim, err := ds.AddDim(timeVarName, uint64(len(times)))
	if err != nil {
		return fmt.Errorf("add time dim: %w", err)
	}
	tv, err := ds.AddVar(timeVarName, netcdf.DOUBLE, []netcdf.Dim{timeDim})
	if err != nil {
		return fmt.Errorf("add time var: %w", err)
	}
	epoch := times[0].UTC()
	if err := tv.Attr("units").WriteBytes([]byte(FormatTimeUnits(time.Hour, epoch))); err != nil {
		return fmt.Errorf("write time units: %w", err)
	}
	if err := tv.Attr("standard_name").WriteBytes([]byte("time")); err != nil {
		return fmt.Errorf("write time standard_name: %w", err)
	}
	if title != "" {
		if err := ds.Attr("title").WriteBytes([]byte(title)); err != nil {
			return fmt.Errorf("write title: %w", err)
		}
	}

	dataVars := make([]netcdf.Var, len(vars))
	for i, v := range vars {
		dv, err := ds.AddVar(v.Name, netcdf.DOUBLE, []netcdf.Dim{timeDim})
		if err != nil {
			return fmt.Errorf("add var %s: %w", v.Name, err)
		}
		if err := dv.Attr("_FillValue").WriteFloat64s([]float64{fillValue}); err != nil {
			return fmt.Errorf("write %s fill value: %w", v.Name, err)
		}
		if v.Units != "" {
			if err := dv.Attr("units").WriteBytes([]byte(v.Units)); err != nil {
				return fmt.Errorf("write %s units: %w", v.Name, err)
			}
		}
		if v.LongName != "" {
			if err := dv.Attr("long_name").WriteBytes([]byte(v.LongName)); err != nil {
				return fmt.Errorf("write %s long_name: %w", v.Name, err)
			}
		}
		dataVars[i] = dv
	}

	if err := ds.EndDef(); err != nil {
		return fmt.Errorf("end define mode: %w", err)
	}

	offsets := make([]float64, len(times))
	for i, t := range times {
		offsets[i] = t.Sub(epoch).Hours()
	}
	if err := tv.WriteFloat64s(offsets); err != nil {
		return fmt.Errorf("write time: %w", err)
	}
	for i, v := range vars {
		out := make([]float64, len(v.Values))
		for j, x := range v.Values {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				x = fillValue
			}
			out[j] = x
		}
		if err := dataVars[i].WriteFloat64s(out); err != nil {
			return fmt.Errorf("write %s: %w", v.Name, err)
		}
	}
	return nil
}

var unitSteps = map[string]time.Duration{
	"second": time.Second, "seconds": time.Second, "s": time.Second, "sec": time.Second,
	"minute": time.Minute, "minutes": time.Minute, "min": time.Minute,
	"hour": time.Hour, "hours": time.Hour, "h": time.Hour, "hr": time.Hour,
	"day": 24 * time.Hour, "days": 24 * time.Hour, "d": 24 * time.Hour,
}

var epochLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006-1-2 15:4:5",
	"2006-1-2",
}

// ParseTimeUnits parses a CF time unit string such as
// "hours since 2020-01-01 00:00:00".
func ParseTimeUnits(units string) (time.Duration, time.Time, error) {
	parts := strings.SplitN(strings.TrimSpace(units), " since ", 2)
	if len(parts) != 2 {
		return 0, time.Time{}, domain.NewInputError("netcdf", "unsupported time units %q", units)
	}
	step, ok := unitSteps[strings.ToLower(strings.TrimSpace(parts[0]))]
	if !ok {
		return 0, time.Time{}, domain.NewInputError("netcdf", "unsupported time unit %q", parts[0])
	}
	ref := strings.TrimSpace(parts[1])
	ref = strings.TrimSuffix(strings.TrimSuffix(ref, " UTC"), " GMT")
	for _, layout := range epochLayouts {
		if t, err := time.ParseInLocation(layout, ref, time.UTC); err == nil {
			return step, t.UTC(), nil
		}
	}
	return 0, time.Time{}, domain.NewInputError("netcdf", "unsupported time epoch %q", ref)
}

// FormatTimeUnits is the inverse of ParseTimeUnits.
func FormatTimeUnits(step time.Duration, epoch time.Time) string {
	name := "hours"
	switch step {
	case time.Second:
		name = "seconds"
	case time.Minute:
		name = "minutes"
	case 24 * time.Hour:
		name = "days"
	}
	return fmt.Sprintf("%s since %s", name, epoch.UTC().Format("2006-01-02 15:04:05"))
}

func readStringAttr(a netcdf.Attr) (string, error) {
	n, err := a.Len()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", fmt.Errorf("attribute is empty")
	}
	buf := make([]byte, n)
	if err := a.ReadBytes(buf); err != nil {
		return "", err
	}
	return strings.TrimRight(string(buf), "\x00"), nil
}

// getFillValue returns the _FillValue or missing_value attribute if present as float64.
func getFillValue(v netcdf.Var) (float64, bool) {
	for _, name := range []string{"_FillValue", "missing_value"} {
		if f, ok := readNumericAttr(v.Attr(name)); ok {
			return f, true
		}
	}
	return 0, false
}

// scaling returns the packed-data scale_factor and add_offset, defaulting to
// the identity.
func scaling(v netcdf.Var) (float64, float64) {
	scale, offset := 1.0, 0.0
	if f, ok := readNumericAttr(v.Attr("scale_factor")); ok {
		scale = f
	}
	if f, ok := readNumericAttr(v.Attr("add_offset")); ok {
		offset = f
	}
	return scale, offset
}

func readNumericAttr(a netcdf.Attr) (float64, bool) {
	if a == (netcdf.Attr{}) {
		return 0, false
	}
	n, err := a.Len()
	if err != nil || n == 0 {
		return 0, false
	}
	buf64 := make([]float64, n)
	if err := a.ReadFloat64s(buf64); err == nil {
		return buf64[0], true
	}
	buf32 := make([]float32, n)
	if err := a.ReadFloat32s(buf32); err == nil {
		return float64(buf32[0]), true
	}
	bufi := make([]int32, n)
	if err := a.ReadInt32s(bufi); err == nil {
		return float64(bufi[0]), true
	}
	bufs := make([]int16, n)
	if err := a.ReadInt16s(bufs); err == nil {
		return float64(bufs[0]), true
	}
	return 0, false
}

// readFloat64Var reads a 1D numeric variable as float64.
func readFloat64Var(v netcdf.Var) ([]float64, error) {
	dims, err := v.Dims()
	if err != nil {
		return nil, fmt.Errorf("failed to get dimensions: %w", err)
	}
	if len(dims) != 1 {
		return nil, fmt.Errorf("expected 1D variable, got %dD", len(dims))
	}
	length, err := dims[0].Len()
	if err != nil {
		return nil, err
	}

	t, err := v.Type()
	if err != nil {
		return nil, fmt.Errorf("failed to get var type: %w", err)
	}
	out := make([]float64, length)
	switch t {
	case netcdf.DOUBLE:
		if err := v.ReadFloat64s(out); err != nil {
			return nil, err
		}
	case netcdf.FLOAT:
		tmp := make([]float32, length)
		if err := v.ReadFloat32s(tmp); err != nil {
			return nil, err
		}
		for i, val := range tmp {
			out[i] = float64(val)
		}
	case netcdf.INT:
		tmp := make([]int32, length)
		if err := v.ReadInt32s(tmp); err != nil {
			return nil, err
		}
		for i, val := range tmp {
			out[i] = float64(val)
		}
	case netcdf.SHORT:
		tmp := make([]int16, length)
		if err := v.ReadInt16s(tmp); err != nil {
			return nil, err
		}
		for i, val := range tmp {
			out[i] = float64(val)
		}
	case netcdf.INT64:
		tmp := make([]int64, length)
		if err := v.ReadInt64s(tmp); err != nil {
			return nil, err
		}
		for i, val := range tmp {
			out[i] = float64(val)
		}
	default:
		return nil, fmt.Errorf("unsupported var type: %v", t)
	}
	return out, nil
}
