package filter

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"go.ngs.io/tides-analysis/internal/domain"
)

// Padding selects how a record is extended before filtering.
type Padding string

const (
	PadNone    Padding = "none"
	PadReflect Padding = "reflect"
	PadWrap    Padding = "wrap"
	PadMinimum Padding = "minimum"
	PadMaximum Padding = "maximum"
	PadMean    Padding = "mean"
	PadMedian  Padding = "median"
	PadTide    Padding = "tide"
)

var paddings = []Padding{PadNone, PadReflect, PadWrap, PadMinimum, PadMaximum, PadMean, PadMedian, PadTide}

// ParsePadding maps a name to a Padding.
func ParsePadding(name string) (Padding, error) {
	p := Padding(strings.ToLower(strings.TrimSpace(name)))
	if p == "" {
		return PadNone, nil
	}
	for _, known := range paddings {
		if p == known {
			return p, nil
		}
	}
	names := make([]string, len(paddings))
	for i, k := range paddings {
		names[i] = string(k)
	}
	return "", domain.NewConfigurationError("padding", name, "expected one of %s", strings.Join(names, ", "))
}

// pad extends the record by n samples at each end and returns the extended
// values with the offset of the first original sample.
func pad(ctx context.Context, s *sampled, policy Padding, n int, opts Options) ([]float64, int, error) {
	values := s.series.Values
	if policy == PadNone || n <= 0 {
		return values, 0, nil
	}
	size := len(values)
	out := make([]float64, size+2*n)
	copy(out[n:], values)

	fillConst := func(v float64) {
		for i := 0; i < n; i++ {
			out[i] = v
			out[n+size+i] = v
		}
	}

	switch policy {
	case PadReflect:
		for i := 0; i < n; i++ {
			out[n-1-i] = values[reflectIndex(-1-i, size)]
			out[n+size+i] = values[reflectIndex(size+i, size)]
		}
	case PadWrap:
		for i := 0; i < n; i++ {
			out[n-1-i] = values[wrapIndex(-1-i, size)]
			out[n+size+i] = values[wrapIndex(size+i, size)]
		}
	case PadMinimum:
		fillConst(floats.Min(values))
	case PadMaximum:
		fillConst(floats.Max(values))
	case PadMean:
		fillConst(stat.Mean(values, nil))
	case PadMedian:
		sorted := make([]float64, size)
		copy(sorted, values)
		sort.Float64s(sorted)
		fillConst(stat.Quantile(0.5, stat.Empirical, sorted, nil))
	case PadTide:
		res, err := s.model(ctx, opts)
		if err != nil {
			return nil, 0, fmt.Errorf("tide padding: %w", err)
		}
		times := make([]time.Time, 0, 2*n)
		first := s.series.Times[0]
		last := s.series.Times[size-1]
		for i := n; i >= 1; i-- {
			times = append(times, first.Add(-time.Duration(i)*s.interval))
		}
		for i := 1; i <= n; i++ {
			times = append(times, last.Add(time.Duration(i)*s.interval))
		}
		ext, err := res.Model(opts.Ephemeris).Predict(times)
		if err != nil {
			return nil, 0, fmt.Errorf("tide padding: %w", err)
		}
		copy(out[:n], ext[:n])
		copy(out[n+size:], ext[n:])
	default:
		return nil, 0, domain.NewConfigurationError("padding", string(policy), "unsupported")
	}
	return out, n, nil
}

// reflectIndex mirrors i about the end samples without repeating them.
func reflectIndex(i, size int) int {
	if size == 1 {
		return 0
	}
	period := 2 * (size - 1)
	i %= period
	if i < 0 {
		i += period
	}
	if i >= size {
		i = period - i
	}
	return i
}

func wrapIndex(i, size int) int {
	i %= size
	if i < 0 {
		i += size
	}
	return i
}
