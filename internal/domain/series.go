package domain

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// TimeSeries is an elevation record: timestamps in strictly increasing order
// with one value per timestamp.
type TimeSeries struct {
	Times  []time.Time
	Values []float64
}

// Len returns the number of samples.
func (s TimeSeries) Len() int { return len(s.Times) }

// Validate checks lengths, ordering and finiteness.
func (s TimeSeries) Validate() error {
	if len(s.Times) != len(s.Values) {
		return NewInputError("series", "%d timestamps but %d values", len(s.Times), len(s.Values))
	}
	if len(s.Times) == 0 {
		return NewInputError("series", "empty series")
	}
	for i := 1; i < len(s.Times); i++ {
		if !s.Times[i].After(s.Times[i-1]) {
			return NewInputError("series", "timestamps not strictly increasing at index %d (%s)",
				i, s.Times[i].Format(time.RFC3339))
		}
	}
	for i, v := range s.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return NewInputError("series", "non-finite value at index %d", i)
		}
	}
	return nil
}

// SpanHours returns the time between the first and last samples in hours.
func (s TimeSeries) SpanHours() float64 {
	if len(s.Times) < 2 {
		return 0
	}
	return s.Times[len(s.Times)-1].Sub(s.Times[0]).Hours()
}

// HoursSince returns the offset of every timestamp from ref, in hours.
func (s TimeSeries) HoursSince(ref time.Time) []float64 {
	return HoursSince(s.Times, ref)
}

// HoursSince returns the offset of every timestamp from ref, in hours.
func HoursSince(times []time.Time, ref time.Time) []float64 {
	out := make([]float64, len(times))
	for i, t := range times {
		out[i] = t.Sub(ref).Hours()
	}
	return out
}

// NominalInterval returns the median spacing between consecutive samples.
func (s TimeSeries) NominalInterval() time.Duration {
	return NominalInterval(s.Times)
}

// NominalInterval returns the median spacing between consecutive timestamps.
func NominalInterval(times []time.Time) time.Duration {
	if len(times) < 2 {
		return 0
	}
	diffs := make([]float64, len(times)-1)
	for i := 1; i < len(times); i++ {
		diffs[i-1] = float64(times[i].Sub(times[i-1]))
	}
	sort.Float64s(diffs)
	return time.Duration(math.Round(stat.Quantile(0.5, stat.Empirical, diffs, nil)))
}

// Clone returns a deep copy.
func (s TimeSeries) Clone() TimeSeries {
	out := TimeSeries{
		Times:  make([]time.Time, len(s.Times)),
		Values: make([]float64, len(s.Values)),
	}
	copy(out.Times, s.Times)
	copy(out.Values, s.Values)
	return out
}

// RemoveExtremes drops samples at or beyond k population standard deviations
// from the mean.
func (s TimeSeries) RemoveExtremes(k float64) TimeSeries {
	mean := stat.Mean(s.Values, nil)
	std := math.Sqrt(stat.PopVariance(s.Values, nil))
	out := TimeSeries{}
	for i, v := range s.Values {
		if std > 0 && math.Abs(v-mean) >= k*std {
			continue
		}
		out.Times = append(out.Times, s.Times[i])
		out.Values = append(out.Values, v)
	}
	return out
}
