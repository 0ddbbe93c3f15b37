package gapfill

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"go.ngs.io/tides-analysis/internal/domain"
)

// record builds an hourly M2+K1 series with a deterministic non-tidal wobble,
// dropping the listed indices.
func record(t *testing.T, n int, drop ...int) domain.TimeSeries {
	t.Helper()
	start := time.Date(2022, 9, 1, 0, 0, 0, 0, time.UTC)
	skip := make(map[int]bool, len(drop))
	for _, d := range drop {
		skip[d] = true
	}
	var s domain.TimeSeries
	for i := 0; i < n; i++ {
		if skip[i] {
			continue
		}
		h := float64(i)
		v := 0.4 + 1.1*math.Cos(domain.Deg2Rad(28.9841042*h-40)) +
			0.3*math.Cos(domain.Deg2Rad(15.0410686*h-120)) +
			0.05*math.Sin(0.9*h)
		s.Times = append(s.Times, start.Add(time.Duration(i)*time.Hour))
		s.Values = append(s.Values, v)
	}
	return s
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in       string
		expected Policy
		wantErr  bool
	}{
		{"fail", PolicyFail, false},
		{"FILL", PolicyFill, false},
		{" ignore ", PolicyIgnore, false},
		{"", PolicyFail, false},
		{"interpolate", "", true},
	}
	for _, tt := range tests {
		got, err := ParsePolicy(tt.in)
		if tt.wantErr {
			var cfgErr *domain.ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Errorf("%q: expected ConfigurationError, got %v", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.expected {
			t.Errorf("%q: expected %q, got %q (%v)", tt.in, tt.expected, got, err)
		}
	}
}

func TestFill_FailPolicy(t *testing.T) {
	ctx := context.Background()

	if _, err := Fill(ctx, record(t, 30), PolicyFail, Options{}); err != nil {
		t.Fatalf("complete record: unexpected error %v", err)
	}

	_, err := Fill(ctx, record(t, 30, 12), PolicyFail, Options{})
	var inErr *domain.InputError
	if !errors.As(err, &inErr) {
		t.Fatalf("gapped record: expected InputError, got %v", err)
	}
}

func TestFill_DefaultPolicyRejectsGaps(t *testing.T) {
	policy, err := ParsePolicy("")
	if err != nil {
		t.Fatal(err)
	}
	_, err = Fill(context.Background(), record(t, 30, 12), policy, Options{})
	var inErr *domain.InputError
	if !errors.As(err, &inErr) {
		t.Fatalf("expected InputError, got %v", err)
	}
}

func TestFill_IgnorePolicy(t *testing.T) {
	in := record(t, 30, 5, 6)
	out, err := Fill(context.Background(), in, PolicyIgnore, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Len() != in.Len() {
		t.Errorf("expected %d samples, got %d", in.Len(), out.Len())
	}
}

func TestFill_UnknownPolicy(t *testing.T) {
	_, err := Fill(context.Background(), record(t, 30), Policy("guess"), Options{})
	var cfgErr *domain.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestFillDetailed_SingleMissingSample(t *testing.T) {
	const missing = 20
	in := record(t, 48, missing)

	res, err := FillDetailed(context.Background(), in, Options{Iavg: 1})
	if err != nil {
		t.Fatalf("FillDetailed: %v", err)
	}
	if res.Series.Len() != 48 {
		t.Fatalf("expected 48 grid points, got %d", res.Series.Len())
	}
	if res.Interval != time.Hour {
		t.Errorf("expected hourly interval, got %v", res.Interval)
	}
	if res.Gaps != 1 || res.Observed[missing] {
		t.Fatalf("expected exactly one gap at %d: gaps=%d", missing, res.Gaps)
	}

	// Observed points are reproduced.
	for k, tm := range in.Times {
		idx := int(tm.Sub(res.Series.Times[0]) / time.Hour)
		if math.Abs(res.Series.Values[idx]-in.Values[k]) > 1e-9 {
			t.Errorf("observed point %d changed: %.10f -> %.10f", idx, in.Values[k], res.Series.Values[idx])
		}
	}

	// The residual in the gap is the two-sided linear interpolation.
	expected := (res.Residual[missing-1] + res.Residual[missing+1]) / 2
	got := res.Series.Values[missing] - res.Synthetic[missing]
	if math.Abs(got-expected) > 1e-9 {
		t.Errorf("gap residual: expected %.10f, got %.10f", expected, got)
	}
}

func TestFillDetailed_WindowAverage(t *testing.T) {
	// Gap covering 30..33 with three samples averaged on each side.
	in := record(t, 60, 30, 31, 32, 33)
	res, err := FillDetailed(context.Background(), in, Options{Iavg: 3})
	if err != nil {
		t.Fatalf("FillDetailed: %v", err)
	}

	r := res.Residual
	xb, vb := 28.0, (r[27]+r[28]+r[29])/3
	xa, va := 35.0, (r[34]+r[35]+r[36])/3
	for i := 30; i <= 33; i++ {
		expected := vb + (va-vb)*(float64(i)-xb)/(xa-xb)
		if math.Abs(r[i]-expected) > 1e-9 {
			t.Errorf("grid %d: expected %.10f, got %.10f", i, expected, r[i])
		}
	}
}

func TestFillDetailed_TooShort(t *testing.T) {
	_, err := FillDetailed(context.Background(), record(t, 10, 4), Options{})
	var inErr *domain.InputError
	if !errors.As(err, &inErr) {
		t.Fatalf("expected InputError, got %v", err)
	}
}
