package filter

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"gonum.org/v1/gonum/floats"

	"go.ngs.io/tides-analysis/internal/domain"
	"go.ngs.io/tides-analysis/internal/fit"
)

var epoch = time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)

func series(n int, step time.Duration, f func(h float64) float64) domain.TimeSeries {
	s := domain.TimeSeries{Times: make([]time.Time, n), Values: make([]float64, n)}
	for i := 0; i < n; i++ {
		s.Times[i] = epoch.Add(time.Duration(i) * step)
		s.Values[i] = f(s.Times[i].Sub(epoch).Hours())
	}
	return s
}

func TestKernelsSumToOne(t *testing.T) {
	kernels := map[string][]float64{
		"doodson": doodsonKernel(),
		"usgs":    usgsKernel(),
		"boxcar":  boxcarKernel(),
	}
	taps := map[string]int{"doodson": 39, "usgs": 67, "boxcar": 25}
	for name, k := range kernels {
		if len(k) != taps[name] {
			t.Errorf("%s: expected %d taps, got %d", name, taps[name], len(k))
		}
		if sum := floats.Sum(k); math.Abs(sum-1) > 1e-12 {
			t.Errorf("%s: coefficients sum to %v", name, sum)
		}
		for i := range k {
			if math.Abs(k[i]-k[len(k)-1-i]) > 1e-15 {
				t.Errorf("%s: kernel not symmetric at %d", name, i)
				break
			}
		}
	}
}

func TestFIRConstantInput(t *testing.T) {
	const level = 2.5
	s := series(200, time.Hour, func(float64) float64 { return level })
	ctx := context.Background()

	for _, name := range []string{Doodson, USGS, Boxcar} {
		out, err := Apply(ctx, name, s, Options{})
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if len(out) != s.Len() {
			t.Fatalf("%s: expected %d values, got %d", name, s.Len(), len(out))
		}
		// Without padding only the interior sees a full kernel.
		for i := 34; i < len(out)-34; i++ {
			if math.Abs(out[i]-level) > 1e-12 {
				t.Fatalf("%s: out[%d] = %v, expected %v", name, i, out[i], level)
			}
		}

		padded, err := Apply(ctx, name, s, Options{Padding: PadReflect})
		if err != nil {
			t.Fatalf("%s reflect: %v", name, err)
		}
		for i, v := range padded {
			if math.Abs(v-level) > 1e-12 {
				t.Fatalf("%s reflect: out[%d] = %v, expected %v", name, i, v, level)
			}
		}
	}
}

func TestUSGSKernelWeights(t *testing.T) {
	k := usgsKernel()
	centre := len(k) / 2
	if centre != len(usgsHalfKernel)-1 {
		t.Fatalf("expected centre tap %d, got %d", len(usgsHalfKernel)-1, centre)
	}
	tests := []struct {
		offset int
		weight float64
	}{
		{0, 0.06215},
		{1, 0.06174},
		{5, 0.05576},
		{16, 0.00213},
		{17, -0.00097},
		{23, -0.00887},
		{33, -0.00027},
	}
	for _, tt := range tests {
		for _, i := range []int{centre - tt.offset, centre + tt.offset} {
			if math.Abs(k[i]-tt.weight) > 1e-4 {
				t.Errorf("tap %d: got %v, expected %v", i, k[i], tt.weight)
			}
		}
	}
	for i, v := range usgsHalfKernel {
		if math.Abs(k[i]/v-1) > 1e-4 {
			t.Errorf("tap %d: got %v, table %v", i, k[i], v)
		}
	}
}

func TestFIRRejectsNonHourly(t *testing.T) {
	s := series(300, 10*time.Minute, func(h float64) float64 { return math.Sin(h) })

	_, err := Apply(context.Background(), Doodson, s, Options{})
	var inErr *domain.InputError
	if !errors.As(err, &inErr) {
		t.Fatalf("expected InputError, got %v", err)
	}

	if _, err := Apply(context.Background(), Boxcar, s, Options{}); err != nil {
		t.Errorf("boxcar should accept any interval: %v", err)
	}
}

func TestApply_Errors(t *testing.T) {
	ctx := context.Background()
	s := series(48, time.Hour, func(float64) float64 { return 1 })

	var cfgErr *domain.ConfigurationError
	if _, err := Apply(ctx, "lanczos", s, Options{}); !errors.As(err, &cfgErr) {
		t.Errorf("unknown filter: expected ConfigurationError, got %v", err)
	}
	if _, err := Apply(ctx, Boxcar, s, Options{Padding: "mirror"}); !errors.As(err, &cfgErr) {
		t.Errorf("unknown padding: expected ConfigurationError, got %v", err)
	}

	irregular := s.Clone()
	irregular.Times = append(irregular.Times[:10:10], irregular.Times[11:]...)
	irregular.Values = append(irregular.Values[:10:10], irregular.Values[11:]...)
	var inErr *domain.InputError
	if _, err := Apply(ctx, Boxcar, irregular, Options{}); !errors.As(err, &inErr) {
		t.Errorf("irregular sampling: expected InputError, got %v", err)
	}
}

func TestLookup(t *testing.T) {
	got, err := Lookup(" Kalman ")
	if err != nil || got != Kalman {
		t.Errorf("expected %q, got %q (%v)", Kalman, got, err)
	}
	if len(Names()) != len(registry) {
		t.Errorf("Names() = %v", Names())
	}
}

func TestPaddingIndices(t *testing.T) {
	tests := []struct {
		i, size        int
		reflect, wrap int
	}{
		{-1, 5, 1, 4},
		{-2, 5, 2, 3},
		{5, 5, 3, 0},
		{6, 5, 2, 1},
		{-1, 1, 0, 0},
	}
	for _, tt := range tests {
		if got := reflectIndex(tt.i, tt.size); got != tt.reflect {
			t.Errorf("reflectIndex(%d, %d) = %d, expected %d", tt.i, tt.size, got, tt.reflect)
		}
		if got := wrapIndex(tt.i, tt.size); got != tt.wrap {
			t.Errorf("wrapIndex(%d, %d) = %d, expected %d", tt.i, tt.size, got, tt.wrap)
		}
	}
}

func TestPad_Constants(t *testing.T) {
	s := &sampled{
		series:   series(5, time.Hour, func(h float64) float64 { return []float64{3, 1, 4, 1, 5}[int(h)] }),
		interval: time.Hour,
	}
	tests := []struct {
		policy   Padding
		expected float64
	}{
		{PadMinimum, 1},
		{PadMaximum, 5},
		{PadMean, 2.8},
		{PadMedian, 3},
	}
	for _, tt := range tests {
		out, off, err := pad(context.Background(), s, tt.policy, 2, Options{})
		if err != nil {
			t.Fatalf("%s: %v", tt.policy, err)
		}
		if off != 2 || len(out) != 9 {
			t.Fatalf("%s: offset %d length %d", tt.policy, off, len(out))
		}
		for _, i := range []int{0, 1, 7, 8} {
			if math.Abs(out[i]-tt.expected) > 1e-12 {
				t.Errorf("%s: out[%d] = %v, expected %v", tt.policy, i, out[i], tt.expected)
			}
		}
	}

	out, _, _ := pad(context.Background(), s, PadReflect, 2, Options{})
	want := []float64{4, 1, 3, 1, 4, 1, 5, 1, 4}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("reflect: got %v, expected %v", out, want)
			break
		}
	}
}

func TestParsePadding(t *testing.T) {
	for _, name := range []string{"", "reflect", "WRAP", " tide "} {
		if _, err := ParsePadding(name); err != nil {
			t.Errorf("%q: %v", name, err)
		}
	}
	var cfgErr *domain.ConfigurationError
	if _, err := ParsePadding("zero"); !errors.As(err, &cfgErr) {
		t.Errorf("expected ConfigurationError, got %v", err)
	}
}

func TestTransform_RemovesTidalBand(t *testing.T) {
	// 720 hours hold whole cycles of both terms.
	s := series(720, time.Hour, func(h float64) float64 {
		return 1 + 0.3*math.Cos(2*math.Pi*h/360) + 0.8*math.Cos(2*math.Pi*h/12)
	})
	out, err := Apply(context.Background(), Transform, s, Options{})
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range out {
		h := float64(i)
		want := 1 + 0.3*math.Cos(2*math.Pi*h/360)
		if math.Abs(v-want) > 1e-9 {
			t.Fatalf("out[%d] = %v, expected %v", i, v, want)
		}
	}

	var cfgErr *domain.ConfigurationError
	_, err = Apply(context.Background(), Transform, s, Options{PassPeriodHours: 20, StopPeriodHours: 30})
	if !errors.As(err, &cfgErr) {
		t.Errorf("expected ConfigurationError, got %v", err)
	}
}

func TestRampWeight(t *testing.T) {
	pass, stop := 1.0/40, 1.0/30
	if w := rampWeight(0, pass, stop); w != 1 {
		t.Errorf("dc: %v", w)
	}
	if w := rampWeight(1.0/12, pass, stop); w != 0 {
		t.Errorf("semidiurnal: %v", w)
	}
	mid := (pass + stop) / 2
	if w := rampWeight(mid, pass, stop); math.Abs(w-0.5) > 1e-12 {
		t.Errorf("midpoint: %v", w)
	}
}

func TestKalman(t *testing.T) {
	ctx := context.Background()

	flat := series(50, time.Hour, func(float64) float64 { return 0.7 })
	out, err := Apply(ctx, Kalman, flat, Options{})
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range out {
		if v != 0.7 {
			t.Fatalf("out[%d] = %v", i, v)
		}
	}

	s := series(480, time.Hour, func(h float64) float64 { return 0.8 * math.Cos(2*math.Pi*h/12.42) })
	out, err = Apply(ctx, Kalman, s, Options{})
	if err != nil {
		t.Fatal(err)
	}
	for i := 160; i < 320; i++ {
		if math.Abs(out[i]) > 0.1 {
			t.Fatalf("semidiurnal signal not damped: out[%d] = %v", i, out[i])
		}
	}
}

func TestSmoothKalman_TracksStep(t *testing.T) {
	z := make([]float64, 200)
	for i := 100; i < len(z); i++ {
		z[i] = 1
	}
	out := smoothKalman(z, 0.1, 0.01)
	if math.Abs(out[10]) > 0.01 || math.Abs(out[190]-1) > 0.01 {
		t.Errorf("expected the smoother to follow the levels, got %v and %v", out[10], out[190])
	}
}

func TestDemodulate(t *testing.T) {
	const (
		amp   = 1.0
		phase = 40.0
	)
	params := []domain.ConstituentParam{
		{Name: "M2", AmplitudeM: amp, PhaseDeg: phase},
		{Name: "K1", AmplitudeM: 0.3, PhaseDeg: 120},
	}
	if err := domain.AttachEquilibrium(params, epoch, nil); err != nil {
		t.Fatal(err)
	}
	res := &fit.Result{Reference: epoch, Z0: 0.5, Constituents: params}

	s := series(240, time.Hour, func(float64) float64 { return 0 })
	values, err := res.Model(nil).Predict(s.Times)
	if err != nil {
		t.Fatal(err)
	}
	s.Values = values

	env, err := Demodulate(context.Background(), s, Options{Constituent: "m2", Fit: res})
	if err != nil {
		t.Fatal(err)
	}
	if env.Constituent != "M2" {
		t.Errorf("expected canonical name, got %q", env.Constituent)
	}
	for i := 13; i < s.Len()-13; i++ {
		if math.Abs(env.Amplitude[i]-amp) > 0.02 {
			t.Fatalf("amplitude[%d] = %v, expected %v", i, env.Amplitude[i], amp)
		}
		d := math.Abs(env.Phase[i] - phase)
		if d > 180 {
			d = 360 - d
		}
		if d > 1.5 {
			t.Fatalf("phase[%d] = %v, expected %v", i, env.Phase[i], phase)
		}
	}

	var cfgErr *domain.ConfigurationError
	if _, err := Demodulate(context.Background(), s, Options{Fit: res}); !errors.As(err, &cfgErr) {
		t.Errorf("missing constituent: expected ConfigurationError, got %v", err)
	}
	if _, err := Demodulate(context.Background(), s, Options{Constituent: "S2", Fit: res}); !errors.As(err, &cfgErr) {
		t.Errorf("unfitted constituent: expected ConfigurationError, got %v", err)
	}
}

func TestApply_Padding(t *testing.T) {
	ramp := series(30, time.Hour, func(h float64) float64 { return h })
	tests := []struct {
		padding     Padding
		first, last float64
	}{
		{PadReflect, 6.24, 22.76},
		{PadWrap, 14.4, 14.6},
		{PadMinimum, 3.12, 11.96},
		{PadMaximum, 17.04, 25.88},
	}
	for _, tt := range tests {
		out, err := Apply(context.Background(), Boxcar, ramp, Options{Padding: tt.padding})
		if err != nil {
			t.Fatalf("%s: %v", tt.padding, err)
		}
		if math.Abs(out[0]-tt.first) > 1e-12 || math.Abs(out[len(out)-1]-tt.last) > 1e-12 {
			t.Errorf("%s: got %v and %v, expected %v and %v", tt.padding, out[0], out[len(out)-1], tt.first, tt.last)
		}
		if math.Abs(out[15]-15) > 1e-12 {
			t.Errorf("%s: interior out[15] = %v", tt.padding, out[15])
		}
	}
}

// tideModel returns a two-constituent fit referenced at epoch.
func tideModel(t *testing.T) *fit.Result {
	t.Helper()
	params := []domain.ConstituentParam{
		{Name: "M2", AmplitudeM: 0.9, PhaseDeg: 75},
		{Name: "K1", AmplitudeM: 0.3, PhaseDeg: 200},
	}
	if err := domain.AttachEquilibrium(params, epoch, nil); err != nil {
		t.Fatal(err)
	}
	return &fit.Result{Reference: epoch, Z0: 1.5, Constituents: params}
}

func predicted(t *testing.T, res *fit.Result, from time.Time, n int) domain.TimeSeries {
	t.Helper()
	s := domain.TimeSeries{Times: make([]time.Time, n)}
	for i := range s.Times {
		s.Times[i] = from.Add(time.Duration(i) * time.Hour)
	}
	values, err := res.Model(nil).Predict(s.Times)
	if err != nil {
		t.Fatal(err)
	}
	s.Values = values
	return s
}

func TestPad_Tide(t *testing.T) {
	const n = 5
	res := tideModel(t)
	long := predicted(t, res, epoch.Add(-n*time.Hour), 400+2*n)
	inner := &sampled{
		series:   domain.TimeSeries{Times: long.Times[n : n+400], Values: long.Values[n : n+400]},
		interval: time.Hour,
	}

	tests := []struct {
		name string
		opts Options
		tol  float64
	}{
		{"given fit", Options{Fit: res}, 1e-9},
		{"fitted from the record", Options{}, 1e-3},
	}
	for _, tt := range tests {
		out, off, err := pad(context.Background(), inner, PadTide, n, tt.opts)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if off != n || len(out) != len(long.Values) {
			t.Fatalf("%s: offset %d length %d", tt.name, off, len(out))
		}
		for i := range out {
			if math.Abs(out[i]-long.Values[i]) > tt.tol {
				t.Errorf("%s: out[%d] = %v, continuation %v", tt.name, i, out[i], long.Values[i])
			}
		}
	}

	short := &sampled{series: predicted(t, res, epoch, 10), interval: time.Hour}
	var inErr *domain.InputError
	if _, _, err := pad(context.Background(), short, PadTide, n, Options{}); !errors.As(err, &inErr) {
		t.Errorf("short record: expected InputError, got %v", err)
	}
}

func TestFIRTidePadding(t *testing.T) {
	const margin = 40
	res := tideModel(t)
	long := predicted(t, res, epoch.Add(-margin*time.Hour), 300+2*margin)
	inner := domain.TimeSeries{Times: long.Times[margin : margin+300], Values: long.Values[margin : margin+300]}

	for _, name := range []string{Doodson, USGS, Boxcar} {
		// The unpadded long record sees a full kernel over the inner span.
		want, err := Apply(context.Background(), name, long, Options{})
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		got, err := Apply(context.Background(), name, inner, Options{Padding: PadTide, Fit: res})
		if err != nil {
			t.Fatalf("%s tide: %v", name, err)
		}
		for i, v := range got {
			if math.Abs(v-want[margin+i]) > 1e-9 {
				t.Fatalf("%s: out[%d] = %v, expected %v", name, i, v, want[margin+i])
			}
		}
	}
}
