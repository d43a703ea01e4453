package analysis

import (
	"math"
	"math/rand/v2"
	"testing"
)

func TestNextPow2(t *testing.T) {
	tests := []struct{ in, want int }{{0, 1}, {1, 1}, {2, 2}, {3, 4}, {500, 512}, {1024, 1024}}
	for _, tt := range tests {
		if got := NextPow2(tt.in); got != tt.want {
			t.Errorf("NextPow2(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func ar1(n int, phi float64, seed uint64) []float64 {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	x := make([]float64, n)
	for i := 1; i < n; i++ {
		x[i] = phi*x[i-1] + rng.NormFloat64()
	}
	return x
}

func TestAutocorrelation(t *testing.T) {
	x := ar1(4096, 0.9, 1)
	acf := Autocorrelation(x)

	if math.Abs(acf[0]-1) > 1e-12 {
		t.Errorf("lag 0 = %g, want 1", acf[0])
	}
	if math.Abs(acf[1]-0.9) > 0.05 {
		t.Errorf("lag 1 = %g, want about 0.9", acf[1])
	}

	flat := Autocorrelation([]float64{2, 2, 2, 2})
	if !math.IsNaN(flat[0]) {
		t.Errorf("constant series should give NaN, got %g", flat[0])
	}
}

func TestIntegratedTime(t *testing.T) {
	// For AR(1), tau = (1+phi)/(1-phi).
	phi := 0.8
	series := make([][]float64, 16)
	for i := range series {
		series[i] = ar1(4000, phi, uint64(i+10))
	}

	tau := IntegratedTime(series, 5)
	want := (1 + phi) / (1 - phi)
	if math.Abs(tau-want) > 0.2*want {
		t.Errorf("tau = %g, want about %g", tau, want)
	}

	white := [][]float64{ar1(4000, 0, 99)}
	if tw := IntegratedTime(white, 5); tw > 1.5 {
		t.Errorf("white noise tau = %g, want about 1", tw)
	}

	if !math.IsNaN(IntegratedTime(nil, 5)) {
		t.Error("expected NaN for empty input")
	}
}
