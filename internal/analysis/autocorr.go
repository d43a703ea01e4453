package analysis

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"
)

// NextPow2 returns the smallest power of two >= n.
func NextPow2(n int) int {
	p := 1
	for p < n {
		p *= 2
	}
	return p
}

// Autocorrelation returns the autocorrelation of x at lags 0..len(x)-1,
// normalized so lag 0 is 1. A constant series yields NaN.
func Autocorrelation(x []float64) []float64 {
	n := len(x)
	if n == 0 {
		return nil
	}
	mean := stat.Mean(x, nil)

	m := NextPow2(2 * n)
	padded := make([]float64, m)
	for i, v := range x {
		padded[i] = v - mean
	}

	fft := fourier.NewFFT(m)
	coeff := fft.Coefficients(nil, padded)
	for i, v := range coeff {
		coeff[i] = complex(real(v)*real(v)+imag(v)*imag(v), 0)
	}
	acf := fft.Sequence(nil, coeff)

	out := make([]float64, n)
	norm := acf[0]
	for i := range out {
		out[i] = acf[i] / norm
	}
	return out
}

// IntegratedTime estimates the integrated autocorrelation time of a set of
// parallel series (one per walker). The autocorrelation functions are
// averaged first, then summed up to the smallest lag M with M >= c*tau(M).
func IntegratedTime(series [][]float64, c float64) float64 {
	if len(series) == 0 || len(series[0]) == 0 {
		return math.NaN()
	}
	n := len(series[0])

	f := make([]float64, n)
	for _, s := range series {
		acf := Autocorrelation(s)
		for i := 0; i < n && i < len(acf); i++ {
			f[i] += acf[i]
		}
	}
	for i := range f {
		f[i] /= float64(len(series))
	}
	if math.IsNaN(f[0]) {
		return math.NaN()
	}

	tau := 0.0
	cum := 0.0
	for m := 0; m < n; m++ {
		cum += f[m]
		tau = 2*cum - 1
		if float64(m) >= c*tau {
			return tau
		}
	}
	return tau
}
