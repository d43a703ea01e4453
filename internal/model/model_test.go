package model

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/san-kum/decayfit/internal/params"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

func truth() *params.Parameters {
	return params.New().
		MustAdd("a1", 3).
		MustAdd("a2", -5).
		MustAdd("t1", 2).
		MustAdd("t2", 10)
}

func TestDoubleExp_Eval(t *testing.T) {
	m := NewDoubleExp()
	x := []float64{1, 5.5, 10}

	got := m.Eval(truth(), x)
	for i, xi := range x {
		want := 3*math.Exp(-xi/2) - 5*math.Exp(-(xi-0.1)/10)
		if math.Abs(got[i]-want) > 1e-12 {
			t.Errorf("x=%g: got %g, want %g", xi, got[i], want)
		}
	}
}

func TestResidual_NoiselessRoundTrip(t *testing.T) {
	m := NewDoubleExp()
	x := Linspace(1, 10, 250)
	d := Synthesize(m, truth(), x, 0, nil)

	r := Residual(m, truth(), d)
	if len(r) != 250 {
		t.Fatalf("expected 250 residuals, got %d", len(r))
	}
	if n := floats.Norm(r, math.Inf(1)); n > 1e-12 {
		t.Errorf("noiseless residual not zero: max |r| = %g", n)
	}
}

func TestDoubleExp_ZeroTimescale(t *testing.T) {
	m := NewDoubleExp()
	p := truth()
	_ = p.Set("t1", 0)

	y := m.Eval(p, []float64{0, 1})
	if !math.IsNaN(y[0]) {
		t.Errorf("expected NaN at x=0 with t1=0, got %g", y[0])
	}

	_ = p.Set("t1", -1e-3)
	y = m.Eval(p, []float64{1})
	if !math.IsInf(y[0], 0) {
		t.Errorf("expected Inf for tiny negative timescale, got %g", y[0])
	}
}

func TestLinspace(t *testing.T) {
	tests := []struct {
		lo, hi float64
		n      int
	}{
		{1, 10, 250},
		{0, 1, 2},
		{-3, 3, 7},
	}

	for _, tt := range tests {
		x := Linspace(tt.lo, tt.hi, tt.n)
		if len(x) != tt.n {
			t.Fatalf("expected %d points, got %d", tt.n, len(x))
		}
		if x[0] != tt.lo || x[tt.n-1] != tt.hi {
			t.Errorf("endpoints %g, %g; want %g, %g", x[0], x[tt.n-1], tt.lo, tt.hi)
		}
		for i := 1; i < len(x); i++ {
			if x[i] <= x[i-1] {
				t.Fatalf("not increasing at %d", i)
			}
		}
	}

	if Linspace(0, 1, 0) != nil {
		t.Error("expected nil for n=0")
	}
}

func TestSynthesize_Seeded(t *testing.T) {
	m := NewDoubleExp()
	x := Linspace(1, 10, 250)

	d1 := Synthesize(m, truth(), x, 0.1, rand.New(rand.NewPCG(7, 7)))
	d2 := Synthesize(m, truth(), x, 0.1, rand.New(rand.NewPCG(7, 7)))
	if !floats.Equal(d1.Y, d2.Y) {
		t.Error("same seed produced different data")
	}

	r := Residual(m, truth(), d1)
	sd := stat.StdDev(r, nil)
	if sd < 0.08 || sd > 0.12 {
		t.Errorf("noise scale %g, want about 0.1", sd)
	}

	x[0] = 99
	if d1.X[0] == 99 {
		t.Error("dataset aliases the caller's grid")
	}
}

func TestSingleExp(t *testing.T) {
	p := params.New().MustAdd("a", 2).MustAdd("t", 4)
	y := NewSingleExp().Eval(p, []float64{0, 4})
	if y[0] != 2 || math.Abs(y[1]-2*math.Exp(-1)) > 1e-12 {
		t.Errorf("unexpected values %v", y)
	}
}
