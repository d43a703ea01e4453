// Package model holds the forward models fitted to decay data and the
// synthetic datasets they are tested against.
package model

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/decayfit/internal/params"
)

// Model maps a parameter set and an x-grid to predicted values.
type Model interface {
	Name() string
	ParamNames() []string
	Eval(p *params.Parameters, x []float64) []float64
}

// DoubleExp is a1*exp(-x/t1) + a2*exp(-(x-Shift)/t2).
//
// A zero timescale is not guarded: the division produces Inf or NaN and the
// caller's NaN policy decides what happens next.
type DoubleExp struct {
	Shift float64
}

func NewDoubleExp() *DoubleExp {
	return &DoubleExp{Shift: 0.1}
}

func (m *DoubleExp) Name() string { return "double_exp" }

func (m *DoubleExp) ParamNames() []string { return []string{"a1", "a2", "t1", "t2"} }

func (m *DoubleExp) Eval(p *params.Parameters, x []float64) []float64 {
	a1, a2 := p.Value("a1"), p.Value("a2")
	t1, t2 := p.Value("t1"), p.Value("t2")

	out := make([]float64, len(x))
	for i, xi := range x {
		out[i] = a1*math.Exp(-xi/t1) + a2*math.Exp(-(xi-m.Shift)/t2)
	}
	return out
}

// SingleExp is a*exp(-x/t).
type SingleExp struct{}

func NewSingleExp() *SingleExp { return &SingleExp{} }

func (m *SingleExp) Name() string { return "single_exp" }

func (m *SingleExp) ParamNames() []string { return []string{"a", "t"} }

func (m *SingleExp) Eval(p *params.Parameters, x []float64) []float64 {
	a, tau := p.Value("a"), p.Value("t")

	out := make([]float64, len(x))
	for i, xi := range x {
		out[i] = a * math.Exp(-xi/tau)
	}
	return out
}

// Residual returns model prediction minus observed data.
func Residual(m Model, p *params.Parameters, d Dataset) []float64 {
	pred := m.Eval(p, d.X)
	for i := range pred {
		pred[i] -= d.Y[i]
	}
	return pred
}

// Dataset is an x-grid with observations. Treat both slices as read-only.
type Dataset struct {
	X []float64
	Y []float64
}

func (d Dataset) Len() int { return len(d.X) }

// Linspace returns n evenly spaced points over [lo, hi], endpoints included.
func Linspace(lo, hi float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	if n == 1 {
		out[0] = lo
		return out
	}
	floats.Span(out, lo, hi)
	out[n-1] = hi
	return out
}

// Synthesize evaluates m at truth on x and adds N(0, sigma) noise drawn from rng.
func Synthesize(m Model, truth *params.Parameters, x []float64, sigma float64, rng *rand.Rand) Dataset {
	xs := make([]float64, len(x))
	copy(xs, x)

	y := m.Eval(truth, xs)
	if sigma > 0 {
		for i := range y {
			y[i] += sigma * rng.NormFloat64()
		}
	}
	return Dataset{X: xs, Y: y}
}
