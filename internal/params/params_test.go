package params

import (
	"errors"
	"math"
	"testing"
)

func TestAdd_Defaults(t *testing.T) {
	ps := New()
	if err := ps.Add("a1", 4); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	p, ok := ps.Get("a1")
	if !ok {
		t.Fatal("a1 not found")
	}
	if !math.IsInf(p.Min, -1) || !math.IsInf(p.Max, 1) {
		t.Errorf("expected unbounded, got [%g, %g]", p.Min, p.Max)
	}
	if !p.Vary {
		t.Error("expected parameter to vary by default")
	}
}

func TestAdd_Errors(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		opts  []Option
		want  error
	}{
		{"inverted bounds", 1, []Option{WithBounds(2, 1)}, ErrInvalidBounds},
		{"nan bound", 1, []Option{WithMin(math.NaN())}, ErrInvalidBounds},
		{"below min", 0, []Option{WithMin(0.001)}, ErrValueOutOfBounds},
		{"above max", 3, []Option{WithBounds(0.001, 2)}, ErrValueOutOfBounds},
		{"nan value", math.NaN(), nil, ErrValueOutOfBounds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New().Add("p", tt.value, tt.opts...)
			if !errors.Is(err, tt.want) {
				t.Errorf("Add() error = %v, want %v", err, tt.want)
			}
		})
	}

	ps := New().MustAdd("p", 1)
	if err := ps.Add("p", 2); !errors.Is(err, ErrDuplicateParam) {
		t.Errorf("expected duplicate error, got %v", err)
	}
}

func TestFreeValues(t *testing.T) {
	ps := New().
		MustAdd("a1", 4).
		MustAdd("a2", 4, Fixed()).
		MustAdd("t1", 3, WithMin(0))

	free := ps.Free()
	if len(free) != 2 || free[0] != "a1" || free[1] != "t1" {
		t.Fatalf("unexpected free names %v", free)
	}

	next, err := ps.WithFreeValues([]float64{1, 2})
	if err != nil {
		t.Fatalf("WithFreeValues failed: %v", err)
	}
	if next.Value("a1") != 1 || next.Value("t1") != 2 || next.Value("a2") != 4 {
		t.Errorf("unexpected values %v", next.ValueMap())
	}
	if ps.Value("a1") != 4 {
		t.Error("WithFreeValues mutated the receiver")
	}

	if _, err := ps.WithFreeValues([]float64{1}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected dimension mismatch, got %v", err)
	}
	if _, err := ps.WithFreeValues([]float64{1, 2, 3}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected dimension mismatch, got %v", err)
	}
}

func TestInBounds(t *testing.T) {
	ps := New().MustAdd("noise", 0.1, WithBounds(0.001, 2))
	if !ps.InBounds() {
		t.Fatal("expected in bounds")
	}

	for _, v := range []float64{0.0005, 2.5, math.NaN()} {
		_ = ps.Set("noise", v)
		if ps.InBounds() {
			t.Errorf("expected %g out of bounds", v)
		}
	}

	_ = ps.Set("noise", 2)
	if !ps.InBounds() {
		t.Error("bounds are inclusive")
	}
}

func TestValue_Unknown(t *testing.T) {
	if v := New().Value("missing"); !math.IsNaN(v) {
		t.Errorf("expected NaN, got %g", v)
	}
	if err := New().Set("missing", 1); !errors.Is(err, ErrUnknownParam) {
		t.Errorf("expected unknown param error, got %v", err)
	}
}

func TestClone_Independent(t *testing.T) {
	ps := New().MustAdd("a1", 1)
	p, _ := ps.Get("a1")
	p.Correl = map[string]float64{"t1": 0.9}

	c := ps.Clone()
	cp, _ := c.Get("a1")
	cp.Value = 5
	cp.Correl["t1"] = 0

	if ps.Value("a1") != 1 || p.Correl["t1"] != 0.9 {
		t.Error("clone shares state with original")
	}
}

func TestTransform_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		p    Parameter
		vals []float64
	}{
		{"unbounded", Parameter{Min: math.Inf(-1), Max: math.Inf(1)}, []float64{-5, 0, 3.2}},
		{"lower", Parameter{Min: 0.001, Max: math.Inf(1)}, []float64{0.001, 0.5, 20}},
		{"upper", Parameter{Min: math.Inf(-1), Max: 2}, []float64{-10, 0, 2}},
		{"both", Parameter{Min: 0.001, Max: 2}, []float64{0.001, 0.1, 1.5, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, v := range tt.vals {
				got := FromInternal(&tt.p, ToInternal(&tt.p, v))
				if math.Abs(got-v) > 1e-9 {
					t.Errorf("round trip %g -> %g", v, got)
				}
			}
		})
	}
}

func TestFromInternal_StaysInBounds(t *testing.T) {
	p := Parameter{Min: -1, Max: 3}
	for _, u := range []float64{-100, -1, 0, 0.7, 42} {
		if v := FromInternal(&p, u); !p.Contains(v) {
			t.Errorf("FromInternal(%g) = %g escaped bounds", u, v)
		}
	}

	lower := Parameter{Min: 0, Max: math.Inf(1)}
	for _, u := range []float64{-30, 0, 30} {
		if v := FromInternal(&lower, u); v < 0 {
			t.Errorf("FromInternal(%g) = %g below min", u, v)
		}
	}
}
