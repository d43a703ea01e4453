package params

import "math"

// ToInternal maps a bounded value onto the unconstrained axis searched by
// the simplex. Two-sided bounds use an arcsin mapping, one-sided bounds a
// square-root mapping; unbounded values pass through.
func ToInternal(p *Parameter, v float64) float64 {
	lo, hi := math.IsInf(p.Min, -1), math.IsInf(p.Max, 1)
	switch {
	case lo && hi:
		return v
	case hi:
		d := v - p.Min + 1
		return math.Sqrt(math.Max(d*d-1, 0))
	case lo:
		d := p.Max - v + 1
		return math.Sqrt(math.Max(d*d-1, 0))
	default:
		s := 2*(v-p.Min)/(p.Max-p.Min) - 1
		return math.Asin(math.Max(-1, math.Min(1, s)))
	}
}

// FromInternal is the inverse of ToInternal. Any internal value maps to a
// value inside [Min, Max].
func FromInternal(p *Parameter, u float64) float64 {
	lo, hi := math.IsInf(p.Min, -1), math.IsInf(p.Max, 1)
	switch {
	case lo && hi:
		return u
	case hi:
		return p.Min - 1 + math.Sqrt(u*u+1)
	case lo:
		return p.Max + 1 - math.Sqrt(u*u+1)
	default:
		return p.Min + (math.Sin(u)+1)*(p.Max-p.Min)/2
	}
}

// FreeInternal returns the free values mapped through ToInternal.
func (ps *Parameters) FreeInternal() []float64 {
	out := make([]float64, 0, len(ps.order))
	for _, name := range ps.order {
		if p := ps.byName[name]; p.Vary {
			out = append(out, ToInternal(p, p.Value))
		}
	}
	return out
}

// WithFreeInternal returns a copy with the free parameters set from
// internal coordinates u.
func (ps *Parameters) WithFreeInternal(u []float64) (*Parameters, error) {
	out := ps.Clone()
	i := 0
	for _, name := range out.order {
		p := out.byName[name]
		if !p.Vary {
			continue
		}
		if i >= len(u) {
			return nil, ErrDimensionMismatch
		}
		p.Value = FromInternal(p, u[i])
		i++
	}
	if i != len(u) {
		return nil, ErrDimensionMismatch
	}
	return out, nil
}
