package params

import (
	"fmt"
	"math"
)

type Parameter struct {
	Name  string
	Value float64
	Min   float64
	Max   float64
	Vary  bool

	// Stderr and Correl are filled in by posterior summaries.
	Stderr float64
	Correl map[string]float64
}

// Contains reports whether v lies inside [Min, Max].
func (p *Parameter) Contains(v float64) bool {
	return v >= p.Min && v <= p.Max
}

type Option func(*Parameter)

func WithBounds(min, max float64) Option {
	return func(p *Parameter) {
		p.Min = min
		p.Max = max
	}
}

func WithMin(min float64) Option {
	return func(p *Parameter) { p.Min = min }
}

func WithMax(max float64) Option {
	return func(p *Parameter) { p.Max = max }
}

func Fixed() Option {
	return func(p *Parameter) { p.Vary = false }
}

// Vary sets whether the parameter takes part in fitting and sampling.
func Vary(vary bool) Option {
	return func(p *Parameter) { p.Vary = vary }
}

type Parameters struct {
	order  []string
	byName map[string]*Parameter
}

func New() *Parameters {
	return &Parameters{byName: make(map[string]*Parameter)}
}

func (ps *Parameters) Add(name string, value float64, opts ...Option) error {
	if _, ok := ps.byName[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateParam, name)
	}

	p := &Parameter{
		Name:  name,
		Value: value,
		Min:   math.Inf(-1),
		Max:   math.Inf(1),
		Vary:  true,
	}
	for _, opt := range opts {
		opt(p)
	}

	if math.IsNaN(p.Min) || math.IsNaN(p.Max) || p.Min > p.Max {
		return fmt.Errorf("%w: %s [%g, %g]", ErrInvalidBounds, name, p.Min, p.Max)
	}
	if !p.Contains(p.Value) {
		return fmt.Errorf("%w: %s = %g not in [%g, %g]", ErrValueOutOfBounds, name, p.Value, p.Min, p.Max)
	}

	ps.order = append(ps.order, name)
	ps.byName[name] = p
	return nil
}

// MustAdd is Add for statically known parameter sets; it panics on error.
func (ps *Parameters) MustAdd(name string, value float64, opts ...Option) *Parameters {
	if err := ps.Add(name, value, opts...); err != nil {
		panic(err)
	}
	return ps
}

func (ps *Parameters) Get(name string) (*Parameter, bool) {
	p, ok := ps.byName[name]
	return p, ok
}

// Value returns the named value, or NaN if the name is unknown so that a
// misspelled parameter poisons the model output instead of silently reading 0.
func (ps *Parameters) Value(name string) float64 {
	p, ok := ps.byName[name]
	if !ok {
		return math.NaN()
	}
	return p.Value
}

func (ps *Parameters) Set(name string, value float64) error {
	p, ok := ps.byName[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownParam, name)
	}
	p.Value = value
	return nil
}

func (ps *Parameters) Len() int { return len(ps.order) }

func (ps *Parameters) Names() []string {
	out := make([]string, len(ps.order))
	copy(out, ps.order)
	return out
}

// Free returns the names of varying parameters in insertion order.
func (ps *Parameters) Free() []string {
	out := make([]string, 0, len(ps.order))
	for _, name := range ps.order {
		if ps.byName[name].Vary {
			out = append(out, name)
		}
	}
	return out
}

func (ps *Parameters) FreeValues() []float64 {
	out := make([]float64, 0, len(ps.order))
	for _, name := range ps.order {
		if p := ps.byName[name]; p.Vary {
			out = append(out, p.Value)
		}
	}
	return out
}

// FreeBounds returns the lower and upper bounds of the free parameters.
func (ps *Parameters) FreeBounds() (lo, hi []float64) {
	for _, name := range ps.order {
		if p := ps.byName[name]; p.Vary {
			lo = append(lo, p.Min)
			hi = append(hi, p.Max)
		}
	}
	return lo, hi
}

// WithFreeValues returns a copy with the free parameters set from v.
// Bounds are not checked here; see InBounds.
func (ps *Parameters) WithFreeValues(v []float64) (*Parameters, error) {
	out := ps.Clone()
	if err := out.SetFreeValues(v); err != nil {
		return nil, err
	}
	return out, nil
}

func (ps *Parameters) SetFreeValues(v []float64) error {
	i := 0
	for _, name := range ps.order {
		p := ps.byName[name]
		if !p.Vary {
			continue
		}
		if i >= len(v) {
			return fmt.Errorf("%w: got %d values", ErrDimensionMismatch, len(v))
		}
		p.Value = v[i]
		i++
	}
	if i != len(v) {
		return fmt.Errorf("%w: got %d values for %d free parameters", ErrDimensionMismatch, len(v), i)
	}
	return nil
}

// InBounds reports whether every parameter value lies inside its bounds.
// NaN values are out of bounds.
func (ps *Parameters) InBounds() bool {
	for _, p := range ps.byName {
		if !p.Contains(p.Value) {
			return false
		}
	}
	return true
}

func (ps *Parameters) ValueMap() map[string]float64 {
	out := make(map[string]float64, len(ps.order))
	for name, p := range ps.byName {
		out[name] = p.Value
	}
	return out
}

func (ps *Parameters) Clone() *Parameters {
	out := &Parameters{
		order:  make([]string, len(ps.order)),
		byName: make(map[string]*Parameter, len(ps.byName)),
	}
	copy(out.order, ps.order)
	for name, p := range ps.byName {
		c := *p
		if p.Correl != nil {
			c.Correl = make(map[string]float64, len(p.Correl))
			for k, v := range p.Correl {
				c.Correl[k] = v
			}
		}
		out.byName[name] = &c
	}
	return out
}
