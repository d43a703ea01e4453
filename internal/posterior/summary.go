package posterior

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/decayfit/internal/params"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Percentile levels of a normal distribution at -2, -1, 0, +1, +2 sigma.
var SigmaQuantiles = []float64{0.02275, 0.15865, 0.5, 0.84135, 0.97725}

const (
	Quantile1Sigma = 0.15865
	Quantile2Sigma = 0.02275
)

// Lower, middle and upper quantiles of the 1-sigma and 2-sigma intervals.
var (
	Quantiles1Sigma = []float64{Quantile1Sigma, 0.5, 1 - Quantile1Sigma}
	Quantiles2Sigma = []float64{Quantile2Sigma, 0.5, 1 - Quantile2Sigma}
)

var (
	ErrEmptyChain    = errors.New("posterior: empty chain")
	ErrShapeMismatch = errors.New("posterior: chain shape mismatch")
)

// Percentiles returns the q-quantiles of samples, q in [0, 1], using linear
// interpolation of the empirical distribution.
func Percentiles(samples []float64, qs []float64) []float64 {
	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	out := make([]float64, len(qs))
	for i, q := range qs {
		out[i] = stat.Quantile(q, stat.LinInterp, sorted, nil)
	}
	return out
}

// Spread returns half the distance between the q and 1-q quantiles.
func Spread(samples []float64, q float64) float64 {
	if q > 0.5 {
		q = 1 - q
	}
	v := Percentiles(samples, []float64{q, 1 - q})
	return (v[1] - v[0]) / 2
}

type Marginal struct {
	Name   string
	Mean   float64
	Median float64
	// Stderr is the 1-sigma spread, Spread2 the 2-sigma spread.
	Stderr  float64
	Spread2 float64
	// Percentiles holds the values at SigmaQuantiles.
	Percentiles []float64
}

type Summary struct {
	Names     []string
	Marginals []Marginal
	Correl    [][]float64

	MaxProbIndex int
	MaxLogProb   float64
	MaxProb      []float64
	Samples      int
}

// Summarize reduces a flattened chain (samples x parameters) and its
// log-probabilities to marginal statistics, correlations and the
// highest-probability sample.
func Summarize(names []string, flat [][]float64, lnprob []float64) (*Summary, error) {
	if len(flat) == 0 {
		return nil, ErrEmptyChain
	}
	if len(lnprob) != len(flat) {
		return nil, fmt.Errorf("%w: %d samples, %d log-probabilities", ErrShapeMismatch, len(flat), len(lnprob))
	}
	dim := len(names)

	cols := make([][]float64, dim)
	for j := range cols {
		cols[j] = make([]float64, len(flat))
	}
	for i, row := range flat {
		if len(row) != dim {
			return nil, fmt.Errorf("%w: sample %d has %d values, want %d", ErrShapeMismatch, i, len(row), dim)
		}
		for j, v := range row {
			cols[j][i] = v
		}
	}

	s := &Summary{
		Names:     append([]string(nil), names...),
		Marginals: make([]Marginal, dim),
		Correl:    make([][]float64, dim),
		Samples:   len(flat),
	}

	for j, col := range cols {
		q := Percentiles(col, SigmaQuantiles)
		s.Marginals[j] = Marginal{
			Name:        names[j],
			Mean:        stat.Mean(col, nil),
			Median:      q[2],
			Stderr:      (q[3] - q[1]) / 2,
			Spread2:     (q[4] - q[0]) / 2,
			Percentiles: q,
		}
	}

	for i := range cols {
		s.Correl[i] = make([]float64, dim)
		for j := range cols {
			if i == j {
				s.Correl[i][j] = 1
				continue
			}
			if j < i {
				s.Correl[i][j] = s.Correl[j][i]
				continue
			}
			s.Correl[i][j] = stat.Correlation(cols[i], cols[j], nil)
		}
	}

	s.MaxProbIndex = floats.MaxIdx(lnprob)
	s.MaxLogProb = lnprob[s.MaxProbIndex]
	s.MaxProb = append([]float64(nil), flat[s.MaxProbIndex]...)
	return s, nil
}

func (s *Summary) Marginal(name string) (Marginal, bool) {
	for _, m := range s.Marginals {
		if m.Name == name {
			return m, true
		}
	}
	return Marginal{}, false
}

// Apply writes medians, 1-sigma spreads and correlations into a copy of ps.
func (s *Summary) Apply(ps *params.Parameters) *params.Parameters {
	out := ps.Clone()
	for i, m := range s.Marginals {
		p, ok := out.Get(m.Name)
		if !ok {
			continue
		}
		p.Value = m.Median
		p.Stderr = m.Stderr
		p.Correl = make(map[string]float64, len(s.Names)-1)
		for j, other := range s.Names {
			if j != i && !math.IsNaN(s.Correl[i][j]) {
				p.Correl[other] = s.Correl[i][j]
			}
		}
	}
	return out
}

// MaxProbParams returns a copy of ps holding the highest-probability sample.
// Every summarized name must exist in ps.
func (s *Summary) MaxProbParams(ps *params.Parameters) (*params.Parameters, error) {
	out := ps.Clone()
	for i, name := range s.Names {
		if err := out.Set(name, s.MaxProb[i]); err != nil {
			return nil, fmt.Errorf("max probability sample: %w", err)
		}
	}
	return out, nil
}
