package mcmc

import (
	"fmt"

	"github.com/san-kum/decayfit/internal/analysis"
)

// Chain holds the retained samples of a run. Samples is indexed
// [step][walker][param] and LogProb [step][walker], where the retained steps
// are Burn, Burn+Thin, ... of the full run.
type Chain struct {
	Names    []string
	Samples  [][][]float64
	LogProb  [][]float64
	Accepted []int

	Steps int
	Burn  int
	Thin  int
}

func newChain(o Options, dim int) *Chain {
	n := o.Retained()
	names := append([]string(nil), o.Names...)
	for len(names) < dim {
		names = append(names, fmt.Sprintf("p%d", len(names)))
	}
	return &Chain{
		Names:    names[:dim],
		Samples:  make([][][]float64, 0, n),
		LogProb:  make([][]float64, 0, n),
		Accepted: make([]int, o.Walkers),
		Steps:    o.Steps,
		Burn:     o.Burn,
		Thin:     o.Thin,
	}
}

func (c *Chain) record(step int, pos [][]float64, lp []float64) {
	if step < c.Burn || (step-c.Burn)%c.Thin != 0 {
		return
	}
	c.Samples = append(c.Samples, clone2(pos))
	c.LogProb = append(c.LogProb, append([]float64(nil), lp...))
}

func clone2(src [][]float64) [][]float64 {
	out := make([][]float64, len(src))
	for i, row := range src {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

// Shape returns (retained steps, walkers, parameters).
func (c *Chain) Shape() (steps, walkers, dim int) {
	if len(c.Samples) == 0 {
		return 0, len(c.Accepted), len(c.Names)
	}
	return len(c.Samples), len(c.Samples[0]), len(c.Samples[0][0])
}

// Flat merges the step and walker axes, step-major.
func (c *Chain) Flat() [][]float64 {
	steps, walkers, _ := c.Shape()
	out := make([][]float64, 0, steps*walkers)
	for _, step := range c.Samples {
		out = append(out, step...)
	}
	return out
}

func (c *Chain) FlatLogProb() []float64 {
	steps, walkers, _ := c.Shape()
	out := make([]float64, 0, steps*walkers)
	for _, step := range c.LogProb {
		out = append(out, step...)
	}
	return out
}

// FlatByName maps each parameter name to its flattened samples.
func (c *Chain) FlatByName() map[string][]float64 {
	out := make(map[string][]float64, len(c.Names))
	for d, name := range c.Names {
		out[name] = c.Param(d)
	}
	return out
}

// Param returns the flattened samples of parameter d.
func (c *Chain) Param(d int) []float64 {
	steps, walkers, _ := c.Shape()
	out := make([]float64, 0, steps*walkers)
	for _, step := range c.Samples {
		for _, w := range step {
			out = append(out, w[d])
		}
	}
	return out
}

// Walker returns the retained trajectory of parameter d for walker k.
func (c *Chain) Walker(k, d int) []float64 {
	out := make([]float64, len(c.Samples))
	for i, step := range c.Samples {
		out[i] = step[k][d]
	}
	return out
}

// AcceptanceFraction is the fraction of accepted proposals per walker over
// the full run, burn-in included.
func (c *Chain) AcceptanceFraction() []float64 {
	out := make([]float64, len(c.Accepted))
	if c.Steps == 0 {
		return out
	}
	for k, a := range c.Accepted {
		out[k] = float64(a) / float64(c.Steps)
	}
	return out
}

func (c *Chain) MeanAcceptance() float64 {
	return c.meanAcceptance(c.Steps)
}

func (c *Chain) meanAcceptance(steps int) float64 {
	if steps == 0 || len(c.Accepted) == 0 {
		return 0
	}
	total := 0
	for _, a := range c.Accepted {
		total += a
	}
	return float64(total) / float64(steps*len(c.Accepted))
}

// AutocorrTime estimates the integrated autocorrelation time of each
// parameter, in units of retained steps, using Sokal windowing constant w.
func (c *Chain) AutocorrTime(w float64) []float64 {
	_, walkers, dim := c.Shape()
	out := make([]float64, dim)
	for d := 0; d < dim; d++ {
		series := make([][]float64, walkers)
		for k := range series {
			series[k] = c.Walker(k, d)
		}
		out[d] = analysis.IntegratedTime(series, w)
	}
	return out
}
