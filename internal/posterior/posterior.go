// Package posterior builds the target density for sampling and summarizes
// the resulting samples.
//
// The log-likelihood assumes i.i.d. Gaussian residuals with an unknown
// scale carried as an ordinary bounded parameter. The prior is flat inside
// the parameter bounds and zero outside; that check always runs before the
// likelihood, which assumes in-bounds input.
package posterior

import (
	"math"

	"github.com/san-kum/decayfit/internal/model"
	"github.com/san-kum/decayfit/internal/params"
)

const log2Pi = 1.8378770664093453 // log(2*pi)

// LogLikelihood returns -0.5 * sum((r/noise)^2 + log(2*pi*noise^2)).
func LogLikelihood(resid []float64, noise float64) float64 {
	inv := 1 / (noise * noise)
	norm := log2Pi + math.Log(noise*noise)

	sum := 0.0
	for _, r := range resid {
		sum += r*r*inv + norm
	}
	return -0.5 * sum
}

// LogPrior is 0 inside every parameter's bounds and -Inf outside.
func LogPrior(p *params.Parameters) float64 {
	if !p.InBounds() {
		return math.Inf(-1)
	}
	return 0
}

type Posterior struct {
	Model      model.Model
	Data       model.Dataset
	NoiseParam string
}

func New(m model.Model, data model.Dataset, noiseParam string) *Posterior {
	return &Posterior{Model: m, Data: data, NoiseParam: noiseParam}
}

// LogLikelihood evaluates the Gaussian likelihood at p without a bounds check.
func (lp *Posterior) LogLikelihood(p *params.Parameters) float64 {
	r := model.Residual(lp.Model, p, lp.Data)
	return LogLikelihood(r, p.Value(lp.NoiseParam))
}

// LogProb is LogPrior + LogLikelihood. Out-of-bounds input returns -Inf
// without evaluating the model, and a NaN likelihood is reported as -Inf.
func (lp *Posterior) LogProb(p *params.Parameters) float64 {
	prior := LogPrior(p)
	if math.IsInf(prior, -1) {
		return prior
	}
	ll := lp.LogLikelihood(p)
	if math.IsNaN(ll) {
		return math.Inf(-1)
	}
	return prior + ll
}

// Bounded adapts fn to a function of the free-parameter vector of tmpl.
// Every call first checks theta against the free bounds and returns -Inf on
// any violation, so fn is only ever evaluated in-bounds.
func Bounded(tmpl *params.Parameters, fn func(*params.Parameters) float64) func([]float64) float64 {
	lo, hi := tmpl.FreeBounds()
	return func(theta []float64) float64 {
		if len(theta) != len(lo) {
			return math.Inf(-1)
		}
		for i, v := range theta {
			if !(v >= lo[i] && v <= hi[i]) {
				return math.Inf(-1)
			}
		}
		p, err := tmpl.WithFreeValues(theta)
		if err != nil {
			return math.Inf(-1)
		}
		v := fn(p)
		if math.IsNaN(v) {
			return math.Inf(-1)
		}
		return v
	}
}
