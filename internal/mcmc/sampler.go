package mcmc

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"
)

// LogProbFunc is an unnormalized log-density. Return -Inf for zero
// probability; NaN is treated the same way.
type LogProbFunc func(theta []float64) float64

type Sampler struct {
	fn   LogProbFunc
	opts Options
}

func New(fn LogProbFunc, opts Options) (*Sampler, error) {
	if fn == nil {
		return nil, fmt.Errorf("mcmc: nil log-probability function")
	}
	opts = opts.withDefaults()
	if err := opts.validate(0); err != nil {
		return nil, err
	}
	return &Sampler{fn: fn, opts: opts}, nil
}

// proposal holds the serially drawn randomness for one walker update.
type proposal struct {
	theta []float64
	z     float64
	logU  float64
	lp    float64
}

// Run advances the ensemble from p0 (walkers x dim) and returns the chain
// after burn-in and thinning.
func (s *Sampler) Run(ctx context.Context, p0 [][]float64) (*Chain, error) {
	o := s.opts
	if len(p0) == 0 || len(p0[0]) == 0 {
		return nil, ErrBadStart
	}
	dim := len(p0[0])
	if len(p0) != o.Walkers {
		return nil, fmt.Errorf("%w: %d positions for %d walkers", ErrBadStart, len(p0), o.Walkers)
	}
	if err := o.validate(dim); err != nil {
		return nil, err
	}

	pos := make([][]float64, o.Walkers)
	for k, row := range p0 {
		if len(row) != dim {
			return nil, &WalkerError{Step: 0, Walker: k, Wrapped: ErrBadStart}
		}
		pos[k] = append([]float64(nil), row...)
	}

	lp := make([]float64, o.Walkers)
	if err := s.evaluate(ctx, pos, lp); err != nil {
		return nil, err
	}

	chain := newChain(o, dim)
	half := o.Walkers / 2
	props := make([]proposal, half)
	thetas := make([][]float64, half)
	lps := make([]float64, half)

	for step := 0; step < o.Steps; step++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for h := 0; h < 2; h++ {
			active, other := h*half, (1-h)*half

			for i := 0; i < half; i++ {
				k := active + i
				j := other + o.Rand.IntN(half)
				z := stretch(o.Rand, o.Stretch)

				theta := make([]float64, dim)
				for d := range theta {
					theta[d] = pos[j][d] + z*(pos[k][d]-pos[j][d])
				}
				props[i] = proposal{theta: theta, z: z, logU: math.Log(o.Rand.Float64())}
				thetas[i] = theta
			}

			if err := s.evaluate(ctx, thetas, lps); err != nil {
				return nil, err
			}

			for i := 0; i < half; i++ {
				k := active + i
				p := &props[i]
				p.lp = lps[i]
				lnq := float64(dim-1)*math.Log(p.z) + p.lp - lp[k]
				if math.IsInf(lp[k], -1) && !math.IsInf(p.lp, -1) {
					lnq = math.Inf(1)
				}
				if p.logU < lnq {
					pos[k] = p.theta
					lp[k] = p.lp
					chain.Accepted[k]++
				}
			}
		}

		chain.record(step, pos, lp)

		if o.Observer != nil {
			o.Observer.OnStep(step+1, o.Steps, chain.meanAcceptance(step+1))
		}
	}

	o.Logger.Debug("sampling finished",
		"walkers", o.Walkers, "steps", o.Steps, "retained", len(chain.Samples),
		"acceptance", chain.meanAcceptance(o.Steps))
	return chain, nil
}

// stretch draws z from g(z) ~ 1/sqrt(z) on [1/a, a].
func stretch(rng *rand.Rand, a float64) float64 {
	u := (a-1)*rng.Float64() + 1
	return u * u / a
}

// evaluate fills out[i] = fn(thetas[i]) using up to Workers goroutines.
func (s *Sampler) evaluate(ctx context.Context, thetas [][]float64, out []float64) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)

	for i := range thetas {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			v := s.fn(thetas[i])
			if math.IsNaN(v) {
				v = math.Inf(-1)
			}
			out[i] = v
			return nil
		})
	}
	return g.Wait()
}

// Ball returns walkers positions scattered around center with relative
// Gaussian jitter scale (absolute for zero components), clamped into
// [lo, hi]. lo and hi may be nil for unbounded problems.
func Ball(center, lo, hi []float64, walkers int, scale float64, rng *rand.Rand) [][]float64 {
	out := make([][]float64, walkers)
	for k := range out {
		row := make([]float64, len(center))
		for d, c := range center {
			jitter := scale * rng.NormFloat64()
			if c == 0 {
				row[d] = jitter
			} else {
				row[d] = c * (1 + jitter)
			}
			if lo != nil && row[d] < lo[d] {
				row[d] = lo[d]
			}
			if hi != nil && row[d] > hi[d] {
				row[d] = hi[d]
			}
		}
		out[k] = row
	}
	return out
}
