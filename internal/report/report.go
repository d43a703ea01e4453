// Package report renders fit and posterior results as plain text.
package report

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/san-kum/decayfit/internal/fit"
	"github.com/san-kum/decayfit/internal/mcmc"
	"github.com/san-kum/decayfit/internal/params"
	"github.com/san-kum/decayfit/internal/posterior"
)

// DefaultMinCorrel is the smallest |correlation| reported.
const DefaultMinCorrel = 0.5

func g(v float64) string {
	if math.IsNaN(v) {
		return "nan"
	}
	return fmt.Sprintf("%.7g", v)
}

// Fit writes fit statistics and the refined values.
func Fit(w io.Writer, res *fit.Result) error {
	var b strings.Builder
	b.WriteString("[[Fit Statistics]]\n")
	fmt.Fprintf(&b, "    # fitting method   = Nelder-Mead\n")
	fmt.Fprintf(&b, "    # function evals   = %d\n", res.Nfev)
	fmt.Fprintf(&b, "    # data points      = %d\n", res.Ndata)
	fmt.Fprintf(&b, "    # variables        = %d\n", res.Nvarys)
	fmt.Fprintf(&b, "    chi-square         = %s\n", g(res.Chisqr))
	fmt.Fprintf(&b, "    reduced chi-square = %s\n", g(res.Redchi))
	fmt.Fprintf(&b, "    Akaike info crit   = %s\n", g(res.AIC))
	fmt.Fprintf(&b, "    Bayesian info crit = %s\n", g(res.BIC))
	if !res.Success {
		fmt.Fprintf(&b, "##  Warning: %s\n", res.Message)
	}

	b.WriteString("[[Variables]]\n")
	width := nameWidth(res.Params.Names())
	for _, name := range res.Params.Names() {
		p, _ := res.Params.Get(name)
		fmt.Fprintf(&b, "    %-*s %s", width, name+":", g(p.Value))
		if !p.Vary {
			b.WriteString(" (fixed)")
		} else if init, ok := res.InitValues[name]; ok {
			fmt.Fprintf(&b, " (init = %s)", g(init))
		}
		b.WriteByte('\n')
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// Params writes values with uncertainties and correlations at least
// minCorrel in magnitude.
func Params(w io.Writer, ps *params.Parameters, minCorrel float64) error {
	var b strings.Builder
	b.WriteString("[[Variables]]\n")
	width := nameWidth(ps.Names())
	for _, name := range ps.Names() {
		p, _ := ps.Get(name)
		fmt.Fprintf(&b, "    %-*s %s", width, name+":", g(p.Value))
		switch {
		case !p.Vary:
			b.WriteString(" (fixed)")
		case p.Stderr > 0:
			fmt.Fprintf(&b, " +/- %s", g(p.Stderr))
			if p.Value != 0 {
				fmt.Fprintf(&b, " (%.2f%%)", math.Abs(100*p.Stderr/p.Value))
			}
		}
		b.WriteByte('\n')
	}

	pairs := correlations(ps, minCorrel)
	if len(pairs) > 0 {
		fmt.Fprintf(&b, "[[Correlations]] (unreported correlations are < %.3f)\n", minCorrel)
		for _, c := range pairs {
			fmt.Fprintf(&b, "    C(%s, %s) = %+.4f\n", c.a, c.b, c.v)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

type pair struct {
	a, b string
	v    float64
}

// correlations lists each pair once, strongest first.
func correlations(ps *params.Parameters, minCorrel float64) []pair {
	names := ps.Names()
	var out []pair
	for i, a := range names {
		p, _ := ps.Get(a)
		for _, b := range names[i+1:] {
			v, ok := p.Correl[b]
			if ok && !math.IsNaN(v) && math.Abs(v) >= minCorrel {
				out = append(out, pair{a, b, v})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return math.Abs(out[i].v) > math.Abs(out[j].v)
	})
	return out
}

// Posterior writes the marginal percentiles, spreads and the
// maximum-probability sample.
func Posterior(w io.Writer, s *posterior.Summary) error {
	var b strings.Builder
	width := nameWidth(s.Names)

	fmt.Fprintf(&b, "[[Posterior]] (%d samples)\n", s.Samples)
	fmt.Fprintf(&b, "    %-*s %12s %12s %12s %12s\n", width, "", "median", "1-sigma", "2-sigma", "mean")
	for _, m := range s.Marginals {
		fmt.Fprintf(&b, "    %-*s %12s %12s %12s %12s\n", width, m.Name+":",
			g(m.Median), g(m.Stderr), g(m.Spread2), g(m.Mean))
	}

	b.WriteString("[[Percentiles]]\n")
	fmt.Fprintf(&b, "    %-*s", width, "")
	for _, q := range posterior.SigmaQuantiles {
		fmt.Fprintf(&b, " %12s", fmt.Sprintf("%.3f%%", 100*q))
	}
	b.WriteByte('\n')
	for _, m := range s.Marginals {
		fmt.Fprintf(&b, "    %-*s", width, m.Name+":")
		for _, v := range m.Percentiles {
			fmt.Fprintf(&b, " %12s", g(v))
		}
		b.WriteByte('\n')
	}

	fmt.Fprintf(&b, "[[Maximum Probability]] (lnprob = %s)\n", g(s.MaxLogProb))
	for i, name := range s.Names {
		fmt.Fprintf(&b, "    %-*s %s\n", width, name+":", g(s.MaxProb[i]))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// Sampler writes acceptance and autocorrelation diagnostics.
func Sampler(w io.Writer, c *mcmc.Chain) error {
	var b strings.Builder
	steps, walkers, _ := c.Shape()

	b.WriteString("[[Sampler]]\n")
	fmt.Fprintf(&b, "    walkers            = %d\n", walkers)
	fmt.Fprintf(&b, "    steps              = %d (burn %d, thin %d, retained %d)\n", c.Steps, c.Burn, c.Thin, steps)
	fmt.Fprintf(&b, "    acceptance         = %.3f\n", c.MeanAcceptance())

	tau := c.AutocorrTime(5)
	width := nameWidth(c.Names)
	b.WriteString("    autocorrelation time (retained steps):\n")
	for d, name := range c.Names {
		fmt.Fprintf(&b, "      %-*s %s", width, name+":", g(tau[d]))
		if !math.IsNaN(tau[d]) && float64(steps) < 50*tau[d] {
			b.WriteString(" (chain shorter than 50 tau)")
		}
		b.WriteByte('\n')
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func nameWidth(names []string) int {
	w := 0
	for _, n := range names {
		if len(n)+1 > w {
			w = len(n) + 1
		}
	}
	return w
}
