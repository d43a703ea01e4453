package viz

import (
	"fmt"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/decayfit/internal/mcmc"
)

type PlotOptions struct {
	Width   int
	Height  int
	Caption string
	Color   bool
}

func (o PlotOptions) graphOptions(legends ...string) []asciigraph.Option {
	if o.Width <= 0 {
		o.Width = 80
	}
	if o.Height <= 0 {
		o.Height = 15
	}
	opts := []asciigraph.Option{
		asciigraph.Width(o.Width),
		asciigraph.Height(o.Height),
		asciigraph.Precision(3),
	}
	if o.Caption != "" {
		opts = append(opts, asciigraph.Caption(o.Caption))
	}
	if o.Color {
		opts = append(opts, asciigraph.SeriesColors(asciigraph.Blue, asciigraph.Red, asciigraph.Green, asciigraph.Yellow))
		if len(legends) > 0 {
			opts = append(opts, asciigraph.SeriesLegends(legends...))
		}
	}
	return opts
}

// Lines plots one or more series sharing the same axis.
func Lines(series [][]float64, legends []string, o PlotOptions) string {
	if len(series) == 0 || len(series[0]) == 0 {
		return ""
	}
	return asciigraph.PlotMany(series, o.graphOptions(legends...)...)
}

// FitPlot overlays observed data, the best-fit curve and optionally the
// posterior median curve. Nil curves are omitted.
func FitPlot(y, best, median []float64, o PlotOptions) string {
	series := [][]float64{y}
	legends := []string{"data"}
	if best != nil {
		series = append(series, best)
		legends = append(legends, "fit")
	}
	if median != nil {
		series = append(series, median)
		legends = append(legends, "posterior")
	}
	return Lines(series, legends, o)
}

// TracePlot draws the retained trajectory of parameter d for up to
// maxWalkers walkers.
func TracePlot(c *mcmc.Chain, d, maxWalkers int, o PlotOptions) (string, error) {
	_, walkers, dim := c.Shape()
	if d < 0 || d >= dim {
		return "", fmt.Errorf("parameter index %d out of range [0, %d)", d, dim)
	}
	if maxWalkers <= 0 || maxWalkers > walkers {
		maxWalkers = walkers
	}

	series := make([][]float64, maxWalkers)
	for k := range series {
		series[k] = c.Walker(k, d)
	}
	if o.Caption == "" {
		o.Caption = fmt.Sprintf("%s trace (%d walkers)", c.Names[d], maxWalkers)
	}
	return Lines(series, nil, o), nil
}

// LogProbPlot draws the mean log-probability across walkers per retained step.
func LogProbPlot(c *mcmc.Chain, o PlotOptions) string {
	mean := make([]float64, len(c.LogProb))
	for i, step := range c.LogProb {
		for _, v := range step {
			mean[i] += v
		}
		mean[i] /= float64(len(step))
	}
	if o.Caption == "" {
		o.Caption = "mean lnprob"
	}
	return Lines([][]float64{mean}, nil, o)
}
