package viz

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/decayfit/internal/posterior"
)

type CornerOptions struct {
	Bins        int
	PanelWidth  int
	PanelHeight int

	// Quantiles are marked on the histograms; the outer pair and the
	// middle value also produce the panel titles.
	Quantiles []float64
	Truths    map[string]float64
}

func (o CornerOptions) withDefaults() CornerOptions {
	if o.Bins <= 0 {
		o.Bins = 20
	}
	if o.PanelWidth <= 0 {
		o.PanelWidth = 14
	}
	if o.PanelHeight <= 0 {
		o.PanelHeight = 5
	}
	if len(o.Quantiles) == 0 {
		o.Quantiles = posterior.Quantiles1Sigma
	}
	return o
}

// Corner is a matrix of marginal histograms on the diagonal and pairwise
// scatter panels below it. Panels[i][j] is nil for j > i.
type Corner struct {
	Names  []string
	Titles []string
	Panels [][]*Canvas
}

// NewCorner builds a corner plot from flattened samples (samples x params).
func NewCorner(names []string, flat [][]float64, opts CornerOptions) (*Corner, error) {
	if len(flat) == 0 {
		return nil, posterior.ErrEmptyChain
	}
	dim := len(names)
	if len(flat[0]) != dim {
		return nil, fmt.Errorf("%w: %d names, %d columns", posterior.ErrShapeMismatch, dim, len(flat[0]))
	}
	opts = opts.withDefaults()

	cols := make([][]float64, dim)
	for d := range cols {
		cols[d] = make([]float64, len(flat))
		for i, row := range flat {
			cols[d][i] = row[d]
		}
	}

	c := &Corner{
		Names:  names,
		Titles: make([]string, dim),
		Panels: make([][]*Canvas, dim),
	}
	for i := 0; i < dim; i++ {
		c.Panels[i] = make([]*Canvas, dim)
		c.Titles[i] = title(names[i], cols[i], opts.Quantiles)
		for j := 0; j <= i; j++ {
			cv := NewCanvas(opts.PanelWidth, opts.PanelHeight)
			if i == j {
				histogram(cv, cols[i], opts.Bins, opts.Quantiles, truth(opts.Truths, names[i]))
			} else {
				scatter(cv, cols[j], cols[i], truth(opts.Truths, names[j]), truth(opts.Truths, names[i]))
			}
			c.Panels[i][j] = cv
		}
	}
	return c, nil
}

func truth(m map[string]float64, name string) float64 {
	if v, ok := m[name]; ok {
		return v
	}
	return math.NaN()
}

// title formats "name = median +hi/-lo" from the outer and middle quantiles.
func title(name string, x []float64, qs []float64) string {
	lo, mid, hi := qs[0], 0.5, qs[len(qs)-1]
	v := posterior.Percentiles(x, []float64{lo, mid, hi})
	return fmt.Sprintf("%s = %.3g +%.2g/-%.2g", name, v[1], v[2]-v[1], v[1]-v[0])
}

func bounds(x []float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range x {
		if finite(v) {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	if math.IsInf(lo, 1) {
		return 0, 1
	}
	return lo, hi
}

func histogram(cv *Canvas, x []float64, bins int, qs []float64, truth float64) {
	lo, hi := bounds(x)
	if finite(truth) {
		lo, hi = math.Min(lo, truth), math.Max(hi, truth)
	}
	lo, hi = widen(lo, hi)

	dividers := make([]float64, bins+1)
	floats.Span(dividers, lo, hi)
	counts := make([]float64, bins)
	for _, v := range x {
		if !finite(v) {
			continue
		}
		b := int((v - lo) / (hi - lo) * float64(bins))
		if b == bins {
			b--
		}
		counts[b]++
	}

	cv.SetRange(lo, hi, 0, floats.Max(counts))
	for b, n := range counts {
		cv.Line(dividers[b], n, dividers[b+1], n)
		if b > 0 {
			cv.Line(dividers[b], counts[b-1], dividers[b], n)
		}
	}

	_, _, _, ymax := cv.Range()
	for _, v := range posterior.Percentiles(x, qs) {
		dashed(cv, v, ymax)
	}
	if finite(truth) {
		cv.Line(truth, 0, truth, ymax)
	}
}

// dashed draws every other pixel of a vertical line at data x.
func dashed(cv *Canvas, x, ymax float64) {
	px, top := cv.Pixel(x, ymax)
	_, bottom := cv.Pixel(x, 0)
	for py := top; py <= bottom; py += 2 {
		cv.Set(px, py)
	}
}

func scatter(cv *Canvas, x, y []float64, tx, ty float64) {
	xlo, xhi := bounds(x)
	ylo, yhi := bounds(y)
	if finite(tx) {
		xlo, xhi = math.Min(xlo, tx), math.Max(xhi, tx)
	}
	if finite(ty) {
		ylo, yhi = math.Min(ylo, ty), math.Max(yhi, ty)
	}
	cv.SetRange(xlo, xhi, ylo, yhi)
	xlo, xhi, ylo, yhi = cv.Range()

	for i := range x {
		cv.Point(x[i], y[i])
	}
	if finite(tx) {
		cv.Line(tx, ylo, tx, yhi)
	}
	if finite(ty) {
		cv.Line(xlo, ty, xhi, ty)
	}
}

var (
	cornerPanel = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444466"))

	cornerEmpty = lipgloss.NewStyle().
			Border(lipgloss.HiddenBorder())
)

// String lays the panels out in a lower-triangular grid.
func (c *Corner) String() string {
	rows := make([]string, len(c.Panels))
	for i, row := range c.Panels {
		cells := make([]string, len(row))
		for j, cv := range row {
			cells[j] = c.panel(i, j, cv)
		}
		rows[i] = lipgloss.JoinHorizontal(lipgloss.Top, cells...)
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (c *Corner) panel(i, j int, cv *Canvas) string {
	w, h := c.size()
	if cv == nil {
		blank := strings.Repeat(strings.Repeat(" ", w)+"\n", h+1)
		return cornerEmpty.Render(strings.TrimSuffix(blank, "\n"))
	}

	var label string
	if i == j {
		label = c.Titles[i]
	} else {
		label = c.Names[i] + " vs " + c.Names[j]
	}
	return cornerPanel.Render(clip(label, w) + "\n" + cv.String())
}

func (c *Corner) size() (int, int) {
	for _, row := range c.Panels {
		for _, cv := range row {
			if cv != nil {
				return cv.Width, cv.Height
			}
		}
	}
	return 0, 0
}

func clip(s string, w int) string {
	r := []rune(s)
	if len(r) > w {
		return string(r[:w])
	}
	return s + strings.Repeat(" ", w-len(r))
}
