// Package export renders plots as standalone SVG documents.
package export

import (
	"fmt"
	"html"
	"math"
	"strings"

	"github.com/san-kum/decayfit/internal/viz"
)

const (
	background = "#ffffff"
	foreground = "#222233"
)

// Palette colors successive series.
var Palette = []string{"#1f77b4", "#d62728", "#2ca02c", "#ff7f0e", "#9467bd"}

// Braille dot-to-bit mapping
var pixelMap = [4][2]int{
	{0x01, 0x08},
	{0x02, 0x10},
	{0x04, 0x20},
	{0x40, 0x80},
}

func header(sb *strings.Builder, width, height float64) {
	fmt.Fprintf(sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="%s"/>
`, width, height, width, height, background)
}

// dots writes one circle per lit braille dot, offset by (x0, y0).
func dots(sb *strings.Builder, canvas *viz.Canvas, x0, y0, scale float64) {
	r := scale * 0.4
	for row := 0; row < canvas.Height; row++ {
		for col := 0; col < canvas.Width; col++ {
			pattern := int(canvas.Grid[row][col] - 0x2800)
			if pattern <= 0 {
				continue
			}
			baseX := x0 + float64(col)*scale*2
			baseY := y0 + float64(row)*scale*4

			for dy := 0; dy < 4; dy++ {
				for dx := 0; dx < 2; dx++ {
					if pattern&pixelMap[dy][dx] != 0 {
						cx := baseX + float64(dx)*scale + scale/2
						cy := baseY + float64(dy)*scale + scale/2
						fmt.Fprintf(sb, "<circle cx=\"%.1f\" cy=\"%.1f\" r=\"%.1f\"/>\n", cx, cy, r)
					}
				}
			}
		}
	}
}

// CanvasToSVG converts a braille canvas to SVG, one dot per lit pixel.
func CanvasToSVG(canvas *viz.Canvas, scale float64) string {
	if canvas == nil {
		return ""
	}

	width := float64(canvas.Width) * scale * 2
	height := float64(canvas.Height) * scale * 4

	var sb strings.Builder
	header(&sb, width, height)
	fmt.Fprintf(&sb, "<g fill=\"%s\">\n", foreground)
	dots(&sb, canvas, 0, 0, scale)
	sb.WriteString("</g>\n</svg>")
	return sb.String()
}

// CornerToSVG lays out the panels of a corner plot with their labels.
func CornerToSVG(c *viz.Corner, scale float64) string {
	if c == nil || len(c.Panels) == 0 {
		return ""
	}

	var pw, ph float64
	for _, cv := range c.Panels[0] {
		if cv != nil {
			pw = float64(cv.Width) * scale * 2
			ph = float64(cv.Height) * scale * 4
			break
		}
	}
	gap := 4 * scale
	label := 4 * scale
	cellW, cellH := pw+gap, ph+gap+label
	n := float64(len(c.Panels))

	var sb strings.Builder
	header(&sb, n*cellW+gap, n*cellH+gap)

	for i, row := range c.Panels {
		for j, cv := range row {
			if cv == nil {
				continue
			}
			x0 := gap + float64(j)*cellW
			y0 := gap + float64(i)*cellH

			text := c.Names[i] + " vs " + c.Names[j]
			if i == j {
				text = c.Titles[i]
			}
			fmt.Fprintf(&sb, "<text x=\"%.1f\" y=\"%.1f\" font-family=\"monospace\" font-size=\"%.1f\" fill=\"%s\">%s</text>\n",
				x0, y0+label*0.75, label*0.8, foreground, html.EscapeString(text))
			fmt.Fprintf(&sb, "<rect x=\"%.1f\" y=\"%.1f\" width=\"%.1f\" height=\"%.1f\" fill=\"none\" stroke=\"#cccccc\"/>\n",
				x0, y0+label, pw, ph)

			fmt.Fprintf(&sb, "<g fill=\"%s\">\n", Palette[0])
			dots(&sb, cv, x0, y0+label, scale)
			sb.WriteString("</g>\n")
		}
	}

	sb.WriteString("</svg>")
	return sb.String()
}

// SeriesToSVG draws y-series against a shared x axis as polylines. Points
// with a non-finite coordinate break the line.
func SeriesToSVG(x []float64, series [][]float64, legends []string, width, height int) string {
	if len(x) < 2 || len(series) == 0 {
		return ""
	}

	minX, maxX := bounds(x)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, s := range series {
		lo, hi := bounds(s)
		minY, maxY = math.Min(minY, lo), math.Max(maxY, hi)
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.05
	maxX += rangeX * 0.05
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeX = maxX - minX
	rangeY = maxY - minY

	var sb strings.Builder
	header(&sb, float64(width), float64(height))

	for k, s := range series {
		color := Palette[k%len(Palette)]
		fmt.Fprintf(&sb, "<path fill=\"none\" stroke=\"%s\" stroke-width=\"1.5\" d=\"", color)
		pen := false
		for i := 0; i < len(x) && i < len(s); i++ {
			if !finite(x[i]) || !finite(s[i]) {
				pen = false
				continue
			}
			px := (x[i] - minX) / rangeX * float64(width)
			py := float64(height) - (s[i]-minY)/rangeY*float64(height)
			if pen {
				fmt.Fprintf(&sb, " L%.1f,%.1f", px, py)
			} else {
				fmt.Fprintf(&sb, " M%.1f,%.1f", px, py)
				pen = true
			}
		}
		sb.WriteString("\"/>\n")

		if k < len(legends) {
			fmt.Fprintf(&sb, "<text x=\"10\" y=\"%d\" font-family=\"monospace\" font-size=\"12\" fill=\"%s\">%s</text>\n",
				20+14*k, color, html.EscapeString(legends[k]))
		}
	}

	sb.WriteString("</svg>")
	return sb.String()
}

func bounds(v []float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, f := range v {
		if finite(f) {
			lo = math.Min(lo, f)
			hi = math.Max(hi, f)
		}
	}
	if math.IsInf(lo, 1) {
		return 0, 0
	}
	return lo, hi
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
