package viz

import (
	"math"
	"strings"
)

// Braille Patterns: 2x4 dots
// 1 4
// 2 5
// 3 6
// 7 8
//
// Unicode offset 0x2800
var pixelMap = [4][2]int{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

const blank = 0x2800

// Canvas is a braille pixel grid. Width and Height are in cells; the pixel
// resolution is (Width*2) x (Height*4). A data window set with SetRange maps
// float coordinates onto pixels with y increasing upwards.
type Canvas struct {
	Width, Height int
	Grid          [][]rune

	xmin, xmax float64
	ymin, ymax float64
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{
		Width:  w,
		Height: h,
		Grid:   make([][]rune, h),
		xmax:   1,
		ymax:   1,
	}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
		for j := range c.Grid[i] {
			c.Grid[i][j] = blank
		}
	}
	return c
}

// SetRange sets the data window. Degenerate ranges are widened.
func (c *Canvas) SetRange(xmin, xmax, ymin, ymax float64) {
	c.xmin, c.xmax = widen(xmin, xmax)
	c.ymin, c.ymax = widen(ymin, ymax)
}

func (c *Canvas) Range() (xmin, xmax, ymin, ymax float64) {
	return c.xmin, c.xmax, c.ymin, c.ymax
}

func widen(lo, hi float64) (float64, float64) {
	if hi > lo {
		return lo, hi
	}
	pad := math.Abs(lo) * 0.05
	if pad == 0 {
		pad = 0.5
	}
	return lo - pad, hi + pad
}

// Set sets a pixel at (x, y) in sub-pixel coordinates.
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}

	col := x / 2
	row := y / 4
	if col >= c.Width || row >= c.Height {
		return
	}

	c.Grid[row][col] |= rune(pixelMap[y%4][x%2])
}

// IsSet reports whether the pixel at (x, y) is lit.
func (c *Canvas) IsSet(x, y int) bool {
	if x < 0 || y < 0 || x/2 >= c.Width || y/4 >= c.Height {
		return false
	}
	return c.Grid[y/4][x/2]&rune(pixelMap[y%4][x%2]) != 0
}

// Pixel maps a data point to sub-pixel coordinates.
func (c *Canvas) Pixel(x, y float64) (int, int) {
	pw, ph := c.Width*2, c.Height*4
	px := int(math.Round((x - c.xmin) / (c.xmax - c.xmin) * float64(pw-1)))
	py := int(math.Round((c.ymax - y) / (c.ymax - c.ymin) * float64(ph-1)))
	return px, py
}

// Point plots a data point. Non-finite points are skipped.
func (c *Canvas) Point(x, y float64) {
	if !finite(x) || !finite(y) {
		return
	}
	c.Set(c.Pixel(x, y))
}

// Line draws a segment between two data points.
func (c *Canvas) Line(x0, y0, x1, y1 float64) {
	if !finite(x0) || !finite(y0) || !finite(x1) || !finite(y1) {
		return
	}
	px0, py0 := c.Pixel(x0, y0)
	px1, py1 := c.Pixel(x1, y1)
	c.DrawLine(px0, py0, px1, py1)
}

// DrawLine draws a line using Bresenham's algorithm
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx := absInt(x1 - x0)
	dy := absInt(y1 - y0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy

	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for i, row := range c.Grid {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(string(row))
	}
	return b.String()
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
