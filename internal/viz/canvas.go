package viz

import (
	"math"
	"strings"
)

// braille cells pack 2x4 dots per rune, so a w*h canvas exposes a
// (2w)x(4h) pixel grid
var dotBits = [4][2]rune{
	{0x01, 0x08},
	{0x02, 0x10},
	{0x04, 0x20},
	{0x40, 0x80},
}

const brailleBase = 0x2800

// Canvas is a braille pixel buffer for the terminal.
type Canvas struct {
	cols, rows int
	cells      []rune
}

func NewCanvas(cols, rows int) *Canvas {
	c := &Canvas{cols: cols, rows: rows, cells: make([]rune, cols*rows)}
	c.Clear()
	return c
}

// PixelSize returns the drawable area in pixels.
func (c *Canvas) PixelSize() (w, h int) { return c.cols * 2, c.rows * 4 }

func (c *Canvas) Clear() {
	for i := range c.cells {
		c.cells[i] = brailleBase
	}
}

func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}
	col, row := x/2, y/4
	if col >= c.cols || row >= c.rows {
		return
	}
	c.cells[row*c.cols+col] |= dotBits[y%4][x%2]
}

// Line draws a straight pixel line between two points.
func (c *Canvas) Line(x0, y0, x1, y1 int) {
	dx, dy := x1-x0, y1-y0
	steps := max(abs(dx), abs(dy))
	if steps == 0 {
		c.Set(x0, y0)
		return
	}
	for i := 0; i <= steps; i++ {
		c.Set(x0+dx*i/steps, y0+dy*i/steps)
	}
}

// Circle draws a circle outline around a center point.
func (c *Canvas) Circle(cx, cy, r int) {
	if r <= 0 {
		c.Set(cx, cy)
		return
	}
	steps := 8 * r
	for i := 0; i < steps; i++ {
		a := 2 * math.Pi * float64(i) / float64(steps)
		c.Set(cx+int(float64(r)*math.Cos(a)), cy+int(float64(r)*math.Sin(a)))
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for row := 0; row < c.rows; row++ {
		b.WriteString(string(c.cells[row*c.cols : (row+1)*c.cols]))
		b.WriteByte('\n')
	}
	return b.String()
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
