package tft

import (
	"image/color"

	"bmo/internal/rgb565"
)

// raster is what a panel has to provide for gfx to draw on it. fillRect is
// only called with rectangles already clipped to the panel.
type raster interface {
	Width() int
	Height() int
	StartWrite()
	EndWrite()
	fillRect(x, y, w, h int, c rgb565.Color)
}

// gfx implements the Canvas primitives on top of a raster, using the usual
// Adafruit-GFX integer algorithms.
type gfx struct {
	r raster
}

func (g gfx) Size() (x, y int16) {
	return int16(g.r.Width()), int16(g.r.Height())
}

// SetPixel implements drivers.Displayer so tinyfont can draw on any panel.
func (g gfx) SetPixel(x, y int16, c color.RGBA) {
	g.DrawPixel(int(x), int(y), rgb565.FromRGBA(c))
}

func (g gfx) FillScreen(c rgb565.Color) {
	g.FillRect(0, 0, g.r.Width(), g.r.Height(), c)
}

func (g gfx) DrawPixel(x, y int, c rgb565.Color) {
	if x < 0 || y < 0 || x >= g.r.Width() || y >= g.r.Height() {
		return
	}
	g.r.fillRect(x, y, 1, 1, c)
}

func (g gfx) FillRect(x, y, w, h int, c rgb565.Color) {
	if w < 0 {
		x, w = x+w+1, -w
	}
	if h < 0 {
		y, h = y+h+1, -h
	}
	x0, y0 := max(x, 0), max(y, 0)
	x1, y1 := min(x+w, g.r.Width()), min(y+h, g.r.Height())
	if x0 >= x1 || y0 >= y1 {
		return
	}
	g.r.fillRect(x0, y0, x1-x0, y1-y0, c)
}

func (g gfx) DrawFastHLine(x, y, w int, c rgb565.Color) {
	g.FillRect(x, y, w, 1, c)
}

func (g gfx) DrawFastVLine(x, y, h int, c rgb565.Color) {
	g.FillRect(x, y, 1, h, c)
}

func (g gfx) DrawRect(x, y, w, h int, c rgb565.Color) {
	g.r.StartWrite()
	defer g.r.EndWrite()
	g.DrawFastHLine(x, y, w, c)
	g.DrawFastHLine(x, y+h-1, w, c)
	g.DrawFastVLine(x, y, h, c)
	g.DrawFastVLine(x+w-1, y, h, c)
}

// DrawLine is Bresenham's algorithm.
func (g gfx) DrawLine(x0, y0, x1, y1 int, c rgb565.Color) {
	if x0 == x1 {
		if y0 > y1 {
			y0, y1 = y1, y0
		}
		g.DrawFastVLine(x0, y0, y1-y0+1, c)
		return
	}
	if y0 == y1 {
		if x0 > x1 {
			x0, x1 = x1, x0
		}
		g.DrawFastHLine(x0, y0, x1-x0+1, c)
		return
	}

	g.r.StartWrite()
	defer g.r.EndWrite()

	steep := abs(y1-y0) > abs(x1-x0)
	if steep {
		x0, y0 = y0, x0
		x1, y1 = y1, x1
	}
	if x0 > x1 {
		x0, x1 = x1, x0
		y0, y1 = y1, y0
	}

	dx := x1 - x0
	dy := abs(y1 - y0)
	err := dx / 2
	ystep := -1
	if y0 < y1 {
		ystep = 1
	}
	for ; x0 <= x1; x0++ {
		if steep {
			g.DrawPixel(y0, x0, c)
		} else {
			g.DrawPixel(x0, y0, c)
		}
		err -= dy
		if err < 0 {
			y0 += ystep
			err += dx
		}
	}
}

func (g gfx) DrawCircle(x0, y0, r int, c rgb565.Color) {
	g.r.StartWrite()
	defer g.r.EndWrite()

	f := 1 - r
	ddFx := 1
	ddFy := -2 * r
	x, y := 0, r

	g.DrawPixel(x0, y0+r, c)
	g.DrawPixel(x0, y0-r, c)
	g.DrawPixel(x0+r, y0, c)
	g.DrawPixel(x0-r, y0, c)

	for x < y {
		if f >= 0 {
			y--
			ddFy += 2
			f += ddFy
		}
		x++
		ddFx += 2
		f += ddFx

		g.DrawPixel(x0+x, y0+y, c)
		g.DrawPixel(x0-x, y0+y, c)
		g.DrawPixel(x0+x, y0-y, c)
		g.DrawPixel(x0-x, y0-y, c)
		g.DrawPixel(x0+y, y0+x, c)
		g.DrawPixel(x0-y, y0+x, c)
		g.DrawPixel(x0+y, y0-x, c)
		g.DrawPixel(x0-y, y0-x, c)
	}
}

func (g gfx) FillCircle(x0, y0, r int, c rgb565.Color) {
	g.r.StartWrite()
	defer g.r.EndWrite()
	g.DrawFastVLine(x0, y0-r, 2*r+1, c)
	g.fillCircleHelper(x0, y0, r, 3, 0, c)
}

// fillCircleHelper fills the right (corners&1) and/or left (corners&2) half
// of a circle with vertical spans; delta stretches the spans for round rects.
func (g gfx) fillCircleHelper(x0, y0, r, corners, delta int, c rgb565.Color) {
	f := 1 - r
	ddFx := 1
	ddFy := -2 * r
	x, y := 0, r
	px, py := x, y

	delta++
	for x < y {
		if f >= 0 {
			y--
			ddFy += 2
			f += ddFy
		}
		x++
		ddFx += 2
		f += ddFx

		if x < y+1 {
			if corners&1 != 0 {
				g.DrawFastVLine(x0+x, y0-y, 2*y+delta, c)
			}
			if corners&2 != 0 {
				g.DrawFastVLine(x0-x, y0-y, 2*y+delta, c)
			}
		}
		if y != py {
			if corners&1 != 0 {
				g.DrawFastVLine(x0+py, y0-px, 2*px+delta, c)
			}
			if corners&2 != 0 {
				g.DrawFastVLine(x0-py, y0-px, 2*px+delta, c)
			}
			py = y
		}
		px = x
	}
}

// drawCircleHelper draws quarter arcs selected by corner bits:
// 1 top-left, 2 top-right, 4 bottom-right, 8 bottom-left.
func (g gfx) drawCircleHelper(x0, y0, r, corner int, c rgb565.Color) {
	f := 1 - r
	ddFx := 1
	ddFy := -2 * r
	x, y := 0, r

	for x < y {
		if f >= 0 {
			y--
			ddFy += 2
			f += ddFy
		}
		x++
		ddFx += 2
		f += ddFx

		if corner&4 != 0 {
			g.DrawPixel(x0+x, y0+y, c)
			g.DrawPixel(x0+y, y0+x, c)
		}
		if corner&2 != 0 {
			g.DrawPixel(x0+x, y0-y, c)
			g.DrawPixel(x0+y, y0-x, c)
		}
		if corner&8 != 0 {
			g.DrawPixel(x0-y, y0+x, c)
			g.DrawPixel(x0-x, y0+y, c)
		}
		if corner&1 != 0 {
			g.DrawPixel(x0-y, y0-x, c)
			g.DrawPixel(x0-x, y0-y, c)
		}
	}
}

func (g gfx) DrawRoundRect(x, y, w, h, r int, c rgb565.Color) {
	if maxR := min(w, h) / 2; r > maxR {
		r = maxR
	}
	g.r.StartWrite()
	defer g.r.EndWrite()

	g.DrawFastHLine(x+r, y, w-2*r, c)
	g.DrawFastHLine(x+r, y+h-1, w-2*r, c)
	g.DrawFastVLine(x, y+r, h-2*r, c)
	g.DrawFastVLine(x+w-1, y+r, h-2*r, c)

	g.drawCircleHelper(x+r, y+r, r, 1, c)
	g.drawCircleHelper(x+w-r-1, y+r, r, 2, c)
	g.drawCircleHelper(x+w-r-1, y+h-r-1, r, 4, c)
	g.drawCircleHelper(x+r, y+h-r-1, r, 8, c)
}

// FillEllipse draws horizontal spans for both regions of the midpoint
// ellipse. Radii below 2 draw nothing.
func (g gfx) FillEllipse(x0, y0, rx, ry int, c rgb565.Color) {
	if rx < 2 || ry < 2 {
		return
	}
	g.r.StartWrite()
	defer g.r.EndWrite()

	rx2, ry2 := rx*rx, ry*ry
	fx2, fy2 := 4*rx2, 4*ry2

	for x, y, s := 0, ry, 2*ry2+rx2*(1-2*ry); ry2*x <= rx2*y; x++ {
		g.DrawFastHLine(x0-x, y0-y, 2*x+1, c)
		g.DrawFastHLine(x0-x, y0+y, 2*x+1, c)
		if s >= 0 {
			s += fx2 * (1 - y)
			y--
		}
		s += ry2 * (4*x + 6)
	}

	for x, y, s := rx, 0, 2*rx2+ry2*(1-2*rx); rx2*y <= ry2*x; y++ {
		g.DrawFastHLine(x0-x, y0-y, 2*x+1, c)
		g.DrawFastHLine(x0-x, y0+y, 2*x+1, c)
		if s >= 0 {
			s += fy2 * (1 - x)
			x--
		}
		s += rx2 * (4*y + 6)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
