package face

import (
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"

	"bmo/internal/rgb565"
	"bmo/internal/tft"
)

var colorBars = []rgb565.Color{
	rgb565.Red, rgb565.Green, rgb565.Blue,
	rgb565.Teal, rgb565.DarkTeal, rgb565.LightTeal,
	rgb565.Gray, rgb565.White,
}

// DrawColorTest paints one vertical bar per palette colour over the top
// two thirds and a black to white ramp underneath.
func (r *Renderer) DrawColorTest() {
	r.fastDraw(func(c tft.Canvas) {
		w, h := c.Width(), c.Height()
		barH := h * 2 / 3
		barW := w / len(colorBars)
		for i, col := range colorBars {
			c.FillRect(i*barW, 0, barW, barH, col)
		}
		for y := barH; y < h; y++ {
			c.DrawFastHLine(0, y, w, rgb565.Blend(rgb565.Black, rgb565.White, float64(y-barH)/float64(h-barH-1)))
		}
	})
}

// DrawGeometryTest draws every primitive once on a black screen.
func (r *Renderer) DrawGeometryTest() {
	r.fastDraw(func(c tft.Canvas) {
		w, h := c.Width(), c.Height()
		c.FillScreen(rgb565.Black)
		c.DrawRect(0, 0, w, h, rgb565.White)
		c.DrawLine(0, 0, w-1, h-1, rgb565.Red)
		c.DrawLine(w-1, 0, 0, h-1, rgb565.Red)
		c.DrawRoundRect(20, 20, w-40, h-40, frameRadius, rgb565.LightTeal)
		c.DrawCircle(w/2, h/3, 40, rgb565.Green)
		c.FillCircle(w/2, h/3, 20, rgb565.Green)
		c.FillEllipse(w/2, h*2/3, 60, 30, rgb565.Blue)
		c.FillRect(w/2-10, h*2/3-5, 20, 10, rgb565.Teal)
	})
}

const (
	infoLineHeight = 12
	infoPad        = 8
)

// DrawInfo prints lines of text in a dark box at the top of the screen.
func (r *Renderer) DrawInfo(lines []string) {
	r.fastDraw(func(c tft.Canvas) {
		boxH := 2*infoPad + len(lines)*infoLineHeight
		c.FillRect(infoPad, infoPad, c.Width()-2*infoPad, boxH, rgb565.DarkTeal)
		c.DrawRect(infoPad, infoPad, c.Width()-2*infoPad, boxH, rgb565.LightTeal)
		ink := rgb565.White.RGBA()
		for i, s := range lines {
			y := int16(2*infoPad + (i+1)*infoLineHeight - 2)
			tinyfont.WriteLine(c, &proggy.TinySZ8pt7b, 2*infoPad, y, s, ink)
		}
	})
}
