// Package rgb565 holds the 16-bit colour math used by the panel driver and the
// face renderer. A Color packs 5 bits of red, 6 bits of green and 5 bits of blue
// (rrrrrggggggbbbbb).
//
// Channel extraction keeps the packed bits in the high end of an 8-bit value
// (red and blue lose their low 3 bits, green its low 2), and every operation
// truncates toward zero before repacking, so results are deterministic.
package rgb565

import "image/color"

type Color uint16

// Palette.
const (
	Teal      Color = 0x4E6D
	DarkTeal  Color = 0x2945
	LightTeal Color = 0x6EDD
	Black     Color = 0x0000
	White     Color = 0xFFFF
	Gray      Color = 0x7BEF
	BlueTint  Color = 0x4E7D

	// Primaries used by the panel self-test.
	Red   Color = 0xF800
	Green Color = 0x07E0
	Blue  Color = 0x001F
)

// RGB packs 8-bit channels into a Color.
func RGB(r, g, b uint8) Color {
	return Color(uint16(r&0xF8)<<8 | uint16(g&0xFC)<<3 | uint16(b>>3))
}

func (c Color) R() uint8 { return uint8((c >> 8) & 0xF8) }
func (c Color) G() uint8 { return uint8((c >> 3) & 0xFC) }
func (c Color) B() uint8 { return uint8((c << 3) & 0xF8) }

// RGBA expands c for image and tinyfont consumers.
func (c Color) RGBA() color.RGBA {
	return color.RGBA{R: c.R(), G: c.G(), B: c.B(), A: 0xFF}
}

// FromRGBA is the inverse of Color.RGBA; alpha is ignored.
func FromRGBA(c color.RGBA) Color {
	return RGB(c.R, c.G, c.B)
}

// Blend linearly interpolates each channel from c1 (ratio 0) to c2 (ratio 1).
func Blend(c1, c2 Color, ratio float64) Color {
	ratio = clamp01(ratio)
	return RGB(
		lerp(c1.R(), c2.R(), ratio),
		lerp(c1.G(), c2.G(), ratio),
		lerp(c1.B(), c2.B(), ratio),
	)
}

// Darken scales every channel by (1 - amount). Darken(c, 1) is black.
func Darken(c Color, amount float64) Color {
	k := 1 - clamp01(amount)
	return RGB(
		uint8(float64(c.R())*k),
		uint8(float64(c.G())*k),
		uint8(float64(c.B())*k),
	)
}

// Lighten moves every channel toward 255 by amount.
func Lighten(c Color, amount float64) Color {
	return RGB(
		lerp(c.R(), 0xFF, clamp01(amount)),
		lerp(c.G(), 0xFF, clamp01(amount)),
		lerp(c.B(), 0xFF, clamp01(amount)),
	)
}

func lerp(a, b uint8, t float64) uint8 {
	d := int(float64(int(b)-int(a)) * t)
	return uint8(int(a) + d)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
