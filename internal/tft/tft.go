// Package tft is the panel driver layer for 240x320 MIPI-DCS TFT controllers
// (ILI9341, ST7789). It provides the drawing primitives, the batched-write
// scope and raw command/register access that the display lifecycle manager
// and the face renderer build on.
//
// Two panels implement the same interface: SPIPanel talks to real hardware
// through periph.io, Framebuffer keeps the pixels in memory and simulates the
// controller registers for headless runs and tests.
package tft

import (
	"errors"

	"tinygo.org/x/drivers"

	"bmo/internal/rgb565"
)

// Native panel geometry (portrait).
const (
	DefaultWidth  = 240
	DefaultHeight = 320
)

// MIPI DCS commands shared by ILI9341 and ST7789.
const (
	CmdSWRESET = 0x01 // software reset
	CmdRDDID   = 0x04 // read display identification (dummy + 3 bytes)
	CmdRDDST   = 0x09 // read display status
	CmdSLPIN   = 0x10 // sleep in
	CmdSLPOUT  = 0x11 // sleep out
	CmdINVOFF  = 0x20 // inversion off
	CmdDISPON  = 0x29 // display on
	CmdCASET   = 0x2A // column address set
	CmdPASET   = 0x2B // page address set
	CmdRAMWR   = 0x2C // memory write
	CmdMADCTL  = 0x36 // memory access control
	CmdCOLMOD  = 0x3A // interface pixel format
)

// MADCTL bits.
const (
	madctlMY = 0x80
	madctlMX = 0x40
	madctlMV = 0x20
)

// colmod16 selects 16 bits per pixel on both controllers.
const colmod16 = 0x55

var ErrClosed = errors.New("tft: panel closed")

// Canvas is the drawing surface the face renderer needs. Coordinates are in
// the current rotation; everything outside the panel is clipped.
//
// StartWrite/EndWrite bracket a batched-write scope. Scopes nest; only the
// outermost pair touches the bus.
type Canvas interface {
	drivers.Displayer

	Width() int
	Height() int

	StartWrite()
	EndWrite()

	FillScreen(c rgb565.Color)
	DrawPixel(x, y int, c rgb565.Color)
	DrawFastHLine(x, y, w int, c rgb565.Color)
	DrawFastVLine(x, y, h int, c rgb565.Color)
	DrawLine(x0, y0, x1, y1 int, c rgb565.Color)
	DrawRect(x, y, w, h int, c rgb565.Color)
	FillRect(x, y, w, h int, c rgb565.Color)
	DrawRoundRect(x, y, w, h, r int, c rgb565.Color)
	DrawCircle(x0, y0, r int, c rgb565.Color)
	FillCircle(x0, y0, r int, c rgb565.Color)
	FillEllipse(x0, y0, rx, ry int, c rgb565.Color)
}

// Panel is a Canvas plus the controller-level operations used by the
// lifecycle manager.
type Panel interface {
	Canvas

	// Init brings the controller out of reset into a drawable state.
	Init() error
	// Close releases the bus. The panel must not be used afterwards.
	Close() error

	SetRotation(r drivers.Rotation) error
	SetAddrWindow(x, y, w, h int)

	// WriteCommand sends cmd followed by its parameter bytes.
	WriteCommand(cmd byte, data ...byte) error
	// ReadCommand8 sends cmd and returns the parameter byte at index.
	ReadCommand8(cmd byte, index uint8) (byte, error)

	// Err reports the first transport error seen by drawing calls, which
	// themselves return nothing.
	Err() error
}

// madctl returns the MADCTL value for a rotation with RGB colour order.
func madctl(r drivers.Rotation) byte {
	switch r % 4 {
	case 1:
		return madctlMV
	case 2:
		return madctlMY
	case 3:
		return madctlMX | madctlMY | madctlMV
	default:
		return madctlMX
	}
}

// rotatedSize swaps width and height for landscape rotations.
func rotatedSize(w, h int, r drivers.Rotation) (int, int) {
	if r%2 == 1 {
		return h, w
	}
	return w, h
}

var (
	_ Panel = (*SPIPanel)(nil)
	_ Panel = (*Framebuffer)(nil)
)
