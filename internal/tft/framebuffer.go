package tft

import (
	"image"
	"image/png"
	"io"
	"sync"

	"tinygo.org/x/drivers"

	"bmo/internal/rgb565"
)

// FramebufferOptions configures the simulated controller.
type FramebufferOptions struct {
	Width  int
	Height int

	// ID is returned by RDDID, most significant byte first.
	ID uint32
	// StatusReg is returned by RDDST. The lifecycle self-test rejects 0x00
	// and 0xFF.
	StatusReg byte
}

// DefaultFramebufferOptions simulates an ILI9341 that answers its ID probe.
var DefaultFramebufferOptions = FramebufferOptions{
	Width:     DefaultWidth,
	Height:    DefaultHeight,
	ID:        0x009341,
	StatusReg: 0x61,
}

// Command is one WriteCommand call recorded by a Framebuffer.
type Command struct {
	Cmd  byte
	Data []byte
}

// Framebuffer is an in-memory RGB565 panel. It is safe to read (Image,
// WritePNG) from another goroutine while a single caller draws.
type Framebuffer struct {
	gfx

	opts   FramebufferOptions
	mu     sync.Mutex
	width  int
	height int
	pix    []rgb565.Color
	depth  int
	rot    drivers.Rotation
	cmds   []Command
	asleep bool
	closed bool
}

func NewFramebuffer(opts FramebufferOptions) *Framebuffer {
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	fb := &Framebuffer{
		opts:   opts,
		width:  opts.Width,
		height: opts.Height,
		pix:    make([]rgb565.Color, opts.Width*opts.Height),
		asleep: true,
	}
	fb.gfx = gfx{r: fb}
	return fb
}

func (f *Framebuffer) Width() int  { return f.width }
func (f *Framebuffer) Height() int { return f.height }

func (f *Framebuffer) Display() error { return nil }
func (f *Framebuffer) Err() error     { return nil }

func (f *Framebuffer) StartWrite() { f.depth++ }

func (f *Framebuffer) EndWrite() {
	if f.depth > 0 {
		f.depth--
	}
}

// Depth reports how many batched-write scopes are open.
func (f *Framebuffer) Depth() int { return f.depth }

func (f *Framebuffer) Init() error {
	if f.closed {
		return ErrClosed
	}
	f.WriteCommand(CmdSWRESET)
	f.WriteCommand(CmdSLPOUT)
	f.WriteCommand(CmdCOLMOD, colmod16)
	f.WriteCommand(CmdMADCTL, madctl(f.rot))
	f.WriteCommand(CmdDISPON)
	return nil
}

func (f *Framebuffer) Close() error {
	f.closed = true
	return nil
}

// SetRotation swaps the logical geometry. The buffer is cleared, as a real
// panel would show its old contents sideways.
func (f *Framebuffer) SetRotation(r drivers.Rotation) error {
	if f.closed {
		return ErrClosed
	}
	f.mu.Lock()
	f.rot = r % 4
	f.width, f.height = rotatedSize(f.opts.Width, f.opts.Height, f.rot)
	clear(f.pix)
	f.mu.Unlock()
	return f.WriteCommand(CmdMADCTL, madctl(f.rot))
}

func (f *Framebuffer) SetAddrWindow(x, y, w, h int) {
	x1, y1 := x+w-1, y+h-1
	f.WriteCommand(CmdCASET, byte(x>>8), byte(x), byte(x1>>8), byte(x1))
	f.WriteCommand(CmdPASET, byte(y>>8), byte(y), byte(y1>>8), byte(y1))
	f.WriteCommand(CmdRAMWR)
}

func (f *Framebuffer) WriteCommand(cmd byte, data ...byte) error {
	if f.closed {
		return ErrClosed
	}
	switch cmd {
	case CmdSLPIN:
		f.asleep = true
	case CmdSLPOUT, CmdSWRESET:
		f.asleep = cmd == CmdSWRESET
	}
	f.mu.Lock()
	f.cmds = append(f.cmds, Command{Cmd: cmd, Data: append([]byte(nil), data...)})
	f.mu.Unlock()
	return nil
}

func (f *Framebuffer) ReadCommand8(cmd byte, index uint8) (byte, error) {
	if f.closed {
		return 0, ErrClosed
	}
	switch {
	case cmd == CmdRDDID && index >= 1 && index <= 3:
		return byte(f.opts.ID >> (8 * (3 - uint32(index)))), nil
	case cmd == CmdRDDST && index == 1:
		return f.opts.StatusReg, nil
	}
	return 0, nil
}

// Commands returns a copy of every command written so far.
func (f *Framebuffer) Commands() []Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Command(nil), f.cmds...)
}

// Asleep reports whether the simulated controller is in sleep mode.
func (f *Framebuffer) Asleep() bool { return f.asleep }

// At returns the pixel at x, y, or black outside the panel.
func (f *Framebuffer) At(x, y int) rgb565.Color {
	f.mu.Lock()
	defer f.mu.Unlock()
	if x < 0 || y < 0 || x >= f.width || y >= f.height {
		return rgb565.Black
	}
	return f.pix[y*f.width+x]
}

func (f *Framebuffer) fillRect(x, y, w, h int, c rgb565.Color) {
	if f.closed {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for py := y; py < y+h; py++ {
		row := f.pix[py*f.width : (py+1)*f.width]
		for px := x; px < x+w; px++ {
			row[px] = c
		}
	}
}

// Image converts the buffer to RGBA.
func (f *Framebuffer) Image() *image.RGBA {
	f.mu.Lock()
	defer f.mu.Unlock()

	img := image.NewRGBA(image.Rect(0, 0, f.width, f.height))
	for i, c := range f.pix {
		rgba := c.RGBA()
		j := i * 4
		img.Pix[j+0] = rgba.R
		img.Pix[j+1] = rgba.G
		img.Pix[j+2] = rgba.B
		img.Pix[j+3] = 0xFF
	}
	return img
}

// WritePNG encodes the current buffer as PNG.
func (f *Framebuffer) WritePNG(w io.Writer) error {
	return png.Encode(w, f.Image())
}
