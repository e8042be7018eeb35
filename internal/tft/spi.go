package tft

import (
	"fmt"
	"io"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"
	"tinygo.org/x/drivers"

	"bmo/internal/rgb565"
)

// txChunk bounds a single SPI transfer; spidev defaults to 4096 bytes.
const txChunk = 4096

// Controller settle times from the ILI9341/ST7789 datasheets.
const (
	swResetSettle = 150 * time.Millisecond
	slpOutSettle  = 120 * time.Millisecond
)

// SPIPanel drives a controller over a periph.io SPI connection with a
// data/command pin and an optional chip-select pin (nil when the SPI port
// asserts CS itself).
type SPIPanel struct {
	gfx

	conn   spi.Conn
	dc     gpio.PinOut
	cs     gpio.PinOut
	closer io.Closer

	nativeW, nativeH int
	width, height    int
	rot              drivers.Rotation

	depth  int
	err    error
	buf    []byte
	closed bool

	// Sleep is used for controller settle times; tests replace it.
	Sleep func(time.Duration)
}

// NewSPI wraps an already connected SPI conn.
func NewSPI(conn spi.Conn, dc, cs gpio.PinOut, width, height int) *SPIPanel {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	p := &SPIPanel{
		conn:    conn,
		dc:      dc,
		cs:      cs,
		nativeW: width,
		nativeH: height,
		width:   width,
		height:  height,
		buf:     make([]byte, txChunk),
		Sleep:   time.Sleep,
	}
	p.gfx = gfx{r: p}
	return p
}

func (p *SPIPanel) String() string {
	return fmt.Sprintf("tft{%s}", p.conn)
}

func (p *SPIPanel) Width() int  { return p.width }
func (p *SPIPanel) Height() int { return p.height }

func (p *SPIPanel) Err() error     { return p.err }
func (p *SPIPanel) Display() error { return p.err }

// Init runs the generic power-up sequence: software reset, sleep out, 16-bit
// pixels, orientation, display on. Controller-specific registers are left to
// the caller.
func (p *SPIPanel) Init() error {
	if p.closed {
		return ErrClosed
	}
	if err := p.WriteCommand(CmdSWRESET); err != nil {
		return fmt.Errorf("tft: software reset failed: %w", err)
	}
	p.Sleep(swResetSettle)
	if err := p.WriteCommand(CmdSLPOUT); err != nil {
		return fmt.Errorf("tft: sleep out failed: %w", err)
	}
	p.Sleep(slpOutSettle)
	for _, c := range []struct {
		cmd  byte
		data []byte
	}{
		{CmdCOLMOD, []byte{colmod16}},
		{CmdMADCTL, []byte{madctl(p.rot)}},
		{CmdDISPON, nil},
	} {
		if err := p.WriteCommand(c.cmd, c.data...); err != nil {
			return fmt.Errorf("tft: init command %#02x failed: %w", c.cmd, err)
		}
	}
	return nil
}

// Close releases the SPI port when the panel was opened with OpenSPI.
func (p *SPIPanel) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	if p.cs != nil {
		_ = p.cs.Out(gpio.High)
	}
	if p.closer != nil {
		return p.closer.Close()
	}
	return nil
}

func (p *SPIPanel) SetRotation(r drivers.Rotation) error {
	p.rot = r % 4
	p.width, p.height = rotatedSize(p.nativeW, p.nativeH, p.rot)
	return p.WriteCommand(CmdMADCTL, madctl(p.rot))
}

// StartWrite asserts CS for the outermost scope; inner calls only count.
func (p *SPIPanel) StartWrite() {
	if p.depth == 0 && p.cs != nil {
		p.record(p.cs.Out(gpio.Low))
	}
	p.depth++
}

func (p *SPIPanel) EndWrite() {
	if p.depth == 0 {
		return
	}
	p.depth--
	if p.depth == 0 && p.cs != nil {
		p.record(p.cs.Out(gpio.High))
	}
}

func (p *SPIPanel) WriteCommand(cmd byte, data ...byte) error {
	if p.closed {
		return ErrClosed
	}
	p.StartWrite()
	defer p.EndWrite()

	if err := p.dc.Out(gpio.Low); err != nil {
		return p.record(err)
	}
	if err := p.tx([]byte{cmd}, nil); err != nil {
		return err
	}
	if err := p.dc.Out(gpio.High); err != nil {
		return p.record(err)
	}
	if len(data) > 0 {
		return p.tx(data, nil)
	}
	return nil
}

// ReadCommand8 clocks out index+1 bytes after cmd and returns the last one.
// Index 0 is the dummy cycle on reads like RDDID.
func (p *SPIPanel) ReadCommand8(cmd byte, index uint8) (byte, error) {
	if p.closed {
		return 0, ErrClosed
	}
	p.StartWrite()
	defer p.EndWrite()

	if err := p.dc.Out(gpio.Low); err != nil {
		return 0, p.record(err)
	}
	if err := p.tx([]byte{cmd}, nil); err != nil {
		return 0, err
	}
	if err := p.dc.Out(gpio.High); err != nil {
		return 0, p.record(err)
	}
	w := make([]byte, int(index)+1)
	r := make([]byte, len(w))
	if err := p.tx(w, r); err != nil {
		return 0, err
	}
	return r[index], nil
}

func (p *SPIPanel) SetAddrWindow(x, y, w, h int) {
	x1, y1 := x+w-1, y+h-1
	p.WriteCommand(CmdCASET, byte(x>>8), byte(x), byte(x1>>8), byte(x1))
	p.WriteCommand(CmdPASET, byte(y>>8), byte(y), byte(y1>>8), byte(y1))
	p.WriteCommand(CmdRAMWR)
}

func (p *SPIPanel) fillRect(x, y, w, h int, c rgb565.Color) {
	if p.closed {
		return
	}
	p.StartWrite()
	defer p.EndWrite()

	p.SetAddrWindow(x, y, w, h)

	// The controller expects big-endian RGB565.
	n := w * h
	hi, lo := byte(c>>8), byte(c)
	fill := min(n, len(p.buf)/2)
	for i := 0; i < fill; i++ {
		p.buf[2*i] = hi
		p.buf[2*i+1] = lo
	}
	for n > 0 {
		k := min(n, len(p.buf)/2)
		if err := p.tx(p.buf[:2*k], nil); err != nil {
			return
		}
		n -= k
	}
}

func (p *SPIPanel) tx(w, r []byte) error {
	return p.record(p.conn.Tx(w, r))
}

// record keeps the first transport error and passes err through.
func (p *SPIPanel) record(err error) error {
	if err != nil && p.err == nil {
		p.err = err
	}
	return err
}
