package tft

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/spi"

	"bmo/internal/rgb565"
)

// fakeConn records SPI traffic split by the level of the DC pin.
type fakeConn struct {
	dc *gpiotest.Pin
	cs *gpiotest.Pin

	cmds    []byte
	data    []byte
	csLow   []bool
	reply   map[byte][]byte
	lastCmd byte
	failOn  byte
}

func (f *fakeConn) String() string { return "fake" }
func (f *fakeConn) Duplex() conn.Duplex { return conn.Half }
func (f *fakeConn) TxPackets([]spi.Packet) error {
	return errors.New("not supported")
}

func (f *fakeConn) Tx(w, r []byte) error {
	if f.cs != nil {
		f.csLow = append(f.csLow, f.cs.Read() == gpio.Low)
	}
	if f.dc.Read() == gpio.Low {
		if f.failOn != 0 && w[0] == f.failOn {
			return errors.New("bus fault")
		}
		f.cmds = append(f.cmds, w...)
		f.lastCmd = w[0]
		return nil
	}
	f.data = append(f.data, w...)
	if r != nil {
		copy(r, f.reply[f.lastCmd])
	}
	return nil
}

func newSPITest(t *testing.T, withCS bool) (*SPIPanel, *fakeConn) {
	t.Helper()
	dc := &gpiotest.Pin{N: "DC", L: gpio.High}
	fc := &fakeConn{dc: dc, reply: map[byte][]byte{}}
	var cs gpio.PinOut
	if withCS {
		fc.cs = &gpiotest.Pin{N: "CS", L: gpio.High}
		cs = fc.cs
	}
	p := NewSPI(fc, dc, cs, 0, 0)
	p.Sleep = func(time.Duration) {}
	return p, fc
}

func TestSPIInit(t *testing.T) {
	p, fc := newSPITest(t, false)

	var slept []time.Duration
	p.Sleep = func(d time.Duration) { slept = append(slept, d) }

	require.NoError(t, p.Init())
	require.Equal(t, []byte{CmdSWRESET, CmdSLPOUT, CmdCOLMOD, CmdMADCTL, CmdDISPON}, fc.cmds)
	require.Equal(t, []byte{colmod16, madctlMX}, fc.data)
	require.Equal(t, []time.Duration{150 * time.Millisecond, 120 * time.Millisecond}, slept)
	require.Equal(t, 240, p.Width())
	require.Equal(t, 320, p.Height())
}

func TestSPIChipSelectScope(t *testing.T) {
	p, fc := newSPITest(t, true)

	p.StartWrite()
	p.StartWrite()
	require.NoError(t, p.WriteCommand(CmdDISPON))
	p.EndWrite()
	require.Equal(t, gpio.Low, fc.cs.Read())
	p.EndWrite()
	require.Equal(t, gpio.High, fc.cs.Read())

	// Unbalanced EndWrite is ignored.
	p.EndWrite()
	require.Equal(t, gpio.High, fc.cs.Read())

	for _, low := range fc.csLow {
		require.True(t, low)
	}
}

func TestSPIFillRectStreamsBigEndian(t *testing.T) {
	p, fc := newSPITest(t, false)

	p.FillRect(10, 20, 3, 2, rgb565.Color(0xABCD))
	require.Equal(t, []byte{CmdCASET, CmdPASET, CmdRAMWR}, fc.cmds)

	window := []byte{0, 10, 0, 12, 0, 20, 0, 21}
	require.Equal(t, window, fc.data[:8])
	pix := fc.data[8:]
	require.Len(t, pix, 12)
	for i := 0; i < len(pix); i += 2 {
		require.Equal(t, byte(0xAB), pix[i])
		require.Equal(t, byte(0xCD), pix[i+1])
	}
}

func TestSPIFillScreenChunks(t *testing.T) {
	p, fc := newSPITest(t, false)

	p.FillScreen(rgb565.Teal)
	require.Len(t, fc.data, 8+240*320*2)
	require.NoError(t, p.Err())
}

func TestSPIReadCommand8(t *testing.T) {
	p, fc := newSPITest(t, false)
	fc.reply[CmdRDDID] = []byte{0x00, 0x00, 0x93, 0x41}

	for i, want := range []byte{0x00, 0x00, 0x93, 0x41} {
		b, err := p.ReadCommand8(CmdRDDID, uint8(i))
		require.NoError(t, err)
		require.Equal(t, want, b)
	}
}

func TestSPIStickyError(t *testing.T) {
	p, fc := newSPITest(t, false)
	fc.failOn = CmdCASET

	p.FillRect(0, 0, 10, 10, rgb565.White)
	require.Error(t, p.Err())

	fc.failOn = 0
	require.NoError(t, p.WriteCommand(CmdDISPON))
	require.Error(t, p.Err(), "first error is kept")
	require.Error(t, p.Display())
}

func TestSPIClose(t *testing.T) {
	p, _ := newSPITest(t, true)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	require.ErrorIs(t, p.Init(), ErrClosed)
	require.ErrorIs(t, p.WriteCommand(CmdDISPON), ErrClosed)
	_, err := p.ReadCommand8(CmdRDDID, 1)
	require.ErrorIs(t, err, ErrClosed)
}

func TestSPIRotation(t *testing.T) {
	p, fc := newSPITest(t, false)
	require.NoError(t, p.SetRotation(3))
	require.Equal(t, 320, p.Width())
	require.Equal(t, 240, p.Height())
	require.Equal(t, []byte{CmdMADCTL}, fc.cmds)
	require.Equal(t, []byte{madctlMX | madctlMY | madctlMV}, fc.data)
}
