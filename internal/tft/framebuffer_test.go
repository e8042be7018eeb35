package tft

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"

	"bmo/internal/rgb565"
)

func TestFramebufferInitSequence(t *testing.T) {
	fb := NewFramebuffer(DefaultFramebufferOptions)
	require.True(t, fb.Asleep())
	require.NoError(t, fb.Init())
	require.False(t, fb.Asleep())

	var cmds []byte
	for _, c := range fb.Commands() {
		cmds = append(cmds, c.Cmd)
	}
	require.Equal(t, []byte{CmdSWRESET, CmdSLPOUT, CmdCOLMOD, CmdMADCTL, CmdDISPON}, cmds)
	require.Equal(t, []byte{madctlMX}, fb.Commands()[3].Data)
}

func TestFramebufferSleepTracking(t *testing.T) {
	fb := newFB(t)

	require.NoError(t, fb.WriteCommand(CmdSLPIN))
	require.True(t, fb.Asleep())
	require.NoError(t, fb.WriteCommand(CmdSLPOUT))
	require.False(t, fb.Asleep())
}

func TestFramebufferRegisters(t *testing.T) {
	fb := NewFramebuffer(FramebufferOptions{ID: 0x858552, StatusReg: 0xFF})

	var id uint32
	for i := uint8(1); i <= 3; i++ {
		b, err := fb.ReadCommand8(CmdRDDID, i)
		require.NoError(t, err)
		id = id<<8 | uint32(b)
	}
	require.Equal(t, uint32(0x858552), id)

	st, err := fb.ReadCommand8(CmdRDDST, 1)
	require.NoError(t, err)
	require.Equal(t, byte(0xFF), st)

	dummy, err := fb.ReadCommand8(CmdRDDID, 0)
	require.NoError(t, err)
	require.Zero(t, dummy)
}

func TestFramebufferRotation(t *testing.T) {
	fb := newFB(t)
	fb.FillScreen(rgb565.Red)

	require.NoError(t, fb.SetRotation(1))
	require.Equal(t, 320, fb.Width())
	require.Equal(t, 240, fb.Height())
	require.Equal(t, rgb565.Black, fb.At(0, 0))

	fb.DrawPixel(319, 239, rgb565.White)
	require.Equal(t, rgb565.White, fb.At(319, 239))

	cmds := fb.Commands()
	last := cmds[len(cmds)-1]
	require.Equal(t, byte(CmdMADCTL), last.Cmd)
	require.Equal(t, []byte{madctlMV}, last.Data)

	require.NoError(t, fb.SetRotation(2))
	require.Equal(t, 240, fb.Width())
}

func TestFramebufferClosed(t *testing.T) {
	fb := newFB(t)
	require.NoError(t, fb.Close())

	require.ErrorIs(t, fb.Init(), ErrClosed)
	require.ErrorIs(t, fb.WriteCommand(CmdDISPON), ErrClosed)
	_, err := fb.ReadCommand8(CmdRDDID, 1)
	require.ErrorIs(t, err, ErrClosed)

	// Drawing after close is ignored.
	fb.FillScreen(rgb565.White)
	require.Equal(t, rgb565.Black, fb.At(0, 0))
}

func TestFramebufferPNG(t *testing.T) {
	fb := newFB(t)
	fb.FillScreen(rgb565.Teal)
	fb.DrawPixel(1, 2, rgb565.White)

	var buf bytes.Buffer
	require.NoError(t, fb.WritePNG(&buf))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	require.Equal(t, 240, img.Bounds().Dx())
	require.Equal(t, 320, img.Bounds().Dy())

	r, g, b, _ := img.At(1, 2).RGBA()
	require.Equal(t, uint32(0xF8), r>>8)
	require.Equal(t, uint32(0xFC), g>>8)
	require.Equal(t, uint32(0xF8), b>>8)

	r, _, _, _ = img.At(0, 0).RGBA()
	require.Equal(t, uint32(rgb565.Teal.R()), r>>8)
}
