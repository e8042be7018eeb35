package display

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"bmo/internal/backlight"
	"bmo/internal/tft"
)

var errBus = errors.New("bus fault")

// testPanel wraps a Framebuffer with injectable faults and counts Close.
type testPanel struct {
	*tft.Framebuffer
	initErr error
	failCmd byte
	closes  int
}

func (p *testPanel) Init() error {
	if p.initErr != nil {
		return p.initErr
	}
	return p.Framebuffer.Init()
}

func (p *testPanel) WriteCommand(cmd byte, data ...byte) error {
	if p.failCmd != 0 && cmd == p.failCmd {
		return errBus
	}
	return p.Framebuffer.WriteCommand(cmd, data...)
}

func (p *testPanel) Close() error {
	p.closes++
	return p.Framebuffer.Close()
}

// failingPin refuses to change level.
type failingPin struct {
	*gpiotest.Pin
}

func (p *failingPin) Out(gpio.Level) error { return errBus }

type rig struct {
	m      *Manager
	panel  *testPanel
	bl     *backlight.Recorder
	reset  *gpiotest.Pin
	slept  []time.Duration
	opened int
}

func newRig(t *testing.T, fbOpts tft.FramebufferOptions) *rig {
	t.Helper()
	r := &rig{
		panel: &testPanel{Framebuffer: tft.NewFramebuffer(fbOpts)},
		bl:    &backlight.Recorder{},
		reset: &gpiotest.Pin{N: "RST"},
	}
	r.m = New(Options{
		Open: func() (tft.Panel, error) {
			r.opened++
			return r.panel, nil
		},
		Pins:      Pins{Reset: r.reset},
		Backlight: r.bl,
		Timing: Timing{
			Sleep: func(d time.Duration) { r.slept = append(r.slept, d) },
		},
	})
	return r
}

func lastLevel(t *testing.T, bl *backlight.Recorder) uint8 {
	t.Helper()
	l, ok := bl.Last()
	require.True(t, ok)
	return l
}

func TestClassifyID(t *testing.T) {
	cases := []struct {
		id   uint32
		want Controller
		ok   bool
	}{
		{0x009341, ControllerILI9341, true},
		{0xAB9341, ControllerILI9341, true},
		{0x007789, ControllerST7789, true},
		{0x858585, ControllerST7789, true},
		{0x000085, ControllerST7789, true},
		{0x858552, ControllerILI9341, false},
		{0x123456, ControllerILI9341, false},
		{0x000000, ControllerILI9341, false},
		{0xFFFFFF, ControllerILI9341, false},
	}
	for _, tc := range cases {
		c, ok := ClassifyID(tc.id)
		require.Equal(t, tc.want, c, "id %06X", tc.id)
		require.Equal(t, tc.ok, ok, "id %06X", tc.id)
	}
}

func TestBeginSuccess(t *testing.T) {
	r := newRig(t, tft.DefaultFramebufferOptions)

	require.NoError(t, r.m.Begin())
	require.Equal(t, StatusOK, r.m.Status())
	require.NoError(t, r.m.LastError())
	require.Equal(t, StateReady, r.m.State())
	require.True(t, r.m.Initialized())
	require.Equal(t, ControllerILI9341, r.m.Controller())
	require.Equal(t, uint8(255), r.m.Backlight())
	require.NotNil(t, r.m.Panel())

	// Backlight starts off during bring-up and ends fully on.
	require.Equal(t, []uint8{0, 255}, r.bl.Levels())
	require.Equal(t, gpio.High, r.reset.Read())

	require.Equal(t, []time.Duration{
		10 * time.Millisecond, 120 * time.Millisecond,
		100 * time.Millisecond, 100 * time.Millisecond, 100 * time.Millisecond,
		100 * time.Millisecond, 100 * time.Millisecond,
	}, r.slept)

	var got []tft.Command
	for _, c := range r.panel.Commands() {
		switch c.Cmd {
		case 0xEF, 0xCF, tft.CmdINVOFF, tft.CmdCOLMOD:
			got = append(got, c)
		case tft.CmdMADCTL:
			if len(c.Data) == 1 && c.Data[0] == 0x48 {
				got = append(got, c)
			}
		}
	}
	require.Equal(t, []tft.Command{
		{Cmd: tft.CmdCOLMOD, Data: []byte{0x55}},
		{Cmd: 0xEF, Data: []byte{0x03, 0x80, 0x02}},
		{Cmd: 0xCF, Data: []byte{0x00, 0xC1, 0x30}},
		{Cmd: tft.CmdINVOFF},
		{Cmd: tft.CmdMADCTL, Data: []byte{0x48}},
	}, got)

	// Self-test leaves the screen black.
	require.Zero(t, r.panel.At(120, 160))

	// A second Begin is a no-op.
	require.NoError(t, r.m.Begin())
	require.Equal(t, 1, r.opened)
}

func TestBeginDetectsST7789(t *testing.T) {
	for _, id := range []uint32{0x007789, 0x858585} {
		opts := tft.DefaultFramebufferOptions
		opts.ID = id
		r := newRig(t, opts)

		require.NoError(t, r.m.Begin())
		require.Equal(t, ControllerST7789, r.m.Controller())

		cmds := r.panel.Commands()
		last := cmds[len(cmds)-1]
		require.Equal(t, byte(tft.CmdCOLMOD), last.Cmd)
		require.Equal(t, []byte{0x05}, last.Data)
	}
}

func TestBeginUnknownIDFallsBack(t *testing.T) {
	opts := tft.DefaultFramebufferOptions
	opts.ID = 0x123456
	r := newRig(t, opts)

	require.NoError(t, r.m.Begin())
	require.Equal(t, StatusOK, r.m.Status())
	require.Equal(t, ControllerILI9341, r.m.Controller())
}

func TestBeginFailuresReleasePanel(t *testing.T) {
	cases := []struct {
		name   string
		setup  func(r *rig)
		status Status
		closes int
	}{
		{
			name: "allocation error",
			setup: func(r *rig) {
				r.m.opts.Open = func() (tft.Panel, error) { return nil, errors.New("out of memory") }
			},
			status: StatusErrorMemory,
		},
		{
			name: "allocation returns nil",
			setup: func(r *rig) {
				r.m.opts.Open = func() (tft.Panel, error) { return nil, nil }
			},
			status: StatusErrorMemory,
		},
		{
			name: "partial allocation",
			setup: func(r *rig) {
				r.m.opts.Open = func() (tft.Panel, error) { return r.panel, errors.New("out of memory") }
			},
			status: StatusErrorMemory,
			closes: 1,
		},
		{
			name: "no opener",
			setup: func(r *rig) {
				r.m.opts.Open = nil
			},
			status: StatusErrorMemory,
		},
		{
			name: "reset pin",
			setup: func(r *rig) {
				r.m.opts.Pins.Reset = &failingPin{Pin: &gpiotest.Pin{N: "RST"}}
			},
			status: StatusErrorSPI,
			closes: 1,
		},
		{
			name:   "panel init",
			setup:  func(r *rig) { r.panel.initErr = errBus },
			status: StatusErrorInit,
			closes: 1,
		},
		{
			name:   "register programming",
			setup:  func(r *rig) { r.panel.failCmd = 0xEF },
			status: StatusErrorController,
			closes: 1,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newRig(t, tft.DefaultFramebufferOptions)
			tc.setup(r)

			err := r.m.Begin()
			require.Error(t, err)

			var derr *Error
			require.ErrorAs(t, err, &derr)
			require.Equal(t, tc.status, derr.Status)
			require.Equal(t, tc.status, r.m.Status())
			require.Equal(t, err, r.m.LastError())

			require.Nil(t, r.m.Panel())
			require.Equal(t, StateUninitialized, r.m.State())
			require.Equal(t, ControllerUnknown, r.m.Controller())
			require.Equal(t, tc.closes, r.panel.closes)

			// Nothing to tear down.
			r.m.End()
			require.Equal(t, tc.closes, r.panel.closes)
		})
	}
}

func TestBeginOrientationFaultIsController(t *testing.T) {
	// The framebuffer's own Init and SetRotation bypass the fault hook, so
	// this hits the MADCTL write of the ILI9341 programming.
	r := newRig(t, tft.DefaultFramebufferOptions)
	r.panel.failCmd = tft.CmdMADCTL
	err := r.m.Begin()
	require.ErrorIs(t, err, errBus)
	require.Equal(t, StatusErrorController, r.m.Status())
	require.Nil(t, r.m.Panel())
}

func TestBeginSelfTestStatusRegister(t *testing.T) {
	for _, st := range []byte{0x00, 0xFF} {
		opts := tft.DefaultFramebufferOptions
		opts.StatusReg = st
		r := newRig(t, opts)

		err := r.m.Begin()
		require.Error(t, err)
		require.Equal(t, StatusErrorSPI, r.m.Status())
		require.Nil(t, r.m.Panel())
		require.Equal(t, 1, r.panel.closes)
		// The recorded level is untouched by a failed bring-up.
		require.Equal(t, uint8(255), r.m.Backlight())
	}
}

func TestRetryAfterFailure(t *testing.T) {
	r := newRig(t, tft.DefaultFramebufferOptions)
	r.m.opts.Open = func() (tft.Panel, error) { return nil, errors.New("busy") }
	require.Error(t, r.m.Begin())

	fresh := &testPanel{Framebuffer: tft.NewFramebuffer(tft.DefaultFramebufferOptions)}
	r.m.opts.Open = func() (tft.Panel, error) { return fresh, nil }
	require.NoError(t, r.m.Begin())
	require.Equal(t, StatusOK, r.m.Status())
	require.NoError(t, r.m.LastError())
}

func TestEndIsIdempotent(t *testing.T) {
	r := newRig(t, tft.DefaultFramebufferOptions)

	r.m.End() // before Begin
	require.Empty(t, r.bl.Levels())

	require.NoError(t, r.m.Begin())
	r.m.End()
	require.Nil(t, r.m.Panel())
	require.Equal(t, StateUninitialized, r.m.State())
	require.Equal(t, 1, r.panel.closes)
	require.Equal(t, uint8(0), lastLevel(t, r.bl))

	r.m.End()
	require.Equal(t, 1, r.panel.closes)
}

func TestBacklightRoundTrip(t *testing.T) {
	r := newRig(t, tft.DefaultFramebufferOptions)

	// Recorded before Begin too.
	for v := 0; v <= 255; v++ {
		r.m.SetBacklight(uint8(v))
		require.Equal(t, uint8(v), r.m.Backlight())
	}

	require.NoError(t, r.m.Begin())
	for v := 0; v <= 255; v++ {
		r.m.SetBacklight(uint8(v))
		require.Equal(t, uint8(v), r.m.Backlight())
		require.Equal(t, uint8(v), lastLevel(t, r.bl))
	}

	r.m.BacklightOff()
	require.Equal(t, uint8(0), r.m.Backlight())
	r.m.BacklightOn()
	require.Equal(t, uint8(255), r.m.Backlight())
}

func TestBacklightDriverErrorIsSwallowed(t *testing.T) {
	r := newRig(t, tft.DefaultFramebufferOptions)
	r.bl.Err = errBus

	r.m.SetBacklight(42)
	require.Equal(t, uint8(42), r.m.Backlight())
	require.NoError(t, r.m.Begin())
}

func TestSleepWakeRestoresBacklight(t *testing.T) {
	r := newRig(t, tft.DefaultFramebufferOptions)
	require.NoError(t, r.m.Begin())

	r.m.SetBacklight(77)
	r.slept = nil

	require.NoError(t, r.m.Sleep())
	require.Equal(t, StateAsleep, r.m.State())
	require.True(t, r.panel.Asleep())
	require.Equal(t, uint8(0), lastLevel(t, r.bl))
	require.Equal(t, uint8(77), r.m.Backlight())
	require.Equal(t, []time.Duration{120 * time.Millisecond}, r.slept)

	// Sleeping twice does nothing.
	require.NoError(t, r.m.Sleep())
	require.Len(t, r.slept, 1)

	require.NoError(t, r.m.Wakeup())
	require.Equal(t, StateReady, r.m.State())
	require.False(t, r.panel.Asleep())
	require.Equal(t, uint8(77), lastLevel(t, r.bl))
	require.Equal(t, uint8(77), r.m.Backlight())
}

func TestSleepWakeNoopWhenUninitialized(t *testing.T) {
	r := newRig(t, tft.DefaultFramebufferOptions)

	require.NoError(t, r.m.Sleep())
	require.NoError(t, r.m.Wakeup())
	require.Equal(t, StateUninitialized, r.m.State())
	require.Empty(t, r.slept)
	require.Empty(t, r.panel.Commands())
}

func TestSleepFailureKeepsReady(t *testing.T) {
	r := newRig(t, tft.DefaultFramebufferOptions)
	require.NoError(t, r.m.Begin())

	r.panel.failCmd = tft.CmdSLPIN
	err := r.m.Sleep()
	require.ErrorIs(t, err, errBus)
	require.Equal(t, StatusErrorSPI, r.m.Status())
	require.Equal(t, StateReady, r.m.State())
	require.Equal(t, uint8(255), lastLevel(t, r.bl))

	r.m.ClearError()
	require.Equal(t, StatusOK, r.m.Status())
	require.NoError(t, r.m.LastError())
}

func TestResetUninitializedOnlyPulses(t *testing.T) {
	r := newRig(t, tft.DefaultFramebufferOptions)

	require.NoError(t, r.m.Reset())
	require.Equal(t, []time.Duration{10 * time.Millisecond, 120 * time.Millisecond}, r.slept)
	require.Equal(t, gpio.High, r.reset.Read())
	require.Empty(t, r.panel.Commands())
	require.Equal(t, 0, r.opened)
}

func TestResetReconfiguresWithoutReallocating(t *testing.T) {
	r := newRig(t, tft.DefaultFramebufferOptions)
	require.NoError(t, r.m.Begin())
	before := len(r.panel.Commands())

	r.m.SetBacklight(90)
	require.NoError(t, r.m.Sleep())
	require.NoError(t, r.m.Reset())

	require.Equal(t, 1, r.opened)
	require.Equal(t, StateReady, r.m.State())
	require.Equal(t, uint8(90), lastLevel(t, r.bl))

	var cmds []byte
	for _, c := range r.panel.Commands()[before:] {
		cmds = append(cmds, c.Cmd)
	}
	require.Equal(t, []byte{
		tft.CmdSLPIN,
		tft.CmdSWRESET, tft.CmdSLPOUT, tft.CmdCOLMOD, tft.CmdMADCTL, tft.CmdDISPON,
		tft.CmdMADCTL, 0xEF, 0xCF, tft.CmdINVOFF, tft.CmdMADCTL,
	}, cmds)
}

func TestResetFailure(t *testing.T) {
	r := newRig(t, tft.DefaultFramebufferOptions)
	require.NoError(t, r.m.Begin())

	r.panel.failCmd = 0xCF
	err := r.m.Reset()
	var derr *Error
	require.ErrorAs(t, err, &derr)
	require.Equal(t, StatusErrorController, derr.Status)
	require.NotNil(t, r.m.Panel())
}

func TestDrawingHelpersWithoutPanel(t *testing.T) {
	m := New(Options{})
	m.Clear(0)
	m.StartWrite()
	m.EndWrite()
	m.SetAddrWindow(0, 0, 10, 10)
	require.ErrorIs(t, m.Test(), errNotInitialized)
}

func TestClearAndInfo(t *testing.T) {
	r := newRig(t, tft.DefaultFramebufferOptions)
	require.NoError(t, r.m.Begin())

	r.m.Clear(0x4E6D)
	require.Equal(t, uint16(0x4E6D), uint16(r.panel.At(5, 5)))

	r.m.StartWrite()
	require.Equal(t, 1, r.panel.Depth())
	r.m.EndWrite()
	require.Equal(t, 0, r.panel.Depth())

	info := r.m.Info()
	require.Equal(t, StatusOK, info.Status)
	require.Equal(t, StateReady, info.State)
	require.Equal(t, ControllerILI9341, info.Controller)
	require.Equal(t, 240, info.Width)
	require.Equal(t, 320, info.Height)
	require.Equal(t, uint8(255), info.Backlight)
}

func TestErrorMessage(t *testing.T) {
	e := &Error{Status: StatusErrorSPI, Msg: "display test failed", Err: errBus}
	require.Equal(t, "display: display test failed: bus fault", e.Error())
	require.ErrorIs(t, e, errBus)
	require.Equal(t, "display: no panel", (&Error{Msg: "no panel"}).Error())
	require.Equal(t, "ERROR_CONTROLLER", StatusErrorController.String())
	require.Equal(t, "ST7789", ControllerST7789.String())
	require.Equal(t, "asleep", StateAsleep.String())
}
