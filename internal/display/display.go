// Package display is the lifecycle manager for the TFT panel: it owns the
// panel handle, the reset/CS/DC pins and the backlight, and sequences
// initialization, sleep/wake, reset and teardown.
//
// The manager is single-threaded. Every method blocks for the hardware settle
// times in Timing; callers that need concurrency serialize access above it.
package display

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"tinygo.org/x/drivers"

	"bmo/internal/backlight"
	"bmo/internal/log"
	"bmo/internal/rgb565"
	"bmo/internal/tft"
)

// Opener allocates the panel handle. It is called once per Begin.
type Opener func() (tft.Panel, error)

// Pins are the control lines the manager drives directly. Any of them may be
// nil when the panel driver or the board takes care of it.
type Pins struct {
	Reset gpio.PinOut
	CS    gpio.PinOut
	DC    gpio.PinOut
}

type Options struct {
	Open      Opener
	Pins      Pins
	Backlight backlight.Driver

	Rotation drivers.Rotation
	// Width and Height are the expected geometry after rotation; a mismatch
	// is only logged.
	Width  int
	Height int

	// SPIHz is reported by Info.
	SPIHz physic.Frequency

	Timing Timing
}

var errNotInitialized = errors.New("display: not initialized")

// Manager owns the panel handle between Begin and End.
type Manager struct {
	opts Options

	panel      tft.Panel
	state      State
	status     Status
	lastErr    *Error
	controller Controller
	level      uint8
}

// New returns an uninitialized manager. Zero timings fall back to
// DefaultTiming.
func New(opts Options) *Manager {
	def := DefaultTiming()
	t := &opts.Timing
	if t.ResetPulse <= 0 {
		t.ResetPulse = def.ResetPulse
	}
	if t.ResetSettle <= 0 {
		t.ResetSettle = def.ResetSettle
	}
	if t.SleepSettle <= 0 {
		t.SleepSettle = def.SleepSettle
	}
	if t.SelfTestStep <= 0 {
		t.SelfTestStep = def.SelfTestStep
	}
	if t.Sleep == nil {
		t.Sleep = def.Sleep
	}
	if opts.Width <= 0 {
		opts.Width = tft.DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = tft.DefaultHeight
	}
	return &Manager{opts: opts, level: 255}
}

// Begin allocates and initializes the panel. On failure every resource
// allocated so far is released, the manager stays uninitialized and the
// returned *Error carries the failing Status.
func (m *Manager) Begin() error {
	if m.state != StateUninitialized {
		return nil
	}
	log.Info("display: initializing")

	if m.opts.Open == nil {
		return m.fail(StatusErrorMemory, "no panel opener configured", nil)
	}
	p, err := m.opts.Open()
	if err != nil || p == nil {
		if p != nil {
			if cerr := p.Close(); cerr != nil {
				log.Warn("display: panel close failed", "error", cerr)
			}
		}
		return m.fail(StatusErrorMemory, "failed to allocate panel", err)
	}
	m.panel = p

	m.initBacklight()

	if err := m.initPins(); err != nil {
		return m.abort(StatusErrorSPI, "SPI initialization failed", err)
	}
	if err := p.Init(); err != nil {
		return m.abort(StatusErrorInit, "panel init failed", err)
	}

	m.controller = m.detectController()

	if err := m.configure(); err != nil {
		return m.abort(StatusErrorController, "display configuration failed", err)
	}
	if err := m.Test(); err != nil {
		return m.abort(StatusErrorSPI, "display test failed", err)
	}

	m.SetBacklight(255)
	m.state = StateReady
	m.status = StatusOK
	m.lastErr = nil

	log.Info("display: initialized")
	m.logInfo()
	return nil
}

// End turns the backlight off and releases the panel. It is a no-op when
// not initialized.
func (m *Manager) End() {
	if m.state == StateUninitialized {
		return
	}
	m.BacklightOff()
	if err := m.panel.Close(); err != nil {
		log.Warn("display: panel close failed", "error", err)
	}
	m.panel = nil
	m.state = StateUninitialized
	log.Info("display: shutdown complete")
}

// Sleep turns the backlight off and puts the controller into sleep mode.
// The backlight level is kept for Wakeup.
func (m *Manager) Sleep() error {
	if m.state != StateReady {
		return nil
	}
	m.driveBacklight(0)
	if err := m.panel.WriteCommand(tft.CmdSLPIN); err != nil {
		m.driveBacklight(m.level)
		return m.fail(StatusErrorSPI, "sleep in failed", err)
	}
	m.opts.Timing.Sleep(m.opts.Timing.SleepSettle)
	m.state = StateAsleep
	log.Info("display: entered sleep mode")
	return nil
}

// Wakeup takes the controller out of sleep mode and restores the backlight
// level in effect before Sleep.
func (m *Manager) Wakeup() error {
	if m.state == StateUninitialized {
		return nil
	}
	if err := m.panel.WriteCommand(tft.CmdSLPOUT); err != nil {
		return m.fail(StatusErrorSPI, "sleep out failed", err)
	}
	m.opts.Timing.Sleep(m.opts.Timing.SleepSettle)
	m.SetBacklight(m.level)
	m.state = StateReady
	log.Info("display: woke up from sleep")
	return nil
}

// Reset pulses the hardware reset line. When initialized the controller is
// brought back up and reconfigured on the same panel handle, which leaves it
// awake.
func (m *Manager) Reset() error {
	log.Info("display: performing reset")
	if err := m.pulseReset(); err != nil {
		return m.fail(StatusErrorSPI, "reset pulse failed", err)
	}
	if m.state == StateUninitialized {
		return nil
	}
	if err := m.panel.Init(); err != nil {
		return m.fail(StatusErrorInit, "panel init after reset failed", err)
	}
	if err := m.configure(); err != nil {
		return m.fail(StatusErrorController, "display configuration after reset failed", err)
	}
	if m.state == StateAsleep {
		m.SetBacklight(m.level)
		m.state = StateReady
	}
	return nil
}

// SetBacklight records level and drives the backlight to it. It never
// fails; driver errors are logged.
func (m *Manager) SetBacklight(level uint8) {
	m.level = level
	m.driveBacklight(level)
	log.Debug("display: backlight set", "level", level)
}

func (m *Manager) Backlight() uint8 { return m.level }
func (m *Manager) BacklightOn() { m.SetBacklight(255) }
func (m *Manager) BacklightOff() { m.SetBacklight(0) }

func (m *Manager) Status() Status { return m.status }

// LastError returns the error recorded by the last failing step, or nil.
func (m *Manager) LastError() error {
	if m.lastErr == nil {
		return nil
	}
	return m.lastErr
}

func (m *Manager) ClearError() {
	m.lastErr = nil
	m.status = StatusOK
}

// Panel returns the borrowed panel handle, nil unless initialized.
func (m *Manager) Panel() tft.Panel { return m.panel }

func (m *Manager) State() State { return m.state }
func (m *Manager) Controller() Controller { return m.controller }
func (m *Manager) Initialized() bool { return m.state != StateUninitialized }

func (m *Manager) Clear(c rgb565.Color) {
	if m.panel != nil {
		m.panel.FillScreen(c)
	}
}

func (m *Manager) StartWrite() {
	if m.panel != nil {
		m.panel.StartWrite()
	}
}

func (m *Manager) EndWrite() {
	if m.panel != nil {
		m.panel.EndWrite()
	}
}

func (m *Manager) SetAddrWindow(x, y, w, h int) {
	if m.panel != nil {
		m.panel.SetAddrWindow(x, y, w, h)
	}
}

func (m *Manager) Info() Info {
	return Info{
		Status:     m.status,
		State:      m.state,
		Controller: m.controller,
		Width:      m.opts.Width,
		Height:     m.opts.Height,
		Rotation:   int(m.opts.Rotation),
		Backlight:  m.level,
		SPIHz:      int64(m.opts.SPIHz / physic.Hertz),
	}
}

// Test checks the status register, writes a pixel and cycles the screen
// through the primary colours. Pixel read-back is not supported on every
// panel, so the pixel write itself is never reported as a failure.
func (m *Manager) Test() error {
	p := m.panel
	if p == nil {
		return errNotInitialized
	}
	log.Info("display: running self-test")

	st, err := p.ReadCommand8(tft.CmdRDDST, 1)
	if err != nil {
		return fmt.Errorf("display: read status register: %w", err)
	}
	log.Debug("display: status register", "value", fmt.Sprintf("%#02x", st))
	if st == 0x00 || st == 0xFF {
		return fmt.Errorf("display: implausible status register %#02x", st)
	}

	p.DrawPixel(10, 10, rgb565.Green)

	for _, c := range []rgb565.Color{rgb565.Black, rgb565.White, rgb565.Red, rgb565.Green, rgb565.Blue} {
		p.FillScreen(c)
		m.opts.Timing.Sleep(m.opts.Timing.SelfTestStep)
	}
	p.FillScreen(rgb565.Black)

	if err := p.Err(); err != nil {
		return fmt.Errorf("display: drawing failed: %w", err)
	}
	log.Info("display: self-test passed")
	return nil
}

func (m *Manager) initBacklight() {
	m.driveBacklight(0)
	log.Debug("display: backlight control initialized")
}

func (m *Manager) driveBacklight(level uint8) {
	if m.opts.Backlight == nil {
		return
	}
	if err := m.opts.Backlight.Set(level); err != nil {
		log.Warn("display: backlight driver failed", "level", level, "error", err)
	}
}

// initPins parks the control lines high and pulses reset.
func (m *Manager) initPins() error {
	for _, p := range []gpio.PinOut{m.opts.Pins.CS, m.opts.Pins.Reset, m.opts.Pins.DC} {
		if p == nil {
			continue
		}
		if err := p.Out(gpio.High); err != nil {
			return fmt.Errorf("gpio %s: %w", p, err)
		}
	}
	if err := m.pulseReset(); err != nil {
		return err
	}
	log.Debug("display: pins configured and reset complete")
	return nil
}

func (m *Manager) pulseReset() error {
	rst := m.opts.Pins.Reset
	if rst == nil {
		return nil
	}
	if err := rst.Out(gpio.Low); err != nil {
		return fmt.Errorf("gpio %s: %w", rst, err)
	}
	m.opts.Timing.Sleep(m.opts.Timing.ResetPulse)
	if err := rst.Out(gpio.High); err != nil {
		return fmt.Errorf("gpio %s: %w", rst, err)
	}
	m.opts.Timing.Sleep(m.opts.Timing.ResetSettle)
	return nil
}

// fail records a failed step without touching the panel.
func (m *Manager) fail(status Status, msg string, err error) error {
	m.status = status
	m.lastErr = &Error{Status: status, Msg: msg, Err: err}
	log.Error("display: "+msg, err, "status", status.String())
	return m.lastErr
}

// abort is fail for Begin after the panel was allocated: the handle is
// released so nothing leaks.
func (m *Manager) abort(status Status, msg string, err error) error {
	m.driveBacklight(0)
	if cerr := m.panel.Close(); cerr != nil {
		log.Warn("display: panel close failed", "error", cerr)
	}
	m.panel = nil
	m.controller = ControllerUnknown
	return m.fail(status, msg, err)
}

func (m *Manager) logInfo() {
	i := m.Info()
	log.Info("display: information",
		"status", i.Status.String(),
		"controller", i.Controller.String(),
		"dimensions", fmt.Sprintf("%dx%d", i.Width, i.Height),
		"rotation", i.Rotation,
		"backlight", i.Backlight,
		"spi_hz", i.SPIHz,
	)
}
