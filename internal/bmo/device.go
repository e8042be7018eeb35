// Package bmo ties the display lifecycle manager and the face renderer into
// one device that the scheduler, the HTTP API and the command line share.
// Device is the only place that locks: manager and renderer stay
// single-threaded underneath it.
package bmo

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"bmo/internal/display"
	"bmo/internal/face"
	"bmo/internal/log"
	"bmo/internal/rgb565"
	"bmo/internal/tft"
)

var (
	ErrNotReady  = errors.New("bmo: display not initialized")
	ErrAsleep    = errors.New("bmo: display is asleep")
	ErrNoPreview = errors.New("bmo: preview needs a framebuffer panel")
)

type Options struct {
	Manager  *display.Manager
	Renderer *face.Renderer

	// Brightness is applied after every successful BeginDisplay; zero keeps
	// the full brightness Begin leaves behind.
	Brightness uint8
	Expression face.Expression
	Eyes       face.EyeState
	// Moods is the rotation used by NextMood; empty means every expression.
	Moods []face.Expression

	// DiagHold is how long each diagnostic screen stays up.
	DiagHold time.Duration
	Sleep    func(time.Duration)
}

// Device is safe for concurrent use.
type Device struct {
	mu   sync.Mutex
	opts Options
	mgr  *display.Manager
	face *face.Renderer

	expr face.Expression
	eyes face.EyeState
	mood int

	fb atomic.Pointer[tft.Framebuffer]
}

func New(opts Options) *Device {
	if len(opts.Moods) == 0 {
		opts.Moods = face.Expressions()
	}
	if opts.DiagHold <= 0 {
		opts.DiagHold = 2 * time.Second
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	d := &Device{
		opts: opts,
		mgr:  opts.Manager,
		face: opts.Renderer,
		expr: opts.Expression,
		eyes: opts.Eyes,
	}
	for i, m := range opts.Moods {
		if m == opts.Expression {
			d.mood = i
			break
		}
	}
	return d
}

// BeginDisplay initializes the panel, binds the renderer to it, applies the
// configured brightness and draws the current face.
func (d *Device) BeginDisplay() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.mgr.Initialized() {
		return nil
	}
	if err := d.mgr.Begin(); err != nil {
		d.face.Unbind()
		return err
	}
	p := d.mgr.Panel()
	if fb, ok := p.(*tft.Framebuffer); ok {
		d.fb.Store(fb)
	}
	d.face.Bind(p)
	if d.opts.Brightness > 0 {
		d.mgr.SetBacklight(d.opts.Brightness)
	}
	d.face.DrawFace(d.expr, d.eyes)
	d.face.LogInfo()
	return nil
}

// EndDisplay unbinds the renderer before the manager releases the panel,
// and withdraws the preview handle.
func (d *Device) EndDisplay() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.face.Unbind()
	d.mgr.End()
	d.fb.Store(nil)
}

func (d *Device) SetBacklight(level uint8) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mgr.SetBacklight(level)
}

func (d *Device) Backlight() uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mgr.Backlight()
}

// Sleep fades the face out to black before the panel enters sleep mode.
func (d *Device) Sleep() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.mgr.Initialized() {
		return ErrNotReady
	}
	if d.mgr.State() == display.StateReady {
		d.face.FadeTransition(rgb565.Teal, rgb565.Black, 0)
	}
	return d.mgr.Sleep()
}

// Wakeup leaves sleep mode and fades back in to the current face. Waking a
// panel that is already awake only resends the wake command.
func (d *Device) Wakeup() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.mgr.Initialized() {
		return ErrNotReady
	}
	wasAsleep := d.mgr.State() == display.StateAsleep
	if err := d.mgr.Wakeup(); err != nil {
		return err
	}
	if wasAsleep {
		d.face.FadeTransition(rgb565.Black, rgb565.Teal, 0)
		d.face.DrawFace(d.expr, d.eyes)
	}
	return nil
}

// ResetDisplay resets the panel and, when it comes back, redraws the face
// since the controller's memory content is lost.
func (d *Device) ResetDisplay() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.mgr.Reset(); err != nil {
		return err
	}
	if d.mgr.State() == display.StateReady {
		d.face.DrawFace(d.expr, d.eyes)
	}
	return nil
}

func (d *Device) DrawFace(expr face.Expression, eyes face.EyeState) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ready(); err != nil {
		return err
	}
	d.expr, d.eyes = expr, eyes
	d.face.DrawFace(expr, eyes)
	return nil
}

// Blink blocks for the blink animation.
func (d *Device) Blink() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ready(); err != nil {
		return err
	}
	d.face.AnimateBlink()
	d.eyes = face.EyesOpen
	return nil
}

// ChangeExpression fades the mouth to a new expression.
func (d *Device) ChangeExpression(to face.Expression) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.changeExpression(to)
}

// NextMood advances the mood rotation and animates to it.
func (d *Device) NextMood() (face.Expression, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	next := d.opts.Moods[(d.mood+1)%len(d.opts.Moods)]
	if err := d.changeExpression(next); err != nil {
		return d.expr, err
	}
	d.mood = (d.mood + 1) % len(d.opts.Moods)
	return next, nil
}

func (d *Device) changeExpression(to face.Expression) error {
	if err := d.ready(); err != nil {
		return err
	}
	if to == d.expr {
		return nil
	}
	d.face.AnimateExpressionChange(d.expr, to)
	d.expr = to
	return nil
}

func (d *Device) ClearScreen(c rgb565.Color) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ready(); err != nil {
		return err
	}
	d.face.ClearScreen(c)
	return nil
}

// Diagnostics shows the colour, geometry and information screens in turn,
// then the face again.
func (d *Device) Diagnostics() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ready(); err != nil {
		return err
	}
	log.Info("bmo: running diagnostics")

	d.face.DrawColorTest()
	d.opts.Sleep(d.opts.DiagHold)
	d.face.DrawGeometryTest()
	d.opts.Sleep(d.opts.DiagHold)

	info := d.mgr.Info()
	d.face.ClearScreen(rgb565.Black)
	d.face.DrawInfo([]string{
		"BMO display",
		"controller " + info.Controller.String(),
		fmt.Sprintf("size %dx%d rot %d", info.Width, info.Height, info.Rotation),
		fmt.Sprintf("backlight %d", info.Backlight),
		fmt.Sprintf("spi %d Hz", info.SPIHz),
		"status " + info.Status.String(),
	})
	d.opts.Sleep(d.opts.DiagHold)

	d.face.DrawFace(d.expr, d.eyes)
	return nil
}

// Snapshot is the device state reported by the API.
type Snapshot struct {
	display.Info
	Expression face.Expression `json:"expression"`
	Eyes       face.EyeState   `json:"eyes"`
	FaceBound  bool            `json:"face_bound"`
	LastError  string          `json:"last_error,omitempty"`
}

func (d *Device) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := Snapshot{
		Info:       d.mgr.Info(),
		Expression: d.expr,
		Eyes:       d.eyes,
		FaceBound:  d.face.Bound(),
	}
	if err := d.mgr.LastError(); err != nil {
		s.LastError = err.Error()
	}
	return s
}

// Framebuffer returns the in-memory panel of a headless device, or nil. It
// does not take the device lock, so previews never wait for an animation.
func (d *Device) Framebuffer() *tft.Framebuffer {
	return d.fb.Load()
}

// WritePreview encodes the current screen as PNG.
func (d *Device) WritePreview(w io.Writer) error {
	fb := d.fb.Load()
	if fb == nil {
		return ErrNoPreview
	}
	return fb.WritePNG(w)
}

func (d *Device) ready() error {
	switch d.mgr.State() {
	case display.StateReady:
		return nil
	case display.StateAsleep:
		return ErrAsleep
	}
	return ErrNotReady
}
