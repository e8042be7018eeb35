// Package face paints BMO: background, frame, eyes and mouth for a small set
// of expressions and eye states. Every drawing call is a no-op until a canvas
// is bound, and nothing here returns errors; drawing is best-effort.
package face

import (
	"fmt"
	"strings"
	"time"

	"bmo/internal/log"
	"bmo/internal/rgb565"
	"bmo/internal/tft"
)

// Face geometry on the 240x320 portrait panel.
const (
	ScreenWidth  = 240
	ScreenHeight = 320

	centerX       = 120
	centerY       = 160
	eyeRadius     = 25
	eyeSeparation = 100
	eyeYOffset    = -40
	mouthYOffset  = 30
	mouthWidth    = 60
	mouthHeight   = 20
)

type Expression int

const (
	Happy Expression = iota
	Surprised
	Sleepy
	Excited
	Confused

	expressionCount
)

var expressionNames = [expressionCount]string{"happy", "surprised", "sleepy", "excited", "confused"}

// Expressions lists every expression in declaration order.
func Expressions() []Expression {
	out := make([]Expression, expressionCount)
	for i := range out {
		out[i] = Expression(i)
	}
	return out
}

func (e Expression) String() string {
	if e >= 0 && e < expressionCount {
		return expressionNames[e]
	}
	return fmt.Sprintf("Expression(%d)", int(e))
}

func ParseExpression(s string) (Expression, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range expressionNames {
		if n == s {
			return Expression(i), nil
		}
	}
	return Happy, fmt.Errorf("face: unknown expression %q", s)
}

func (e Expression) MarshalText() ([]byte, error) { return []byte(e.String()), nil }

func (e *Expression) UnmarshalText(b []byte) error {
	v, err := ParseExpression(string(b))
	if err != nil {
		return err
	}
	*e = v
	return nil
}

type EyeState int

const (
	EyesOpen EyeState = iota
	EyesClosed
	EyesHalfClosed
	EyesWide

	eyeStateCount
)

var eyeStateNames = [eyeStateCount]string{"open", "closed", "half_closed", "wide"}

func (s EyeState) String() string {
	if s >= 0 && s < eyeStateCount {
		return eyeStateNames[s]
	}
	return fmt.Sprintf("EyeState(%d)", int(s))
}

func ParseEyeState(s string) (EyeState, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "_")
	for i, n := range eyeStateNames {
		if n == s {
			return EyeState(i), nil
		}
	}
	return EyesOpen, fmt.Errorf("face: unknown eye state %q", s)
}

func (s EyeState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *EyeState) UnmarshalText(b []byte) error {
	v, err := ParseEyeState(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Timing holds the animation delays. Sleep performs them; tests replace it.
type Timing struct {
	Blink          time.Duration
	ExpressionFade time.Duration
	FadeStep       time.Duration
	Sleep          func(time.Duration)
}

func DefaultTiming() Timing {
	return Timing{
		Blink:          150 * time.Millisecond,
		ExpressionFade: 300 * time.Millisecond,
		FadeStep:       30 * time.Millisecond,
		Sleep:          time.Sleep,
	}
}

// Renderer draws on a borrowed canvas. It is not safe for concurrent use.
type Renderer struct {
	c      tft.Canvas
	timing Timing

	expr  Expression
	eyes  EyeState
	depth int
}

// New returns an unbound renderer. Zero timings fall back to DefaultTiming.
func New(t Timing) *Renderer {
	def := DefaultTiming()
	if t.Blink <= 0 {
		t.Blink = def.Blink
	}
	if t.ExpressionFade <= 0 {
		t.ExpressionFade = def.ExpressionFade
	}
	if t.FadeStep <= 0 {
		t.FadeStep = def.FadeStep
	}
	if t.Sleep == nil {
		t.Sleep = def.Sleep
	}
	return &Renderer{timing: t}
}

// Bind attaches the canvas owned by the display manager. Binding nil
// unbinds.
func (r *Renderer) Bind(c tft.Canvas) {
	r.c = c
	if c == nil {
		log.Warn("face: bind without a canvas, drawing disabled")
		return
	}
	log.Debug("face: canvas bound")
}

func (r *Renderer) Unbind() {
	if r.c == nil {
		return
	}
	r.c = nil
	log.Debug("face: canvas unbound")
}

func (r *Renderer) Bound() bool { return r.c != nil }

// Expression and EyeState report what DrawFace last painted.
func (r *Renderer) Expression() Expression { return r.expr }
func (r *Renderer) EyeState() EyeState { return r.eyes }

// fastDraw runs fn inside one batched-write scope. The scope is closed on
// every exit path, panics included.
func (r *Renderer) fastDraw(fn func(c tft.Canvas)) {
	c := r.c
	if c == nil {
		return
	}
	c.StartWrite()
	r.depth++
	defer func() {
		r.depth--
		c.EndWrite()
	}()
	fn(c)
}

// DrawFace paints background, frame, eyes and mouth in that order inside a
// single batched-write scope.
func (r *Renderer) DrawFace(expr Expression, eyes EyeState) {
	if r.c == nil {
		return
	}
	log.Debug("face: drawing", "expression", expr.String(), "eyes", eyes.String())
	r.expr, r.eyes = expr, eyes
	r.fastDraw(func(c tft.Canvas) {
		drawBackground(c)
		drawFrame(c)
		drawEyes(c, eyes)
		drawMouth(c, expr)
	})
}

func (r *Renderer) DrawBackground() {
	r.fastDraw(drawBackground)
}

func (r *Renderer) DrawFrame() {
	r.fastDraw(drawFrame)
}

func (r *Renderer) DrawEyes(state EyeState) {
	r.fastDraw(func(c tft.Canvas) { drawEyes(c, state) })
}

func (r *Renderer) DrawMouth(expr Expression) {
	r.fastDraw(func(c tft.Canvas) { drawMouth(c, expr) })
}

// ClearScreen fills the whole panel.
func (r *Renderer) ClearScreen(col rgb565.Color) {
	if r.c == nil {
		return
	}
	r.c.FillScreen(col)
}

// LogInfo logs the renderer state.
func (r *Renderer) LogInfo() {
	log.Info("face: information",
		"bound", r.c != nil,
		"expression", r.expr.String(),
		"eyes", r.eyes.String(),
		"fast_draw", r.depth > 0,
	)
}
