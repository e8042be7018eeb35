package face

import (
	"bmo/internal/log"
	"bmo/internal/rgb565"
	"bmo/internal/tft"
)

// Background boxes cleared before an eye or mouth is redrawn in place. They
// cover the largest variant plus its outline and line thickness.
const (
	eyeBoxHalf = eyeRadius + 7

	mouthBoxX = 45
	mouthBoxY = 25
	mouthBoxW = 2*mouthBoxX + 1
	mouthBoxH = 60

	fadeFrames = 5
)

func clearEyes(c tft.Canvas) {
	lx, rx, y := eyeCenters()
	for _, x := range []int{lx, rx} {
		repaintBackground(c, x-eyeBoxHalf, y-eyeBoxHalf, 2*eyeBoxHalf+1, 2*eyeBoxHalf+1)
	}
}

func clearMouth(c tft.Canvas) {
	x, y := mouthCenter()
	repaintBackground(c, x-mouthBoxX, y-mouthBoxY, mouthBoxW, mouthBoxH)
}

// AnimateBlink closes the eyes, holds them shut and opens them again. It
// blocks for the blink duration.
func (r *Renderer) AnimateBlink() {
	if r.c == nil {
		return
	}
	r.fastDraw(func(c tft.Canvas) {
		clearEyes(c)
		drawEyes(c, EyesClosed)
	})
	r.timing.Sleep(r.timing.Blink)
	r.fastDraw(func(c tft.Canvas) {
		clearEyes(c)
		drawEyes(c, EyesOpen)
	})
	r.eyes = EyesOpen
	log.Debug("face: blink complete")
}

// AnimateExpressionChange fades the current mouth into the background and
// the new one out of it. Eyes and frame are left alone.
func (r *Renderer) AnimateExpressionChange(from, to Expression) {
	if r.c == nil {
		return
	}
	step := r.timing.ExpressionFade / (2 * fadeFrames)

	for i := 1; i <= fadeFrames; i++ {
		ink := rgb565.Blend(rgb565.Black, rgb565.Teal, float64(i)/fadeFrames)
		r.fastDraw(func(c tft.Canvas) {
			clearMouth(c)
			if i < fadeFrames {
				drawMouthInk(c, from, ink)
			}
		})
		r.timing.Sleep(step)
	}
	for i := 1; i <= fadeFrames; i++ {
		ink := rgb565.Blend(rgb565.Teal, rgb565.Black, float64(i)/fadeFrames)
		r.fastDraw(func(c tft.Canvas) {
			clearMouth(c)
			drawMouthInk(c, to, ink)
		})
		r.timing.Sleep(step)
	}
	r.expr = to
	log.Debug("face: expression changed", "from", from.String(), "to", to.String())
}

// FadeTransition fills the screen with colours stepping from one colour to
// the other. steps <= 0 uses 10.
func (r *Renderer) FadeTransition(from, to rgb565.Color, steps int) {
	if r.c == nil {
		return
	}
	if steps <= 0 {
		steps = 10
	}
	for i := 0; i <= steps; i++ {
		r.c.FillScreen(rgb565.Blend(from, to, float64(i)/float64(steps)))
		if i < steps {
			r.timing.Sleep(r.timing.FadeStep)
		}
	}
}
