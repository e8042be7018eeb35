package face

import (
	"bmo/internal/rgb565"
	"bmo/internal/tft"
)

const (
	frameThickness = 6
	frameRadius    = 12

	curveSegments   = 20
	curveThickness  = 3
	closedEyeWidth  = eyeRadius * 2
	closedEyeHeight = 4
)

// eyeDrawers and mouthDrawers have one entry per variant; a missing entry is
// caught by TestEveryVariantHasADrawer.
var eyeDrawers = [eyeStateCount]func(c tft.Canvas, cx, cy int){
	EyesOpen:       drawOpenEye,
	EyesClosed:     drawClosedEye,
	EyesHalfClosed: drawHalfClosedEye,
	EyesWide:       drawWideEye,
}

var mouthDrawers = [expressionCount]func(c tft.Canvas, cx, cy int, ink rgb565.Color){
	Happy:     drawHappyMouth,
	Surprised: drawSurprisedMouth,
	Sleepy:    drawSleepyMouth,
	Excited:   drawExcitedMouth,
	Confused:  drawConfusedMouth,
}

func eyeCenters() (lx, rx, y int) {
	return centerX - eyeSeparation/2, centerX + eyeSeparation/2, centerY + eyeYOffset
}

func mouthCenter() (x, y int) {
	return centerX, centerY + mouthYOffset
}

// backgroundRow is the colour of the gradient line at row y.
func backgroundRow(y int) rgb565.Color {
	return rgb565.Blend(rgb565.Teal, rgb565.LightTeal, float64(y)/ScreenHeight*0.1)
}

// drawBackground fills teal and overlays a faint vertical gradient every
// fourth row.
func drawBackground(c tft.Canvas) {
	c.FillScreen(rgb565.Teal)
	for y := 0; y < ScreenHeight; y += 4 {
		c.DrawFastHLine(0, y, ScreenWidth, backgroundRow(y))
	}
}

// repaintBackground restores the background inside a rectangle.
func repaintBackground(c tft.Canvas, x, y, w, h int) {
	c.FillRect(x, y, w, h, rgb565.Teal)
	for row := (y + 3) / 4 * 4; row < y+h; row += 4 {
		c.DrawFastHLine(x, row, w, backgroundRow(row))
	}
}

func drawFrame(c tft.Canvas) {
	for i := 0; i < frameThickness; i++ {
		c.DrawRoundRect(i, i, ScreenWidth-2*i, ScreenHeight-2*i, frameRadius, rgb565.DarkTeal)
	}
	c.DrawRoundRect(frameThickness, frameThickness,
		ScreenWidth-2*frameThickness, ScreenHeight-2*frameThickness,
		frameRadius-2, rgb565.LightTeal)
}

// drawEyes draws both eyes; unknown states draw nothing.
func drawEyes(c tft.Canvas, state EyeState) {
	if state < 0 || state >= eyeStateCount {
		return
	}
	lx, rx, y := eyeCenters()
	eyeDrawers[state](c, lx, y)
	eyeDrawers[state](c, rx, y)
}

// drawMouth draws the mouth in black; unknown expressions smile.
func drawMouth(c tft.Canvas, expr Expression) {
	drawMouthInk(c, expr, rgb565.Black)
}

func drawMouthInk(c tft.Canvas, expr Expression, ink rgb565.Color) {
	if expr < 0 || expr >= expressionCount {
		expr = Happy
	}
	x, y := mouthCenter()
	mouthDrawers[expr](c, x, y, ink)
}

func drawOpenEye(c tft.Canvas, cx, cy int) {
	drawSmoothCircle(c, cx, cy, eyeRadius, rgb565.Black)
	drawEyeHighlight(c, cx, cy)
}

// drawClosedEye is a thick bar with round caps.
func drawClosedEye(c tft.Canvas, cx, cy int) {
	half := closedEyeWidth / 2
	for i := 0; i < closedEyeHeight; i++ {
		y := cy + i - closedEyeHeight/2
		c.DrawLine(cx-half, y, cx+half, y, rgb565.Black)
	}
	c.FillCircle(cx-half, cy, closedEyeHeight/2, rgb565.Black)
	c.FillCircle(cx+half, cy, closedEyeHeight/2, rgb565.Black)
}

func drawHalfClosedEye(c tft.Canvas, cx, cy int) {
	c.FillEllipse(cx, cy, eyeRadius, eyeRadius/2, rgb565.Black)
	drawEyeHighlight(c, cx, cy-eyeRadius/4)
}

func drawWideEye(c tft.Canvas, cx, cy int) {
	drawSmoothCircle(c, cx, cy, eyeRadius+5, rgb565.Black)
	drawEyeHighlight(c, cx, cy)
	c.FillCircle(cx+5, cy-5, 3, rgb565.White)
}

func drawEyeHighlight(c tft.Canvas, cx, cy int) {
	c.FillCircle(cx-8, cy-8, 6, rgb565.White)
	c.FillCircle(cx-5, cy-12, 2, rgb565.White)
}

// drawSmoothCircle fills a circle and outlines it slightly darker.
func drawSmoothCircle(c tft.Canvas, cx, cy, r int, col rgb565.Color) {
	c.FillCircle(cx, cy, r, col)
	c.DrawCircle(cx, cy, r, rgb565.Darken(col, 0.2))
}

func drawHappyMouth(c tft.Canvas, cx, cy int, ink rgb565.Color) {
	drawCurve(c, cx, cy, mouthWidth, mouthHeight, ink)
}

// drawSurprisedMouth is a donut: a filled oval with a teal inset.
func drawSurprisedMouth(c tft.Canvas, cx, cy int, ink rgb565.Color) {
	c.FillEllipse(cx, cy, 15, 20, ink)
	c.FillEllipse(cx, cy, 10, 15, rgb565.Teal)
}

func drawSleepyMouth(c tft.Canvas, cx, cy int, ink rgb565.Color) {
	drawThickLine(c, cx-20, cy, cx+20, cy, 3, ink)
}

func drawExcitedMouth(c tft.Canvas, cx, cy int, ink rgb565.Color) {
	drawCurve(c, cx, cy, mouthWidth+20, mouthHeight+10, ink)
	for i := 0; i < 4; i++ {
		c.FillRect(cx-20+i*13, cy+8, 3, 8, rgb565.White)
	}
}

// drawConfusedMouth is an eight segment zig-zag.
func drawConfusedMouth(c tft.Canvas, cx, cy int, ink rgb565.Color) {
	const segments = 8
	segW := mouthWidth / segments
	for i := 0; i < segments; i++ {
		x1 := cx - mouthWidth/2 + i*segW
		x2 := x1 + segW
		y1, y2 := cy-5, cy+5
		if i%2 == 1 {
			y1, y2 = y2, y1
		}
		drawThickLine(c, x1, y1, x2, y2, 2, ink)
	}
}

// drawCurve traces y = cy + h*(1-t^2), t in [-1, 1] across the width, as
// thick line segments. The middle sits lowest on screen, so it reads as a
// smile.
func drawCurve(c tft.Canvas, cx, cy, width, height int, ink rgb565.Color) {
	startX := cx - width/2
	segW := width / curveSegments
	half := float64(width / 2)
	curveY := func(x int) int {
		t := float64(x-cx) / half
		return cy + int(float64(height)*(1-t*t))
	}
	for i := 0; i < curveSegments; i++ {
		x1 := startX + i*segW
		x2 := startX + (i+1)*segW
		drawThickLine(c, x1, curveY(x1), x2, curveY(x2), curveThickness, ink)
	}
}

// drawThickLine draws a thickness x thickness grid of parallel lines.
func drawThickLine(c tft.Canvas, x1, y1, x2, y2, thickness int, ink rgb565.Color) {
	off := thickness / 2
	for i := 0; i < thickness; i++ {
		for j := 0; j < thickness; j++ {
			c.DrawLine(x1+i-off, y1+j-off, x2+i-off, y2+j-off, ink)
		}
	}
}
