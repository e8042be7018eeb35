//go:build cgo

// Package preview mirrors a framebuffer panel in a desktop window.
package preview

import (
	"context"
	"errors"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"

	"bmo/internal/log"
	"bmo/internal/tft"
)

// Source returns the panel to show; nil shows a blank window.
type Source func() *tft.Framebuffer

// Run opens a window at scale times the panel size and blocks until the
// window is closed or ctx is cancelled. It must be called from the main
// goroutine.
func Run(ctx context.Context, title string, scale int, src Source) error {
	if scale <= 0 {
		scale = 2
	}
	g := &window{ctx: ctx, src: src, w: tft.DefaultWidth, h: tft.DefaultHeight}
	if fb := src(); fb != nil {
		g.w, g.h = fb.Width(), fb.Height()
	}

	ebiten.SetWindowTitle(title)
	ebiten.SetWindowSize(g.w*scale, g.h*scale)
	ebiten.SetTPS(30)
	log.Info("preview: window opened", "width", g.w, "height", g.h, "scale", scale)

	err := ebiten.RunGame(g)
	if errors.Is(err, ebiten.Termination) {
		return nil
	}
	return err
}

type window struct {
	ctx  context.Context
	src  Source
	w, h int
	img  *ebiten.Image
}

func (g *window) Update() error {
	if g.ctx.Err() != nil {
		return ebiten.Termination
	}
	return nil
}

func (g *window) Draw(screen *ebiten.Image) {
	fb := g.src()
	if fb == nil {
		screen.Fill(color.Black)
		return
	}
	rgba := fb.Image()
	b := rgba.Bounds()
	if g.img == nil || g.img.Bounds().Dx() != b.Dx() || g.img.Bounds().Dy() != b.Dy() {
		if g.img != nil {
			g.img.Deallocate()
		}
		g.img = ebiten.NewImage(b.Dx(), b.Dy())
		g.w, g.h = b.Dx(), b.Dy()
	}
	g.img.WritePixels(rgba.Pix)
	screen.DrawImage(g.img, nil)
}

func (g *window) Layout(_, _ int) (int, int) {
	return g.w, g.h
}
