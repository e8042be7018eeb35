//go:build !cgo

package preview

import (
	"context"
	"errors"

	"bmo/internal/tft"
)

type Source func() *tft.Framebuffer

// Run is unavailable without cgo; the window toolkit needs it.
func Run(_ context.Context, _ string, _ int, _ Source) error {
	return errors.New("preview: built without cgo, window unavailable")
}
