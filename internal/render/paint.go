package render

import (
	"fmt"
	"image"

	"github.com/ivlev/reel2video/internal/timeline"
)

// Target is a resizable raster that exposes its paint context and announces finished frames.
type Target interface {
	Size() (width, height int)
	Canvas() (*image.RGBA, error)
	Present()
}

// Paint renders elapsedMs onto the target at its current size and presents the frame.
// Preview and export both go through here and differ only in target size.
func (r *Renderer) Paint(t Target, plan *timeline.Plan, elapsedMs int) error {
	if t == nil {
		return ErrSurfaceUnavailable
	}
	canvas, err := t.Canvas()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSurfaceUnavailable, err)
	}

	w, h := t.Size()
	if err := r.Render(canvas, plan, elapsedMs, w, h); err != nil {
		return err
	}

	t.Present()
	return nil
}
