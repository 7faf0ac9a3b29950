// Package reconcile maintains a client-side live view of a canvas: a
// snapshot raster as the base plus an overlay of delta events newer than
// the snapshot's watermark. Deltas may arrive in any order; the overlay
// keeps the newest commit per coordinate, so replaying the same set of
// deltas in any order converges on the same image.
package reconcile

import (
	"image"
	"image/draw"
	"sync"

	"github.com/tilegrid/mosaic/pkg/board"
)

// coord addresses one overlay cell.
type coord struct{ x, y int }

// View is a reconciled canvas image. Safe for concurrent use.
type View struct {
	mu          sync.RWMutex
	width       int
	height      int
	base        *image.RGBA
	watermarkMs int64
	overlay     map[coord]*board.Delta
}

// NewView creates an empty view with a uniform white base.
func NewView(width, height int) *View {
	v := &View{
		width:   width,
		height:  height,
		overlay: make(map[coord]*board.Delta),
	}
	v.base = blankBase(width, height)
	return v
}

func blankBase(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(board.ColorRGBA(board.MaxColor)), image.Point{}, draw.Src)
	return img
}

// ResetBase replaces the base raster and watermark, dropping every overlay
// entry the new base already reflects. Overlay entries newer than the
// watermark survive: they arrived while the snapshot was in flight.
func (v *View) ResetBase(base *image.RGBA, watermarkMs int64) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.base = base
	v.watermarkMs = watermarkMs
	for key, d := range v.overlay {
		if d.CommitTsMs <= watermarkMs {
			delete(v.overlay, key)
		}
	}
}

// Apply folds one delta into the view and reports whether it changed
// anything. A delta loses to the base when the watermark already covers it,
// and to an existing overlay entry with a newer commit (ties broken by
// sequence number), so replay order does not matter.
func (v *View) Apply(d *board.Delta) bool {
	if d.X < 0 || d.Y < 0 || d.X >= v.width || d.Y >= v.height {
		return false
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if d.CommitTsMs <= v.watermarkMs {
		return false
	}
	key := coord{d.X, d.Y}
	if existing, ok := v.overlay[key]; ok {
		if existing.CommitTsMs > d.CommitTsMs {
			return false
		}
		if existing.CommitTsMs == d.CommitTsMs && existing.Seq >= d.Seq {
			return false
		}
	}
	v.overlay[key] = d
	return true
}

// At returns the current color of a coordinate: the overlay entry when one
// exists, otherwise the base raster.
func (v *View) At(x, y int) int {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if d, ok := v.overlay[coord{x, y}]; ok {
		return d.Color
	}
	return board.RGBAColor(v.base.RGBAAt(x, y))
}

// Watermark returns the commit time the base raster is complete up to.
func (v *View) Watermark() int64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.watermarkMs
}

// OverlaySize returns the number of deltas not yet absorbed into the base.
func (v *View) OverlaySize() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.overlay)
}

// Image renders the reconciled state into a fresh raster.
func (v *View) Image() *image.RGBA {
	v.mu.RLock()
	defer v.mu.RUnlock()

	img := image.NewRGBA(v.base.Bounds())
	draw.Draw(img, img.Bounds(), v.base, image.Point{}, draw.Src)
	for key, d := range v.overlay {
		img.SetRGBA(key.x, key.y, board.ColorRGBA(d.Color))
	}
	return img
}
