package board

import (
	"fmt"
	"image/color"
)

// MaxColor is the largest valid pixel color (24-bit RGB, no alpha).
const MaxColor = 0xFFFFFF

// Pixel is one addressable cell on a canvas. A pixel is identified by
// (CanvasID, X, Y); each successful commit is a total overwrite of the
// previous state at that coordinate.
type Pixel struct {
	CanvasID    string `json:"canvas_id"`     // Canvas this pixel belongs to
	X           int    `json:"x"`             // Column, 0-based, < canvas width
	Y           int    `json:"y"`             // Row, 0-based, < canvas height
	Color       int    `json:"color"`         // 24-bit RGB integer in [0, 0xFFFFFF]
	ActorID     string `json:"actor_id"`      // Actor that committed the current color
	UpdatedAtMs int64  `json:"updated_at_ms"` // Server-assigned commit time, Unix millis
}

// Actor is an external identity permitted to place pixels, subject to the
// cooldown window. LastPlacedMs is zero for an actor that has never placed.
// The field is monotonically non-decreasing across successful commits.
type Actor struct {
	ID           string `json:"id"`
	DisplayName  string `json:"display_name"`
	LastPlacedMs int64  `json:"last_placed_ms"`
	PixelCount   int64  `json:"pixel_count"` // Cumulative successful placements
}

// Canvas is the shared grid pixels are placed on. Width and height are
// immutable after creation. Version increases on snapshot regeneration and
// administrative changes, not on individual pixel commits.
type Canvas struct {
	ID          string `json:"id"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Version     int    `json:"version"`
	TotalPixels int64  `json:"total_pixels"` // Denormalized count of distinct placed coordinates
	CreatedAtMs int64  `json:"created_at_ms"`
}

// Delta is a single committed pixel change as published on the per-canvas
// delta channel. Seq is a per-canvas monotonically increasing sequence
// number assigned inside the atomic commit; subscribers use it to detect
// missed events.
type Delta struct {
	CanvasID   string `json:"canvas_id"`
	Seq        int64  `json:"seq"`
	X          int    `json:"x"`
	Y          int    `json:"y"`
	Color      int    `json:"color"`
	ActorID    string `json:"actor_id"`
	CommitTsMs int64  `json:"commit_ts_ms"`
}

// SnapshotMeta describes a rendered canvas snapshot stored as an object.
// WatermarkMs is the commit time of the newest pixel reflected in the
// raster: every pixel committed at or before the watermark appears in it.
type SnapshotMeta struct {
	CanvasID    string `json:"canvas_id"`
	WatermarkMs int64  `json:"watermark_ms"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	PixelCount  int    `json:"pixel_count"`
	Version     int    `json:"version"`
	CreatedAtMs int64  `json:"created_at_ms"`
}

// Validate checks if the Pixel has valid field values.
func (p *Pixel) Validate() error {
	if p.CanvasID == "" {
		return fmt.Errorf("canvas ID cannot be empty")
	}
	if p.X < 0 || p.Y < 0 {
		return fmt.Errorf("coordinates must be non-negative, got (%d,%d)", p.X, p.Y)
	}
	if p.Color < 0 || p.Color > MaxColor {
		return fmt.Errorf("color must be in [0, 0xFFFFFF], got %d", p.Color)
	}
	if p.ActorID == "" {
		return fmt.Errorf("actor ID cannot be empty")
	}
	return nil
}

// Validate checks if the Actor has valid field values.
func (a *Actor) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("actor ID cannot be empty")
	}
	if a.LastPlacedMs < 0 {
		return fmt.Errorf("last_placed_ms cannot be negative, got %d", a.LastPlacedMs)
	}
	if a.PixelCount < 0 {
		return fmt.Errorf("pixel_count cannot be negative, got %d", a.PixelCount)
	}
	return nil
}

// Validate checks if the Canvas has valid field values.
func (c *Canvas) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("canvas ID cannot be empty")
	}
	if c.Width < 1 || c.Height < 1 {
		return fmt.Errorf("dimensions must be positive, got %dx%d", c.Width, c.Height)
	}
	if c.Version < 1 {
		return fmt.Errorf("version must be >= 1, got %d", c.Version)
	}
	return nil
}

// Validate checks if the Delta has valid field values.
func (d *Delta) Validate() error {
	if d.CanvasID == "" {
		return fmt.Errorf("canvas ID cannot be empty")
	}
	if d.Seq < 1 {
		return fmt.Errorf("sequence must be >= 1, got %d", d.Seq)
	}
	if d.X < 0 || d.Y < 0 {
		return fmt.Errorf("coordinates must be non-negative, got (%d,%d)", d.X, d.Y)
	}
	if d.Color < 0 || d.Color > MaxColor {
		return fmt.Errorf("color must be in [0, 0xFFFFFF], got %d", d.Color)
	}
	return nil
}

// ColorRGBA converts a 24-bit RGB integer to an opaque color.RGBA.
func ColorRGBA(c int) color.RGBA {
	return color.RGBA{
		R: uint8(c >> 16 & 0xFF),
		G: uint8(c >> 8 & 0xFF),
		B: uint8(c & 0xFF),
		A: 0xFF,
	}
}

// RGBAColor converts a color.RGBA back to a 24-bit RGB integer.
// The alpha channel is discarded.
func RGBAColor(c color.RGBA) int {
	return int(c.R)<<16 | int(c.G)<<8 | int(c.B)
}
