package board

import (
	"fmt"
	"strconv"
)

// Serialization helpers for converting between Go structs and Redis hashes
//
// Redis stores data as string-to-string maps (hashes). Numeric fields are
// stored as decimal strings so they remain HINCRBY-compatible inside the
// atomic commit script.

// PixelToHash converts a Pixel struct to a Redis hash format.
func PixelToHash(p *Pixel) map[string]interface{} {
	return map[string]interface{}{
		"canvas_id":     p.CanvasID,
		"x":             p.X,
		"y":             p.Y,
		"color":         p.Color,
		"actor_id":      p.ActorID,
		"updated_at_ms": p.UpdatedAtMs,
	}
}

// HashToPixel converts a Redis hash to a Pixel struct.
func HashToPixel(hash map[string]string) (*Pixel, error) {
	x, err := strconv.Atoi(hash["x"])
	if err != nil {
		return nil, fmt.Errorf("invalid x field: %w", err)
	}

	y, err := strconv.Atoi(hash["y"])
	if err != nil {
		return nil, fmt.Errorf("invalid y field: %w", err)
	}

	colorVal, err := strconv.Atoi(hash["color"])
	if err != nil {
		return nil, fmt.Errorf("invalid color field: %w", err)
	}

	updatedAtMs, err := strconv.ParseInt(hash["updated_at_ms"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid updated_at_ms field: %w", err)
	}

	return &Pixel{
		CanvasID:    hash["canvas_id"],
		X:           x,
		Y:           y,
		Color:       colorVal,
		ActorID:     hash["actor_id"],
		UpdatedAtMs: updatedAtMs,
	}, nil
}

// ActorToHash converts an Actor struct to a Redis hash format.
func ActorToHash(a *Actor) map[string]interface{} {
	return map[string]interface{}{
		"id":             a.ID,
		"display_name":   a.DisplayName,
		"last_placed_ms": a.LastPlacedMs,
		"pixel_count":    a.PixelCount,
	}
}

// HashToActor converts a Redis hash to an Actor struct.
// last_placed_ms and pixel_count default to zero when absent, matching a
// freshly created actor record.
func HashToActor(hash map[string]string) (*Actor, error) {
	var lastPlacedMs int64
	if raw := hash["last_placed_ms"]; raw != "" {
		var err error
		lastPlacedMs, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid last_placed_ms field: %w", err)
		}
	}

	var pixelCount int64
	if raw := hash["pixel_count"]; raw != "" {
		var err error
		pixelCount, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid pixel_count field: %w", err)
		}
	}

	return &Actor{
		ID:           hash["id"],
		DisplayName:  hash["display_name"],
		LastPlacedMs: lastPlacedMs,
		PixelCount:   pixelCount,
	}, nil
}

// CanvasToHash converts a Canvas struct to a Redis hash format.
func CanvasToHash(c *Canvas) map[string]interface{} {
	return map[string]interface{}{
		"id":            c.ID,
		"width":         c.Width,
		"height":        c.Height,
		"version":       c.Version,
		"total_pixels":  c.TotalPixels,
		"created_at_ms": c.CreatedAtMs,
	}
}

// HashToCanvas converts a Redis hash to a Canvas struct.
func HashToCanvas(hash map[string]string) (*Canvas, error) {
	width, err := strconv.Atoi(hash["width"])
	if err != nil {
		return nil, fmt.Errorf("invalid width field: %w", err)
	}

	height, err := strconv.Atoi(hash["height"])
	if err != nil {
		return nil, fmt.Errorf("invalid height field: %w", err)
	}

	version, err := strconv.Atoi(hash["version"])
	if err != nil {
		return nil, fmt.Errorf("invalid version field: %w", err)
	}

	var totalPixels int64
	if raw := hash["total_pixels"]; raw != "" {
		totalPixels, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid total_pixels field: %w", err)
		}
	}

	createdAtMs, _ := strconv.ParseInt(hash["created_at_ms"], 10, 64)

	return &Canvas{
		ID:          hash["id"],
		Width:       width,
		Height:      height,
		Version:     version,
		TotalPixels: totalPixels,
		CreatedAtMs: createdAtMs,
	}, nil
}

// SnapshotMetaToHash converts a SnapshotMeta struct to a Redis hash format.
func SnapshotMetaToHash(m *SnapshotMeta) map[string]interface{} {
	return map[string]interface{}{
		"canvas_id":     m.CanvasID,
		"watermark_ms":  m.WatermarkMs,
		"width":         m.Width,
		"height":        m.Height,
		"pixel_count":   m.PixelCount,
		"version":       m.Version,
		"created_at_ms": m.CreatedAtMs,
	}
}

// HashToSnapshotMeta converts a Redis hash to a SnapshotMeta struct.
func HashToSnapshotMeta(hash map[string]string) (*SnapshotMeta, error) {
	watermarkMs, err := strconv.ParseInt(hash["watermark_ms"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid watermark_ms field: %w", err)
	}

	width, err := strconv.Atoi(hash["width"])
	if err != nil {
		return nil, fmt.Errorf("invalid width field: %w", err)
	}

	height, err := strconv.Atoi(hash["height"])
	if err != nil {
		return nil, fmt.Errorf("invalid height field: %w", err)
	}

	pixelCount, err := strconv.Atoi(hash["pixel_count"])
	if err != nil {
		return nil, fmt.Errorf("invalid pixel_count field: %w", err)
	}

	version, _ := strconv.Atoi(hash["version"])
	createdAtMs, _ := strconv.ParseInt(hash["created_at_ms"], 10, 64)

	return &SnapshotMeta{
		CanvasID:    hash["canvas_id"],
		WatermarkMs: watermarkMs,
		Width:       width,
		Height:      height,
		PixelCount:  pixelCount,
		Version:     version,
		CreatedAtMs: createdAtMs,
	}, nil
}
