// Package snapshot renders committed canvas state into PNG objects and
// schedules regeneration. A snapshot is a full-canvas raster with a
// watermark: every pixel committed at or before the watermark is reflected
// in it, so clients can replay newer deltas on top without double-applying.
package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"log"
	"time"

	"github.com/tilegrid/mosaic/internal/config"
	"github.com/tilegrid/mosaic/pkg/board"
)

// background fills unplaced coordinates.
var background = color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}

// Renderer regenerates snapshot objects from committed canvas state.
type Renderer struct {
	board *board.Client
	cfg   *config.Config
	now   func() time.Time // injectable clock for tests
}

// NewRenderer creates a snapshot renderer.
func NewRenderer(boardClient *board.Client, cfg *config.Config) *Renderer {
	return &Renderer{
		board: boardClient,
		cfg:   cfg,
		now:   time.Now,
	}
}

// Render regenerates the snapshot for one canvas and stores it in the
// content store: the "latest" object is replaced, and when history is
// enabled a timestamped copy is stored alongside it. Returns the metadata
// of the new snapshot.
//
// Rendering reads committed state only. Pixels committed while the render
// is in flight may or may not appear; either way the watermark reflects
// exactly what the raster contains.
func (r *Renderer) Render(ctx context.Context, canvasID string) (*board.SnapshotMeta, error) {
	width, height, err := r.ensureCanvas(ctx, canvasID)
	if err != nil {
		return nil, err
	}

	pixels, err := r.board.ListPixels(ctx, canvasID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pixels for canvas %s: %w", canvasID, err)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	var watermark int64
	drawn := 0
	for _, p := range pixels {
		if p.X >= width || p.Y >= height {
			// Stored out-of-range state never reaches the raster.
			continue
		}
		img.SetRGBA(p.X, p.Y, board.ColorRGBA(p.Color))
		drawn++
		if p.UpdatedAtMs > watermark {
			watermark = p.UpdatedAtMs
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot for canvas %s: %w", canvasID, err)
	}

	version, err := r.board.BumpCanvasVersion(ctx, canvasID)
	if err != nil {
		return nil, fmt.Errorf("failed to bump canvas version for %s: %w", canvasID, err)
	}

	createdAt := r.now()
	meta := &board.SnapshotMeta{
		CanvasID:    canvasID,
		WatermarkMs: watermark,
		Width:       width,
		Height:      height,
		PixelCount:  drawn,
		Version:     version,
		CreatedAtMs: createdAt.UnixMilli(),
	}

	if err := r.board.PutObject(ctx, board.LatestSnapshotPath(canvasID), buf.Bytes(), meta); err != nil {
		return nil, err
	}

	if *r.cfg.Snapshot.History {
		path := board.HistoricalSnapshotPath(canvasID, createdAt.UTC().Format(time.RFC3339))
		if err := r.board.PutObject(ctx, path, buf.Bytes(), meta); err != nil {
			// Latest already landed; a missing historical copy is not fatal.
			log.Printf("[Snapshot] historical copy for canvas %s failed: %v", canvasID, err)
		}
	}

	return meta, nil
}

// ensureCanvas returns the canvas dimensions, materializing the record
// with the configured dimensions when it does not exist yet. The record
// must exist before the version bump: incrementing a version field on a
// missing hash would leave a record that can never deserialize.
func (r *Renderer) ensureCanvas(ctx context.Context, canvasID string) (int, int, error) {
	canvas, err := r.board.GetCanvas(ctx, canvasID)
	if err == nil {
		return canvas.Width, canvas.Height, nil
	}
	if !board.IsNotFound(err) {
		return 0, 0, fmt.Errorf("failed to read canvas %s: %w", canvasID, err)
	}

	width, height := r.cfg.CanvasDimensions(canvasID)
	stored, err := r.board.EnsureCanvas(ctx, &board.Canvas{
		ID:          canvasID,
		Width:       width,
		Height:      height,
		Version:     1,
		CreatedAtMs: r.now().UnixMilli(),
	})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to materialize canvas %s: %w", canvasID, err)
	}
	return stored.Width, stored.Height, nil
}
