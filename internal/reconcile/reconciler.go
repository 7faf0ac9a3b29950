package reconcile

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"log"
	"time"

	"github.com/tilegrid/mosaic/pkg/board"
)

// SnapshotSource fetches the current snapshot of a canvas. Implemented by
// StoreSnapshotSource; tests substitute a fake.
type SnapshotSource interface {
	Fetch(ctx context.Context, canvasID string) (*image.RGBA, *board.SnapshotMeta, error)
}

// StoreSnapshotSource reads snapshots from the content store.
type StoreSnapshotSource struct {
	Board *board.Client
}

// Fetch returns the latest snapshot raster and metadata for a canvas.
// A canvas with no snapshot yet yields board.IsNotFound-matching error.
func (s *StoreSnapshotSource) Fetch(ctx context.Context, canvasID string) (*image.RGBA, *board.SnapshotMeta, error) {
	obj, err := s.Board.GetObject(ctx, board.LatestSnapshotPath(canvasID))
	if err != nil {
		return nil, nil, err
	}
	if obj.Meta == nil {
		return nil, nil, fmt.Errorf("snapshot for canvas %s has no metadata", canvasID)
	}

	decoded, err := png.Decode(bytes.NewReader(obj.Data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode snapshot for canvas %s: %w", canvasID, err)
	}

	rgba, ok := decoded.(*image.RGBA)
	if !ok {
		rgba = image.NewRGBA(decoded.Bounds())
		draw.Draw(rgba, rgba.Bounds(), decoded, decoded.Bounds().Min, draw.Src)
	}
	return rgba, obj.Meta, nil
}

// Reconciler keeps a View synchronized with a canvas: it loads the latest
// snapshot as the base, subscribes to the delta feed from the snapshot's
// watermark, and folds deltas into the overlay. A gap in the delta sequence
// means events were missed on the at-most-once feed; the reconciler then
// re-fetches a snapshot instead of continuing on known-stale state.
type Reconciler struct {
	board    *board.Client
	source   SnapshotSource
	canvasID string
	view     *View

	refreshInterval time.Duration
	lastSeq         int64
}

// NewReconciler creates a reconciler for one canvas. The view starts blank
// with the given dimensions until the first snapshot loads. A zero refresh
// interval disables periodic snapshot refresh.
func NewReconciler(boardClient *board.Client, source SnapshotSource, canvasID string, width, height int, refresh time.Duration) *Reconciler {
	return &Reconciler{
		board:           boardClient,
		source:          source,
		canvasID:        canvasID,
		view:            NewView(width, height),
		refreshInterval: refresh,
	}
}

// View returns the live view. Safe to read while Run is active.
func (r *Reconciler) View() *View {
	return r.view
}

// Run synchronizes until the context is cancelled. A closed delta feed or a
// detected gap tears the session down and rebuilds it from a fresh
// snapshot, with a short backoff between attempts.
func (r *Reconciler) Run(ctx context.Context) {
	for ctx.Err() == nil {
		if err := r.session(ctx); err != nil && ctx.Err() == nil {
			log.Printf("[Reconcile] canvas %s session ended: %v", r.canvasID, err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

// session runs one subscribe-then-apply cycle: load a base, follow the feed
// until it closes or a gap appears.
func (r *Reconciler) session(ctx context.Context) error {
	r.loadBase(ctx)

	sub, err := r.board.SubscribeDeltas(ctx, r.canvasID, r.view.Watermark())
	if err != nil {
		return fmt.Errorf("delta subscription failed: %w", err)
	}
	defer sub.Close()

	// Re-load after subscribing so commits that landed between the first
	// load and the subscription attach are covered by the base.
	r.loadBase(ctx)

	var refresh <-chan time.Time
	if r.refreshInterval > 0 {
		ticker := time.NewTicker(r.refreshInterval)
		defer ticker.Stop()
		refresh = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-refresh:
			r.loadBase(ctx)

		case err, ok := <-sub.Errors():
			if !ok {
				continue
			}
			log.Printf("[Reconcile] canvas %s feed error: %v", r.canvasID, err)

		case delta, ok := <-sub.Events():
			if !ok {
				return fmt.Errorf("delta feed closed")
			}
			if r.lastSeq > 0 && delta.Seq > r.lastSeq+1 {
				log.Printf("[Reconcile] canvas %s missed %d event(s), re-syncing from snapshot",
					r.canvasID, delta.Seq-r.lastSeq-1)
				r.loadBase(ctx)
			}
			if delta.Seq > r.lastSeq {
				r.lastSeq = delta.Seq
			}
			r.view.Apply(delta)
		}
	}
}

// loadBase fetches the latest snapshot into the view. A missing snapshot is
// normal for a fresh canvas; the blank base stands in until one exists.
func (r *Reconciler) loadBase(ctx context.Context) {
	base, meta, err := r.source.Fetch(ctx, r.canvasID)
	if err != nil {
		if !board.IsNotFound(err) {
			log.Printf("[Reconcile] canvas %s snapshot fetch failed: %v", r.canvasID, err)
		}
		return
	}
	if meta.WatermarkMs < r.view.Watermark() {
		// Never step backwards onto an older snapshot.
		return
	}
	r.view.ResetBase(base, meta.WatermarkMs)
}
