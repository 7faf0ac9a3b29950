package snapshot

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/tilegrid/mosaic/internal/config"
	"github.com/tilegrid/mosaic/pkg/board"
)

// Scheduler drives snapshot regeneration from two sources: a periodic tick
// covering every configured canvas, and commit-time render triggers
// published on the render channel. Triggers for the same canvas inside the
// debounce window coalesce into a single render.
//
// Regeneration is best-effort. A failed render is logged and the canvas is
// picked up again on the next tick; failures never propagate to the commit
// path.
type Scheduler struct {
	renderer *Renderer
	board    *board.Client
	cfg      *config.Config

	mu       sync.Mutex
	pending  map[string]bool // canvases with a debounce timer armed
	inFlight map[string]bool // canvases with a render running
}

// NewScheduler creates a scheduler around the given renderer.
func NewScheduler(renderer *Renderer, boardClient *board.Client, cfg *config.Config) *Scheduler {
	return &Scheduler{
		renderer: renderer,
		board:    boardClient,
		cfg:      cfg,
		pending:  make(map[string]bool),
		inFlight: make(map[string]bool),
	}
}

// Run schedules renders until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	log.Printf("[Snapshot] scheduler starting (interval %s, debounce %s)",
		s.cfg.SnapshotInterval(), s.cfg.SnapshotDebounce())

	sub, err := s.board.SubscribeRenderRequests(ctx)
	if err != nil {
		log.Printf("[Snapshot] render trigger subscription failed, running on ticks only: %v", err)
	} else {
		defer sub.Close()
	}

	ticker := time.NewTicker(s.cfg.SnapshotInterval())
	defer ticker.Stop()

	var triggers <-chan string
	if sub != nil {
		triggers = sub.Events()
	}

	for {
		select {
		case <-ctx.Done():
			log.Printf("[Snapshot] scheduler stopping")
			return

		case <-ticker.C:
			for canvasID := range s.cfg.Canvases {
				s.render(ctx, canvasID)
			}

		case canvasID, ok := <-triggers:
			if !ok {
				triggers = nil
				continue
			}
			s.debounce(ctx, canvasID)
		}
	}
}

// debounce arms a one-shot render for the canvas unless one is already
// armed, so a burst of commits produces one regeneration.
func (s *Scheduler) debounce(ctx context.Context, canvasID string) {
	s.mu.Lock()
	if s.pending[canvasID] {
		s.mu.Unlock()
		return
	}
	s.pending[canvasID] = true
	s.mu.Unlock()

	time.AfterFunc(s.cfg.SnapshotDebounce(), func() {
		s.mu.Lock()
		delete(s.pending, canvasID)
		s.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		s.render(ctx, canvasID)
	})
}

// beginRender marks a canvas as having a render in flight. Returns false
// when one is already running; the caller skips, since renders are
// idempotent and the next tick covers anything this one misses.
func (s *Scheduler) beginRender(canvasID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[canvasID] {
		return false
	}
	s.inFlight[canvasID] = true
	return true
}

func (s *Scheduler) endRender(canvasID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, canvasID)
}

func (s *Scheduler) render(ctx context.Context, canvasID string) {
	if !s.beginRender(canvasID) {
		return
	}
	defer s.endRender(canvasID)

	meta, err := s.renderer.Render(ctx, canvasID)
	if err != nil {
		log.Printf("[Snapshot] render of canvas %s failed: %v", canvasID, err)
		return
	}
	log.Printf("[Snapshot] canvas %s rendered: %d pixel(s), watermark %d, version %d",
		canvasID, meta.PixelCount, meta.WatermarkMs, meta.Version)
}
