// Package engine implements the cooldown and commit pipeline: request
// validation, actor identity resolution, the atomic pixel commit against the
// board, and the best-effort snapshot regeneration trigger that follows a
// successful commit.
//
// The engine owns no state of its own. All coordination between concurrent
// placements is pushed into the board's atomic commit; the engine can be
// scaled horizontally without cross-instance communication.
package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/tilegrid/mosaic/internal/config"
	"github.com/tilegrid/mosaic/internal/identity"
	"github.com/tilegrid/mosaic/pkg/board"
)

// Resolver resolves a bearer credential into an actor identity.
// Satisfied by *identity.Resolver; tests substitute a fake.
type Resolver interface {
	Resolve(ctx context.Context, credential string) (*identity.Identity, error)
}

// Engine funnels placement requests into atomic commits.
type Engine struct {
	board    *board.Client
	cfg      *config.Config
	resolver Resolver         // nil when no identity service is configured
	now      func() time.Time // injectable clock for tests
}

// New creates an engine. The resolver may be nil, in which case only
// pre-resolved placements (the queue path) are accepted.
func New(boardClient *board.Client, cfg *config.Config, resolver Resolver) *Engine {
	return &Engine{
		board:    boardClient,
		cfg:      cfg,
		resolver: resolver,
		now:      time.Now,
	}
}

// PlaceOutcome is the business result of a placement attempt. A cooldown
// rejection is an outcome, not an error: callers surface the remaining wait
// so UIs can show a countdown.
type PlaceOutcome struct {
	Status          board.CommitStatus
	Remaining       time.Duration // Cooldown only
	Seq             int64
	Pixel           *board.Pixel // Committed only
	ActorPixelCount int64        // Committed only
}

// PlaceDirect handles the synchronous entry point: resolve the credential,
// validate, commit, and trigger snapshot regeneration. Identity resolution
// happens before the atomic unit - the store is never held open across a
// call to the identity service.
//
// Returns identity.ErrAuthFailed / identity.ErrUpstreamUnavailable for
// credential problems, *ValidationError for malformed requests, and wrapped
// store errors (retryable) otherwise.
func (e *Engine) PlaceDirect(ctx context.Context, credential string, req *PlaceRequest) (*PlaceOutcome, error) {
	if e.resolver == nil {
		return nil, fmt.Errorf("direct placement unavailable: no identity service configured")
	}

	id, err := e.resolver.Resolve(ctx, credential)
	if err != nil {
		return nil, err
	}

	return e.PlaceResolved(ctx, id.ID, id.DisplayName, req)
}

// PlaceResolved handles a placement for an already-resolved actor (the
// queue-delivered entry point, or a direct call after resolution).
func (e *Engine) PlaceResolved(ctx context.Context, actorID, displayName string, req *PlaceRequest) (*PlaceOutcome, error) {
	if actorID == "" {
		return nil, &ValidationError{Field: "actor_id", Reason: "cannot be empty"}
	}

	canvasID := req.CanvasID
	if canvasID == "" {
		canvasID = config.DefaultCanvasID
	}

	width, height := e.cfg.CanvasDimensions(canvasID)
	if verr := ValidateRequest(width, height, req); verr != nil {
		return nil, verr
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}

	result, err := e.board.CommitPixel(ctx, &board.CommitRequest{
		RequestID:   requestID,
		CanvasID:    canvasID,
		ActorID:     actorID,
		DisplayName: displayName,
		X:           req.X,
		Y:           req.Y,
		Color:       req.Color,
		NowMs:       e.now().UnixMilli(),
		CooldownMs:  e.cfg.CooldownWindow().Milliseconds(),
	})
	if err != nil {
		return nil, fmt.Errorf("commit failed: %w", err)
	}

	outcome := &PlaceOutcome{
		Status:          result.Status,
		Remaining:       time.Duration(result.RemainingMs) * time.Millisecond,
		Seq:             result.Seq,
		Pixel:           result.Pixel,
		ActorPixelCount: result.ActorPixelCount,
	}

	if result.Status == board.CommitStatusCommitted {
		e.notifyRender(canvasID)
	}

	return outcome, nil
}

// notifyRender publishes a snapshot regeneration trigger on an independent
// goroutine. The trigger is best-effort: it is never awaited by the commit
// path and its failure is logged and swallowed.
func (e *Engine) notifyRender(canvasID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := e.board.PublishRenderRequest(ctx, canvasID); err != nil {
			log.Printf("[Engine] render trigger for canvas %s failed: %v", canvasID, err)
		}
	}()
}
