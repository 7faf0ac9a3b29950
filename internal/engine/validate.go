package engine

import (
	"fmt"

	"github.com/tilegrid/mosaic/pkg/board"
)

// PlaceRequest is a normalized placement request entering the commit
// pipeline from either the direct or the queue-delivered entry point.
type PlaceRequest struct {
	RequestID string // Optional idempotency key; assigned when empty
	CanvasID  string // Defaults to the configured default canvas
	X         int
	Y         int
	Color     int
}

// ValidationError is a non-retryable rejection of a malformed placement
// request. Field names the offending input so a client UI can act without
// guessing.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ValidateRequest checks a placement request against the canvas bounds and
// the color range. Validation is pure: it touches no store and has no side
// effects, so malformed requests are rejected before any I/O.
func ValidateRequest(width, height int, req *PlaceRequest) *ValidationError {
	if req.X < 0 {
		return &ValidationError{Field: "x", Reason: fmt.Sprintf("must be non-negative, got %d", req.X)}
	}
	if req.Y < 0 {
		return &ValidationError{Field: "y", Reason: fmt.Sprintf("must be non-negative, got %d", req.Y)}
	}
	if req.X >= width {
		return &ValidationError{Field: "x", Reason: fmt.Sprintf("must be < %d, got %d", width, req.X)}
	}
	if req.Y >= height {
		return &ValidationError{Field: "y", Reason: fmt.Sprintf("must be < %d, got %d", height, req.Y)}
	}
	if req.Color < 0 || req.Color > board.MaxColor {
		return &ValidationError{Field: "color", Reason: fmt.Sprintf("must be in [0, %d], got %d", board.MaxColor, req.Color)}
	}
	return nil
}
