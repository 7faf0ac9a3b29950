// Package gateway exposes the synchronous ingestion entry point over HTTP:
// pixel placement, health, canvas metadata, pixel lookups and snapshot
// serving. The gateway holds no state of its own - every request flows
// through the engine or straight to the board.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/tilegrid/mosaic/internal/config"
	"github.com/tilegrid/mosaic/internal/engine"
	"github.com/tilegrid/mosaic/internal/identity"
	"github.com/tilegrid/mosaic/pkg/board"
)

// writeTimeout bounds the end-to-end direct placement path: identity
// resolution, validation and commit together.
const writeTimeout = 15 * time.Second

// Server is the HTTP ingestion gateway.
type Server struct {
	engine *engine.Engine
	board  *board.Client
	cfg    *config.Config
	server *http.Server
}

// NewServer creates a gateway server listening on addr when started.
func NewServer(addr string, eng *engine.Engine, boardClient *board.Client, cfg *config.Config) *Server {
	s := &Server{
		engine: eng,
		board:  boardClient,
		cfg:    cfg,
	}

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  writeTimeout,
		WriteTimeout: writeTimeout + 5*time.Second,
	}

	return s
}

// Router builds the chi route tree. Exposed separately so tests can drive
// the handlers through httptest without binding a port.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/write", s.handleWrite)
	r.Get("/health", s.handleHealth)
	r.Get("/canvas/{canvasID}", s.handleCanvas)
	r.Get("/canvas/{canvasID}/pixel", s.handlePixel)
	r.Get("/canvas/{canvasID}/snapshot/latest.png", s.handleSnapshot)

	return r
}

// Start starts the HTTP server in the background.
func (s *Server) Start() {
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[Gateway] server error: %v", err)
		}
	}()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// writeRequest is the POST /write body.
type writeRequest struct {
	CanvasID  *string `json:"canvas_id,omitempty"`
	RequestID *string `json:"request_id,omitempty"`
	X         *int    `json:"x"`
	Y         *int    `json:"y"`
	Color     *int    `json:"color"`
}

// handleWrite is the direct, synchronous placement entry point.
//
// Responses: 200 committed (or duplicate replay), 400 invalid payload,
// 401 missing/rejected credential, 429 cooldown active with the remaining
// wait, 500 store/internal error, 502 identity service unreachable.
func (s *Server) handleWrite(w http.ResponseWriter, r *http.Request) {
	credential, ok := bearerToken(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"success": false,
			"error":   "missing bearer credential",
		})
		return
	}

	var body writeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   "invalid payload, expected {x, y, color}",
		})
		return
	}
	if body.X == nil || body.Y == nil || body.Color == nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   "invalid payload, x, y and color are required",
		})
		return
	}

	req := &engine.PlaceRequest{X: *body.X, Y: *body.Y, Color: *body.Color}
	if body.CanvasID != nil {
		req.CanvasID = *body.CanvasID
	}
	if body.RequestID != nil {
		req.RequestID = *body.RequestID
	}

	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	outcome, err := s.engine.PlaceDirect(ctx, credential, req)
	if err != nil {
		s.writePlaceError(w, err)
		return
	}

	switch outcome.Status {
	case board.CommitStatusCommitted, board.CommitStatusDuplicate:
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"seq":     outcome.Seq,
		})
	case board.CommitStatusCooldown:
		remaining := outcome.Remaining
		writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"success":           false,
			"error":             "cooldown",
			"remaining_seconds": int64(remaining.Seconds()),
			"message":           cooldownMessage(remaining),
		})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"error":   "unexpected outcome",
		})
	}
}

// writePlaceError maps pipeline errors onto the response taxonomy.
func (s *Server) writePlaceError(w http.ResponseWriter, err error) {
	var verr *engine.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   verr.Reason,
			"field":   verr.Field,
		})
	case errors.Is(err, identity.ErrAuthFailed):
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"success": false,
			"error":   "credential rejected",
		})
	case errors.Is(err, identity.ErrUpstreamUnavailable):
		writeJSON(w, http.StatusBadGateway, map[string]interface{}{
			"success": false,
			"error":   "identity service unavailable",
		})
	default:
		log.Printf("[Gateway] write failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"error":   "internal error",
		})
	}
}

// handleHealth is the liveness probe. Returns 503 when Redis is down so
// orchestration can rotate the instance out.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.board.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "unhealthy",
			"redis":  "disconnected",
			"error":  err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"redis":  "connected",
	})
}

// handleCanvas returns canvas metadata, falling back to configured
// dimensions for canvases that exist only in mosaic.yml.
func (s *Server) handleCanvas(w http.ResponseWriter, r *http.Request) {
	canvasID := chi.URLParam(r, "canvasID")

	canvas, err := s.board.GetCanvas(r.Context(), canvasID)
	if err != nil {
		if !board.IsNotFound(err) {
			writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": "internal error"})
			return
		}
		width, height := s.cfg.CanvasDimensions(canvasID)
		canvas = &board.Canvas{ID: canvasID, Width: width, Height: height, Version: 1}
	}

	writeJSON(w, http.StatusOK, canvas)
}

// handlePixel returns the committed state of one coordinate, so viewers can
// show who placed a pixel and when.
func (s *Server) handlePixel(w http.ResponseWriter, r *http.Request) {
	canvasID := chi.URLParam(r, "canvasID")

	x, errX := strconv.Atoi(r.URL.Query().Get("x"))
	y, errY := strconv.Atoi(r.URL.Query().Get("y"))
	if errX != nil || errY != nil || x < 0 || y < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "x and y must be non-negative integers"})
		return
	}

	pixel, err := s.board.GetPixel(r.Context(), canvasID, x, y)
	if err != nil {
		if board.IsNotFound(err) {
			writeJSON(w, http.StatusNotFound, map[string]interface{}{"error": "no pixel at this coordinate"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, pixel)
}

// handleSnapshot streams the latest snapshot PNG with public cache headers.
// The watermark doubles as a cheap ETag.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	canvasID := chi.URLParam(r, "canvasID")

	obj, err := s.board.GetObject(r.Context(), board.LatestSnapshotPath(canvasID))
	if err != nil {
		if board.IsNotFound(err) {
			http.Error(w, "no snapshot available", http.StatusNotFound)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=60")
	if obj.Meta != nil {
		etag := fmt.Sprintf(`"%s-%d"`, canvasID, obj.Meta.WatermarkMs)
		w.Header().Set("ETag", etag)
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	w.Write(obj.Data)
}

// bearerToken extracts the credential from an Authorization: Bearer header.
func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", false
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// cooldownMessage renders the remaining wait the way end users see it.
func cooldownMessage(remaining time.Duration) string {
	minutes := int64(remaining.Minutes()) + 1
	if remaining <= time.Minute {
		minutes = 1
	}
	plural := ""
	if minutes > 1 {
		plural = "s"
	}
	return fmt.Sprintf("Cooldown active! You must wait %d more minute%s.", minutes, plural)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
