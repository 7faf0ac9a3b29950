// Package consumer drains the write stream: it decodes queued placement
// envelopes, pushes them through the commit pipeline and acknowledges
// messages according to the outcome. Malformed or invalid envelopes are
// permanent rejects and are acknowledged so they never redeliver; store
// errors leave the message pending for redelivery.
package consumer

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/tilegrid/mosaic/internal/engine"
)

// Envelope is the queued placement request format: base64-encoded JSON.
// Required fields are pointers so a missing field is distinguishable from a
// zero value.
type Envelope struct {
	RequestID       string  `json:"request_id,omitempty"`
	CanvasID        string  `json:"canvas_id,omitempty"`
	ActorID         string  `json:"actor_id"`
	DisplayName     string  `json:"display_name,omitempty"`
	X               *int    `json:"x"`
	Y               *int    `json:"y"`
	Color           *int    `json:"color"`
	FeedbackToken   string  `json:"feedback_token,omitempty"`
	FeedbackChannel string  `json:"feedback_channel,omitempty"`
}

// DecodeEnvelope decodes a base64 JSON payload. Any decode failure is a
// permanent reject: the payload cannot become valid by retrying.
func DecodeEnvelope(payload string) (*Envelope, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("payload is not valid base64: %w", err)
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("payload is not valid JSON: %w", err)
	}

	if env.ActorID == "" {
		return nil, fmt.Errorf("envelope missing actor_id")
	}
	if env.X == nil || env.Y == nil || env.Color == nil {
		return nil, fmt.Errorf("envelope missing x, y or color")
	}
	return &env, nil
}

// EncodeEnvelope produces the wire payload for an envelope. Used by
// producers such as the CLI.
func EncodeEnvelope(env *Envelope) (string, error) {
	raw, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("failed to encode envelope: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// placeRequest converts a decoded envelope into a pipeline request. A
// missing request ID falls back to one derived from the stream entry ID,
// which is stable across redeliveries of the same message.
func (e *Envelope) placeRequest(messageID string) *engine.PlaceRequest {
	requestID := e.RequestID
	if requestID == "" {
		requestID = "msg-" + messageID
	}
	return &engine.PlaceRequest{
		RequestID: requestID,
		CanvasID:  e.CanvasID,
		X:         *e.X,
		Y:         *e.Y,
		Color:     *e.Color,
	}
}
