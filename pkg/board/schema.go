package board

import "fmt"

// Redis key pattern helpers
//
// All Redis keys, streams and Pub/Sub channels are namespaced by instance
// name to enable multiple Mosaic instances to safely coexist on a single
// Redis server.
//
// Key pattern: mosaic:{instance_name}:{entity}:{id}
// Channel pattern: mosaic:{instance_name}:{event_type}_events

// WriteGroup is the consumer group name on the write stream.
const WriteGroup = "writers"

// PixelKey returns the Redis key for a pixel hash.
// Pattern: mosaic:{instance_name}:pixel:{canvas_id}:{x},{y}
func PixelKey(instanceName, canvasID string, x, y int) string {
	return PixelCoordKey(instanceName, canvasID, fmt.Sprintf("%d,%d", x, y))
}

// PixelCoordKey is PixelKey for an "{x},{y}" coordinate string, as stored
// in the canvas pixel set.
func PixelCoordKey(instanceName, canvasID, coord string) string {
	return fmt.Sprintf("mosaic:%s:pixel:%s:%s", instanceName, canvasID, coord)
}

// ActorKey returns the Redis key for an actor hash.
// Pattern: mosaic:{instance_name}:actor:{actor_id}
func ActorKey(instanceName, actorID string) string {
	return fmt.Sprintf("mosaic:%s:actor:%s", instanceName, actorID)
}

// CanvasKey returns the Redis key for a canvas metadata hash.
// Pattern: mosaic:{instance_name}:canvas:{canvas_id}
func CanvasKey(instanceName, canvasID string) string {
	return fmt.Sprintf("mosaic:%s:canvas:%s", instanceName, canvasID)
}

// CanvasPixelsKey returns the Redis key for the set of placed coordinates
// on a canvas. Members are "{x},{y}" strings.
// Pattern: mosaic:{instance_name}:canvas:{canvas_id}:pixels
func CanvasPixelsKey(instanceName, canvasID string) string {
	return fmt.Sprintf("mosaic:%s:canvas:%s:pixels", instanceName, canvasID)
}

// DeltaSeqKey returns the Redis key for a canvas's delta sequence counter.
// The counter is incremented inside the atomic commit script.
// Pattern: mosaic:{instance_name}:canvas:{canvas_id}:seq
func DeltaSeqKey(instanceName, canvasID string) string {
	return fmt.Sprintf("mosaic:%s:canvas:%s:seq", instanceName, canvasID)
}

// IdempotencyKey returns the Redis key caching the outcome of a committed
// request, used to recognize at-least-once redeliveries.
// Pattern: mosaic:{instance_name}:idem:{request_id}
func IdempotencyKey(instanceName, requestID string) string {
	return fmt.Sprintf("mosaic:%s:idem:%s", instanceName, requestID)
}

// ObjectKey returns the Redis key holding a content-store object's bytes.
// Pattern: mosaic:{instance_name}:object:{path}
func ObjectKey(instanceName, path string) string {
	return fmt.Sprintf("mosaic:%s:object:%s", instanceName, path)
}

// ObjectMetaKey returns the Redis key holding a content-store object's
// metadata hash.
// Pattern: mosaic:{instance_name}:object_meta:{path}
func ObjectMetaKey(instanceName, path string) string {
	return fmt.Sprintf("mosaic:%s:object_meta:%s", instanceName, path)
}

// DeltaChannel returns the Pub/Sub channel name for a canvas's delta events.
// Pattern: mosaic:{instance_name}:canvas:{canvas_id}:delta_events
func DeltaChannel(instanceName, canvasID string) string {
	return fmt.Sprintf("mosaic:%s:canvas:%s:delta_events", instanceName, canvasID)
}

// RenderChannel returns the Pub/Sub channel name for snapshot regeneration
// triggers. Messages are canvas IDs.
// Pattern: mosaic:{instance_name}:render_events
func RenderChannel(instanceName string) string {
	return fmt.Sprintf("mosaic:%s:render_events", instanceName)
}

// WriteStream returns the Redis Stream key carrying queue-delivered
// placement envelopes.
// Pattern: mosaic:{instance_name}:writes
func WriteStream(instanceName string) string {
	return fmt.Sprintf("mosaic:%s:writes", instanceName)
}
