// Package board provides type-safe Go definitions and Redis schema patterns
// for the Mosaic canvas board. The board is the single authoritative store
// where all Mosaic components (gateway, queue consumer, snapshot renderer,
// CLI) interact via well-defined data structures stored in Redis.
//
// All Redis keys, streams and channels are namespaced by instance name so
// that multiple Mosaic instances can safely coexist on a single Redis server.
//
// # Entities
//
// The board stores four kinds of entities:
//
//   - Pixel: one cell of a canvas, stored as a hash at
//     mosaic:{instance}:pixel:{canvas_id}:{x},{y}. At most one live pixel
//     exists per coordinate; every write is a total overwrite.
//   - Actor: an external identity placing pixels, stored as a hash at
//     mosaic:{instance}:actor:{actor_id}. Tracks the last placement time
//     used for cooldown enforcement and a cumulative placement counter.
//   - Canvas: grid metadata (immutable dimensions, version counter,
//     denormalized pixel total) at mosaic:{instance}:canvas:{canvas_id}.
//   - Object: an opaque content-store blob (snapshot PNGs) plus metadata,
//     at mosaic:{instance}:object:{path}.
//
// # Atomic commits
//
// Pixel placement is the correctness-critical operation. CommitPixel runs a
// Lua script so that the idempotency check, the cooldown check, the pixel
// upsert, the actor upsert and the delta sequence increment all execute as
// one atomic unit. Concurrent commits by the same actor, or to the same
// coordinate, are serialized by Redis script execution; no partial state is
// ever observable.
//
// # Delta feed
//
// Each committed pixel is published on a per-canvas Pub/Sub channel as a
// Delta carrying a monotonically increasing per-canvas sequence number.
// Subscribers use DeltaSubscription, which exposes Events() and Errors()
// channels and an explicit Close(). Pub/Sub is at-most-once: a gap in the
// sequence numbers tells a subscriber it must re-fetch a snapshot.
//
// # Write queue
//
// Queue-delivered placement requests travel through a Redis Stream with a
// consumer group, giving at-least-once delivery. Handled messages (including
// permanent rejects) are acknowledged with XACK; messages that fail on store
// errors are left pending and reclaimed with XAUTOCLAIM.
package board
