package board

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// CommitStatus is the outcome of an atomic pixel commit attempt.
type CommitStatus string

const (
	// CommitStatusCommitted indicates the pixel and actor updates landed.
	CommitStatusCommitted CommitStatus = "committed"

	// CommitStatusCooldown indicates the actor is still inside the cooldown
	// window. Nothing was mutated. This is a normal business outcome, not an
	// error: callers surface the remaining wait time to the user.
	CommitStatusCooldown CommitStatus = "cooldown"

	// CommitStatusDuplicate indicates the request ID was already committed
	// (at-least-once redelivery). Nothing was mutated; the original
	// sequence number is returned.
	CommitStatusDuplicate CommitStatus = "duplicate"
)

// CommitRequest carries one placement request into the atomic commit script.
// NowMs is the server-assigned commit timestamp; callers must never forward
// a client-supplied time.
type CommitRequest struct {
	RequestID   string // Idempotency key; redelivery with the same ID is a no-op
	CanvasID    string
	ActorID     string
	DisplayName string // Optional; updates the actor record when non-empty
	X           int
	Y           int
	Color       int
	NowMs       int64
	CooldownMs  int64
	IdemTTLMs   int64 // Optional; defaults to twice the cooldown window
}

// CommitResult is the outcome of CommitPixel.
type CommitResult struct {
	Status          CommitStatus
	RemainingMs     int64  // Cooldown only: time until the actor may place again
	Seq             int64  // Committed/duplicate: per-canvas delta sequence number
	ActorPixelCount int64  // Committed only: actor's cumulative placement count
	Pixel           *Pixel // Committed only: the stored pixel state
}

// commitScript executes the cooldown check and commit as one atomic unit.
//
// KEYS: 1=actor hash, 2=pixel hash, 3=canvas pixel set, 4=canvas hash,
// 5=delta sequence counter, 6=idempotency key.
// ARGV: 1=actor ID, 2=display name, 3=canvas ID, 4=x, 5=y, 6=color,
// 7=now ms, 8=cooldown ms, 9=idempotency TTL ms, 10=delta channel.
//
// The delta event is published from inside the script so that commit and
// notification cannot be torn apart by a crash between the two.
var commitScript = redis.NewScript(`
local cached = redis.call('GET', KEYS[6])
if cached then
	return {'duplicate', cached}
end

local now = tonumber(ARGV[7])
local last = redis.call('HGET', KEYS[1], 'last_placed_ms')
if last then
	local remaining = tonumber(ARGV[8]) - (now - tonumber(last))
	if remaining > 0 then
		return {'cooldown', tostring(remaining)}
	end
end

local coord = ARGV[4] .. ',' .. ARGV[5]
local added = redis.call('SADD', KEYS[3], coord)
redis.call('HSET', KEYS[2],
	'canvas_id', ARGV[3], 'x', ARGV[4], 'y', ARGV[5],
	'color', ARGV[6], 'actor_id', ARGV[1], 'updated_at_ms', ARGV[7])
redis.call('HSET', KEYS[1], 'id', ARGV[1], 'last_placed_ms', ARGV[7])
if ARGV[2] ~= '' then
	redis.call('HSET', KEYS[1], 'display_name', ARGV[2])
end
local count = redis.call('HINCRBY', KEYS[1], 'pixel_count', 1)
if added == 1 then
	redis.call('HINCRBY', KEYS[4], 'total_pixels', 1)
end
local seq = redis.call('INCR', KEYS[5])
redis.call('SET', KEYS[6], tostring(seq), 'PX', ARGV[9])

local delta = cjson.encode({
	canvas_id = ARGV[3],
	seq = seq,
	x = tonumber(ARGV[4]),
	y = tonumber(ARGV[5]),
	color = tonumber(ARGV[6]),
	actor_id = ARGV[1],
	commit_ts_ms = now,
})
redis.call('PUBLISH', ARGV[10], delta)

return {'committed', tostring(seq), tostring(count)}
`)

// CommitPixel atomically checks the actor's cooldown and, if eligible,
// commits the pixel, updates the actor record and publishes the delta event
// in a single script execution. Concurrent commits by the same actor or to
// the same coordinate are serialized by Redis; either all updates land or
// none do.
//
// Replays of an already-committed RequestID short-circuit to
// CommitStatusDuplicate before the cooldown check, so at-least-once
// redelivery cannot corrupt the actor's cooldown state.
func (c *Client) CommitPixel(ctx context.Context, req *CommitRequest) (*CommitResult, error) {
	if err := validateCommitRequest(req); err != nil {
		return nil, fmt.Errorf("invalid commit request: %w", err)
	}

	idemTTL := req.IdemTTLMs
	if idemTTL <= 0 {
		idemTTL = req.CooldownMs * 2
	}
	if idemTTL <= 0 {
		idemTTL = 600_000 // Zero-cooldown boards still need replay detection.
	}

	keys := []string{
		ActorKey(c.instanceName, req.ActorID),
		PixelKey(c.instanceName, req.CanvasID, req.X, req.Y),
		CanvasPixelsKey(c.instanceName, req.CanvasID),
		CanvasKey(c.instanceName, req.CanvasID),
		DeltaSeqKey(c.instanceName, req.CanvasID),
		IdempotencyKey(c.instanceName, req.RequestID),
	}
	argv := []interface{}{
		req.ActorID,
		req.DisplayName,
		req.CanvasID,
		req.X,
		req.Y,
		req.Color,
		req.NowMs,
		req.CooldownMs,
		idemTTL,
		DeltaChannel(c.instanceName, req.CanvasID),
	}

	raw, err := commitScript.Run(ctx, c.rdb, keys, argv...).Result()
	if err != nil {
		return nil, fmt.Errorf("commit script failed: %w", err)
	}

	return parseCommitReply(req, raw)
}

func validateCommitRequest(req *CommitRequest) error {
	if req.RequestID == "" {
		return fmt.Errorf("request ID cannot be empty")
	}
	if req.CanvasID == "" {
		return fmt.Errorf("canvas ID cannot be empty")
	}
	if req.ActorID == "" {
		return fmt.Errorf("actor ID cannot be empty")
	}
	if req.X < 0 || req.Y < 0 {
		return fmt.Errorf("coordinates must be non-negative, got (%d,%d)", req.X, req.Y)
	}
	if req.Color < 0 || req.Color > MaxColor {
		return fmt.Errorf("color must be in [0, 0xFFFFFF], got %d", req.Color)
	}
	if req.NowMs <= 0 {
		return fmt.Errorf("commit timestamp must be positive, got %d", req.NowMs)
	}
	if req.CooldownMs < 0 {
		return fmt.Errorf("cooldown cannot be negative, got %d", req.CooldownMs)
	}
	return nil
}

func parseCommitReply(req *CommitRequest, raw interface{}) (*CommitResult, error) {
	reply, ok := raw.([]interface{})
	if !ok || len(reply) < 2 {
		return nil, fmt.Errorf("unexpected commit script reply: %v", raw)
	}

	status, _ := reply[0].(string)
	detail, _ := reply[1].(string)

	switch CommitStatus(status) {
	case CommitStatusDuplicate:
		seq, err := strconv.ParseInt(detail, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid cached sequence %q: %w", detail, err)
		}
		return &CommitResult{Status: CommitStatusDuplicate, Seq: seq}, nil

	case CommitStatusCooldown:
		remaining, err := strconv.ParseInt(detail, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid remaining duration %q: %w", detail, err)
		}
		return &CommitResult{Status: CommitStatusCooldown, RemainingMs: remaining}, nil

	case CommitStatusCommitted:
		seq, err := strconv.ParseInt(detail, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid sequence %q: %w", detail, err)
		}
		var count int64
		if len(reply) > 2 {
			if countStr, ok := reply[2].(string); ok {
				count, _ = strconv.ParseInt(countStr, 10, 64)
			}
		}
		return &CommitResult{
			Status:          CommitStatusCommitted,
			Seq:             seq,
			ActorPixelCount: count,
			Pixel: &Pixel{
				CanvasID:    req.CanvasID,
				X:           req.X,
				Y:           req.Y,
				Color:       req.Color,
				ActorID:     req.ActorID,
				UpdatedAtMs: req.NowMs,
			},
		}, nil

	default:
		return nil, fmt.Errorf("unknown commit status %q", status)
	}
}
