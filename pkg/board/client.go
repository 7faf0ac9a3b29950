package board

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Client provides instance-scoped Redis operations for the board.
// All keys, streams and channels are automatically namespaced with the
// instance name. The client is thread-safe and can be used concurrently
// from multiple goroutines.
type Client struct {
	rdb          *redis.Client
	instanceName string
}

// NewClient creates a new board client for the specified instance.
// The client automatically namespaces all keys and channels with the
// instance name.
//
// Returns an error if instanceName is empty.
func NewClient(redisOpts *redis.Options, instanceName string) (*Client, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	return &Client{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
	}, nil
}

// InstanceName returns the instance this client is scoped to.
func (c *Client) InstanceName() string {
	return c.instanceName
}

// Close closes the Redis connection. Implements io.Closer.
// After calling Close(), the client should not be used.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
// Returns an error if Redis is not reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// GetPixel retrieves the pixel at (x, y) on a canvas.
// Returns (nil, redis.Nil) if no pixel has been placed there.
// Use IsNotFound() to check for not-found errors.
func (c *Client) GetPixel(ctx context.Context, canvasID string, x, y int) (*Pixel, error) {
	key := PixelKey(c.instanceName, canvasID, x, y)

	hashData, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read pixel from Redis: %w", err)
	}

	// HGetAll returns an empty map for non-existent keys
	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	pixel, err := HashToPixel(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize pixel: %w", err)
	}

	return pixel, nil
}

// GetActor retrieves an actor by ID.
// Returns (nil, redis.Nil) if the actor has never placed a pixel.
func (c *Client) GetActor(ctx context.Context, actorID string) (*Actor, error) {
	key := ActorKey(c.instanceName, actorID)

	hashData, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read actor from Redis: %w", err)
	}

	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	actor, err := HashToActor(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize actor: %w", err)
	}

	return actor, nil
}

// GetCanvas retrieves canvas metadata by ID.
// Returns (nil, redis.Nil) if the canvas record doesn't exist.
func (c *Client) GetCanvas(ctx context.Context, canvasID string) (*Canvas, error) {
	key := CanvasKey(c.instanceName, canvasID)

	hashData, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read canvas from Redis: %w", err)
	}

	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	canvas, err := HashToCanvas(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize canvas: %w", err)
	}

	return canvas, nil
}

// EnsureCanvas creates the canvas record if it doesn't exist and returns the
// stored state. Dimensions are immutable: if the record already exists, the
// stored dimensions win and the requested ones are ignored.
func (c *Client) EnsureCanvas(ctx context.Context, canvas *Canvas) (*Canvas, error) {
	if err := canvas.Validate(); err != nil {
		return nil, fmt.Errorf("invalid canvas: %w", err)
	}

	existing, err := c.GetCanvas(ctx, canvas.ID)
	if err == nil {
		return existing, nil
	}
	if !IsNotFound(err) {
		return nil, err
	}

	key := CanvasKey(c.instanceName, canvas.ID)
	if err := c.rdb.HSet(ctx, key, CanvasToHash(canvas)).Err(); err != nil {
		return nil, fmt.Errorf("failed to write canvas to Redis: %w", err)
	}

	return canvas, nil
}

// bumpVersionScript refuses to increment the version of a canvas that has
// no record: HINCRBY on a missing hash would create one holding only a
// version field, which could never deserialize back into a Canvas.
var bumpVersionScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return redis.error_reply("canvas record does not exist")
end
return redis.call("HINCRBY", KEYS[1], "version", 1)
`)

// BumpCanvasVersion increments the canvas version counter and returns the
// new value. Called on snapshot regeneration. The canvas record must
// already exist (see EnsureCanvas).
func (c *Client) BumpCanvasVersion(ctx context.Context, canvasID string) (int, error) {
	key := CanvasKey(c.instanceName, canvasID)
	version, err := bumpVersionScript.Run(ctx, c.rdb, []string{key}).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to bump canvas version: %w", err)
	}
	return int(version), nil
}

// ListPixels returns every placed pixel on a canvas. Coordinates come from
// the canvas pixel set; the pixel hashes are fetched in one pipeline.
// Order is unspecified.
func (c *Client) ListPixels(ctx context.Context, canvasID string) ([]*Pixel, error) {
	coords, err := c.rdb.SMembers(ctx, CanvasPixelsKey(c.instanceName, canvasID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list canvas coordinates: %w", err)
	}

	if len(coords) == 0 {
		return []*Pixel{}, nil
	}

	pipe := c.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, 0, len(coords))
	for _, coord := range coords {
		cmds = append(cmds, pipe.HGetAll(ctx, PixelCoordKey(c.instanceName, canvasID, coord)))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to fetch pixels: %w", err)
	}

	pixels := make([]*Pixel, 0, len(coords))
	for i, cmd := range cmds {
		hashData, err := cmd.Result()
		if err != nil || len(hashData) == 0 {
			// Coordinate set and pixel hash can briefly disagree; skip holes.
			continue
		}
		pixel, err := HashToPixel(hashData)
		if err != nil {
			return nil, fmt.Errorf("failed to deserialize pixel %s: %w", coords[i], err)
		}
		pixels = append(pixels, pixel)
	}

	return pixels, nil
}

// PublishRenderRequest publishes a best-effort snapshot regeneration trigger
// for a canvas. Subscribers are free to coalesce triggers.
func (c *Client) PublishRenderRequest(ctx context.Context, canvasID string) error {
	if strings.TrimSpace(canvasID) == "" {
		return fmt.Errorf("canvas ID cannot be empty")
	}

	channel := RenderChannel(c.instanceName)
	if err := c.rdb.Publish(ctx, channel, canvasID).Err(); err != nil {
		return fmt.Errorf("failed to publish render request: %w", err)
	}
	return nil
}

// IsNotFound returns true if the error is a Redis "key not found" error
// (redis.Nil). Use this to check if GetPixel, GetActor, GetCanvas or
// GetObject returned "not found".
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
