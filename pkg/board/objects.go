package board

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Content-store operations
//
// Snapshot artifacts are whole-object blobs: every write replaces the full
// object, so no locking is needed. Bytes live under one key, descriptive
// metadata under a companion hash, both written in a single pipeline.

// Object is a content-store blob with its snapshot metadata.
type Object struct {
	Path string
	Data []byte
	Meta *SnapshotMeta
}

// PutObject stores an object's bytes and metadata, replacing any previous
// version at the same path.
func (c *Client) PutObject(ctx context.Context, path string, data []byte, meta *SnapshotMeta) error {
	if path == "" {
		return fmt.Errorf("object path cannot be empty")
	}
	if meta == nil {
		return fmt.Errorf("object metadata cannot be nil")
	}

	pipe := c.rdb.Pipeline()
	pipe.Set(ctx, ObjectKey(c.instanceName, path), data, 0)
	pipe.Del(ctx, ObjectMetaKey(c.instanceName, path))
	pipe.HSet(ctx, ObjectMetaKey(c.instanceName, path), SnapshotMetaToHash(meta))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store object %s: %w", path, err)
	}
	return nil
}

// GetObject retrieves an object's bytes and metadata.
// Returns (nil, redis.Nil) if no object exists at the path.
func (c *Client) GetObject(ctx context.Context, path string) (*Object, error) {
	data, err := c.rdb.Get(ctx, ObjectKey(c.instanceName, path)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, redis.Nil
		}
		return nil, fmt.Errorf("failed to read object %s: %w", path, err)
	}

	hashData, err := c.rdb.HGetAll(ctx, ObjectMetaKey(c.instanceName, path)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read object metadata %s: %w", path, err)
	}

	var meta *SnapshotMeta
	if len(hashData) > 0 {
		meta, err = HashToSnapshotMeta(hashData)
		if err != nil {
			return nil, fmt.Errorf("failed to deserialize object metadata %s: %w", path, err)
		}
	}

	return &Object{Path: path, Data: data, Meta: meta}, nil
}

// LatestSnapshotPath returns the content-store path of a canvas's "latest"
// snapshot object, overwritten on each regeneration.
func LatestSnapshotPath(canvasID string) string {
	return fmt.Sprintf("canvas/%s/latest.png", canvasID)
}

// HistoricalSnapshotPath returns the content-store path of a timestamped
// snapshot object. The timestamp should be RFC3339 so paths sort by time.
func HistoricalSnapshotPath(canvasID, timestamp string) string {
	return fmt.Sprintf("canvas/%s/historical/%s.png", canvasID, timestamp)
}
