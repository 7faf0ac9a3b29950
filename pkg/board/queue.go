package board

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Write queue operations
//
// Queue-delivered placement requests travel through a Redis Stream consumed
// by a consumer group, which gives at-least-once delivery: a message is
// redelivered until some consumer acknowledges it. Consumers acknowledge
// handled messages (including permanent rejects - a malformed envelope
// cannot become valid by retrying) and leave messages un-acked on store
// errors so the pending-entries list drives redelivery.

// WriteMessage is one raw envelope read from the write stream.
type WriteMessage struct {
	ID      string // Stream entry ID, stable across redeliveries
	Payload string // Base64-encoded JSON envelope
}

// EnqueueWrite appends a placement envelope to the write stream and returns
// the assigned stream entry ID.
func (c *Client) EnqueueWrite(ctx context.Context, payload string) (string, error) {
	if payload == "" {
		return "", fmt.Errorf("payload cannot be empty")
	}

	id, err := c.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: WriteStream(c.instanceName),
		Values: map[string]interface{}{"payload": payload},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to enqueue write: %w", err)
	}
	return id, nil
}

// EnsureWriteGroup creates the consumer group on the write stream if it
// doesn't exist yet. Safe to call from every consumer at startup.
func (c *Client) EnsureWriteGroup(ctx context.Context) error {
	err := c.rdb.XGroupCreateMkStream(ctx, WriteStream(c.instanceName), WriteGroup, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create write consumer group: %w", err)
	}
	return nil
}

// ReadWrites reads up to count new messages for the named consumer, blocking
// up to the given duration. Pass a negative block duration for a
// non-blocking read. Returns an empty slice when no messages arrived.
func (c *Client) ReadWrites(ctx context.Context, consumer string, count int64, block time.Duration) ([]WriteMessage, error) {
	streams, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    WriteGroup,
		Consumer: consumer,
		Streams:  []string{WriteStream(c.instanceName), ">"},
		Count:    count,
		Block:    block,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read write stream: %w", err)
	}

	var messages []WriteMessage
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			payload, _ := msg.Values["payload"].(string)
			messages = append(messages, WriteMessage{ID: msg.ID, Payload: payload})
		}
	}
	return messages, nil
}

// AckWrite acknowledges a message so it is never redelivered.
func (c *Client) AckWrite(ctx context.Context, messageID string) error {
	if err := c.rdb.XAck(ctx, WriteStream(c.instanceName), WriteGroup, messageID).Err(); err != nil {
		return fmt.Errorf("failed to ack write %s: %w", messageID, err)
	}
	return nil
}

// ClaimStaleWrites transfers ownership of messages that have been pending
// longer than minIdle to the named consumer. This is the redelivery path for
// messages whose original consumer crashed between read and ack.
func (c *Client) ClaimStaleWrites(ctx context.Context, consumer string, minIdle time.Duration, count int64) ([]WriteMessage, error) {
	msgs, _, err := c.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   WriteStream(c.instanceName),
		Group:    WriteGroup,
		Consumer: consumer,
		MinIdle:  minIdle,
		Start:    "0-0",
		Count:    count,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to claim stale writes: %w", err)
	}

	messages := make([]WriteMessage, 0, len(msgs))
	for _, msg := range msgs {
		payload, _ := msg.Values["payload"].(string)
		messages = append(messages, WriteMessage{ID: msg.ID, Payload: payload})
	}
	return messages, nil
}
