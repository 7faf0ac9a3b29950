package board

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// DeltaSubscription represents an active Pub/Sub subscription to a canvas's
// delta events. Caller must call Close() when done to clean up resources.
// Subscriptions deliver full delta objects via the Events() channel.
//
// Redis Pub/Sub is at-most-once: a slow subscriber or a reconnect can miss
// events. Consumers detect this through gaps in Delta.Seq and must re-fetch
// a snapshot rather than continue on a known gap.
type DeltaSubscription struct {
	events <-chan *Delta
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of delta events.
// The channel is closed when the subscription is closed or the context is
// cancelled.
func (s *DeltaSubscription) Events() <-chan *Delta {
	return s.events
}

// Errors returns the channel of subscription errors.
// Errors include JSON unmarshaling failures and other non-fatal issues.
// The subscription continues after errors - messages are skipped.
func (s *DeltaSubscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
// Safe to call multiple times - subsequent calls are no-ops.
func (s *DeltaSubscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeDeltas subscribes to delta events for a canvas, delivering only
// events with a commit timestamp strictly greater than afterMs (pass 0 for
// everything). Caller must call subscription.Close() when done. Context
// cancellation also stops the subscription.
//
// Events are delivered on a buffered channel (size 64) to absorb bursts.
func (c *Client) SubscribeDeltas(ctx context.Context, canvasID string, afterMs int64) (*DeltaSubscription, error) {
	if canvasID == "" {
		return nil, fmt.Errorf("canvas ID cannot be empty")
	}

	channel := DeltaChannel(c.instanceName, canvasID)
	pubsub := c.rdb.Subscribe(ctx, channel)

	eventsChan := make(chan *Delta, 64)
	errorsChan := make(chan error, 10)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var delta Delta
				if err := json.Unmarshal([]byte(msg.Payload), &delta); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal delta event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				if delta.CommitTsMs <= afterMs {
					continue
				}

				select {
				case eventsChan <- &delta:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &DeltaSubscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

// RenderSubscription represents an active Pub/Sub subscription to snapshot
// regeneration triggers. Events are canvas IDs.
type RenderSubscription struct {
	events <-chan string
	cancel func()
	once   sync.Once
}

// Events returns the channel of canvas IDs to regenerate.
func (s *RenderSubscription) Events() <-chan string {
	return s.events
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
func (s *RenderSubscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeRenderRequests subscribes to snapshot regeneration triggers for
// this instance. Triggers are best-effort: publishers never wait on them and
// subscribers are free to coalesce bursts into a single regeneration.
func (c *Client) SubscribeRenderRequests(ctx context.Context) (*RenderSubscription, error) {
	channel := RenderChannel(c.instanceName)
	pubsub := c.rdb.Subscribe(ctx, channel)

	eventsChan := make(chan string, 16)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case eventsChan <- msg.Payload:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &RenderSubscription{
		events: eventsChan,
		cancel: cancelFunc,
	}, nil
}
