package consumer

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/tilegrid/mosaic/internal/config"
	"github.com/tilegrid/mosaic/internal/engine"
	"github.com/tilegrid/mosaic/pkg/board"
)

// readBlock is how long one queue poll waits for new messages before
// looping back to check for shutdown and stale claims.
const readBlock = 5 * time.Second

// Feedback describes the outcome of a queued placement so the submitting
// surface can tell the actor what happened.
type Feedback struct {
	Channel   string
	Token     string
	ActorID   string
	Outcome   string // committed, cooldown, duplicate, rejected
	Remaining time.Duration
	Message   string
}

// FeedbackSender delivers placement outcomes back to the submitting
// surface. Delivery is best-effort: a failed send never blocks the queue.
type FeedbackSender interface {
	Send(ctx context.Context, fb *Feedback) error
}

// LogFeedback is the default FeedbackSender. It writes outcomes to the log,
// which is all a headless deployment needs.
type LogFeedback struct{}

func (LogFeedback) Send(_ context.Context, fb *Feedback) error {
	log.Printf("[Consumer] outcome for actor %s: %s (%s)", fb.ActorID, fb.Outcome, fb.Message)
	return nil
}

// Consumer reads placement envelopes from the write stream and drives them
// through the commit pipeline. Multiple consumers may run concurrently
// against the same group; the stream partitions messages between them.
type Consumer struct {
	board    *board.Client
	engine   *engine.Engine
	cfg      *config.Config
	name     string // consumer name inside the group
	feedback FeedbackSender
}

// New creates a consumer. A nil feedback sender falls back to LogFeedback.
func New(boardClient *board.Client, eng *engine.Engine, cfg *config.Config, name string, feedback FeedbackSender) *Consumer {
	if feedback == nil {
		feedback = LogFeedback{}
	}
	return &Consumer{
		board:    boardClient,
		engine:   eng,
		cfg:      cfg,
		name:     name,
		feedback: feedback,
	}
}

// Run consumes the write stream until the context is cancelled. Read errors
// are logged and retried with a short backoff so a Redis blip doesn't kill
// the consumer.
func (c *Consumer) Run(ctx context.Context) {
	log.Printf("[Consumer] %s starting", c.name)

	claimTicker := time.NewTicker(c.cfg.StaleClaimWindow())
	defer claimTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[Consumer] %s stopping", c.name)
			return
		case <-claimTicker.C:
			c.claimStale(ctx)
		default:
		}

		messages, err := c.board.ReadWrites(ctx, c.name, int64(c.cfg.Consumer.BatchSize), readBlock)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[Consumer] %s read failed: %v", c.name, err)
			time.Sleep(time.Second)
			continue
		}

		for _, msg := range messages {
			c.Process(ctx, msg)
		}
	}
}

// claimStale takes over messages whose original consumer died between read
// and ack, then processes them like fresh deliveries.
func (c *Consumer) claimStale(ctx context.Context) {
	messages, err := c.board.ClaimStaleWrites(ctx, c.name, c.cfg.StaleClaimWindow(), int64(c.cfg.Consumer.BatchSize))
	if err != nil {
		log.Printf("[Consumer] %s stale claim failed: %v", c.name, err)
		return
	}
	if len(messages) > 0 {
		log.Printf("[Consumer] %s claimed %d stale message(s)", c.name, len(messages))
	}
	for _, msg := range messages {
		c.Process(ctx, msg)
	}
}

// Process handles one queue message end to end.
//
// Ack discipline: handled messages are acknowledged whatever the business
// outcome, including permanent rejects. Only a store failure leaves the
// message pending, so redelivery retries exactly the work that might still
// succeed.
func (c *Consumer) Process(ctx context.Context, msg board.WriteMessage) {
	env, err := DecodeEnvelope(msg.Payload)
	if err != nil {
		log.Printf("[Consumer] %s rejecting malformed message %s: %v", c.name, msg.ID, err)
		c.ack(ctx, msg.ID)
		return
	}

	outcome, err := c.engine.PlaceResolved(ctx, env.ActorID, env.DisplayName, env.placeRequest(msg.ID))
	if err != nil {
		var verr *engine.ValidationError
		if errors.As(err, &verr) {
			log.Printf("[Consumer] %s rejecting invalid message %s: %v", c.name, msg.ID, verr)
			c.sendFeedback(ctx, env, &Feedback{Outcome: "rejected", Message: verr.Error()})
			c.ack(ctx, msg.ID)
			return
		}
		// Store error: leave un-acked so the pending-entries list redelivers.
		log.Printf("[Consumer] %s deferring message %s after store error: %v", c.name, msg.ID, err)
		return
	}

	fb := &Feedback{Outcome: string(outcome.Status)}
	switch outcome.Status {
	case board.CommitStatusCommitted:
		fb.Message = "pixel placed"
	case board.CommitStatusDuplicate:
		fb.Message = "already placed"
	case board.CommitStatusCooldown:
		fb.Remaining = outcome.Remaining
		fb.Message = "cooldown active"
	}
	c.sendFeedback(ctx, env, fb)
	c.ack(ctx, msg.ID)
}

func (c *Consumer) sendFeedback(ctx context.Context, env *Envelope, fb *Feedback) {
	fb.Channel = env.FeedbackChannel
	fb.Token = env.FeedbackToken
	fb.ActorID = env.ActorID
	if err := c.feedback.Send(ctx, fb); err != nil {
		log.Printf("[Consumer] %s feedback delivery failed: %v", c.name, err)
	}
}

func (c *Consumer) ack(ctx context.Context, messageID string) {
	if err := c.board.AckWrite(ctx, messageID); err != nil {
		log.Printf("[Consumer] %s ack failed for %s: %v", c.name, messageID, err)
	}
}
