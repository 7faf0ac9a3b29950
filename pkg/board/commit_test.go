package board

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCooldownMs = 300_000 // 5 minutes, matching the production default

func newTestClient(t *testing.T) *Client {
	t.Helper()

	mr := miniredis.RunT(t)

	client, err := NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client
}

func commitReq(requestID string, nowMs int64) *CommitRequest {
	return &CommitRequest{
		RequestID:   requestID,
		CanvasID:    "main-canvas",
		ActorID:     "actor-1",
		DisplayName: "Actor One",
		X:           5,
		Y:           5,
		Color:       0xFF0000,
		NowMs:       nowMs,
		CooldownMs:  testCooldownMs,
	}
}

func TestCommitPixel_FirstPlacement(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	result, err := client.CommitPixel(ctx, commitReq("req-1", 1_000))
	require.NoError(t, err)

	assert.Equal(t, CommitStatusCommitted, result.Status)
	assert.Equal(t, int64(1), result.Seq)
	assert.Equal(t, int64(1), result.ActorPixelCount)
	require.NotNil(t, result.Pixel)
	assert.Equal(t, 0xFF0000, result.Pixel.Color)
	assert.Equal(t, int64(1_000), result.Pixel.UpdatedAtMs)

	// Pixel, actor and canvas state all landed.
	pixel, err := client.GetPixel(ctx, "main-canvas", 5, 5)
	require.NoError(t, err)
	assert.Equal(t, "actor-1", pixel.ActorID)

	actor, err := client.GetActor(ctx, "actor-1")
	require.NoError(t, err)
	assert.Equal(t, "Actor One", actor.DisplayName)
	assert.Equal(t, int64(1_000), actor.LastPlacedMs)
	assert.Equal(t, int64(1), actor.PixelCount)
}

func TestCommitPixel_CooldownEnforcement(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	_, err := client.CommitPixel(ctx, commitReq("req-1", 1_000))
	require.NoError(t, err)

	// Second attempt inside the window is rejected with the remaining wait.
	second := commitReq("req-2", 1_000+60_000)
	second.Color = 0x00FF00
	result, err := client.CommitPixel(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, CommitStatusCooldown, result.Status)
	assert.Equal(t, int64(testCooldownMs-60_000), result.RemainingMs)

	// Rejection mutated nothing: the pixel stays red, the counter stays 1.
	pixel, err := client.GetPixel(ctx, "main-canvas", 5, 5)
	require.NoError(t, err)
	assert.Equal(t, 0xFF0000, pixel.Color)

	actor, err := client.GetActor(ctx, "actor-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), actor.PixelCount)
	assert.Equal(t, int64(1_000), actor.LastPlacedMs)
}

func TestCommitPixel_CooldownExpiry(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	_, err := client.CommitPixel(ctx, commitReq("req-1", 1_000))
	require.NoError(t, err)

	// Exactly at the window boundary the actor is eligible again.
	third := commitReq("req-3", 1_000+testCooldownMs)
	third.Color = 0x00FF00
	result, err := client.CommitPixel(ctx, third)
	require.NoError(t, err)
	assert.Equal(t, CommitStatusCommitted, result.Status)
	assert.Equal(t, int64(2), result.ActorPixelCount)

	pixel, err := client.GetPixel(ctx, "main-canvas", 5, 5)
	require.NoError(t, err)
	assert.Equal(t, 0x00FF00, pixel.Color)
	assert.Equal(t, int64(1_000+testCooldownMs), pixel.UpdatedAtMs)
}

func TestCommitPixel_LastWriteWinsOnSameCoordinate(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	first := commitReq("req-a", 1_000)
	first.ActorID = "actor-a"
	_, err := client.CommitPixel(ctx, first)
	require.NoError(t, err)

	second := commitReq("req-b", 2_000)
	second.ActorID = "actor-b"
	second.Color = 0x0000FF
	_, err = client.CommitPixel(ctx, second)
	require.NoError(t, err)

	pixel, err := client.GetPixel(ctx, "main-canvas", 5, 5)
	require.NoError(t, err)
	assert.Equal(t, 0x0000FF, pixel.Color)
	assert.Equal(t, "actor-b", pixel.ActorID)
	assert.Equal(t, int64(2_000), pixel.UpdatedAtMs)

	// Same coordinate rewritten, so the denormalized total stays at 1.
	canvasHash, err := client.GetCanvas(ctx, "main-canvas")
	if err == nil {
		assert.Equal(t, int64(1), canvasHash.TotalPixels)
	}
}

func TestCommitPixel_IdempotentRedelivery(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	original, err := client.CommitPixel(ctx, commitReq("req-1", 1_000))
	require.NoError(t, err)
	require.Equal(t, CommitStatusCommitted, original.Status)

	// Redelivery of the identical request must not be rejected by the
	// actor's own cooldown, and must not double-commit.
	replay, err := client.CommitPixel(ctx, commitReq("req-1", 2_000))
	require.NoError(t, err)
	assert.Equal(t, CommitStatusDuplicate, replay.Status)
	assert.Equal(t, original.Seq, replay.Seq)

	actor, err := client.GetActor(ctx, "actor-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), actor.PixelCount)
	assert.Equal(t, int64(1_000), actor.LastPlacedMs)

	// A distinct request after the window still succeeds: the replay did
	// not corrupt cooldown state.
	next := commitReq("req-2", 1_000+testCooldownMs)
	result, err := client.CommitPixel(ctx, next)
	require.NoError(t, err)
	assert.Equal(t, CommitStatusCommitted, result.Status)
}

func TestCommitPixel_DistinctActorsUnaffected(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	_, err := client.CommitPixel(ctx, commitReq("req-1", 1_000))
	require.NoError(t, err)

	// Another actor placing right away is not subject to actor-1's window.
	other := commitReq("req-2", 1_500)
	other.ActorID = "actor-2"
	other.X, other.Y = 6, 6
	result, err := client.CommitPixel(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, CommitStatusCommitted, result.Status)
	assert.Equal(t, int64(2), result.Seq)
}

func TestCommitPixel_PublishesDelta(t *testing.T) {
	client := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := client.SubscribeDeltas(ctx, "main-canvas", 0)
	require.NoError(t, err)
	defer sub.Close()

	// Give the subscriber a moment to register before publishing.
	time.Sleep(50 * time.Millisecond)

	_, err = client.CommitPixel(ctx, commitReq("req-1", 1_000))
	require.NoError(t, err)

	select {
	case delta := <-sub.Events():
		assert.Equal(t, "main-canvas", delta.CanvasID)
		assert.Equal(t, int64(1), delta.Seq)
		assert.Equal(t, 5, delta.X)
		assert.Equal(t, 5, delta.Y)
		assert.Equal(t, 0xFF0000, delta.Color)
		assert.Equal(t, "actor-1", delta.ActorID)
		assert.Equal(t, int64(1_000), delta.CommitTsMs)
	case <-time.After(2 * time.Second):
		t.Fatal("delta event not received")
	}
}

func TestCommitPixel_DeltaFilterByCommitTime(t *testing.T) {
	client := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Filter out everything at or before the watermark.
	sub, err := client.SubscribeDeltas(ctx, "main-canvas", 1_000)
	require.NoError(t, err)
	defer sub.Close()

	time.Sleep(50 * time.Millisecond)

	_, err = client.CommitPixel(ctx, commitReq("req-1", 1_000))
	require.NoError(t, err)

	late := commitReq("req-2", 2_000)
	late.ActorID = "actor-2"
	_, err = client.CommitPixel(ctx, late)
	require.NoError(t, err)

	select {
	case delta := <-sub.Events():
		// The first commit is at the watermark and must be filtered.
		assert.Equal(t, int64(2_000), delta.CommitTsMs)
	case <-time.After(2 * time.Second):
		t.Fatal("delta event not received")
	}
}

func TestCommitPixel_InvalidRequests(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*CommitRequest)
	}{
		{"empty request ID", func(r *CommitRequest) { r.RequestID = "" }},
		{"empty canvas ID", func(r *CommitRequest) { r.CanvasID = "" }},
		{"empty actor ID", func(r *CommitRequest) { r.ActorID = "" }},
		{"negative x", func(r *CommitRequest) { r.X = -1 }},
		{"color above max", func(r *CommitRequest) { r.Color = 0x1000000 }},
		{"zero timestamp", func(r *CommitRequest) { r.NowMs = 0 }},
		{"negative cooldown", func(r *CommitRequest) { r.CooldownMs = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := commitReq("req-x", 1_000)
			tt.mutate(req)
			_, err := client.CommitPixel(ctx, req)
			assert.Error(t, err)
		})
	}
}
