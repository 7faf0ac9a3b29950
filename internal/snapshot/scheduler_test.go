package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tilegrid/mosaic/internal/config"
	"github.com/tilegrid/mosaic/pkg/board"
)

func newTestScheduler(t *testing.T) (*Scheduler, *board.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := board.NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	history := false
	cfg := &config.Config{
		Version:  "1.0",
		Canvases: map[string]config.CanvasConfig{"small": {Width: 8, Height: 8}},
		Snapshot: &config.SnapshotConfig{IntervalSeconds: 1, DebounceSeconds: 1, History: &history},
	}
	require.NoError(t, cfg.Validate())

	return NewScheduler(NewRenderer(client, cfg), client, cfg), client
}

func latestExists(t *testing.T, client *board.Client, canvasID string) bool {
	t.Helper()
	_, err := client.GetObject(context.Background(), board.LatestSnapshotPath(canvasID))
	if err != nil {
		require.True(t, board.IsNotFound(err))
		return false
	}
	return true
}

func TestScheduler_RendersOnTick(t *testing.T) {
	s, client := newTestScheduler(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go s.Run(ctx)

	require.Eventually(t, func() bool {
		return latestExists(t, client, "small")
	}, 5*time.Second, 50*time.Millisecond, "periodic tick should render every configured canvas")
}

func TestScheduler_RendersOnTrigger(t *testing.T) {
	s, client := newTestScheduler(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go s.Run(ctx)
	time.Sleep(100 * time.Millisecond) // let the subscription attach

	require.NoError(t, client.PublishRenderRequest(ctx, "small"))

	// The debounce window is shorter than the first tick, so a render
	// before the tick fires proves the trigger path.
	require.Eventually(t, func() bool {
		return latestExists(t, client, "small")
	}, 5*time.Second, 20*time.Millisecond)
}

func TestScheduler_TriggerBurstCoalesces(t *testing.T) {
	s, client := newTestScheduler(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go s.Run(ctx)
	time.Sleep(100 * time.Millisecond)

	for i := 0; i < 10; i++ {
		require.NoError(t, client.PublishRenderRequest(ctx, "small"))
	}

	require.Eventually(t, func() bool {
		return latestExists(t, client, "small")
	}, 5*time.Second, 20*time.Millisecond)

	// One armed timer served the whole burst.
	obj, err := client.GetObject(ctx, board.LatestSnapshotPath("small"))
	require.NoError(t, err)
	require.NotNil(t, obj.Meta)
	assert.LessOrEqual(t, obj.Meta.Version, 3, "burst of triggers must not render once per trigger")
}

func TestScheduler_SerializesRendersPerCanvas(t *testing.T) {
	s, _ := newTestScheduler(t)

	require.True(t, s.beginRender("small"))
	assert.False(t, s.beginRender("small"), "second render of the same canvas must wait for the first")
	assert.True(t, s.beginRender("other"), "other canvases render independently")

	s.endRender("small")
	assert.True(t, s.beginRender("small"), "the in-flight flag clears when the render finishes")
}
