package board

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_RequiresInstanceName(t *testing.T) {
	_, err := NewClient(&redis.Options{Addr: "localhost:6379"}, "")
	assert.Error(t, err)
}

func TestClient_Ping(t *testing.T) {
	client := newTestClient(t)
	assert.NoError(t, client.Ping(context.Background()))
}

func TestEnsureCanvas_CreatesAndReturns(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	canvas, err := client.EnsureCanvas(ctx, &Canvas{
		ID: "main-canvas", Width: 1000, Height: 500, Version: 1, CreatedAtMs: 1_000,
	})
	require.NoError(t, err)
	assert.Equal(t, 1000, canvas.Width)

	stored, err := client.GetCanvas(ctx, "main-canvas")
	require.NoError(t, err)
	assert.Equal(t, 1000, stored.Width)
	assert.Equal(t, 500, stored.Height)
	assert.Equal(t, 1, stored.Version)
}

func TestEnsureCanvas_DimensionsAreImmutable(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	_, err := client.EnsureCanvas(ctx, &Canvas{ID: "main-canvas", Width: 1000, Height: 1000, Version: 1})
	require.NoError(t, err)

	// A second ensure with different dimensions returns the stored state.
	canvas, err := client.EnsureCanvas(ctx, &Canvas{ID: "main-canvas", Width: 50, Height: 50, Version: 1})
	require.NoError(t, err)
	assert.Equal(t, 1000, canvas.Width)
	assert.Equal(t, 1000, canvas.Height)
}

func TestEnsureCanvas_RejectsInvalid(t *testing.T) {
	client := newTestClient(t)

	_, err := client.EnsureCanvas(context.Background(), &Canvas{ID: "", Width: 10, Height: 10, Version: 1})
	assert.Error(t, err)
}

func TestBumpCanvasVersion(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	_, err := client.EnsureCanvas(ctx, &Canvas{ID: "main-canvas", Width: 10, Height: 10, Version: 1})
	require.NoError(t, err)

	version, err := client.BumpCanvasVersion(ctx, "main-canvas")
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	version, err = client.BumpCanvasVersion(ctx, "main-canvas")
	require.NoError(t, err)
	assert.Equal(t, 3, version)
}

func TestBumpCanvasVersion_RequiresCanvasRecord(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	_, err := client.BumpCanvasVersion(ctx, "never-ensured")
	require.Error(t, err)

	// The refused bump must not leave a partial hash behind.
	_, err = client.GetCanvas(ctx, "never-ensured")
	assert.True(t, IsNotFound(err))
}

func TestGetPixel_NotFound(t *testing.T) {
	client := newTestClient(t)

	_, err := client.GetPixel(context.Background(), "main-canvas", 1, 1)
	assert.True(t, IsNotFound(err))
}

func TestGetActor_NotFound(t *testing.T) {
	client := newTestClient(t)

	_, err := client.GetActor(context.Background(), "nobody")
	assert.True(t, IsNotFound(err))
}

func TestListPixels(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	empty, err := client.ListPixels(ctx, "main-canvas")
	require.NoError(t, err)
	assert.Empty(t, empty)

	// Three actors, three coordinates.
	for i, actor := range []string{"a", "b", "c"} {
		req := commitReq("req-"+actor, int64(1_000+i))
		req.ActorID = actor
		req.X = i
		req.Y = i * 2
		_, err := client.CommitPixel(ctx, req)
		require.NoError(t, err)
	}

	pixels, err := client.ListPixels(ctx, "main-canvas")
	require.NoError(t, err)
	assert.Len(t, pixels, 3)

	byCoord := make(map[[2]int]*Pixel, len(pixels))
	for _, p := range pixels {
		byCoord[[2]int{p.X, p.Y}] = p
	}
	require.Contains(t, byCoord, [2]int{2, 4})
	assert.Equal(t, "c", byCoord[[2]int{2, 4}].ActorID)
}

func TestPublishRenderRequest(t *testing.T) {
	client := newTestClient(t)

	assert.Error(t, client.PublishRenderRequest(context.Background(), ""))
	assert.NoError(t, client.PublishRenderRequest(context.Background(), "main-canvas"))
}
