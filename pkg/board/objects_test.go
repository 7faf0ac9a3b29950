package board

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutAndGetObject(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	meta := &SnapshotMeta{
		CanvasID:    "main-canvas",
		WatermarkMs: 1_700_000_000_000,
		Width:       1000,
		Height:      1000,
		PixelCount:  42,
		Version:     3,
		CreatedAtMs: 1_700_000_000_500,
	}

	path := LatestSnapshotPath("main-canvas")
	require.NoError(t, client.PutObject(ctx, path, []byte{0x89, 'P', 'N', 'G'}, meta))

	obj, err := client.GetObject(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, obj.Data)
	require.NotNil(t, obj.Meta)
	assert.Equal(t, meta, obj.Meta)
}

func TestPutObject_OverwritesLatest(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	path := LatestSnapshotPath("main-canvas")
	first := &SnapshotMeta{CanvasID: "main-canvas", WatermarkMs: 100, Width: 10, Height: 10, PixelCount: 1, Version: 1}
	second := &SnapshotMeta{CanvasID: "main-canvas", WatermarkMs: 200, Width: 10, Height: 10, PixelCount: 2, Version: 2}

	require.NoError(t, client.PutObject(ctx, path, []byte("old"), first))
	require.NoError(t, client.PutObject(ctx, path, []byte("new"), second))

	obj, err := client.GetObject(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), obj.Data)
	assert.Equal(t, int64(200), obj.Meta.WatermarkMs)
}

func TestGetObject_NotFound(t *testing.T) {
	client := newTestClient(t)

	_, err := client.GetObject(context.Background(), "canvas/nope/latest.png")
	assert.True(t, IsNotFound(err))
}

func TestPutObject_Validation(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	assert.Error(t, client.PutObject(ctx, "", []byte("x"), &SnapshotMeta{}))
	assert.Error(t, client.PutObject(ctx, "path", []byte("x"), nil))
}
