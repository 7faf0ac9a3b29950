package reconcile

import (
	"image"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tilegrid/mosaic/pkg/board"
)

func delta(seq int64, x, y, c int, tsMs int64) *board.Delta {
	return &board.Delta{CanvasID: "c", Seq: seq, X: x, Y: y, Color: c, CommitTsMs: tsMs}
}

func TestView_StartsBlank(t *testing.T) {
	v := NewView(4, 4)
	assert.Equal(t, board.MaxColor, v.At(0, 0), "unplaced coordinates read as white")
	assert.Zero(t, v.Watermark())
}

func TestView_ApplyOverridesBase(t *testing.T) {
	v := NewView(4, 4)

	assert.True(t, v.Apply(delta(1, 2, 2, 0xFF0000, 100)))
	assert.Equal(t, 0xFF0000, v.At(2, 2))
	assert.Equal(t, board.MaxColor, v.At(0, 0))
}

func TestView_NewestCommitWinsRegardlessOfOrder(t *testing.T) {
	v := NewView(4, 4)

	// Newer delta first, older second: the older one loses.
	require.True(t, v.Apply(delta(2, 1, 1, 0x00FF00, 200)))
	assert.False(t, v.Apply(delta(1, 1, 1, 0xFF0000, 100)))
	assert.Equal(t, 0x00FF00, v.At(1, 1))
}

func TestView_TieBrokenBySeq(t *testing.T) {
	v := NewView(4, 4)

	require.True(t, v.Apply(delta(5, 1, 1, 0x0000FF, 100)))
	assert.False(t, v.Apply(delta(4, 1, 1, 0xFF0000, 100)))
	assert.Equal(t, 0x0000FF, v.At(1, 1))
}

func TestView_OutOfBoundsIgnored(t *testing.T) {
	v := NewView(4, 4)

	assert.False(t, v.Apply(delta(1, 4, 0, 0, 100)))
	assert.False(t, v.Apply(delta(2, -1, 0, 0, 100)))
	assert.Zero(t, v.OverlaySize())
}

func TestView_WatermarkFiltersStaleDeltas(t *testing.T) {
	v := NewView(4, 4)
	v.ResetBase(blankBase(4, 4), 500)

	assert.False(t, v.Apply(delta(1, 0, 0, 0xFF0000, 400)), "delta at or before the watermark is already in the base")
	assert.False(t, v.Apply(delta(2, 0, 0, 0xFF0000, 500)))
	assert.True(t, v.Apply(delta(3, 0, 0, 0xFF0000, 501)))
}

func TestView_ResetBaseDropsAbsorbedOverlay(t *testing.T) {
	v := NewView(4, 4)

	require.True(t, v.Apply(delta(1, 0, 0, 0x111111, 100)))
	require.True(t, v.Apply(delta(2, 1, 0, 0x222222, 300)))
	require.Equal(t, 2, v.OverlaySize())

	// New base covers up to t=200: the first delta is absorbed, the second
	// arrived while the snapshot was in flight and survives.
	base := blankBase(4, 4)
	base.SetRGBA(0, 0, board.ColorRGBA(0x111111))
	v.ResetBase(base, 200)

	assert.Equal(t, 1, v.OverlaySize())
	assert.Equal(t, 0x111111, v.At(0, 0))
	assert.Equal(t, 0x222222, v.At(1, 0))
}

func TestView_ArbitraryReplayOrderConverges(t *testing.T) {
	deltas := []*board.Delta{
		delta(1, 0, 0, 0x100000, 100),
		delta(2, 0, 0, 0x200000, 200),
		delta(3, 1, 1, 0x300000, 150),
		delta(4, 2, 2, 0x400000, 300),
		delta(5, 0, 0, 0x500000, 250),
		delta(6, 1, 1, 0x600000, 150), // same ts as seq 3, higher seq wins
	}

	reference := NewView(4, 4)
	for _, d := range deltas {
		reference.Apply(d)
	}

	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 20; trial++ {
		shuffled := append([]*board.Delta(nil), deltas...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		v := NewView(4, 4)
		for _, d := range shuffled {
			v.Apply(d)
		}

		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				require.Equal(t, reference.At(x, y), v.At(x, y),
					"trial %d diverged at (%d,%d)", trial, x, y)
			}
		}
	}
}

func TestView_ImageComposites(t *testing.T) {
	v := NewView(2, 2)

	base := blankBase(2, 2)
	base.SetRGBA(0, 0, board.ColorRGBA(0xAA0000))
	v.ResetBase(base, 100)
	require.True(t, v.Apply(delta(1, 1, 1, 0x00BB00, 200)))

	img := v.Image()
	require.Equal(t, image.Rect(0, 0, 2, 2), img.Bounds())
	assert.Equal(t, 0xAA0000, board.RGBAColor(img.RGBAAt(0, 0)))
	assert.Equal(t, 0x00BB00, board.RGBAColor(img.RGBAAt(1, 1)))
	assert.Equal(t, board.MaxColor, board.RGBAColor(img.RGBAAt(0, 1)))
}
