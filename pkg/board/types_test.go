package board

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPixel_Validate(t *testing.T) {
	valid := Pixel{
		CanvasID:    "main-canvas",
		X:           10,
		Y:           20,
		Color:       0xFF0000,
		ActorID:     "actor-1",
		UpdatedAtMs: 1700000000000,
	}

	tests := []struct {
		name    string
		mutate  func(*Pixel)
		wantErr bool
	}{
		{"valid pixel", func(p *Pixel) {}, false},
		{"color zero is valid", func(p *Pixel) { p.Color = 0 }, false},
		{"color max is valid", func(p *Pixel) { p.Color = MaxColor }, false},
		{"negative color", func(p *Pixel) { p.Color = -1 }, true},
		{"color above max", func(p *Pixel) { p.Color = MaxColor + 1 }, true},
		{"negative x", func(p *Pixel) { p.X = -1 }, true},
		{"negative y", func(p *Pixel) { p.Y = -5 }, true},
		{"empty canvas ID", func(p *Pixel) { p.CanvasID = "" }, true},
		{"empty actor ID", func(p *Pixel) { p.ActorID = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			err := p.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCanvas_Validate(t *testing.T) {
	valid := Canvas{ID: "main-canvas", Width: 1000, Height: 1000, Version: 1}

	assert.NoError(t, valid.Validate())

	noID := valid
	noID.ID = ""
	assert.Error(t, noID.Validate())

	zeroWidth := valid
	zeroWidth.Width = 0
	assert.Error(t, zeroWidth.Validate())

	zeroVersion := valid
	zeroVersion.Version = 0
	assert.Error(t, zeroVersion.Validate())
}

func TestActor_Validate(t *testing.T) {
	valid := Actor{ID: "actor-1", DisplayName: "Somebody", LastPlacedMs: 0, PixelCount: 0}
	assert.NoError(t, valid.Validate())

	noID := valid
	noID.ID = ""
	assert.Error(t, noID.Validate())

	negative := valid
	negative.PixelCount = -1
	assert.Error(t, negative.Validate())
}

func TestDelta_Validate(t *testing.T) {
	valid := Delta{CanvasID: "main-canvas", Seq: 1, X: 0, Y: 0, Color: 0, ActorID: "a", CommitTsMs: 1}
	assert.NoError(t, valid.Validate())

	noSeq := valid
	noSeq.Seq = 0
	assert.Error(t, noSeq.Validate())

	badColor := valid
	badColor.Color = MaxColor + 1
	assert.Error(t, badColor.Validate())
}

func TestColorRGBA_RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		value int
		want  color.RGBA
	}{
		{"black", 0x000000, color.RGBA{0, 0, 0, 0xFF}},
		{"white", 0xFFFFFF, color.RGBA{0xFF, 0xFF, 0xFF, 0xFF}},
		{"red", 0xFF0000, color.RGBA{0xFF, 0, 0, 0xFF}},
		{"green", 0x00FF00, color.RGBA{0, 0xFF, 0, 0xFF}},
		{"blue", 0x0000FF, color.RGBA{0, 0, 0xFF, 0xFF}},
		{"mixed", 0x12AB34, color.RGBA{0x12, 0xAB, 0x34, 0xFF}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rgba := ColorRGBA(tt.value)
			assert.Equal(t, tt.want, rgba)
			assert.Equal(t, tt.value, RGBAColor(rgba))
		})
	}
}
