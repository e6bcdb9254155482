package yolov3

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nvr-ai/go-yolov3/images"
	"github.com/nvr-ai/go-yolov3/models/postprocess"
)

func assertRectInDelta(t *testing.T, want, got images.Rect, delta float64) {
	t.Helper()
	assert.InDelta(t, want.X1, got.X1, delta, "x1")
	assert.InDelta(t, want.Y1, got.Y1, delta, "y1")
	assert.InDelta(t, want.X2, got.X2, delta, "x2")
	assert.InDelta(t, want.Y2, got.Y2, delta, "y2")
}

func TestCorrectYOLOBox(t *testing.T) {
	tests := []struct {
		name     string
		box      [4]float32
		size     images.Size
		relative bool
		want     images.Rect
	}{
		{
			name:     "square relative",
			box:      [4]float32{0.3, 0.4, 0.2, 0.1},
			size:     images.Size{Width: 416, Height: 416},
			relative: true,
			want:     images.Rect{X1: 0.2, Y1: 0.35, X2: 0.4, Y2: 0.45},
		},
		{
			name: "square absolute",
			box:  [4]float32{0.3, 0.4, 0.2, 0.1},
			size: images.Size{Width: 416, Height: 416},
			want: images.Rect{X1: 83.2, Y1: 145.6, X2: 166.4, Y2: 187.2},
		},
		{
			name: "landscape removes vertical padding",
			box:  [4]float32{0.5, 0.5, 0.25, 0.25},
			size: images.Size{Width: 832, Height: 416},
			want: images.Rect{X1: 312, Y1: 104, X2: 520, Y2: 312},
		},
		{
			name:     "portrait removes horizontal padding",
			box:      [4]float32{0.5, 0.5, 0.25, 0.25},
			size:     images.Size{Width: 208, Height: 416},
			relative: true,
			want:     images.Rect{X1: 0.25, Y1: 0.375, X2: 0.75, Y2: 0.625},
		},
		{
			name:     "relative clamps to unit square",
			box:      [4]float32{0.05, 0.95, 0.3, 0.3},
			size:     images.Size{Width: 416, Height: 416},
			relative: true,
			want:     images.Rect{X1: 0, Y1: 0.8, X2: 0.2, Y2: 1},
		},
		{
			name: "absolute clamps to last pixel",
			box:  [4]float32{0.95, 0.05, 0.3, 0.3},
			size: images.Size{Width: 640, Height: 480},
			want: images.Rect{X1: 512, Y1: 0, X2: 639, Y2: 48},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := postprocess.Result{X: tt.box[0], Y: tt.box[1], W: tt.box[2], H: tt.box[3]}
			CorrectYOLOBox(&r, tt.size, 416, 416, tt.relative)
			assertRectInDelta(t, tt.want, r.Box, 1e-3)
		})
	}
}

func TestCorrectYOLOBox_CornersOrderedAndInBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	sizes := []images.Size{{Width: 640, Height: 480}, {Width: 300, Height: 900}, {Width: 1, Height: 1}}

	for i := 0; i < 500; i++ {
		size := sizes[i%len(sizes)]
		relative := i%2 == 0

		r := postprocess.Result{
			X: rng.Float32()*1.4 - 0.2,
			Y: rng.Float32()*1.4 - 0.2,
			W: rng.Float32() * 2,
			H: rng.Float32() * 2,
		}
		CorrectYOLOBox(&r, size, 416, 416, relative)

		maxX, maxY := float32(1), float32(1)
		if !relative {
			maxX, maxY = float32(size.Width-1), float32(size.Height-1)
		}

		assert.LessOrEqual(t, r.Box.X1, r.Box.X2)
		assert.LessOrEqual(t, r.Box.Y1, r.Box.Y2)
		assert.GreaterOrEqual(t, r.Box.X1, float32(0))
		assert.GreaterOrEqual(t, r.Box.Y1, float32(0))
		assert.LessOrEqual(t, r.Box.X2, maxX)
		assert.LessOrEqual(t, r.Box.Y2, maxY)
	}
}
