package images

import (
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestIoU_Correctness validates the IoU implementation against known test cases
func TestIoU_Correctness(t *testing.T) {
	tests := []struct {
		name     string
		r1       Rect
		r2       Rect
		expected float32
	}{
		{"Identical rectangles", Rect{0, 0, 100, 100}, Rect{0, 0, 100, 100}, 1.0},
		{"No overlap", Rect{0, 0, 100, 100}, Rect{200, 200, 300, 300}, 0.0},
		{"Touching edges", Rect{0, 0, 100, 100}, Rect{100, 0, 200, 100}, 0.0},
		// intersection=2500, union=17500
		{"Half overlap", Rect{0, 0, 100, 100}, Rect{50, 50, 150, 150}, 0.142857},
		{"One inside other", Rect{0, 0, 100, 100}, Rect{25, 25, 75, 75}, 0.25},
		{"Sub-pixel boxes", Rect{0, 0, 0.5, 0.5}, Rect{0.25, 0, 0.75, 0.5}, 1.0 / 3.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CalculateIoU(tt.r1, tt.r2)
			assert.InDelta(t, tt.expected, result, 1e-4)

			// IoU(A, B) should equal IoU(B, A)
			assert.InDelta(t, result, CalculateIoU(tt.r2, tt.r1), 1e-6, "IoU not symmetric")
		})
	}
}

// TestIoU_vs_ImageRectangle compares integral boxes against image.Rectangle
func TestIoU_vs_ImageRectangle(t *testing.T) {
	testCases := []struct {
		name string
		r1   image.Rectangle
		r2   image.Rectangle
	}{
		{"No overlap", image.Rect(0, 0, 100, 100), image.Rect(200, 200, 300, 300)},
		{"Partial overlap", image.Rect(0, 0, 100, 100), image.Rect(50, 50, 150, 150)},
		{"Full overlap", image.Rect(50, 50, 150, 150), image.Rect(50, 50, 150, 150)},
		{"Large boxes", image.Rect(0, 0, 1920, 1080), image.Rect(960, 540, 1920, 1080)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			custom := CalculateIoU(fromImageRect(tc.r1), fromImageRect(tc.r2))
			assert.InDelta(t, imageRectangleIoU(tc.r1, tc.r2), custom, 1e-4)
		})
	}
}

// TestIoU_EdgeCases tests degenerate and non-finite boxes
func TestIoU_EdgeCases(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))

	tests := []struct {
		name string
		r1   Rect
		r2   Rect
	}{
		{"Zero area rectangle 1", Rect{0, 0, 0, 0}, Rect{0, 0, 100, 100}},
		{"Both zero area", Rect{0, 0, 0, 0}, Rect{0, 0, 0, 0}},
		{"Inverted box", Rect{10, 10, 0, 0}, Rect{0, 0, 10, 10}},
		{"NaN corner", Rect{nan, 0, 10, 10}, Rect{0, 0, 10, 10}},
		{"Infinite box", Rect{0, 0, inf, inf}, Rect{0, 0, 10, 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CalculateIoU(tt.r1, tt.r2)
			assert.False(t, math.IsNaN(float64(result)))
			assert.GreaterOrEqual(t, result, float32(0))
			assert.LessOrEqual(t, result, float32(1))
		})
	}
}

func TestRect_Clamp(t *testing.T) {
	r := Rect{X1: -5, Y1: 3, X2: 120, Y2: 80}.Clamp(99, 49)
	assert.Equal(t, Rect{X1: 0, Y1: 3, X2: 99, Y2: 49}, r)
	assert.LessOrEqual(t, r.X1, r.X2)
	assert.LessOrEqual(t, r.Y1, r.Y2)
}

func TestRectFromCenter(t *testing.T) {
	r := RectFromCenter(50, 40, 20, 10)
	assert.Equal(t, Rect{X1: 40, Y1: 35, X2: 60, Y2: 45}, r)
	assert.Equal(t, float32(200), r.Area())
}

func fromImageRect(r image.Rectangle) Rect {
	return Rect{float32(r.Min.X), float32(r.Min.Y), float32(r.Max.X), float32(r.Max.Y)}
}

// imageRectangleIoU implements IoU using Go's standard library image.Rectangle
func imageRectangleIoU(r1, r2 image.Rectangle) float32 {
	intersect := r1.Intersect(r2)
	if intersect.Empty() {
		return 0.0
	}

	intersectArea := intersect.Dx() * intersect.Dy()
	union := r1.Dx()*r1.Dy() + r2.Dx()*r2.Dy() - intersectArea

	return float32(intersectArea) / float32(union)
}
