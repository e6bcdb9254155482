// Package images - Box geometry and letterbox utilities.
package images

import "github.com/chewxy/math32"

// Size is the pixel size of an original (pre-letterbox) image.
type Size struct {
	// The width of the image in pixels.
	Width int `json:"width" yaml:"width"`
	// The height of the image in pixels.
	Height int `json:"height" yaml:"height"`
}

// Valid reports whether both dimensions are positive.
func (s Size) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

// Rect is a lightweight corner-form bounding box.
type Rect struct {
	// X1,Y1 is the top-left corner; X2,Y2 the bottom-right corner.
	X1, Y1, X2, Y2 float32
}

// Width returns X2-X1, or 0 for an inverted box.
func (r Rect) Width() float32 {
	return max(r.X2-r.X1, 0)
}

// Height returns Y2-Y1, or 0 for an inverted box.
func (r Rect) Height() float32 {
	return max(r.Y2-r.Y1, 0)
}

// Area returns the area of the box.
func (r Rect) Area() float32 {
	return r.Width() * r.Height()
}

// Clamp limits every corner to [0,maxX] x [0,maxY].
//
// Arguments:
//   - maxX: The largest allowed x coordinate.
//   - maxY: The largest allowed y coordinate.
//
// Returns:
//   - Rect: The clamped box. Corner ordering is preserved.
func (r Rect) Clamp(maxX, maxY float32) Rect {
	return Rect{
		X1: clamp(r.X1, 0, maxX),
		Y1: clamp(r.Y1, 0, maxY),
		X2: clamp(r.X2, 0, maxX),
		Y2: clamp(r.Y2, 0, maxY),
	}
}

// RectFromCenter converts a center/size box into corner form.
func RectFromCenter(cx, cy, w, h float32) Rect {
	return Rect{
		X1: cx - w/2,
		Y1: cy - h/2,
		X2: cx + w/2,
		Y2: cy + h/2,
	}
}

// CalculateIoU measures the overlap of two boxes as Intersection over Union.
//
// It is formally defined by the formula:
//
//	IoU = Area of Intersection / Area of Union
//
//	- A value of 1.0 means the rectangles are identical; they overlap perfectly.
//	- A value of 0.0 means the rectangles don't overlap at all.
//
// **1. Intersection**
//
//	The top-left corner of the intersection is the maximum of the two top-left
//	corners, the bottom-right corner the minimum of the two bottom-right corners.
//	If the resulting width or height is zero or negative the boxes do not
//	overlap and the IoU is 0.
//
// **2. Union**
//
//	Area(Union) = Area(A) + Area(B) - Area(Intersection)
//
//	A zero or negative union (degenerate boxes) yields 0 rather than a division
//	by zero. Non-finite inputs also yield 0.
//
// Arguments:
//   - r: The first rectangle.
//   - o: The other rectangle to compare against.
//
// Returns:
//   - float32: A value between 0.0 and 1.0 representing the IoU score.
//
// Example Usage:
// ```go
//
//	rect1 := Rect{X1: 0, Y1: 0, X2: 10, Y2: 10}
//	rect2 := Rect{X1: 5, Y1: 5, X2: 15, Y2: 15}
//
//	iouScore := CalculateIoU(rect1, rect2) // 25 / 175 = 0.142857
//
// ```
func CalculateIoU(r, o Rect) float32 {
	ix1 := max(r.X1, o.X1)
	iy1 := max(r.Y1, o.Y1)
	ix2 := min(r.X2, o.X2)
	iy2 := min(r.Y2, o.Y2)

	interW := ix2 - ix1
	interH := iy2 - iy1
	if !(interW > 0 && interH > 0) {
		return 0.0
	}
	interArea := interW * interH

	unionArea := r.Area() + o.Area() - interArea
	if !(unionArea > 0) || math32.IsInf(unionArea, 0) {
		return 0.0
	}

	return interArea / unionArea
}

func clamp(v, lo, hi float32) float32 {
	return math32.Max(lo, math32.Min(v, hi))
}
