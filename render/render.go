// Package render - draws detection records onto OpenCV images.
package render

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-yolov3/models"
	"github.com/nvr-ai/go-yolov3/models/postprocess"
)

// palette cycles per class so neighbouring classes are easy to tell apart.
var palette = []color.RGBA{
	{R: 255, G: 56, B: 56, A: 255},
	{R: 255, G: 157, B: 151, A: 255},
	{R: 255, G: 112, B: 31, A: 255},
	{R: 255, G: 178, B: 29, A: 255},
	{R: 207, G: 210, B: 49, A: 255},
	{R: 72, G: 249, B: 10, A: 255},
	{R: 26, G: 147, B: 52, A: 255},
	{R: 0, G: 212, B: 187, A: 255},
	{R: 44, G: 153, B: 168, A: 255},
	{R: 0, G: 194, B: 255, A: 255},
	{R: 52, G: 69, B: 147, A: 255},
	{R: 100, G: 115, B: 255, A: 255},
	{R: 0, G: 24, B: 236, A: 255},
	{R: 132, G: 56, B: 255, A: 255},
	{R: 203, G: 56, B: 255, A: 255},
	{R: 255, G: 149, B: 200, A: 255},
}

// ClassColor returns the box color of a class.
func ClassColor(class int) color.RGBA {
	if class < 0 {
		class = -class
	}
	return palette[class%len(palette)]
}

// Caption returns the "label confidence" text drawn above a box.
func Caption(r postprocess.Record, labels *models.LabelSet) string {
	return fmt.Sprintf("%s %.2f", labels.Name(r.Class), r.Confidence)
}

// Rect converts the corners of an absolute-coordinate record to pixels.
func Rect(r postprocess.Record) image.Rectangle {
	return image.Rect(int(r.XMin), int(r.YMin), int(r.XMax), int(r.YMax)).Canon()
}

// Draw renders every detection of out as a box with a caption.
//
// Records must hold absolute pixel coordinates of mat. The sentinel record is
// skipped.
//
// Arguments:
//   - mat: The image to draw on.
//   - out: The detections.
//   - labels: Names the classes. Nil draws "class_<n>".
//
// Returns:
//   - int: The number of boxes drawn.
func Draw(mat *gocv.Mat, out *postprocess.Output, labels *models.LabelSet) int {
	drawn := 0
	for _, r := range out.Records {
		if r.Sentinel() {
			continue
		}

		c := ClassColor(r.Class)
		box := Rect(r)
		gocv.Rectangle(mat, box, c, 2)

		origin := image.Pt(box.Min.X, max(box.Min.Y-4, 12))
		gocv.PutText(mat, Caption(r, labels), origin, gocv.FontHersheySimplex, 0.5, c, 1)
		drawn++
	}
	return drawn
}
