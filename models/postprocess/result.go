// Package postprocess - Postprocessing utilities for detection outputs.
package postprocess

import "github.com/nvr-ai/go-yolov3/images"

// Result represents a single decoded detection candidate.
type Result struct {
	// X, Y, W, H are the decoded center and size, normalized to the network input.
	X, Y, W, H float32
	// The corrected corner box, in original image pixels or relative [0,1] units.
	Box images.Rect
	// Sigmoid-activated objectness probability.
	ObjScore float32
	// Probability of the selected class.
	ClassScore float32
	// ObjScore * ClassScore, the ranking key for suppression.
	Confidence float32
	// The predicted class index of the result.
	Class int
	// The batch index of the image the result belongs to.
	Image int
}
