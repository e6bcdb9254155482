package yolov3

import "github.com/nvr-ai/go-yolov3/models/postprocess"

// CandidateCollector accumulates candidates from every scale, grouped by image.
type CandidateCollector struct {
	byImage [][]postprocess.Result
	total   int
}

// NewCandidateCollector returns a collector for a batch of the given size.
func NewCandidateCollector(batch int) *CandidateCollector {
	return &CandidateCollector{byImage: make([][]postprocess.Result, batch)}
}

// Add appends candidates to the sequence of image.
func (c *CandidateCollector) Add(image int, candidates ...postprocess.Result) {
	c.byImage[image] = append(c.byImage[image], candidates...)
	c.total += len(candidates)
}

// AddScale appends the candidates of one decoded scale.
func (c *CandidateCollector) AddScale(sc *ScaleCandidates) {
	for image, candidates := range sc.ByImage {
		c.Add(image, candidates...)
	}
}

// Image returns the candidates of one image.
func (c *CandidateCollector) Image(image int) []postprocess.Result {
	return c.byImage[image]
}

// Batch returns the number of images.
func (c *CandidateCollector) Batch() int {
	return len(c.byImage)
}

// Len returns the number of candidates across all images.
func (c *CandidateCollector) Len() int {
	return c.total
}
