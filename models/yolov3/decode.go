package yolov3

import (
	"github.com/chewxy/math32"

	"github.com/nvr-ai/go-yolov3/models/postprocess"
)

// Decoder turns the raw tensor of one scale into candidates in network-normalized
// coordinates.
type Decoder interface {
	// Decode decodes every image of view. scale selects the anchor mask.
	Decode(view *ScaleTensorView, scale int) (*ScaleCandidates, error)
}

// ScaleCandidates holds the decoded candidates of one scale.
type ScaleCandidates struct {
	// ByImage holds the candidates of each image in decode order.
	ByImage [][]postprocess.Result
	// Dropped counts cells rejected for non-finite activations or boxes.
	Dropped int
}

// NewDecoder returns the Decoder selected by cfg.Backend.
func NewDecoder(cfg *Config) Decoder {
	if cfg.Backend == BackendGraph {
		return &GraphDecoder{cfg: cfg}
	}
	return &CPUDecoder{cfg: cfg}
}

// Logistic returns 1/(1+exp(-v)).
func Logistic(v float32) float32 {
	return 1 / (1 + math32.Exp(-v))
}

func finite(v float32) bool {
	return !math32.IsNaN(v) && !math32.IsInf(v, 0)
}

// activations supplies the transformed entries read by decodeScale.
type activations interface {
	sigmoid(image, a, e, row, col int) float32
	exp(image, a, e, row, col int) float32
}

// CPUDecoder applies the logistic and exponential transforms one value at a time.
type CPUDecoder struct {
	cfg *Config
}

// Decode implements Decoder.
func (d *CPUDecoder) Decode(view *ScaleTensorView, scale int) (*ScaleCandidates, error) {
	return decodeScale(d.cfg, view, scale, cpuActivations{view: view}), nil
}

type cpuActivations struct {
	view *ScaleTensorView
}

func (c cpuActivations) sigmoid(image, a, e, row, col int) float32 {
	return Logistic(c.view.At(image, a, e, row, col))
}

func (c cpuActivations) exp(image, a, e, row, col int) float32 {
	return math32.Exp(c.view.At(image, a, e, row, col))
}

// decodeScale walks every (image, cell, anchor) of view and emits the candidates
// whose confidence reaches the threshold.
func decodeScale(cfg *Config, view *ScaleTensorView, scale int, act activations) *ScaleCandidates {
	out := &ScaleCandidates{ByImage: make([][]postprocess.Result, view.Batch)}

	obj := cfg.Coords
	firstClass := cfg.Coords + 1
	threshold := cfg.ConfidenceThreshold
	sideW, sideH := float32(view.SideW), float32(view.SideH)
	netW, netH := float32(cfg.NetWidth), float32(cfg.NetHeight)

	raw := make([]float32, 0, view.Entries)

	for image := 0; image < view.Batch; image++ {
		var results []postprocess.Result

		for row := 0; row < view.SideH; row++ {
			for col := 0; col < view.SideW; col++ {
				for a := 0; a < view.Anchors; a++ {
					raw = view.Cell(image, a, row, col, raw)

					if !finite(raw[obj]) {
						out.Dropped++
						continue
					}
					objScore := act.sigmoid(image, a, obj, row, col)
					// Class scores are at most 1, so no class can pass.
					if objScore < threshold {
						continue
					}
					if !allFinite(raw) {
						out.Dropped++
						continue
					}

					anchorW, anchorH := cfg.Anchor(scale, a)
					r := postprocess.Result{
						X:        (float32(col) + act.sigmoid(image, a, 0, row, col)) / sideW,
						Y:        (float32(row) + act.sigmoid(image, a, 1, row, col)) / sideH,
						W:        anchorW * act.exp(image, a, 2, row, col) / netW,
						H:        anchorH * act.exp(image, a, 3, row, col) / netH,
						ObjScore: objScore,
						Image:    image,
					}
					if !finite(r.W) || !finite(r.H) {
						out.Dropped++
						continue
					}

					if cfg.MultiLabel {
						for c := 0; c < cfg.NumClasses; c++ {
							score := act.sigmoid(image, a, firstClass+c, row, col)
							if conf := objScore * score; conf >= threshold {
								r.Class, r.ClassScore, r.Confidence = c, score, conf
								results = append(results, r)
							}
						}
						continue
					}

					best, bestScore := 0, act.sigmoid(image, a, firstClass, row, col)
					for c := 1; c < cfg.NumClasses; c++ {
						if score := act.sigmoid(image, a, firstClass+c, row, col); score > bestScore {
							best, bestScore = c, score
						}
					}
					if conf := objScore * bestScore; conf >= threshold {
						r.Class, r.ClassScore, r.Confidence = best, bestScore, conf
						results = append(results, r)
					}
				}
			}
		}

		out.ByImage[image] = results
	}

	return out
}

func allFinite(values []float32) bool {
	for _, v := range values {
		if !finite(v) {
			return false
		}
	}
	return true
}
