package yolov3

import (
	"math/rand"

	"gorgonia.org/tensor"
)

// scaleBuilder fills a raw NCHW scale tensor cell by cell.
type scaleBuilder struct {
	batch, anchors, entries, sideH, sideW int
	data                                  []float32
}

// newScaleBuilder returns a tensor whose objectness logits are all strongly
// negative, so nothing passes any useful threshold until cells are set.
func newScaleBuilder(batch, anchors, entries, sideH, sideW int) *scaleBuilder {
	b := &scaleBuilder{
		batch:   batch,
		anchors: anchors,
		entries: entries,
		sideH:   sideH,
		sideW:   sideW,
		data:    make([]float32, batch*anchors*entries*sideH*sideW),
	}
	for image := 0; image < batch; image++ {
		for a := 0; a < anchors; a++ {
			for row := 0; row < sideH; row++ {
				for col := 0; col < sideW; col++ {
					b.set(image, a, DefaultCoords, row, col, -30)
				}
			}
		}
	}
	return b
}

func (b *scaleBuilder) set(image, a, e, row, col int, v float32) {
	stride := b.sideH * b.sideW
	b.data[image*b.anchors*b.entries*stride+(a*b.entries+e)*stride+row*b.sideW+col] = v
}

// cell sets all entries of one anchor: tx, ty, tw, th, objectness, classes...
func (b *scaleBuilder) cell(image, a, row, col int, values ...float32) {
	for e, v := range values {
		b.set(image, a, e, row, col, v)
	}
}

func (b *scaleBuilder) randomize(rng *rand.Rand, spread float32) {
	for i := range b.data {
		b.data[i] = (rng.Float32()*2 - 1) * spread
	}
}

func (b *scaleBuilder) tensor() *tensor.Dense {
	return tensor.New(
		tensor.WithShape(b.batch, b.anchors*b.entries, b.sideH, b.sideW),
		tensor.WithBacking(b.data),
	)
}

// singleCellConfig is one scale with a 1x1 grid and a single 10x10 anchor.
func singleCellConfig(classes int) Config {
	return Config{
		NumClasses:          classes,
		Coords:              DefaultCoords,
		Biases:              []float32{10, 10},
		Masks:               [][]int{{0}},
		Strides:             []float32{416},
		NetWidth:            416,
		NetHeight:           416,
		ConfidenceThreshold: 0.5,
		NMSThreshold:        0.5,
	}
}

// cocoConfig is the standard three-scale 416x416 YOLOv3 layout.
func cocoConfig(classes int) Config {
	return Config{
		NumClasses: classes,
		Coords:     DefaultCoords,
		Biases: []float32{
			10, 13, 16, 30, 33, 23,
			30, 61, 62, 45, 59, 119,
			116, 90, 156, 198, 373, 326,
		},
		Masks:               [][]int{{6, 7, 8}, {3, 4, 5}, {0, 1, 2}},
		Strides:             []float32{32, 16, 8},
		NetWidth:            416,
		NetHeight:           416,
		ConfidenceThreshold: 0.5,
		NMSThreshold:        0.45,
	}
}
