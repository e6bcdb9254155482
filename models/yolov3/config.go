// Package yolov3 - decodes raw YOLOv3 detection tensors into labeled boxes.
package yolov3

import (
	"github.com/chewxy/math32"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-yolov3/models/postprocess"
)

var (
	// ErrInvalidConfig is wrapped by every structural configuration error.
	ErrInvalidConfig = errors.New("invalid yolov3 layer config")
	// ErrInvalidInput is wrapped by every shape or size error of Forward inputs.
	ErrInvalidInput = errors.New("invalid yolov3 layer input")
)

var validate = validator.New()

// Backend selects the BoxDecoder implementation.
type Backend string

const (
	// BackendCPU decodes cell by cell with scalar float32 math.
	BackendCPU Backend = "cpu"
	// BackendGraph evaluates the activations of a whole scale as a gorgonia graph.
	BackendGraph Backend = "graph"
)

// DefaultCoords is the number of box parameters per anchor (tx, ty, tw, th).
const DefaultCoords = 4

// Config holds the immutable parameters of a detection output layer.
type Config struct {
	// Number of object classes the network was trained with.
	NumClasses int `json:"num_classes" yaml:"num_classes" validate:"gt=0"`
	// Box parameters per anchor. Only the first four are decoded.
	Coords int `json:"coords" yaml:"coords" validate:"gte=4"`
	// Anchor table as flat width,height pairs in network input pixels.
	Biases []float32 `json:"biases" yaml:"biases" validate:"required,min=2,dive,gt=0"`
	// Per-scale indices into the anchor pairs of Biases. len(Masks[s]) is the
	// number of anchors per cell at scale s.
	Masks [][]int `json:"masks" yaml:"masks" validate:"required,min=1,dive,min=1,dive,gte=0"`
	// Downsampling factor of each scale, in input order.
	Strides []float32 `json:"anchors_scale" yaml:"anchors_scale" validate:"required,min=1,dive,gt=0"`
	// Network input dimensions.
	NetWidth  int `json:"net_width" yaml:"net_width" validate:"gt=0"`
	NetHeight int `json:"net_height" yaml:"net_height" validate:"gt=0"`
	// Candidates with objectness * class score below this are dropped.
	ConfidenceThreshold float32 `json:"confidence_threshold" yaml:"confidence_threshold" validate:"gte=0,lte=1"`
	// Same-class candidates with IoU at or above this are suppressed.
	NMSThreshold float32 `json:"nms_threshold" yaml:"nms_threshold" validate:"gte=0,lte=1"`
	// If true, output coordinates are relative [0,1] instead of pixels.
	Relative bool `json:"relative" yaml:"relative"`
	// If true, every class passing the threshold is emitted, not only the best.
	MultiLabel bool `json:"multi_label" yaml:"multi_label"`
	// If true, suppression ignores class boundaries.
	ClassAgnostic bool `json:"class_agnostic" yaml:"class_agnostic"`
	// Added to class indices in the output records.
	LabelOffset int `json:"label_offset" yaml:"label_offset" validate:"gte=0"`
	// Decoder implementation, BackendCPU when empty.
	Backend Backend `json:"backend" yaml:"backend" validate:"omitempty,oneof=cpu graph"`
	// Goroutines used for suppression. 0 means one.
	NumWorkers int `json:"num_workers" yaml:"num_workers" validate:"gte=0"`
}

// withDefaults fills zero values that have a conventional default.
func (c Config) withDefaults() Config {
	if c.Coords == 0 {
		c.Coords = DefaultCoords
	}
	if c.Backend == "" {
		c.Backend = BackendCPU
	}
	return c
}

// clone returns a copy that shares no slices with c.
func (c Config) clone() Config {
	c.Biases = append([]float32(nil), c.Biases...)
	c.Strides = append([]float32(nil), c.Strides...)
	if c.Masks != nil {
		masks := make([][]int, len(c.Masks))
		for i, m := range c.Masks {
			masks[i] = append([]int(nil), m...)
		}
		c.Masks = masks
	}
	return c
}

// Validate checks the config for structural errors.
//
// Returns:
//   - error: nil, or an error wrapping ErrInvalidConfig.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(ErrInvalidConfig, err.Error())
	}

	if len(c.Biases)%2 != 0 {
		return errors.Wrapf(ErrInvalidConfig, "biases must hold width,height pairs, got %d values", len(c.Biases))
	}

	if len(c.Strides) != len(c.Masks) {
		return errors.Wrapf(ErrInvalidConfig, "%d masks but %d anchor scales", len(c.Masks), len(c.Strides))
	}

	anchors := len(c.Biases) / 2
	for s, mask := range c.Masks {
		for _, idx := range mask {
			if idx >= anchors {
				return errors.Wrapf(ErrInvalidConfig, "mask %d references anchor %d of %d", s, idx, anchors)
			}
		}
	}

	return nil
}

// Scales returns the number of detection scales.
func (c Config) Scales() int {
	return len(c.Masks)
}

// Entries returns the number of values per anchor: coords, objectness, classes.
func (c Config) Entries() int {
	return c.Coords + 1 + c.NumClasses
}

// Anchor returns the width and height of anchor a at scale s.
func (c Config) Anchor(s, a int) (float32, float32) {
	idx := c.Masks[s][a]
	return c.Biases[2*idx], c.Biases[2*idx+1]
}

// Channels returns the channel count of the tensor of scale s.
func (c Config) Channels(s int) int {
	return len(c.Masks[s]) * c.Entries()
}

// GridSize returns the expected grid width and height of scale s.
func (c Config) GridSize(s int) (int, int) {
	return int(math32.Ceil(float32(c.NetWidth) / c.Strides[s])), int(math32.Ceil(float32(c.NetHeight) / c.Strides[s]))
}

// NMS returns the suppression parameters of the layer.
func (c Config) NMS() postprocess.NMSConfig {
	return postprocess.NMSConfig{
		IoUThreshold:  c.NMSThreshold,
		ClassAgnostic: c.ClassAgnostic,
		NumWorkers:    c.NumWorkers,
	}
}

// SplitMask converts a flat mask table, as written in darknet cfg files and
// layer parameters, into one mask per scale.
//
// Arguments:
//   - mask: The flat anchor index table.
//   - groups: The number of scales (mask groups).
//
// Returns:
//   - [][]int: groups masks of equal length.
//   - error: An error wrapping ErrInvalidConfig if mask cannot be split evenly.
func SplitMask(mask []int, groups int) ([][]int, error) {
	if groups <= 0 || len(mask) == 0 || len(mask)%groups != 0 {
		return nil, errors.Wrapf(ErrInvalidConfig, "cannot split %d mask entries into %d groups", len(mask), groups)
	}

	per := len(mask) / groups
	out := make([][]int, groups)
	for g := range out {
		out[g] = append([]int(nil), mask[g*per:(g+1)*per]...)
	}
	return out, nil
}
