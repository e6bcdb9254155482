package models

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-yolov3/models/model"
	"github.com/nvr-ai/go-yolov3/models/yolov3"
)

// ErrUnknownModel is returned for a model name with no registered preset.
var ErrUnknownModel = errors.New("unknown model")

// NewLayerConfig returns the standard layer configuration of a model preset.
//
// The presets carry the darknet anchor tables for a 416x416 input, 80 classes,
// a 0.5 confidence threshold and a 0.45 NMS threshold.
//
// Arguments:
//   - name: The model preset.
//
// Returns:
//   - yolov3.Config: A fresh config the caller may modify.
//   - error: An error wrapping ErrUnknownModel if the name is not registered.
//
// Example:
//
// ```go
//
//	cfg, err := NewLayerConfig(model.ModelNameYOLOv3Tiny)
//	if err != nil {
//	    log.Fatalf("Failed to load preset: %v", err)
//	}
//	cfg.NumClasses = 20
//
// ```
func NewLayerConfig(name model.Name) (yolov3.Config, error) {
	cfg := yolov3.Config{
		NumClasses:          80,
		Coords:              yolov3.DefaultCoords,
		NetWidth:            416,
		NetHeight:           416,
		ConfidenceThreshold: 0.5,
		NMSThreshold:        0.45,
		Backend:             yolov3.BackendCPU,
	}

	switch name {
	case model.ModelNameYOLOv3:
		cfg.Biases = []float32{
			10, 13, 16, 30, 33, 23,
			30, 61, 62, 45, 59, 119,
			116, 90, 156, 198, 373, 326,
		}
		cfg.Masks = [][]int{{6, 7, 8}, {3, 4, 5}, {0, 1, 2}}
		cfg.Strides = []float32{32, 16, 8}
	case model.ModelNameYOLOv3Tiny:
		cfg.Biases = []float32{
			10, 14, 23, 27, 37, 58,
			81, 82, 135, 169, 344, 319,
		}
		cfg.Masks = [][]int{{3, 4, 5}, {0, 1, 2}}
		cfg.Strides = []float32{32, 16}
	default:
		return yolov3.Config{}, errors.Wrapf(ErrUnknownModel, "%q", name)
	}

	return cfg, nil
}

// NewModel creates a detection output layer from a preset and overrides.
//
// Positive numeric fields of args replace the preset values. The label offset is
// taken from the label family so that record classes index the family's set.
//
// Arguments:
//   - args: The preset name, label family and overrides.
//   - logger: Receives layer diagnostics. May be nil.
//
// Returns:
//   - model.Model: The layer.
//   - error: An error if the preset or family is unknown or the result is invalid.
func NewModel(args model.NewModelArgs, logger logrus.FieldLogger) (model.Model, error) {
	cfg, err := NewLayerConfig(args.Name)
	if err != nil {
		return nil, err
	}

	if args.NumClasses > 0 {
		cfg.NumClasses = args.NumClasses
	}
	if args.NetWidth > 0 {
		cfg.NetWidth = args.NetWidth
	}
	if args.NetHeight > 0 {
		cfg.NetHeight = args.NetHeight
	}
	if args.ConfidenceThreshold > 0 {
		cfg.ConfidenceThreshold = args.ConfidenceThreshold
	}
	if args.NMSThreshold > 0 {
		cfg.NMSThreshold = args.NMSThreshold
	}

	if args.Family != "" {
		labels, err := Labels(args.Family)
		if err != nil {
			return nil, err
		}
		cfg.LabelOffset = labels.LabelOffset()
	}

	return yolov3.NewLayer(yolov3.NewLayerArgs{
		Name:   args.Name,
		Config: cfg,
		Logger: logger,
	})
}
