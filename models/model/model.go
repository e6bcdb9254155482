// Package model - Definitions shared by detection output models.
package model

import (
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-yolov3/images"
	"github.com/nvr-ai/go-yolov3/models/postprocess"
)

// Family is the label family a model's class indices refer to.
type Family string

const (
	// ModelFamilyCOCO is the 80 COCO classes with background at index 0.
	ModelFamilyCOCO Family = "coco"
	// ModelFamilyYOLO is the 80 COCO classes, zero-based, no background.
	ModelFamilyYOLO Family = "yolo"
	// ModelFamilyVOC is the 20 Pascal VOC classes with background at index 0.
	ModelFamilyVOC Family = "voc"
)

// Name is the unique identifier of a model preset.
type Name string

const (
	// ModelNameYOLOv3 is the three-scale YOLOv3 network (strides 32, 16, 8).
	ModelNameYOLOv3 Name = "yolov3"
	// ModelNameYOLOv3Tiny is the two-scale YOLOv3-tiny network (strides 32, 16).
	ModelNameYOLOv3Tiny Name = "yolov3-tiny"
)

// Model turns raw network outputs into detection records.
type Model interface {
	// Name returns the preset name of the model.
	Name() Name
	// PostProcess decodes one forward pass.
	//
	// Arguments:
	//   - outputs: One raw tensor per detection scale.
	//   - sizes: The original size of each image, or one size for the whole batch.
	PostProcess(outputs []tensor.Tensor, sizes []images.Size) (*postprocess.Output, error)
}

// NewModelArgs is the arguments for creating a new model.
type NewModelArgs struct {
	// Name selects the anchor/mask/stride preset.
	Name Name `json:"name" yaml:"name"`
	// Family selects the label set used to name classes.
	Family Family `json:"family" yaml:"family"`
	// NumClasses overrides the preset class count when positive.
	NumClasses int `json:"num_classes" yaml:"num_classes"`
	// NetWidth and NetHeight override the preset input size when positive.
	NetWidth  int `json:"net_width" yaml:"net_width"`
	NetHeight int `json:"net_height" yaml:"net_height"`
	// ConfidenceThreshold and NMSThreshold override the preset thresholds when positive.
	ConfidenceThreshold float32 `json:"confidence_threshold" yaml:"confidence_threshold"`
	NMSThreshold        float32 `json:"nms_threshold" yaml:"nms_threshold"`
}
