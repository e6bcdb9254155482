// Package models - Presets and label sets for the YOLOv3 detection layers.
package models

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-yolov3/models/model"
)

// ErrUnknownFamily is returned for a label family with no registered set.
var ErrUnknownFamily = errors.New("unknown label family")

// OutputClass represents one detection label.
type OutputClass struct {
	// The integer index written to the output records.
	Index int
	// The human-readable label.
	Name string
}

// LabelSet ties a label family to its full list of labels.
type LabelSet struct {
	// Label family identifier.
	Family model.Family
	// Classes ordered by index.
	Classes []OutputClass
}

// Name returns the label of idx, or "class_<idx>" if idx is outside the set.
//
// Arguments:
//   - idx: The class index of an output record, label offset included.
//
// Returns:
//   - string: The label.
func (s *LabelSet) Name(idx int) string {
	if s != nil && idx >= 0 && idx < len(s.Classes) {
		return s.Classes[idx].Name
	}
	return fmt.Sprintf("class_%d", idx)
}

// Index returns the index of the label name, or -1 if the set has no such label.
func (s *LabelSet) Index(name string) int {
	for _, c := range s.Classes {
		if c.Name == name {
			return c.Index
		}
	}
	return -1
}

// Len returns the number of labels.
func (s *LabelSet) Len() int {
	return len(s.Classes)
}

// LabelOffset is the value added to zero-based class indices so that they index
// this set: 1 when index 0 is the background label.
func (s *LabelSet) LabelOffset() int {
	if len(s.Classes) > 0 && s.Classes[0].Name == BackgroundLabel {
		return 1
	}
	return 0
}

// BackgroundLabel is the name of the reserved class 0 of background-indexed sets.
const BackgroundLabel = "__background__"

var COCOClasses = LabelSet{
	Family: model.ModelFamilyCOCO,
	Classes: []OutputClass{
		{0, BackgroundLabel},
		{1, "person"},
		{2, "bicycle"},
		{3, "car"},
		{4, "motorcycle"},
		{5, "airplane"},
		{6, "bus"},
		{7, "train"},
		{8, "truck"},
		{9, "boat"},
		{10, "traffic light"},
		{11, "fire hydrant"},
		{12, "stop sign"},
		{13, "parking meter"},
		{14, "bench"},
		{15, "bird"},
		{16, "cat"},
		{17, "dog"},
		{18, "horse"},
		{19, "sheep"},
		{20, "cow"},
		{21, "elephant"},
		{22, "bear"},
		{23, "zebra"},
		{24, "giraffe"},
		{25, "backpack"},
		{26, "umbrella"},
		{27, "handbag"},
		{28, "tie"},
		{29, "suitcase"},
		{30, "frisbee"},
		{31, "skis"},
		{32, "snowboard"},
		{33, "sports ball"},
		{34, "kite"},
		{35, "baseball bat"},
		{36, "baseball glove"},
		{37, "skateboard"},
		{38, "surfboard"},
		{39, "tennis racket"},
		{40, "bottle"},
		{41, "wine glass"},
		{42, "cup"},
		{43, "fork"},
		{44, "knife"},
		{45, "spoon"},
		{46, "bowl"},
		{47, "banana"},
		{48, "apple"},
		{49, "sandwich"},
		{50, "orange"},
		{51, "broccoli"},
		{52, "carrot"},
		{53, "hot dog"},
		{54, "pizza"},
		{55, "donut"},
		{56, "cake"},
		{57, "chair"},
		{58, "couch"},
		{59, "potted plant"},
		{60, "bed"},
		{61, "dining table"},
		{62, "toilet"},
		{63, "tv"},
		{64, "laptop"},
		{65, "mouse"},
		{66, "remote"},
		{67, "keyboard"},
		{68, "cell phone"},
		{69, "microwave"},
		{70, "oven"},
		{71, "toaster"},
		{72, "sink"},
		{73, "refrigerator"},
		{74, "book"},
		{75, "clock"},
		{76, "vase"},
		{77, "scissors"},
		{78, "teddy bear"},
		{79, "hair drier"},
		{80, "toothbrush"},
	},
}

// YOLOClasses is the 80 COCO classes (no background).
// YOLO networks index directly into this zero-based list.
var YOLOClasses = LabelSet{
	Family: model.ModelFamilyYOLO,
	Classes: func() []OutputClass {
		classes := make([]OutputClass, len(COCOClasses.Classes)-1) // drop background
		for i := 1; i < len(COCOClasses.Classes); i++ {
			classes[i-1] = OutputClass{i - 1, COCOClasses.Classes[i].Name}
		}
		return classes
	}(),
}

// PascalVOCClasses is the 20 Pascal VOC classes + BackgroundLabel at index 0.
var PascalVOCClasses = LabelSet{
	Family: model.ModelFamilyVOC,
	Classes: []OutputClass{
		{0, BackgroundLabel},
		{1, "aeroplane"},
		{2, "bicycle"},
		{3, "bird"},
		{4, "boat"},
		{5, "bottle"},
		{6, "bus"},
		{7, "car"},
		{8, "cat"},
		{9, "chair"},
		{10, "cow"},
		{11, "diningtable"},
		{12, "dog"},
		{13, "horse"},
		{14, "motorbike"},
		{15, "person"},
		{16, "pottedplant"},
		{17, "sheep"},
		{18, "sofa"},
		{19, "train"},
		{20, "tvmonitor"},
	},
}

var labelSets = map[model.Family]*LabelSet{
	model.ModelFamilyCOCO: &COCOClasses,
	model.ModelFamilyYOLO: &YOLOClasses,
	model.ModelFamilyVOC:  &PascalVOCClasses,
}

// Labels returns the label set of a family.
//
// Arguments:
//   - family: The label family.
//
// Returns:
//   - *LabelSet: The registered set.
//   - error: An error wrapping ErrUnknownFamily if no set is registered.
func Labels(family model.Family) (*LabelSet, error) {
	set, ok := labelSets[family]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownFamily, "%q", family)
	}
	return set, nil
}
