// Package postprocess - fixed-layout detection records.
package postprocess

import (
	"fmt"

	"gorgonia.org/tensor"
)

// RecordSize is the number of fields in one detection record.
const RecordSize = 7

// Record is one row of the detection output:
// [image_id, class, confidence, xmin, ymin, xmax, ymax].
type Record struct {
	ImageID    int     `json:"image_id"`
	Class      int     `json:"class"`
	Confidence float32 `json:"confidence"`
	XMin       float32 `json:"xmin"`
	YMin       float32 `json:"ymin"`
	XMax       float32 `json:"xmax"`
	YMax       float32 `json:"ymax"`
}

// EmptyRecord is the sentinel emitted when no detection survives.
var EmptyRecord = Record{ImageID: -1}

// Sentinel reports whether r is the "no detections" record.
func (r Record) Sentinel() bool {
	return r == EmptyRecord
}

// Values returns the record as its 7 float32 fields.
func (r Record) Values() [RecordSize]float32 {
	return [RecordSize]float32{
		float32(r.ImageID),
		float32(r.Class),
		r.Confidence,
		r.XMin,
		r.YMin,
		r.XMax,
		r.YMax,
	}
}

func (r Record) String() string {
	return fmt.Sprintf("image %d class %d (confidence %f): (%.2f, %.2f), (%.2f, %.2f)",
		r.ImageID, r.Class, r.Confidence, r.XMin, r.YMin, r.XMax, r.YMax)
}

// Output is the serialized result of one forward pass.
type Output struct {
	Records []Record
}

// FormatDetections serializes the kept detections of every image.
//
// Arguments:
//   - kept: The kept detections, indexed by image.
//   - labelOffset: Added to every class index (1 reserves 0 for background).
//
// Returns:
//   - *Output: One record per detection in image order, or the single sentinel
//     record when nothing was kept.
func FormatDetections(kept [][]Result, labelOffset int) *Output {
	total := 0
	for _, k := range kept {
		total += len(k)
	}
	if total == 0 {
		return &Output{Records: []Record{EmptyRecord}}
	}

	records := make([]Record, 0, total)
	for image, detections := range kept {
		for _, d := range detections {
			records = append(records, Record{
				ImageID:    image,
				Class:      d.Class + labelOffset,
				Confidence: d.Confidence,
				XMin:       d.Box.X1,
				YMin:       d.Box.Y1,
				XMax:       d.Box.X2,
				YMax:       d.Box.Y2,
			})
		}
	}

	return &Output{Records: records}
}

// Len returns the number of records, 1 for the sentinel.
func (o *Output) Len() int {
	return len(o.Records)
}

// Count returns the number of detections, 0 for the sentinel.
func (o *Output) Count() int {
	if len(o.Records) == 1 && o.Records[0].Sentinel() {
		return 0
	}
	return len(o.Records)
}

// Detections returns the records belonging to one image.
func (o *Output) Detections(image int) []Record {
	var out []Record
	for _, r := range o.Records {
		if r.ImageID == image {
			out = append(out, r)
		}
	}
	return out
}

// Values flattens the records row-major, RecordSize floats per record.
func (o *Output) Values() []float32 {
	data := make([]float32, 0, len(o.Records)*RecordSize)
	for _, r := range o.Records {
		v := r.Values()
		data = append(data, v[:]...)
	}
	return data
}

// Tensor returns the records as a float32 tensor of shape (1, 1, N, 7).
func (o *Output) Tensor() *tensor.Dense {
	return tensor.New(
		tensor.WithShape(1, 1, len(o.Records), RecordSize),
		tensor.WithBacking(o.Values()),
	)
}
