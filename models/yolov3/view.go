package yolov3

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// ScaleTensorView is read-only indexed access into the raw output tensor of one
// detection scale.
//
// The tensor is NCHW with shape (batch, anchors*entries, sideH, sideW); the channel
// of entry e of anchor a is a*entries+e.
type ScaleTensorView struct {
	Batch   int
	Anchors int
	Entries int
	SideW   int
	SideH   int

	data     []float32
	stride   int
	perImage int
}

// NewScaleTensorView validates t against the expected layout and wraps it.
//
// Arguments:
//   - t: A dense float32 tensor of rank 4.
//   - anchors: Anchors per cell at this scale.
//   - entries: Values per anchor (coords + 1 + classes).
//
// Returns:
//   - *ScaleTensorView: The view.
//   - error: An error wrapping ErrInvalidInput on dtype, rank or channel mismatch.
func NewScaleTensorView(t tensor.Tensor, anchors, entries int) (*ScaleTensorView, error) {
	if t == nil {
		return nil, errors.Wrap(ErrInvalidInput, "nil tensor")
	}
	if t.Dtype() != tensor.Float32 {
		return nil, errors.Wrapf(ErrInvalidInput, "expected float32 tensor, got %v", t.Dtype())
	}

	shape := t.Shape()
	if len(shape) != 4 {
		return nil, errors.Wrapf(ErrInvalidInput, "expected NCHW tensor, got shape %v", shape)
	}

	data, ok := t.Data().([]float32)
	if !ok {
		return nil, errors.Wrap(ErrInvalidInput, "tensor is not backed by []float32")
	}

	return newScaleView(data, shape[0], shape[1], shape[2], shape[3], anchors, entries)
}

func newScaleView(data []float32, batch, channels, sideH, sideW, anchors, entries int) (*ScaleTensorView, error) {
	if batch <= 0 || sideH <= 0 || sideW <= 0 {
		return nil, errors.Wrapf(ErrInvalidInput, "non-positive tensor dims (%d, %d, %d, %d)", batch, channels, sideH, sideW)
	}
	if channels != anchors*entries {
		return nil, errors.Wrapf(ErrInvalidInput, "expected %d channels (%d anchors x %d entries), got %d",
			anchors*entries, anchors, entries, channels)
	}

	stride := sideW * sideH
	perImage := channels * stride
	if len(data) != batch*perImage {
		return nil, errors.Wrapf(ErrInvalidInput, "tensor holds %d values, shape needs %d", len(data), batch*perImage)
	}

	return &ScaleTensorView{
		Batch:    batch,
		Anchors:  anchors,
		Entries:  entries,
		SideW:    sideW,
		SideH:    sideH,
		data:     data,
		stride:   stride,
		perImage: perImage,
	}, nil
}

// withData returns a view with the same geometry over another backing slice.
func (v *ScaleTensorView) withData(data []float32) *ScaleTensorView {
	clone := *v
	clone.data = data
	return &clone
}

// index returns the flat offset of entry e of anchor a at cell (row, col).
func (v *ScaleTensorView) index(image, a, e, row, col int) int {
	return image*v.perImage + (a*v.Entries+e)*v.stride + row*v.SideW + col
}

// At returns the raw value of entry e of anchor a at cell (row, col) of image.
func (v *ScaleTensorView) At(image, a, e, row, col int) float32 {
	return v.data[v.index(image, a, e, row, col)]
}

// Cell copies all entries of anchor a at cell (row, col) into dst.
func (v *ScaleTensorView) Cell(image, a, row, col int, dst []float32) []float32 {
	dst = dst[:0]
	base := v.index(image, a, 0, row, col)
	for e := 0; e < v.Entries; e++ {
		dst = append(dst, v.data[base+e*v.stride])
	}
	return dst
}

// Len returns the number of values in the view.
func (v *ScaleTensorView) Len() int {
	return len(v.data)
}
