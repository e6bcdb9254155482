package render

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-yolov3/models"
	"github.com/nvr-ai/go-yolov3/models/postprocess"
)

func TestCaption(t *testing.T) {
	r := postprocess.Record{Class: 16, Confidence: 0.873}
	assert.Equal(t, "dog 0.87", Caption(r, &models.YOLOClasses))
	assert.Equal(t, "cat 0.87", Caption(r, &models.COCOClasses))
	assert.Equal(t, "class_16 0.87", Caption(r, nil))
}

func TestRect(t *testing.T) {
	r := postprocess.Record{XMin: 10.7, YMin: 20.2, XMax: 30.9, YMax: 40}
	assert.Equal(t, image.Rect(10, 20, 30, 40), Rect(r))
}

func TestClassColor(t *testing.T) {
	assert.Equal(t, ClassColor(0), ClassColor(len(palette)))
	assert.NotEqual(t, ClassColor(0), ClassColor(1))
	assert.Equal(t, ClassColor(3), ClassColor(-3))
}

func TestDraw(t *testing.T) {
	mat := gocv.NewMatWithSize(64, 64, gocv.MatTypeCV8UC3)
	defer mat.Close()

	out := &postprocess.Output{Records: []postprocess.Record{
		{Class: 0, Confidence: 0.9, XMin: 5, YMin: 5, XMax: 40, YMax: 40},
		{Class: 2, Confidence: 0.6, XMin: 20, YMin: 30, XMax: 60, YMax: 60},
	}}
	assert.Equal(t, 2, Draw(&mat, out, &models.YOLOClasses))

	v := mat.GetVecbAt(5, 20)
	c := ClassColor(0)
	// OpenCV stores BGR.
	assert.Equal(t, []uint8{c.B, c.G, c.R}, []uint8(v))

	empty := &postprocess.Output{Records: []postprocess.Record{postprocess.EmptyRecord}}
	assert.Zero(t, Draw(&mat, empty, nil))
}
