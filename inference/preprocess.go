package inference

import (
	"image"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-yolov3/images"
)

// PrepareInput letterboxes img into the network input buffer.
//
// The image is resized with its aspect ratio kept, centered on a gray canvas and
// written as planar RGB scaled to [0,1].
//
// Arguments:
//   - img: The image to prepare.
//   - netW: The network input width.
//   - netH: The network input height.
//   - dst: The destination buffer, at least 3*netW*netH floats.
//
// Returns:
//   - images.Letterbox: The geometry used, for mapping boxes back.
//   - error: An error if the image is empty or dst is too small.
func PrepareInput(img image.Image, netW, netH int, dst []float32) (images.Letterbox, error) {
	b := img.Bounds()
	if b.Empty() {
		return images.Letterbox{}, errors.New("empty image")
	}

	channelSize := netW * netH
	if len(dst) < channelSize*3 {
		return images.Letterbox{}, errors.Errorf("destination tensor only holds %d floats, needs %d", len(dst), channelSize*3)
	}
	red := dst[0:channelSize]
	green := dst[channelSize : channelSize*2]
	blue := dst[channelSize*2 : channelSize*3]

	canvas, lb := images.LetterboxImage(img, netW, netH)

	i := 0
	for y := 0; y < netH; y++ {
		row := canvas.Pix[y*canvas.Stride:]
		for x := 0; x < netW; x++ {
			px := row[x*4:]
			red[i] = float32(px[0]) / 255.0
			green[i] = float32(px[1]) / 255.0
			blue[i] = float32(px[2]) / 255.0
			i++
		}
	}

	return lb, nil
}
