package yolov3

import (
	"github.com/nvr-ai/go-yolov3/images"
	"github.com/nvr-ai/go-yolov3/models/postprocess"
)

// CorrectYOLOBox maps a decoded box from network-normalized coordinates back to the
// original image, undoing the letterbox, and stores the clamped corners in r.Box.
//
// The padding introduced by fitting size into netW x netH is removed and the box is
// rescaled to the unpadded image. Absolute output is in pixels clamped to
// [0,w-1] x [0,h-1]; relative output is clamped to [0,1].
//
// Arguments:
//   - r: The decoded candidate. X, Y, W, H are read, Box is written.
//   - size: The original image size. Must be valid.
//   - netW: The network input width.
//   - netH: The network input height.
//   - relative: If true, keep the result normalized to the original image.
func CorrectYOLOBox(r *postprocess.Result, size images.Size, netW, netH int, relative bool) {
	lb := images.NewLetterbox(size, netW, netH)
	correctWith(r, lb, size, relative)
}

func correctWith(r *postprocess.Result, lb images.Letterbox, size images.Size, relative bool) {
	x, y, w, h := lb.Unpad(r.X, r.Y, r.W, r.H)

	maxX, maxY := float32(1), float32(1)
	if !relative {
		sw, sh := float32(size.Width), float32(size.Height)
		x, w = x*sw, w*sw
		y, h = y*sh, h*sh
		maxX, maxY = sw-1, sh-1
	}

	r.Box = images.RectFromCenter(x, y, w, h).Clamp(maxX, maxY)
}
