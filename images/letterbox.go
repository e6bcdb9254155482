package images

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/chewxy/math32"
	"github.com/nfnt/resize"
)

// PadColor fills the letterbox border (darknet uses 0.5 gray).
var PadColor = color.RGBA{R: 128, G: 128, B: 128, A: 255}

// Letterbox describes a uniform-scale resize of an image into the network input
// with symmetric padding on the short side.
type Letterbox struct {
	// Scale is min(netW/w, netH/h).
	Scale float32
	// ContentWidth and ContentHeight are the resized image size in network pixels.
	ContentWidth, ContentHeight float32
	// PadWidth and PadHeight are the total padding, split evenly on both sides.
	PadWidth, PadHeight float32
	// NetWidth and NetHeight are the network input dimensions.
	NetWidth, NetHeight float32
}

// NewLetterbox computes the letterbox geometry for fitting size into netW x netH.
//
// Arguments:
//   - size: The original image size. Must be valid.
//   - netW: The network input width.
//   - netH: The network input height.
//
// Returns:
//   - Letterbox: The scale and padding of the fit.
func NewLetterbox(size Size, netW, netH int) Letterbox {
	w, h := float32(size.Width), float32(size.Height)
	nw, nh := float32(netW), float32(netH)

	s := math32.Min(nw/w, nh/h)
	cw, ch := s*w, s*h

	return Letterbox{
		Scale:         s,
		ContentWidth:  cw,
		ContentHeight: ch,
		PadWidth:      nw - cw,
		PadHeight:     nh - ch,
		NetWidth:      nw,
		NetHeight:     nh,
	}
}

// Unpad maps a center/size box from network-normalized coordinates to coordinates
// normalized to the original (unpadded) image.
func (l Letterbox) Unpad(x, y, w, h float32) (float32, float32, float32, float32) {
	rx := l.NetWidth / l.ContentWidth
	ry := l.NetHeight / l.ContentHeight

	x = (x - l.PadWidth/2/l.NetWidth) * rx
	y = (y - l.PadHeight/2/l.NetHeight) * ry

	return x, y, w * rx, h * ry
}

// LetterboxImage resizes img into a netW x netH canvas, keeping its aspect ratio
// and centering it on a PadColor background.
//
// Arguments:
//   - img: The source image.
//   - netW: The network input width.
//   - netH: The network input height.
//
// Returns:
//   - *image.RGBA: The letterboxed canvas.
//   - Letterbox: The geometry used.
func LetterboxImage(img image.Image, netW, netH int) (*image.RGBA, Letterbox) {
	b := img.Bounds()
	lb := NewLetterbox(Size{Width: b.Dx(), Height: b.Dy()}, netW, netH)

	cw := max(int(math32.Round(lb.ContentWidth)), 1)
	ch := max(int(math32.Round(lb.ContentHeight)), 1)
	resized := resize.Resize(uint(cw), uint(ch), img, resize.Bilinear)

	canvas := image.NewRGBA(image.Rect(0, 0, netW, netH))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: PadColor}, image.Point{}, draw.Src)

	offset := image.Pt((netW-cw)/2, (netH-ch)/2)
	dst := image.Rectangle{Min: offset, Max: offset.Add(image.Pt(cw, ch))}
	draw.Draw(canvas, dst, resized, resized.Bounds().Min, draw.Src)

	return canvas, lb
}
