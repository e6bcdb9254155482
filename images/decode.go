package images

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/pkg/errors"
	"golang.org/x/image/bmp"
)

// ImageFormat represents supported image formats
type ImageFormat string

// ImageFormat constants
const (
	// FormatJPEG is the JPEG image format.
	FormatJPEG ImageFormat = "jpeg"
	// FormatWebP is the WebP image format.
	FormatWebP ImageFormat = "webp"
	// FormatPNG is the PNG image format.
	FormatPNG ImageFormat = "png"
	// FormatBMP is the BMP image format.
	FormatBMP ImageFormat = "bmp"
)

// ErrUnsupportedFormat is returned for image data in a format that can't be decoded.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// FormatFromPath returns the image format implied by a file extension.
//
// Arguments:
//   - path: The file path.
//
// Returns:
//   - ImageFormat: The format.
//   - error: An error wrapping ErrUnsupportedFormat for unknown extensions.
func FormatFromPath(path string) (ImageFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return FormatJPEG, nil
	case ".png":
		return FormatPNG, nil
	case ".webp":
		return FormatWebP, nil
	case ".bmp":
		return FormatBMP, nil
	default:
		return "", errors.Wrapf(ErrUnsupportedFormat, "%q", filepath.Ext(path))
	}
}

// Decode decodes image data of a known format.
//
// Arguments:
//   - data: The encoded image.
//   - format: The encoding of data.
//
// Returns:
//   - image.Image: The decoded image.
//   - error: An error if data is empty, the format is unknown or decoding fails.
func Decode(data []byte, format ImageFormat) (image.Image, error) {
	if len(data) == 0 {
		return nil, errors.New("empty image data")
	}

	var (
		r   io.Reader = bytes.NewReader(data)
		img image.Image
		err error
	)
	switch format {
	case FormatJPEG:
		img, err = jpeg.Decode(r)
	case FormatPNG:
		img, err = png.Decode(r)
	case FormatWebP:
		img, err = webp.Decode(r)
	case FormatBMP:
		img, err = bmp.Decode(r)
	default:
		return nil, errors.Wrapf(ErrUnsupportedFormat, "%q", format)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", format)
	}
	return img, nil
}

// DecodeFile reads and decodes an image file, picking the decoder from its extension.
func DecodeFile(path string) (image.Image, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "can't read image %s", path)
	}
	return Decode(data, format)
}
