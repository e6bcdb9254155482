// Package util - helpers for locating input images.
package util

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-yolov3/images"
)

// ImageFile is an image found in a directory.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Frame is the number parsed from a "frame-<n>" file name, or -1.
	Frame int
}

// IsImageFile reports whether name has an extension images.DecodeFile can read.
func IsImageFile(name string) bool {
	_, err := images.FormatFromPath(name)
	return err == nil
}

// ListImageFiles lists the image files of a directory.
//
// Files named "frame-<n>.<ext>" are ordered by frame number ahead of other
// files, which are ordered by name.
//
// Arguments:
//   - dir: Directory path containing image files.
//
// Returns:
//   - []ImageFile: The image files.
//   - error: Error if the directory cannot be read.
func ListImageFiles(dir string) ([]ImageFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "can't read directory %s", dir)
	}

	var files []ImageFile
	for _, entry := range entries {
		if entry.IsDir() || !IsImageFile(entry.Name()) {
			continue
		}

		frame := -1
		base := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if n, ok := strings.CutPrefix(base, "frame-"); ok {
			if parsed, err := strconv.Atoi(n); err == nil {
				frame = parsed
			}
		}

		files = append(files, ImageFile{
			Path:  filepath.Join(dir, entry.Name()),
			Frame: frame,
		})
	}

	sort.SliceStable(files, func(i, j int) bool {
		a, b := files[i], files[j]
		if (a.Frame >= 0) != (b.Frame >= 0) {
			return a.Frame >= 0
		}
		if a.Frame != b.Frame {
			return a.Frame < b.Frame
		}
		return a.Path < b.Path
	})

	return files, nil
}
