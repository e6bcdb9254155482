package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListImageFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"frame-10.jpg", "frame-2.png", "b.JPEG", "a.webp", "notes.txt", "frame-x.jpg"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.jpg"), 0o700))

	files, err := ListImageFiles(dir)
	require.NoError(t, err)

	var names []string
	for _, f := range files {
		names = append(names, filepath.Base(f.Path))
	}
	assert.Equal(t, []string{"frame-2.png", "frame-10.jpg", "a.webp", "b.JPEG", "frame-x.jpg"}, names)
	assert.Equal(t, 2, files[0].Frame)
	assert.Equal(t, -1, files[2].Frame)
}

func TestListImageFiles_MissingDir(t *testing.T) {
	_, err := ListImageFiles(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestIsImageFile(t *testing.T) {
	assert.True(t, IsImageFile("dog.JPG"))
	assert.True(t, IsImageFile("dog.bmp"))
	assert.False(t, IsImageFile("dog.gif"))
	assert.False(t, IsImageFile("dog"))
}
