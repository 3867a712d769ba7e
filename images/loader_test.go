package images

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDirectoryFrameOrder(t *testing.T) {
	dir := t.TempDir()
	png := encode(t, FormatPNG)
	for _, name := range []string{"frame-10.png", "frame-2.png", "frame-1.png", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), png, 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o700))

	files, err := LoadDirectory(dir)
	require.NoError(t, err)

	require.Len(t, files, 3)
	assert.Equal(t, []int{1, 2, 10}, []int{files[0].Frame, files[1].Frame, files[2].Frame})
	assert.Equal(t, FormatPNG, files[0].Image.Format)

	img, err := files[0].Image.Decode()
	require.NoError(t, err)
	assert.Equal(t, 6, img.Bounds().Dx())
}

func TestLoadDirectoryNameOrder(t *testing.T) {
	dir := t.TempDir()
	jpg := encode(t, FormatJPEG)
	for _, name := range []string{"yield.jpg", "frame-3.jpg", "stop.jpeg"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), jpg, 0o600))
	}

	files, err := LoadDirectory(dir)
	require.NoError(t, err)

	require.Len(t, files, 3)
	assert.Equal(t, "frame-3.jpg", filepath.Base(files[0].Path))
	assert.Equal(t, "stop.jpeg", filepath.Base(files[1].Path))
	assert.Equal(t, -1, files[2].Frame)
}

func TestLoadDirectoryMissing(t *testing.T) {
	_, err := LoadDirectory(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
