package images

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// File is an encoded image read from a directory.
type File struct {
	// Path is the path to the image file.
	Path string
	// Image holds the raw bytes and format of the file.
	Image Image
	// Frame is the frame number parsed from a "frame-N" or "N" file name, or -1.
	Frame int
}

// LoadDirectory reads all JPEG, PNG and WebP files from a directory.
//
// Files are ordered by frame number when every name carries one and by file
// name otherwise. Subdirectories and other extensions are skipped.
//
// Arguments:
//   - dir: Directory path containing image files.
//
// Returns:
//   - []File: The encoded images. Pixels are decoded lazily with Image.Decode.
//   - error: Error if the directory or a file cannot be read.
func LoadDirectory(dir string) ([]File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read directory %s", dir)
	}

	numbered := true
	files := make([]File, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		format, err := FormatFromPath(entry.Name())
		if err != nil {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read image %s", path)
		}

		frame := frameNumber(entry.Name())
		if frame < 0 {
			numbered = false
		}
		files = append(files, File{
			Path:  path,
			Image: Image{Format: format, Data: data},
			Frame: frame,
		})
	}

	sort.SliceStable(files, func(i, j int) bool {
		if numbered {
			return files[i].Frame < files[j].Frame
		}
		return files[i].Path < files[j].Path
	})
	return files, nil
}

func frameNumber(name string) int {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	n, err := strconv.Atoi(strings.TrimPrefix(base, "frame-"))
	if err != nil || n < 0 {
		return -1
	}
	return n
}
