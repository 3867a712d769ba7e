// Package images - Image decoding and pixel rectangles for detection pipelines.
package images

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/pkg/errors"
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
)

// ErrUnsupportedFormat is returned for image data or file extensions that are not JPEG, PNG or WebP.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Image represents an encoded image with a format, data, width, and height.
type Image struct {
	// The format of the image.
	Format ImageFormat `json:"format" yaml:"format"`
	// The data of the image.
	Data []byte `json:"data" yaml:"data"`
	// The width of the image.
	Width int `json:"width" yaml:"width"`
	// The height of the image.
	Height int `json:"height" yaml:"height"`
}

// FormatFromPath returns the image format implied by a file extension.
func FormatFromPath(path string) (ImageFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return FormatJPEG, nil
	case ".png":
		return FormatPNG, nil
	case ".webp":
		return FormatWebP, nil
	default:
		return "", errors.Wrapf(ErrUnsupportedFormat, "extension %q", filepath.Ext(path))
	}
}

// SniffFormat returns the image format from the leading magic bytes of data.
func SniffFormat(data []byte) (ImageFormat, error) {
	switch {
	case bytes.HasPrefix(data, []byte{0xff, 0xd8, 0xff}):
		return FormatJPEG, nil
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return FormatPNG, nil
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return FormatWebP, nil
	default:
		return "", ErrUnsupportedFormat
	}
}

// Decode decodes the image data in i according to its format. An empty format
// is sniffed from the data.
//
// Returns:
//   - image.Image: The decoded image.
//   - error: An error if the format is unsupported or the data is corrupt.
func (i *Image) Decode() (image.Image, error) {
	format := i.Format
	if format == "" {
		f, err := SniffFormat(i.Data)
		if err != nil {
			return nil, err
		}
		format = f
	}

	var (
		img image.Image
		err error
	)
	r := bytes.NewReader(i.Data)
	switch format {
	case FormatJPEG:
		img, err = jpeg.Decode(r)
	case FormatPNG:
		img, err = png.Decode(r)
	case FormatWebP:
		img, err = webp.Decode(r)
	default:
		return nil, errors.Wrapf(ErrUnsupportedFormat, "format %q", format)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s image", format)
	}

	b := img.Bounds()
	i.Format = format
	i.Width = b.Dx()
	i.Height = b.Dy()
	return img, nil
}

// Load reads and decodes an image file.
//
// Arguments:
//   - path: A .jpg, .jpeg, .png or .webp file.
//
// Returns:
//   - *Image: The encoded image with its dimensions filled in.
//   - image.Image: The decoded pixels.
//   - error: An error if the file cannot be read or decoded.
func Load(path string) (*Image, image.Image, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to read image %s", path)
	}
	i := &Image{Format: format, Data: data}
	img, err := i.Decode()
	if err != nil {
		return nil, nil, err
	}
	return i, img, nil
}
