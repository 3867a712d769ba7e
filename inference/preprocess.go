package inference

import (
	"image"
	"strings"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

const (
	// InputMean is subtracted from every 0-255 channel value.
	InputMean float32 = 0
	// InputStandardDeviation divides every channel value after the mean.
	InputStandardDeviation float32 = 255
)

// ChannelOrder defines the ordering of image channels in the input tensor.
type ChannelOrder string

const (
	// ChannelOrderAuto takes the layout from the model's input dimensions.
	ChannelOrderAuto ChannelOrder = ""
	// ChannelOrderCHW is Channel-Height-Width ordering (ONNX exports).
	ChannelOrderCHW ChannelOrder = "chw"
	// ChannelOrderHWC is Height-Width-Channel ordering (TFLite exports).
	ChannelOrderHWC ChannelOrder = "hwc"
)

// ParseChannelOrder parses "chw" or "hwc", case-insensitively. Empty means ChannelOrderAuto.
func ParseChannelOrder(s string) (ChannelOrder, error) {
	switch ChannelOrder(strings.ToLower(s)) {
	case ChannelOrderAuto:
		return ChannelOrderAuto, nil
	case ChannelOrderCHW:
		return ChannelOrderCHW, nil
	case ChannelOrderHWC:
		return ChannelOrderHWC, nil
	default:
		return "", errors.Errorf("unknown channel order %q", s)
	}
}

// InputSize returns the number of floats in a 3 channel width x height input.
func InputSize(width, height int) int {
	return 3 * width * height
}

// PrepareInput resizes img to width x height and writes normalized RGB values to dst.
//
// The image is stretched to the tensor size with unfiltered nearest-neighbour
// sampling and without letterboxing, so the decoded boxes stay normalized to the
// original frame. Every channel value v in [0, 255]
// becomes (v - InputMean) / InputStandardDeviation.
//
// Arguments:
//   - img: The image to prepare.
//   - width: The tensor input width.
//   - height: The tensor input height.
//   - order: The channel layout of dst.
//   - dst: The destination tensor data, at least InputSize(width, height) long.
//
// Returns:
//   - error: An error if the input preparation fails.
func PrepareInput(img image.Image, width, height int, order ChannelOrder, dst []float32) error {
	if img == nil {
		return errors.New("image is nil")
	}
	if width <= 0 || height <= 0 {
		return errors.Errorf("invalid input size %dx%d", width, height)
	}
	channelSize := width * height
	if len(dst) < InputSize(width, height) {
		return errors.Errorf("destination tensor only holds %d floats, needs %d (make sure it's the right shape!)",
			len(dst), InputSize(width, height))
	}

	b := img.Bounds()
	if b.Dx() != width || b.Dy() != height {
		img = resize.Resize(uint(width), uint(height), img, resize.NearestNeighbor)
		b = img.Bounds()
	}

	i := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			rf := normalize(r)
			gf := normalize(g)
			bf := normalize(bl)
			switch order {
			case ChannelOrderHWC:
				dst[3*i] = rf
				dst[3*i+1] = gf
				dst[3*i+2] = bf
			default:
				dst[i] = rf
				dst[channelSize+i] = gf
				dst[2*channelSize+i] = bf
			}
			i++
		}
	}
	return nil
}

func normalize(v uint32) float32 {
	return (float32(v>>8) - InputMean) / InputStandardDeviation
}
