// Package common - Detection types shared by decoders, adapters and detectors.
package common

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/nvr-ai/roadsigns/images"
)

// BoundingBox is a single detection in normalized [0, 1] image coordinates.
//
// The corners and the center/size are both stored; NewBoundingBox and FromCorners
// keep them consistent. X1 <= X2 and Y1 <= Y2 are not enforced.
type BoundingBox struct {
	// X1, Y1 is the top-left corner.
	X1, Y1 float32
	// X2, Y2 is the bottom-right corner.
	X2, Y2 float32
	// CX, CY is the center.
	CX, CY float32
	// W, H are the width and height.
	W, H float32
	// Confidence is the winning class score.
	Confidence float32
	// Class is the index into the label table.
	Class int
	// Label is the resolved class name.
	Label string
}

// NewBoundingBox builds a box from YOLO-style center/size geometry.
//
// Arguments:
//   - cx, cy: The normalized center.
//   - w, h: The normalized width and height.
//   - confidence: The class score.
//   - class: The class index.
//   - label: The class name.
//
// Returns:
//   - BoundingBox: The box with corners derived as center ± size/2.
func NewBoundingBox(cx, cy, w, h, confidence float32, class int, label string) BoundingBox {
	return BoundingBox{
		X1:         cx - w/2,
		Y1:         cy - h/2,
		X2:         cx + w/2,
		Y2:         cy + h/2,
		CX:         cx,
		CY:         cy,
		W:          w,
		H:          h,
		Confidence: confidence,
		Class:      class,
		Label:      label,
	}
}

// FromCorners builds a box from normalized corner coordinates.
func FromCorners(x1, y1, x2, y2, confidence float32, class int, label string) BoundingBox {
	return BoundingBox{
		X1:         x1,
		Y1:         y1,
		X2:         x2,
		Y2:         y2,
		CX:         (x1 + x2) / 2,
		CY:         (y1 + y2) / 2,
		W:          x2 - x1,
		H:          y2 - y1,
		Confidence: confidence,
		Class:      class,
		Label:      label,
	}
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("Object %s (class %d, confidence %f): (%.3f, %.3f), (%.3f, %.3f)",
		b.Label, b.Class, b.Confidence, b.X1, b.Y1, b.X2, b.Y2)
}

// Area returns the stored W*H, not the corner-derived area.
func (b BoundingBox) Area() float32 {
	return b.W * b.H
}

// InUnitRange reports whether all four corners lie in the closed interval [0, 1].
func (b BoundingBox) InUnitRange() bool {
	return inUnit(b.X1) && inUnit(b.Y1) && inUnit(b.X2) && inUnit(b.Y2)
}

func inUnit(v float32) bool {
	return v >= 0 && v <= 1
}

// Intersection returns the overlapping area of the two boxes' corner rectangles.
func (b BoundingBox) Intersection(other BoundingBox) float32 {
	ix1 := math32.Max(b.X1, other.X1)
	iy1 := math32.Max(b.Y1, other.Y1)
	ix2 := math32.Min(b.X2, other.X2)
	iy2 := math32.Min(b.Y2, other.Y2)
	return math32.Max(0, ix2-ix1) * math32.Max(0, iy2-iy1)
}

// IoU returns intersection over union for two boxes.
//
// The intersection comes from the corners while the areas come from the stored
// W and H. When the union is not a positive finite number, as with two zero-area
// boxes, the result is 0 so degenerate boxes never suppress anything.
//
// Arguments:
//   - other: The box to compare against.
//
// Returns:
//   - float32: The IoU in [0, 1] for well-formed boxes.
func (b BoundingBox) IoU(other BoundingBox) float32 {
	inter := b.Intersection(other)
	union := b.Area() + other.Area() - inter
	if union <= 0 || math32.IsNaN(union) || math32.IsInf(union, 0) {
		return 0
	}
	return inter / union
}

// ToRect maps the normalized box onto a width x height pixel frame.
//
// Arguments:
//   - width: The frame width in pixels.
//   - height: The frame height in pixels.
//
// Returns:
//   - images.Rect: The canonical pixel rectangle.
func (b BoundingBox) ToRect(width, height int) images.Rect {
	return images.Rect{
		X1: int(b.X1 * float32(width)),
		Y1: int(b.Y1 * float32(height)),
		X2: int(b.X2 * float32(width)),
		Y2: int(b.Y2 * float32(height)),
	}.Canon()
}
