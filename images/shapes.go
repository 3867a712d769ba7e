// Package images - Pixel-space geometry for detection results.
package images

// Rect is a bounding box in pixel coordinates.
type Rect struct {
	// X2,Y2 are exclusive (like image.Rectangle).
	X1, Y1, X2, Y2 int
}

// Canon returns the rectangle with X1 <= X2 and Y1 <= Y2.
func (r Rect) Canon() Rect {
	if r.X2 < r.X1 {
		r.X1, r.X2 = r.X2, r.X1
	}
	if r.Y2 < r.Y1 {
		r.Y1, r.Y2 = r.Y2, r.Y1
	}
	return r
}

// Dx returns the width of r.
func (r Rect) Dx() int {
	return r.X2 - r.X1
}

// Dy returns the height of r.
func (r Rect) Dy() int {
	return r.Y2 - r.Y1
}

// Area returns the area of r, or 0 if r is empty.
func (r Rect) Area() int {
	if r.Empty() {
		return 0
	}
	return r.Dx() * r.Dy()
}

// Empty reports whether r contains no pixels.
func (r Rect) Empty() bool {
	return r.X1 >= r.X2 || r.Y1 >= r.Y2
}

// Normalize divides the corners of r by the frame size.
//
// Arguments:
//   - width: The frame width in pixels. Must be > 0.
//   - height: The frame height in pixels. Must be > 0.
//
// Returns:
//   - x1, y1, x2, y2: The corners in [0, 1] when r lies inside the frame.
func (r Rect) Normalize(width, height int) (x1, y1, x2, y2 float32) {
	w := float32(width)
	h := float32(height)
	return float32(r.X1) / w, float32(r.Y1) / h, float32(r.X2) / w, float32(r.Y2) / h
}
