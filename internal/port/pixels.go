package port

// PixelBuffer is the single capability every capture surface adapts to:
// a still image, a camera frame, or a raw RGBA canvas.
type PixelBuffer interface {
	Width() int
	Height() int

	// RGBA returns the non-premultiplied sample at (x, y), origin top-left.
	RGBA(x, y int) (r, g, b, a uint8)
}
