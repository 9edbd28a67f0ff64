package port

import "context"

// Facing selects a camera by the direction it points.
type Facing string

const (
	// FacingAny accepts whichever device is the default.
	FacingAny Facing = ""
	// FacingEnvironment prefers the rear, world-facing camera.
	FacingEnvironment Facing = "environment"
	// FacingUser prefers the front camera.
	FacingUser Facing = "user"
)

// Constraints describe the requested camera.
type Constraints struct {
	Facing Facing
	Width  int
	Height int
}

// Camera opens capture streams.
type Camera interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Stream is an acquired camera. It holds the device until Close.
type Stream interface {
	// Current returns the most recent frame. Before the first frame arrives it
	// returns a zero-sized buffer.
	Current() PixelBuffer

	// Device names the acquired device.
	Device() string

	Close() error
}
