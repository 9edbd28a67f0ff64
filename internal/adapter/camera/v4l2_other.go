//go:build !linux

package camera

import (
	"context"
	"errors"
	"fmt"

	"visearch/config"
	"visearch/internal/port"
)

var errV4L2Unsupported = errors.New("v4l2 capture is only available on linux")

type V4L2Camera struct{}

func NewV4L2Camera(cfg config.CameraConfig) *V4L2Camera {
	return &V4L2Camera{}
}

func (c *V4L2Camera) Open(ctx context.Context, cons port.Constraints) (port.Stream, error) {
	return nil, fmt.Errorf("v4l2 (%s): %w", facingName(cons.Facing), errV4L2Unsupported)
}
