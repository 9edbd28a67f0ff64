// Package camera acquires capture streams from V4L2 devices or from image
// files standing in for a camera.
package camera

import (
	"context"
	"errors"
	"fmt"
	"os"

	"visearch/config"
	"visearch/internal/domain"
	"visearch/internal/port"
)

// ErrNoDevice is returned when no device is configured for the requested facing.
var ErrNoDevice = errors.New("no device configured")

// Acquire opens an environment-facing stream, falling back to the default
// device. If both attempts fail it returns a *domain.CameraAccessError.
func Acquire(ctx context.Context, cam port.Camera, c port.Constraints) (port.Stream, error) {
	preferred := c
	preferred.Facing = port.FacingEnvironment

	stream, err := cam.Open(ctx, preferred)
	if err == nil {
		return stream, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, &domain.CameraAccessError{Err: ctxErr}
	}

	fallback := c
	fallback.Facing = port.FacingAny

	stream, fallbackErr := cam.Open(ctx, fallback)
	if fallbackErr == nil {
		return stream, nil
	}

	return nil, &domain.CameraAccessError{
		Permission: errors.Is(err, os.ErrPermission) || errors.Is(fallbackErr, os.ErrPermission),
		Err:        fmt.Errorf("environment camera: %v; default camera: %w", err, fallbackErr),
	}
}

// Open builds the camera backend named in cfg.
func Open(cfg config.CameraConfig) (port.Camera, error) {
	switch cfg.Backend {
	case "v4l2", "":
		return NewV4L2Camera(cfg), nil
	case "frames":
		return NewFramesCamera(cfg), nil
	default:
		return nil, fmt.Errorf("unknown camera backend: %s", cfg.Backend)
	}
}
