package usecase

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync"

	"visearch/internal/adapter/camera"
	"visearch/internal/adapter/pixels"
	"visearch/internal/domain"
	"visearch/internal/logging"
	"visearch/internal/port"
)

// ErrNotCapturing is the cause reported when Trigger runs without a stream.
var ErrNotCapturing = errors.New("capture not started")

// Capture drives one camera session: acquire, preview, trigger a search, and
// release the device.
type Capture struct {
	pipeline    *Pipeline
	camera      port.Camera
	constraints port.Constraints
	fps         int
	render      func(*image.RGBA)
	logger      *slog.Logger

	mu      sync.Mutex
	stream  port.Stream
	preview *PreviewLoop
}

type CaptureOption func(*Capture)

// WithPreview renders normalized preview crops at fps.
func WithPreview(fps int, render func(*image.RGBA)) CaptureOption {
	return func(c *Capture) {
		c.fps = fps
		c.render = render
	}
}

func WithConstraints(cons port.Constraints) CaptureOption {
	return func(c *Capture) { c.constraints = cons }
}

func WithCaptureLogger(l *slog.Logger) CaptureOption {
	return func(c *Capture) {
		if l != nil {
			c.logger = l
		}
	}
}

func NewCapture(pipeline *Pipeline, cam port.Camera, opts ...CaptureOption) *Capture {
	c := &Capture{
		pipeline: pipeline,
		camera:   cam,
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start acquires the camera and starts the preview. Calling Start on an
// active session is a no-op.
func (c *Capture) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream != nil {
		return nil
	}

	stream, err := camera.Acquire(ctx, c.camera, c.constraints)
	if err != nil {
		c.logger.Warn("camera unavailable", "error", err)
		return err
	}
	c.stream = stream
	c.logger.Info("camera started", "device", stream.Device())

	if c.render != nil {
		c.preview = NewPreviewLoop(c.fps, stream.Current, c.render)
		c.preview.Start(ctx)
	}
	return nil
}

// Active reports whether a stream is held.
func (c *Capture) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream != nil
}

// Frame returns the current camera frame, or an empty buffer when idle.
func (c *Capture) Frame() port.PixelBuffer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream == nil {
		return pixels.Empty{}
	}
	return c.stream.Current()
}

// Trigger searches with the current frame. On success the camera is stopped;
// on failure it keeps running so the user can try again.
func (c *Capture) Trigger(ctx context.Context, limit int) ([]domain.MatchResult, error) {
	c.mu.Lock()
	stream := c.stream
	c.mu.Unlock()
	if stream == nil {
		return nil, &domain.CameraAccessError{Err: ErrNotCapturing}
	}

	results, err := c.pipeline.Search(ctx, stream.Current(), limit)
	if err != nil {
		return nil, err
	}

	if err := c.Stop(); err != nil {
		c.logger.Warn("camera stop failed", "error", err)
	}
	return results, nil
}

// Stop halts the preview and releases the device. It is idempotent.
func (c *Capture) Stop() error {
	c.mu.Lock()
	stream, preview := c.stream, c.preview
	c.stream, c.preview = nil, nil
	c.mu.Unlock()

	if preview != nil {
		preview.Stop()
	}
	if stream == nil {
		return nil
	}
	c.logger.Info("camera stopped", "device", stream.Device())
	return stream.Close()
}

// Retake restarts capture after results were shown.
func (c *Capture) Retake(ctx context.Context) error {
	if err := c.Stop(); err != nil {
		c.logger.Warn("camera stop failed", "error", err)
	}
	return c.Start(ctx)
}

// WithCapture runs fn inside a started session and releases the camera on
// every exit path, including a panic in fn.
func WithCapture(ctx context.Context, c *Capture, fn func(*Capture) error) (err error) {
	if err := c.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if stopErr := c.Stop(); err == nil {
			err = stopErr
		}
	}()
	return fn(c)
}
