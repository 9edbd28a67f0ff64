//go:build linux

package camera

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"sync"

	"github.com/vladimirvivien/go4vl/device"
	"github.com/vladimirvivien/go4vl/v4l2"

	"visearch/config"
	"visearch/internal/adapter/pixels"
	"visearch/internal/port"
)

// V4L2Camera captures MJPEG frames from video4linux devices.
type V4L2Camera struct {
	environment string
	fallback    string
	width       int
	height      int
	fps         int
}

func NewV4L2Camera(cfg config.CameraConfig) *V4L2Camera {
	return &V4L2Camera{
		environment: cfg.EnvironmentDevice,
		fallback:    cfg.DefaultDevice,
		width:       cfg.Width,
		height:      cfg.Height,
		fps:         cfg.PreviewFPS,
	}
}

func (c *V4L2Camera) Open(ctx context.Context, cons port.Constraints) (port.Stream, error) {
	path := c.fallback
	if cons.Facing == port.FacingEnvironment {
		path = c.environment
	}
	if path == "" {
		return nil, fmt.Errorf("v4l2 (%s): %w", facingName(cons.Facing), ErrNoDevice)
	}

	width, height := c.width, c.height
	if cons.Width > 0 && cons.Height > 0 {
		width, height = cons.Width, cons.Height
	}

	opts := []device.Option{
		device.WithPixFormat(v4l2.PixFormat{
			PixelFormat: v4l2.PixelFmtMJPEG,
			Width:       uint32(width),
			Height:      uint32(height),
		}),
	}
	if c.fps > 0 {
		opts = append(opts, device.WithFPS(uint32(c.fps)))
	}

	dev, err := device.Open(path, opts...)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if err := dev.Start(streamCtx); err != nil {
		cancel()
		dev.Close()
		return nil, fmt.Errorf("start %s: %w", path, err)
	}

	s := &v4l2Stream{
		path:   path,
		dev:    dev,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.pump(streamCtx)
	return s, nil
}

type v4l2Stream struct {
	path   string
	dev    *device.Device
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	raw     []byte
	seq     uint64
	decoded port.PixelBuffer
	decSeq  uint64
	closed  bool
}

func (s *v4l2Stream) pump(ctx context.Context) {
	defer close(s.done)
	frames := s.dev.GetOutput()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			s.mu.Lock()
			s.raw = append(s.raw[:0], frame...)
			s.seq++
			s.mu.Unlock()
		}
	}
}

// Current decodes the latest MJPEG frame. Frames are decoded on demand, so a
// preview slower than the device does not pay for frames it never shows.
func (s *v4l2Stream) Current() port.PixelBuffer {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.seq == 0 {
		return pixels.Empty{}
	}
	if s.decoded != nil && s.decSeq == s.seq {
		return s.decoded
	}

	img, err := jpeg.Decode(bytes.NewReader(s.raw))
	if err != nil {
		// keep showing the last good frame
		if s.decoded != nil {
			return s.decoded
		}
		return pixels.Empty{}
	}
	s.decoded = pixels.FromImage(img)
	s.decSeq = s.seq
	return s.decoded
}

func (s *v4l2Stream) Device() string {
	return s.path
}

func (s *v4l2Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	<-s.done
	return s.dev.Close()
}
