package camera

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"visearch/config"
	"visearch/internal/adapter/pixels"
	"visearch/internal/port"
)

// FramesCamera plays still images matched by a glob as a camera feed,
// cycling through them at the preview rate.
type FramesCamera struct {
	environment string
	fallback    string
	fps         int
}

func NewFramesCamera(cfg config.CameraConfig) *FramesCamera {
	return &FramesCamera{
		environment: cfg.EnvironmentFrames,
		fallback:    cfg.Frames,
		fps:         cfg.PreviewFPS,
	}
}

func (c *FramesCamera) Open(ctx context.Context, cons port.Constraints) (port.Stream, error) {
	pattern := c.fallback
	if cons.Facing == port.FacingEnvironment {
		pattern = c.environment
	}
	if pattern == "" {
		return nil, fmt.Errorf("frames (%s): %w", facingName(cons.Facing), ErrNoDevice)
	}

	paths, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("invalid frames pattern %q: %w", pattern, err)
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		return nil, fmt.Errorf("frames %q: %w", pattern, os.ErrNotExist)
	}

	frames := make([]port.PixelBuffer, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		buf, err := pixels.DecodeFile(p)
		if err != nil {
			return nil, err
		}
		frames = append(frames, buf)
	}

	fps := c.fps
	if fps <= 0 {
		fps = 15
	}
	return &framesStream{
		pattern:  pattern,
		frames:   frames,
		interval: time.Second / time.Duration(fps),
		start:    time.Now(),
	}, nil
}

type framesStream struct {
	pattern  string
	frames   []port.PixelBuffer
	interval time.Duration
	start    time.Time

	mu     sync.Mutex
	closed bool
}

func (s *framesStream) Current() port.PixelBuffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return pixels.Empty{}
	}
	i := int(time.Since(s.start)/s.interval) % len(s.frames)
	return s.frames[i]
}

func (s *framesStream) Device() string {
	return s.pattern
}

func (s *framesStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func facingName(f port.Facing) string {
	if f == port.FacingAny {
		return "default"
	}
	return string(f)
}
