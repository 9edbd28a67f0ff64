package usecase

import (
	"context"
	"image"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"

	"visearch/internal/adapter/normalize"
	"visearch/internal/port"
)

// PreviewLoop repeatedly normalizes the current frame and hands the crop to
// a renderer, at most fps times per second. Frames that cannot be normalized
// (e.g. before the camera delivers one) are skipped.
type PreviewLoop struct {
	fps    int
	frame  func() port.PixelBuffer
	render func(*image.RGBA)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	rendered atomic.Uint64
}

func NewPreviewLoop(fps int, frame func() port.PixelBuffer, render func(*image.RGBA)) *PreviewLoop {
	if fps <= 0 {
		fps = 15
	}
	return &PreviewLoop{fps: fps, frame: frame, render: render}
}

// Start launches the loop. Starting a running loop is a no-op.
func (l *PreviewLoop) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})
	go l.run(ctx, l.done)
}

// Stop ends the loop and waits for it. No frame is rendered after Stop
// returns. render must not call Stop.
func (l *PreviewLoop) Stop() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (l *PreviewLoop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cancel != nil
}

// Rendered counts frames handed to the renderer.
func (l *PreviewLoop) Rendered() uint64 {
	return l.rendered.Load()
}

func (l *PreviewLoop) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	limiter := rate.NewLimiter(rate.Limit(l.fps), 1)

	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		crop, err := normalize.Normalize(l.frame())
		if err != nil {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		l.render(crop)
		l.rendered.Add(1)
	}
}
