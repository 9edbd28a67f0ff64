package usecase

import (
	"context"
	"image"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visearch/internal/adapter/pixels"
	"visearch/internal/port"
)

func TestPreviewLoop_RendersUntilStopped(t *testing.T) {
	frame := solidFrame(64, 48, red)
	var rendered atomic.Int32

	loop := NewPreviewLoop(200, func() port.PixelBuffer { return frame }, func(img *image.RGBA) {
		assert.Equal(t, 224, img.Bounds().Dx())
		rendered.Add(1)
	})
	loop.Start(context.Background())
	loop.Start(context.Background())
	assert.True(t, loop.Running())

	require.Eventually(t, func() bool { return rendered.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)

	loop.Stop()
	assert.False(t, loop.Running())
	after := rendered.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, rendered.Load(), "no frame may render after Stop returns")
	assert.Equal(t, uint64(after), loop.Rendered())

	loop.Stop()
}

func TestPreviewLoop_SkipsEmptyFrames(t *testing.T) {
	var calls atomic.Int32
	loop := NewPreviewLoop(200, func() port.PixelBuffer {
		calls.Add(1)
		return pixels.Empty{}
	}, func(*image.RGBA) {
		t.Error("empty frame rendered")
	})
	loop.Start(context.Background())

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	loop.Stop()
	assert.Equal(t, uint64(0), loop.Rendered())
}

func TestPreviewLoop_StopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	loop := NewPreviewLoop(200, func() port.PixelBuffer { return solidFrame(8, 8, blue) }, func(*image.RGBA) {})
	loop.Start(ctx)

	cancel()
	loop.Stop()
	assert.False(t, loop.Running())
}

func TestPreviewLoop_Restart(t *testing.T) {
	var rendered atomic.Int32
	loop := NewPreviewLoop(200, func() port.PixelBuffer { return solidFrame(8, 8, blue) }, func(*image.RGBA) {
		rendered.Add(1)
	})

	loop.Start(context.Background())
	require.Eventually(t, func() bool { return rendered.Load() >= 1 }, 2*time.Second, 5*time.Millisecond)
	loop.Stop()

	before := rendered.Load()
	loop.Start(context.Background())
	require.Eventually(t, func() bool { return rendered.Load() > before }, 2*time.Second, 5*time.Millisecond)
	loop.Stop()
}
