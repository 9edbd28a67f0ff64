package tui

import (
	"context"
	"image"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	"visearch/internal/domain"
	"visearch/internal/port"
	"visearch/internal/usecase"
)

type RunOptions struct {
	Limit       int
	FPS         int
	Constraints port.Constraints
	Resolve     Resolver
	Logger      *slog.Logger
}

// Run acquires the camera, shows the capture screen until the user quits,
// and returns the last results. The camera is released on every exit path.
func Run(ctx context.Context, pipeline *usecase.Pipeline, cam port.Camera, opts RunOptions) ([]domain.MatchResult, error) {
	frames := make(chan *image.RGBA, 1)
	capture := usecase.NewCapture(pipeline, cam,
		usecase.WithPreview(opts.FPS, latest(frames)),
		usecase.WithConstraints(opts.Constraints),
		usecase.WithCaptureLogger(opts.Logger),
	)

	var results []domain.MatchResult
	err := usecase.WithCapture(ctx, capture, func(c *usecase.Capture) error {
		model := NewCaptureModel(ctx, pipeline, c, frames, opts.Limit, opts.Resolve)
		final, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
		if err != nil {
			return err
		}
		if m, ok := final.(CaptureModel); ok {
			results = m.Results()
		}
		return nil
	})
	return results, err
}

// latest returns a renderer that keeps only the newest crop in ch.
func latest(ch chan *image.RGBA) func(*image.RGBA) {
	return func(img *image.RGBA) {
		for {
			select {
			case ch <- img:
				return
			default:
			}
			select {
			case <-ch:
			default:
			}
		}
	}
}
