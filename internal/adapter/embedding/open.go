// Package embedding loads the image backbone that turns a normalized crop
// into a feature vector.
package embedding

import (
	"context"
	"fmt"

	"visearch/config"
	"visearch/internal/domain"
	"visearch/internal/port"
)

// Open loads the embedder selected by cfg.Backend. Any failure is reported
// as a *domain.ModelLoadError.
func Open(ctx context.Context, cfg config.ModelConfig) (port.Embedder, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.ModelLoadError{Model: cfg.Path, Err: err}
	}

	switch cfg.Backend {
	case "mock":
		return NewMockEmbedder(cfg.Dimension), nil
	case "onnx", "":
		layout, err := ParseLayout(cfg.Layout)
		if err != nil {
			return nil, &domain.ModelLoadError{Model: cfg.Path, Err: err}
		}
		e, err := NewONNXEmbedder(ONNXOptions{
			ModelPath:     cfg.Path,
			SharedLibrary: cfg.SharedLibrary,
			InputName:     cfg.InputName,
			OutputName:    cfg.OutputName,
			Layout:        layout,
			Dimension:     cfg.Dimension,
		})
		if err != nil {
			return nil, &domain.ModelLoadError{Model: cfg.Path, Err: err}
		}
		return e, nil
	default:
		return nil, &domain.ModelLoadError{Model: cfg.Backend, Err: fmt.Errorf("unknown embedding backend: %s", cfg.Backend)}
	}
}

// Loader adapts Open to a port.EmbedderLoader.
func Loader(cfg config.ModelConfig) port.EmbedderLoader {
	return func(ctx context.Context) (port.Embedder, error) {
		return Open(ctx, cfg)
	}
}
