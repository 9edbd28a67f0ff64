package port

import (
	"context"
	"image"
)

// Embedder turns a normalized image into a dense feature vector.
type Embedder interface {
	// Embed returns the embedding of a square image at the model's input size.
	// The returned slice is owned by the caller.
	Embed(ctx context.Context, img *image.RGBA) ([]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string

	// Close releases the model runtime.
	Close() error
}

// EmbedderLoader loads an Embedder. It may block on I/O and may fail.
type EmbedderLoader func(ctx context.Context) (Embedder, error)
