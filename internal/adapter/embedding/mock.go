package embedding

import (
	"context"
	"image"
)

const mockGrid = 4

// MockEmbedder is a deterministic embedder that pools colors over a coarse
// grid. It needs no model file and is used by tests, demos, and the wasm build.
type MockEmbedder struct {
	dimension int
}

func NewMockEmbedder(dimension int) *MockEmbedder {
	if dimension <= 0 {
		dimension = mockGrid * mockGrid * 3
	}
	return &MockEmbedder{dimension: dimension}
}

func (e *MockEmbedder) Embed(ctx context.Context, img *image.RGBA) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := Preprocess(img, NHWC)
	if err != nil {
		return nil, err
	}

	const cell = InputSize / mockGrid
	var pooled [mockGrid * mockGrid * 3]float32
	for y := 0; y < InputSize; y++ {
		for x := 0; x < InputSize; x++ {
			base := (y/cell*mockGrid + x/cell) * 3
			for c := 0; c < 3; c++ {
				pooled[base+c] += data[(y*InputSize+x)*3+c]
			}
		}
	}
	for i := range pooled {
		pooled[i] /= cell * cell
	}

	// Spread the pooled features over the whole vector; later repeats are
	// rectified so the vector does not degenerate to copies of itself.
	out := make([]float32, e.dimension)
	for i := range out {
		v := pooled[i%len(pooled)]
		if (i/len(pooled))%2 == 1 && v < 0 {
			v = 0
		}
		out[i] = v
	}
	return out, nil
}

func (e *MockEmbedder) Dimension() int { return e.dimension }

func (e *MockEmbedder) ModelName() string { return "mock" }

func (e *MockEmbedder) Close() error { return nil }
