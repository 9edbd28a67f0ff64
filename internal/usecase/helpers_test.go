package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"visearch/internal/adapter/embedding"
	"visearch/internal/adapter/normalize"
	"visearch/internal/adapter/pixels"
	"visearch/internal/adapter/refsource"
	"visearch/internal/adapter/refstore"
	"visearch/internal/domain"
	"visearch/internal/port"
)

const testDim = 48

var (
	red   = color.NRGBA{R: 230, G: 20, B: 20, A: 255}
	green = color.NRGBA{R: 20, G: 230, B: 20, A: 255}
	blue  = color.NRGBA{R: 20, G: 20, B: 230, A: 255}
)

func solidFrame(w, h int, c color.NRGBA) *pixels.ImageBuffer {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return pixels.FromImage(img)
}

type countingEmbedder struct {
	port.Embedder
	calls atomic.Int32
}

func (e *countingEmbedder) Embed(ctx context.Context, img *image.RGBA) ([]float32, error) {
	e.calls.Add(1)
	return e.Embedder.Embed(ctx, img)
}

type countingLoader struct {
	mu       sync.Mutex
	calls    int
	failures int
	embedder *countingEmbedder
}

func newCountingLoader(dim int) *countingLoader {
	return &countingLoader{embedder: &countingEmbedder{Embedder: embedding.NewMockEmbedder(dim)}}
}

func (l *countingLoader) load(ctx context.Context) (port.Embedder, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.failures > 0 {
		l.failures--
		return nil, &domain.ModelLoadError{Model: "mock", Err: errors.New("no such file")}
	}
	return l.embedder, nil
}

func (l *countingLoader) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

// referenceSource builds a dataset whose embeddings come from the mock
// embedder applied to solid frames, so searching with one of those frames
// ranks its code first.
func referenceSource(t *testing.T) *refsource.MemorySource {
	t.Helper()
	e := embedding.NewMockEmbedder(testDim)

	var records []domain.ReferenceRecord
	for _, ref := range []struct {
		code string
		c    color.NRGBA
	}{{"RED", red}, {"GREEN", green}, {"BLUE", blue}} {
		crop, err := normalize.Normalize(solidFrame(320, 240, ref.c))
		require.NoError(t, err)
		vec, err := e.Embed(context.Background(), crop)
		require.NoError(t, err)
		records = append(records, domain.ReferenceRecord{Code: ref.code, Image: ref.code + ".jpg", Embedding: vec})
	}

	data, err := json.Marshal(records)
	require.NoError(t, err)

	src := refsource.NewMemorySource()
	src.Put("embeddings.json", data)
	return src
}

func newTestPipeline(t *testing.T, loader *countingLoader, opts ...PipelineOption) *Pipeline {
	t.Helper()
	store := refstore.New(referenceSource(t), "embeddings.json", refstore.WithDimension(testDim))
	return NewPipeline(loader.load, store, opts...)
}
