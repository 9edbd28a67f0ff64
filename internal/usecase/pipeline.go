package usecase

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"visearch/internal/adapter/cache"
	"visearch/internal/adapter/normalize"
	"visearch/internal/adapter/ranker"
	"visearch/internal/adapter/refstore"
	"visearch/internal/domain"
	"visearch/internal/logging"
	"visearch/internal/port"
)

// Pipeline owns the loaded model and the reference store for as long as a
// host needs them. It replaces process-wide caches: create one, Init it (or
// let the first Search load lazily), and Dispose it when done.
type Pipeline struct {
	loadModel port.EmbedderLoader
	refs      *refstore.Store
	matches   *cache.MatchCache
	logger    *slog.Logger

	modelGroup singleflight.Group

	mu       sync.RWMutex
	embedder port.Embedder
	closed   bool
}

type PipelineOption func(*Pipeline)

// WithMatchCache memoizes ranked results per normalized crop.
func WithMatchCache(c *cache.MatchCache) PipelineOption {
	return func(p *Pipeline) { p.matches = c }
}

func WithLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPipeline creates a pipeline. Nothing is loaded until Init or Search.
func NewPipeline(loadModel port.EmbedderLoader, refs *refstore.Store, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		loadModel: loadModel,
		refs:      refs,
		logger:    logging.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Init loads the model and the reference set concurrently. It is safe to
// call more than once and concurrently with Search.
func (p *Pipeline) Init(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := p.model(gctx)
		return err
	})
	g.Go(func() error {
		_, err := p.refs.EnsureLoaded(gctx)
		return err
	})
	return g.Wait()
}

// IsReady reports whether both the model and the reference set are loaded.
func (p *Pipeline) IsReady() bool {
	p.mu.RLock()
	ready := p.embedder != nil && !p.closed
	p.mu.RUnlock()
	return ready && p.refs.Loaded()
}

// Dispose releases the model. Later searches fail with a ModelLoadError.
func (p *Pipeline) Dispose() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.embedder == nil {
		return nil
	}
	err := p.embedder.Close()
	p.embedder = nil
	return err
}

// References exposes the reference store.
func (p *Pipeline) References() *refstore.Store {
	return p.refs
}

// Reload fetches the reference set again and drops cached matches.
func (p *Pipeline) Reload(ctx context.Context) (*refstore.ReferenceSet, error) {
	set, err := p.refs.Reload(ctx)
	if p.matches != nil {
		p.matches.Invalidate()
	}
	return set, err
}

// Crop is the normalization shared by preview and search.
func (p *Pipeline) Crop(src port.PixelBuffer) (*image.RGBA, error) {
	return normalize.Normalize(src)
}

// Search normalizes src, embeds the crop, and ranks the reference set.
// The frame is validated before anything is loaded.
func (p *Pipeline) Search(ctx context.Context, src port.PixelBuffer, limit int) ([]domain.MatchResult, error) {
	crop, err := normalize.Normalize(src)
	if err != nil {
		return nil, err
	}
	return p.SearchNormalized(ctx, crop, limit)
}

// SearchNormalized runs the search on an already normalized crop.
func (p *Pipeline) SearchNormalized(ctx context.Context, crop *image.RGBA, limit int) ([]domain.MatchResult, error) {
	if limit < 1 {
		return nil, ranker.ErrInvalidLimit
	}
	if logging.RequestID(ctx) == "" {
		ctx = logging.WithRequestID(ctx, uuid.NewString())
	}
	start := time.Now()

	embedder, err := p.model(ctx)
	if err != nil {
		p.logger.WarnContext(ctx, "model unavailable", "error", err)
		return nil, err
	}

	set, err := p.refs.EnsureLoaded(ctx)
	if err != nil {
		p.logger.WarnContext(ctx, "references unavailable", "error", err)
		return nil, err
	}

	generation := p.refs.Generation()
	var digest string
	if p.matches != nil {
		digest = cache.Digest(crop)
		if results, ok := p.matches.Get(digest, limit, generation); ok {
			p.logger.DebugContext(ctx, "match cache hit", "results", len(results))
			return results, nil
		}
	}

	query, err := embedder.Embed(ctx, crop)
	if err != nil {
		p.logger.WarnContext(ctx, "embedding failed", "error", err)
		return nil, &domain.InferenceError{Err: err}
	}
	if len(query) != set.Dimension() {
		return nil, &domain.InferenceError{
			Err: fmt.Errorf("%w: model produced %d, references have %d", domain.ErrDimensionMismatch, len(query), set.Dimension()),
		}
	}

	results, err := ranker.Rank(query, set.Records(), limit)
	if err != nil {
		return nil, &domain.InferenceError{Err: err}
	}

	if p.matches != nil {
		p.matches.Put(digest, limit, generation, results)
	}

	attrs := []any{"results", len(results), "references", set.Len(), "duration", time.Since(start)}
	if len(results) > 0 {
		attrs = append(attrs, "top", results[0].Code, "score", results[0].Score)
	}
	p.logger.InfoContext(ctx, "search complete", attrs...)
	return results, nil
}

// model returns the loaded embedder, loading it once. Callers may stop
// waiting through ctx without cancelling the shared load.
func (p *Pipeline) model(ctx context.Context) (port.Embedder, error) {
	p.mu.RLock()
	embedder, closed := p.embedder, p.closed
	p.mu.RUnlock()
	if closed {
		return nil, &domain.ModelLoadError{Err: domain.ErrClosed}
	}
	if embedder != nil {
		return embedder, nil
	}

	ch := p.modelGroup.DoChan("model", func() (any, error) {
		return p.installModel(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return nil, &domain.ModelLoadError{Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(port.Embedder), nil
	}
}

func (p *Pipeline) installModel(ctx context.Context) (port.Embedder, error) {
	p.mu.RLock()
	if p.embedder != nil {
		e := p.embedder
		p.mu.RUnlock()
		return e, nil
	}
	p.mu.RUnlock()

	start := time.Now()
	e, err := p.loadModel(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrModelLoad) {
			err = &domain.ModelLoadError{Err: err}
		}
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		e.Close()
		return nil, &domain.ModelLoadError{Model: e.ModelName(), Err: domain.ErrClosed}
	}
	p.embedder = e
	p.logger.Info("model loaded", "model", e.ModelName(), "dimension", e.Dimension(), "duration", time.Since(start))
	return e, nil
}
