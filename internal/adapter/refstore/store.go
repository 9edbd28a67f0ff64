// Package refstore holds the reference set in memory for the lifetime of a
// pipeline. The set is loaded lazily, at most once, and shared by all callers.
package refstore

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"visearch/internal/domain"
	"visearch/internal/logging"
	"visearch/internal/port"
)

const loadKey = "references"

type Store struct {
	source    port.Source
	key       string
	dimension int
	logger    *slog.Logger

	group singleflight.Group

	mu         sync.RWMutex
	set        *ReferenceSet
	generation uint64
	epoch      uint64 // bumped by Reload; loads started under an older epoch are not installed
}

type Option func(*Store)

// WithDimension rejects data whose embeddings do not have d elements.
func WithDimension(d int) Option {
	return func(s *Store) { s.dimension = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

func New(source port.Source, key string, opts ...Option) *Store {
	s := &Store{
		source: source,
		key:    key,
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureLoaded returns the reference set, loading it on first use.
// Concurrent callers share one in-flight load. A caller whose ctx ends stops
// waiting without cancelling the load for the others. Failures are not cached.
func (s *Store) EnsureLoaded(ctx context.Context) (*ReferenceSet, error) {
	if set := s.current(); set != nil {
		return set, nil
	}

	ch := s.group.DoChan(loadKey, func() (any, error) {
		return s.load(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return nil, &domain.DataLoadError{Source: s.source.Describe(s.key), Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*ReferenceSet), nil
	}
}

// All returns the loaded set without triggering a load.
func (s *Store) All() (*ReferenceSet, error) {
	if set := s.current(); set != nil {
		return set, nil
	}
	return nil, &domain.DataLoadError{Source: s.source.Describe(s.key), Err: domain.ErrNotLoaded}
}

// Reload drops the cached set and loads it again. A load still in flight
// from before the call finishes for its own waiters but is never installed.
func (s *Store) Reload(ctx context.Context) (*ReferenceSet, error) {
	s.mu.Lock()
	s.set = nil
	s.epoch++
	s.group.Forget(loadKey)
	s.mu.Unlock()

	return s.EnsureLoaded(ctx)
}

func (s *Store) Loaded() bool {
	return s.current() != nil
}

// Generation increases every time a set is installed.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

func (s *Store) current() *ReferenceSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.set
}

func (s *Store) load(ctx context.Context) (*ReferenceSet, error) {
	s.mu.RLock()
	current, epoch := s.set, s.epoch
	s.mu.RUnlock()
	if current != nil {
		return current, nil
	}

	where := s.source.Describe(s.key)
	start := time.Now()

	rc, err := s.source.Fetch(ctx, s.key)
	if err != nil {
		s.logger.Warn("reference fetch failed", "source", where, "error", err)
		return nil, &domain.DataLoadError{Source: where, Err: err}
	}
	defer rc.Close()

	set, err := Parse(rc, s.dimension)
	if err != nil {
		s.logger.Warn("reference parse failed", "source", where, "error", err)
		return nil, &domain.DataLoadError{Source: where, Err: err}
	}

	s.mu.Lock()
	if epoch != s.epoch {
		newer := s.set
		s.mu.Unlock()
		s.logger.Debug("discarding superseded reference load", "source", where)
		if newer != nil {
			return newer, nil
		}
		return set, nil
	}
	s.set = set
	s.generation++
	s.mu.Unlock()

	s.logger.Info("references loaded",
		"source", where,
		"records", set.Len(),
		"dimension", set.Dimension(),
		"duplicates", len(set.duplicates),
		"duration", time.Since(start))
	return set, nil
}
