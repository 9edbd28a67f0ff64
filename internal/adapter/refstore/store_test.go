package refstore

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visearch/internal/domain"
)

const dataset = `[
	{"code":"A","image":"a.jpg","embedding":[1,0,0]},
	{"code":"B","image":"b.jpg","embedding":[0,1,0]},
	{"code":"C","image":"c.jpg","embedding":[0.9,0.1,0]}
]`

type countingSource struct {
	data    string
	fetches atomic.Int32
	fail    atomic.Int32 // number of upcoming fetches that fail
	started chan struct{}
	release chan struct{}
}

func newCountingSource(data string) *countingSource {
	return &countingSource{data: data}
}

func (s *countingSource) Fetch(ctx context.Context, key string) (io.ReadCloser, error) {
	n := s.fetches.Add(1)
	if s.started != nil && n == 1 {
		close(s.started)
	}
	if s.release != nil {
		<-s.release
	}
	if s.fail.Load() > 0 {
		s.fail.Add(-1)
		return nil, errors.New("network unreachable")
	}
	return io.NopCloser(strings.NewReader(s.data)), nil
}

func (s *countingSource) Describe(key string) string { return "test://" + key }

func TestEnsureLoaded_Sequential(t *testing.T) {
	src := newCountingSource(dataset)
	store := New(src, "embeddings.json")

	first, err := store.EnsureLoaded(context.Background())
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		set, err := store.EnsureLoaded(context.Background())
		require.NoError(t, err)
		assert.Same(t, first, set)
	}

	assert.Equal(t, int32(1), src.fetches.Load())
	assert.Equal(t, 3, first.Len())
	assert.Equal(t, 3, first.Dimension())
	assert.True(t, store.Loaded())
	assert.Equal(t, uint64(1), store.Generation())
}

func TestEnsureLoaded_Concurrent(t *testing.T) {
	src := newCountingSource(dataset)
	src.started = make(chan struct{})
	src.release = make(chan struct{})
	store := New(src, "embeddings.json")

	const callers = 16
	sets := make([]*ReferenceSet, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sets[i], errs[i] = store.EnsureLoaded(context.Background())
		}(i)
	}

	<-src.started
	close(src.release)
	wg.Wait()

	assert.Equal(t, int32(1), src.fetches.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, sets[0], sets[i])
	}
}

func TestAll_BeforeLoad(t *testing.T) {
	store := New(newCountingSource(dataset), "embeddings.json")

	_, err := store.All()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDataLoad)
	assert.ErrorIs(t, err, domain.ErrNotLoaded)
	assert.Equal(t, domain.KindDataUnavailable, domain.KindOf(err))

	_, err = store.EnsureLoaded(context.Background())
	require.NoError(t, err)

	set, err := store.All()
	require.NoError(t, err)
	assert.Equal(t, 3, set.Len())
}

func TestEnsureLoaded_FailureIsNotCached(t *testing.T) {
	src := newCountingSource(dataset)
	src.fail.Store(1)
	store := New(src, "embeddings.json")

	_, err := store.EnsureLoaded(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDataLoad)
	assert.Contains(t, err.Error(), "test://embeddings.json")
	assert.False(t, store.Loaded())
	assert.Equal(t, uint64(0), store.Generation())

	_, err = store.All()
	assert.ErrorIs(t, err, domain.ErrNotLoaded)

	set, err := store.EnsureLoaded(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, set.Len())
	assert.Equal(t, int32(2), src.fetches.Load())
}

func TestEnsureLoaded_ParseFailure(t *testing.T) {
	store := New(newCountingSource(`{"not":"an array"}`), "embeddings.json")

	_, err := store.EnsureLoaded(context.Background())
	assert.ErrorIs(t, err, domain.ErrDataLoad)
	assert.False(t, store.Loaded())
}

func TestEnsureLoaded_CallerCancelDoesNotAbortLoad(t *testing.T) {
	src := newCountingSource(dataset)
	src.started = make(chan struct{})
	src.release = make(chan struct{})
	store := New(src, "embeddings.json")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := store.EnsureLoaded(ctx)
		done <- err
	}()

	<-src.started
	cancel()
	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, domain.ErrDataLoad)

	close(src.release)
	set, err := store.EnsureLoaded(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, set.Len())
	assert.Equal(t, int32(1), src.fetches.Load())
}

func TestReload(t *testing.T) {
	src := newCountingSource(dataset)
	store := New(src, "embeddings.json")

	first, err := store.EnsureLoaded(context.Background())
	require.NoError(t, err)

	second, err := store.Reload(context.Background())
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, int32(2), src.fetches.Load())
	assert.Equal(t, uint64(2), store.Generation())
}

func TestWithDimension(t *testing.T) {
	store := New(newCountingSource(dataset), "embeddings.json", WithDimension(1280))

	_, err := store.EnsureLoaded(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.ErrorIs(t, err, domain.ErrDataLoad)
}

// sequenceSource serves a different dataset per fetch; the first fetch
// blocks until release is closed.
type sequenceSource struct {
	data    []string
	fetches atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (s *sequenceSource) Fetch(ctx context.Context, key string) (io.ReadCloser, error) {
	n := s.fetches.Add(1)
	if n == 1 {
		close(s.started)
		<-s.release
	}
	return io.NopCloser(strings.NewReader(s.data[n-1])), nil
}

func (s *sequenceSource) Describe(key string) string { return "seq://" + key }

func TestReload_SupersededLoadIsNotInstalled(t *testing.T) {
	src := &sequenceSource{
		data: []string{
			`[{"code":"OLD","embedding":[1,0]}]`,
			`[{"code":"NEW","embedding":[0,1]}]`,
		},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	store := New(src, "embeddings.json")

	done := make(chan *ReferenceSet, 1)
	go func() {
		set, err := store.EnsureLoaded(context.Background())
		assert.NoError(t, err)
		done <- set
	}()
	<-src.started

	reloaded, err := store.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"NEW"}, reloaded.Codes())

	close(src.release)
	early := <-done
	assert.Same(t, reloaded, early)

	set, err := store.All()
	require.NoError(t, err)
	assert.Same(t, reloaded, set)
	assert.Equal(t, int32(2), src.fetches.Load())
	assert.Equal(t, uint64(1), store.Generation())
}
