package refsource

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// MemorySource serves blobs held in memory.
type MemorySource struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemorySource() *MemorySource {
	return &MemorySource{blobs: make(map[string][]byte)}
}

// Put stores a copy of data under key.
func (s *MemorySource) Put(key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = append([]byte(nil), data...)
}

func (s *MemorySource) Fetch(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	data, ok := s.blobs[key]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *MemorySource) Describe(key string) string {
	return "mem://" + key
}
