// Package cache memoizes ranked results for repeated crops.
package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"image"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"visearch/internal/domain"
)

type MatchCache struct {
	lru *expirable.LRU[string, *cacheEntry]
}

type cacheEntry struct {
	results    []domain.MatchResult
	generation uint64
}

func NewMatchCache(maxSize int, ttl time.Duration) *MatchCache {
	if maxSize <= 0 {
		maxSize = 64
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &MatchCache{
		lru: expirable.NewLRU[string, *cacheEntry](maxSize, nil, ttl),
	}
}

// Digest identifies a normalized crop by its pixels.
func Digest(img *image.RGBA) string {
	h := sha256.New()
	b := img.Bounds()
	var dims [8]byte
	binary.BigEndian.PutUint32(dims[:4], uint32(b.Dx()))
	binary.BigEndian.PutUint32(dims[4:], uint32(b.Dy()))
	h.Write(dims[:])
	for y := b.Min.Y; y < b.Max.Y; y++ {
		start := img.PixOffset(b.Min.X, y)
		h.Write(img.Pix[start : start+4*b.Dx()])
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16])
}

func cacheKey(digest string, topK int) string {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], uint64(topK))
	return digest + ":" + hex.EncodeToString(k[:])
}

// Get returns results cached for digest and topK under the given reference
// generation. Entries from another generation are dropped.
func (c *MatchCache) Get(digest string, topK int, generation uint64) ([]domain.MatchResult, bool) {
	key := cacheKey(digest, topK)
	entry, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	if entry.generation != generation {
		c.lru.Remove(key)
		return nil, false
	}
	return append([]domain.MatchResult(nil), entry.results...), true
}

func (c *MatchCache) Put(digest string, topK int, generation uint64, results []domain.MatchResult) {
	c.lru.Add(cacheKey(digest, topK), &cacheEntry{
		results:    append([]domain.MatchResult(nil), results...),
		generation: generation,
	})
}

func (c *MatchCache) Invalidate() {
	c.lru.Purge()
}

func (c *MatchCache) Size() int {
	return c.lru.Len()
}
