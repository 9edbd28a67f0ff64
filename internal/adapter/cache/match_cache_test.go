package cache

import (
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visearch/internal/domain"
)

func crop(c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestDigest(t *testing.T) {
	a := Digest(crop(color.RGBA{R: 1, A: 255}))
	b := Digest(crop(color.RGBA{R: 1, A: 255}))
	c := Digest(crop(color.RGBA{R: 2, A: 255}))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 32)
}

func TestDigest_SubImage(t *testing.T) {
	big := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 4; y < 12; y++ {
		for x := 4; x < 12; x++ {
			big.SetRGBA(x, y, color.RGBA{R: 1, A: 255})
		}
	}
	sub := big.SubImage(image.Rect(4, 4, 12, 12)).(*image.RGBA)

	assert.Equal(t, Digest(crop(color.RGBA{R: 1, A: 255})), Digest(sub))
}

func TestMatchCache_GetPut(t *testing.T) {
	c := NewMatchCache(10, time.Minute)
	results := []domain.MatchResult{{Code: "A", Score: 1}, {Code: "C", Score: 0.99}}

	_, ok := c.Get("d1", 10, 1)
	assert.False(t, ok)

	c.Put("d1", 10, 1, results)
	got, ok := c.Get("d1", 10, 1)
	require.True(t, ok)
	assert.Equal(t, results, got)

	_, ok = c.Get("d1", 5, 1)
	assert.False(t, ok, "different K is a different entry")

	got[0].Code = "mutated"
	again, _ := c.Get("d1", 10, 1)
	assert.Equal(t, "A", again[0].Code)
}

func TestMatchCache_GenerationInvalidates(t *testing.T) {
	c := NewMatchCache(10, time.Minute)
	c.Put("d1", 10, 1, []domain.MatchResult{{Code: "A", Score: 1}})

	_, ok := c.Get("d1", 10, 2)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Size())
}

func TestMatchCache_Eviction(t *testing.T) {
	c := NewMatchCache(2, time.Minute)
	c.Put("d1", 1, 0, nil)
	c.Put("d2", 1, 0, nil)
	c.Put("d3", 1, 0, nil)

	assert.Equal(t, 2, c.Size())
	_, ok := c.Get("d1", 1, 0)
	assert.False(t, ok)
}

func TestMatchCache_TTL(t *testing.T) {
	c := NewMatchCache(10, 20*time.Millisecond)
	c.Put("d1", 1, 0, []domain.MatchResult{{Code: "A"}})

	time.Sleep(60 * time.Millisecond)
	_, ok := c.Get("d1", 1, 0)
	assert.False(t, ok)
}

func TestMatchCache_Invalidate(t *testing.T) {
	c := NewMatchCache(10, time.Minute)
	c.Put("d1", 1, 0, nil)
	c.Put("d2", 1, 0, nil)

	c.Invalidate()
	assert.Equal(t, 0, c.Size())
}
