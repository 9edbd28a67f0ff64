package normalize

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visearch/internal/adapter/pixels"
	"visearch/internal/domain"
)

func TestCropRect640x480(t *testing.T) {
	crop, err := CropRect(640, 480)
	require.NoError(t, err)

	assert.Equal(t, 240.0, crop.Size)
	assert.Equal(t, 200.0, crop.X)
	assert.Equal(t, 120.0, crop.Y)

	x1, y1 := crop.Max()
	assert.Equal(t, 440.0, x1)
	assert.Equal(t, 360.0, y1)
}

func TestCropRectIsCentered(t *testing.T) {
	sizes := [][2]int{{1, 1}, {3, 7}, {480, 640}, {481, 333}, {1920, 1080}, {224, 224}}
	for _, s := range sizes {
		w, h := s[0], s[1]
		crop, err := CropRect(w, h)
		require.NoError(t, err)

		size := float64(min(w, h)) * 0.5
		assert.Equal(t, size, crop.Size, "%dx%d", w, h)
		assert.InDelta(t, (float64(w)-size)/2, crop.X, 1e-12, "%dx%d", w, h)
		assert.InDelta(t, (float64(h)-size)/2, crop.Y, 1e-12, "%dx%d", w, h)

		x1, y1 := crop.Max()
		assert.InDelta(t, float64(w)/2, (crop.X+x1)/2, 1e-9, "%dx%d", w, h)
		assert.InDelta(t, float64(h)/2, (crop.Y+y1)/2, 1e-9, "%dx%d", w, h)
	}
}

func TestCropRectRejectsEmptyFrames(t *testing.T) {
	for _, s := range [][2]int{{0, 480}, {640, 0}, {0, 0}, {-1, 10}} {
		_, err := CropRect(s[0], s[1])
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrInvalidFrame))
		assert.Equal(t, domain.KindInvalidFrame, domain.KindOf(err))
	}
}

func TestNormalizeOutputSize(t *testing.T) {
	for _, s := range [][2]int{{640, 480}, {480, 640}, {100, 100}, {17, 1000}, {1, 1}} {
		out, err := Normalize(pixels.FromImage(image.NewRGBA(image.Rect(0, 0, s[0], s[1]))))
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 224, 224), out.Bounds(), "%dx%d", s[0], s[1])
	}
}

func TestNormalizeEmptyFrame(t *testing.T) {
	_, err := Normalize(pixels.Empty{})
	assert.ErrorIs(t, err, domain.ErrInvalidFrame)
}

// Pixels outside the crop must not leak into the output.
func TestNormalizeSamplesOnlyTheCrop(t *testing.T) {
	inside := color.RGBA{R: 10, G: 200, B: 30, A: 255}
	outside := color.RGBA{R: 255, A: 255}

	src := image.NewRGBA(image.Rect(0, 0, 640, 480))
	for y := 0; y < 480; y++ {
		for x := 0; x < 640; x++ {
			if x >= 200 && x < 440 && y >= 120 && y < 360 {
				src.SetRGBA(x, y, inside)
			} else {
				src.SetRGBA(x, y, outside)
			}
		}
	}

	out, err := Normalize(pixels.FromImage(src))
	require.NoError(t, err)

	for y := 0; y < OutputSize; y++ {
		for x := 0; x < OutputSize; x++ {
			if got := out.RGBAAt(x, y); got != inside {
				t.Fatalf("pixel (%d,%d) = %v, want %v", x, y, got, inside)
			}
		}
	}
}

func TestNormalizeKeepsOrientation(t *testing.T) {
	// left half of the crop black, right half white
	src := image.NewGray(image.Rect(0, 0, 640, 480))
	for y := 0; y < 480; y++ {
		for x := 320; x < 640; x++ {
			src.SetGray(x, y, color.Gray{Y: 255})
		}
	}

	out, err := Normalize(pixels.FromImage(src))
	require.NoError(t, err)

	assert.Equal(t, uint8(0), out.RGBAAt(10, 112).R)
	assert.Equal(t, uint8(255), out.RGBAAt(213, 112).R)
}

func TestNormalizeIsIdenticalAcrossSurfaces(t *testing.T) {
	w, h := 97, 61
	pix := make([]byte, w*h*4)
	for i := range pix {
		pix[i] = byte(i * 31)
	}
	for i := 3; i < len(pix); i += 4 {
		pix[i] = 255
	}

	raw, err := pixels.FromRGBA(w, h, pix)
	require.NoError(t, err)

	preview, err := Normalize(raw)
	require.NoError(t, err)
	search, err := Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, preview.Pix, search.Pix)

	// the generic accessor path samples the same pixels as the direct image path
	generic, err := Normalize(accessorOnly{raw})
	require.NoError(t, err)
	require.Len(t, generic.Pix, len(preview.Pix))
	for i := range generic.Pix {
		assert.InDelta(t, preview.Pix[i], generic.Pix[i], 1, "byte %d", i)
	}
}

type accessorOnly struct {
	buf *pixels.RGBABuffer
}

func (a accessorOnly) Width() int  { return a.buf.Width() }
func (a accessorOnly) Height() int { return a.buf.Height() }

func (a accessorOnly) RGBA(x, y int) (r, g, b, al uint8) { return a.buf.RGBA(x, y) }
